package timeseries

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosight/gosight/analytics/internal/aggregator"
)

const LeadStatusNew = "new"

// Lister is the owner of a listing.
type Lister struct {
	ID   string
	Type string
}

// ListerResolver looks up owners for many listings in one call.
type ListerResolver interface {
	ResolveListers(ctx context.Context, listingIDs []string) (map[string]Lister, error)
}

type LeadEntry struct {
	Type      string            `json:"type"`
	Timestamp time.Time         `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// LeadRecord is one seeker's interaction episode with a listing in one
// run. A new record is appended per run; records are never merged across
// runs.
type LeadRecord struct {
	ID            string
	RunID         string
	ListingID     string
	SeekerID      string
	ListerID      string
	ListerType    string
	Actions       []LeadEntry
	FirstActionAt time.Time
	LastActionAt  time.Time
	Status        string
	Date          time.Time
}

// BuildLeads turns lead activity into records. Missing listers are
// resolved with a single batched lookup; leads still without a lister are
// skipped and counted.
func BuildLeads(ctx context.Context, runID string, date time.Time, leads map[aggregator.LeadKey]*aggregator.LeadActivity, resolver ListerResolver) ([]LeadRecord, int, error) {
	var missing []string
	seen := map[string]struct{}{}
	for _, act := range leads {
		if act.ListerID != "" {
			continue
		}
		if _, ok := seen[act.ListingID]; ok {
			continue
		}
		seen[act.ListingID] = struct{}{}
		missing = append(missing, act.ListingID)
	}
	sort.Strings(missing)

	resolved := map[string]Lister{}
	if len(missing) > 0 && resolver != nil {
		var err error
		resolved, err = resolver.ResolveListers(ctx, missing)
		if err != nil {
			return nil, 0, err
		}
	}

	keys := make([]aggregator.LeadKey, 0, len(leads))
	for k := range leads {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].ListingID != keys[j].ListingID {
			return keys[i].ListingID < keys[j].ListingID
		}
		return keys[i].SeekerID < keys[j].SeekerID
	})

	day := PeriodOf(date).Date
	records := make([]LeadRecord, 0, len(keys))
	skipped := 0

	for _, k := range keys {
		act := leads[k]
		if len(act.Actions) == 0 {
			continue
		}

		listerID, listerType := act.ListerID, act.ListerType
		if listerID == "" {
			if l, ok := resolved[act.ListingID]; ok {
				listerID, listerType = l.ID, l.Type
			}
		}
		if listerID == "" {
			skipped++
			log.Warn().
				Str("listing_id", act.ListingID).
				Str("seeker_id", act.SeekerID).
				Msg("Skipping lead without lister")
			continue
		}

		entries := make([]LeadEntry, len(act.Actions))
		for i, a := range act.Actions {
			entries[i] = LeadEntry{Type: string(a.Kind), Timestamp: a.Timestamp, Metadata: a.Metadata}
		}
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].Timestamp.Before(entries[j].Timestamp)
		})

		records = append(records, LeadRecord{
			ID:            uuid.New().String(),
			RunID:         runID,
			ListingID:     act.ListingID,
			SeekerID:      act.SeekerID,
			ListerID:      listerID,
			ListerType:    listerType,
			Actions:       entries,
			FirstActionAt: entries[0].Timestamp,
			LastActionAt:  entries[len(entries)-1].Timestamp,
			Status:        LeadStatusNew,
			Date:          day,
		})
	}

	return records, skipped, nil
}
