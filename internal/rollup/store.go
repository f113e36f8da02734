package rollup

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrVersionConflict is returned by Save when the stored rollup changed
// since it was loaded.
var ErrVersionConflict = errors.New("rollup version conflict")

// Store loads and saves daily rollups with optimistic versioning. Load
// returns an empty version 0 rollup for days without a record.
type Store interface {
	Load(ctx context.Context, date time.Time) (DailyRollup, error)
	Save(ctx context.Context, r DailyRollup) (DailyRollup, error)
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu   sync.Mutex
	days map[string]DailyRollup
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{days: map[string]DailyRollup{}}
}

func dayKey(t time.Time) string { return t.UTC().Format("2006-01-02") }

func (s *MemoryStore) Load(_ context.Context, date time.Time) (DailyRollup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r, ok := s.days[dayKey(date)]; ok {
		return r.Clone(), nil
	}
	return New(date), nil
}

func (s *MemoryStore) Save(_ context.Context, r DailyRollup) (DailyRollup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.days[dayKey(r.Date)]
	if (ok && stored.Version != r.Version) || (!ok && r.Version != 0) {
		return r, ErrVersionConflict
	}

	r.Version++
	r.UpdatedAt = time.Now().UTC()
	s.days[dayKey(r.Date)] = r.Clone()
	return r, nil
}
