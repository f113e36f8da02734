package saleledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/gosight/gosight/analytics/internal/apperrors"
)

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu       sync.Mutex
	entries  map[string]Entry
	sellers  map[string]Revenue
	projects map[string]Revenue
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries:  map[string]Entry{},
		sellers:  map[string]Revenue{},
		projects: map[string]Revenue{},
	}
}

func (s *MemoryStore) GetEntry(_ context.Context, listingID string) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[listingID]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (s *MemoryStore) ListEntries(_ context.Context, listingIDs []string) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Entry
	for _, id := range listingIDs {
		if e, ok := s.entries[id]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *MemoryStore) Execute(_ context.Context, p Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch p.Action {
	case ActionInsert:
		if _, ok := s.entries[p.Entry.ListingID]; ok {
			return apperrors.NewReconciliationError(fmt.Sprintf("listing %s already has a ledger entry", p.Entry.ListingID))
		}
		s.entries[p.Entry.ListingID] = p.Entry
	case ActionRelabel:
		s.entries[p.Entry.ListingID] = p.Entry
	case ActionDelete:
		delete(s.entries, p.Entry.ListingID)
	default:
		return nil
	}

	bumpRevenue(s.sellers, p.OwnerID, p)
	bumpRevenue(s.projects, p.ProjectID, p)
	return nil
}

func bumpRevenue(m map[string]Revenue, key string, p Plan) {
	if key == "" || (p.RevenueDelta.IsZero() && p.SalesDelta == 0) {
		return
	}
	rev := m[key]
	rev.Total = decimal.Max(rev.Total.Add(p.RevenueDelta), decimal.Zero)
	rev.Sales += p.SalesDelta
	if rev.Sales < 0 {
		rev.Sales = 0
	}
	m[key] = rev
}

func (s *MemoryStore) SetSellerRevenue(_ context.Context, ownerID string, rev Revenue) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sellers[ownerID] = rev
	return nil
}

func (s *MemoryStore) SetProjectRevenue(_ context.Context, projectID string, rev Revenue) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects[projectID] = rev
	return nil
}

// SellerRevenue returns the stored total for ownerID.
func (s *MemoryStore) SellerRevenue(ownerID string) Revenue {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sellers[ownerID]
}

func (s *MemoryStore) ProjectRevenue(projectID string) Revenue {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.projects[projectID]
}
