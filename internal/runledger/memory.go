package runledger

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/gosight/gosight/analytics/internal/apperrors"
)

// MemoryStore keeps runs in process. It backs tests and local dry runs.
type MemoryStore struct {
	mu   sync.Mutex
	runs map[string]Run
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: map[string]Run{}}
}

func (s *MemoryStore) Insert(_ context.Context, run *Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[run.RunID]; ok {
		return apperrors.NewConflictError(fmt.Sprintf("run %s already exists", run.RunID), nil)
	}
	s.runs[run.RunID] = *run
	return nil
}

func (s *MemoryStore) Get(_ context.Context, runID string) (*Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.runs[runID]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("run %s not found", runID))
	}
	return &r, nil
}

func (s *MemoryStore) Update(_ context.Context, run *Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[run.RunID]; !ok {
		return apperrors.NewNotFoundError(fmt.Sprintf("run %s not found", run.RunID))
	}
	s.runs[run.RunID] = *run
	return nil
}

func (s *MemoryStore) LastFinished(_ context.Context, statuses ...Status) (*Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var last *Run
	for _, r := range s.runs {
		if !hasStatus(r.Status, statuses) {
			continue
		}
		if last == nil || r.EndTime.After(last.EndTime) {
			r := r
			last = &r
		}
	}
	return last, nil
}

func (s *MemoryStore) ListByStatus(_ context.Context, statuses ...Status) ([]*Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	want := map[Status]bool{}
	for _, st := range statuses {
		want[st] = true
	}

	var out []*Run
	for _, r := range s.runs {
		if want[r.Status] {
			r := r
			out = append(out, &r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out, nil
}

func hasStatus(st Status, statuses []Status) bool {
	for _, s := range statuses {
		if s == st {
			return true
		}
	}
	return false
}
