package runs

import (
	"context"
	"sync"
	"time"

	apperrors "species-checker/internal/common/errors"
)

// MemoryStore keeps runs in process memory. Finished runs expire after ttl.
type MemoryStore struct {
	mu   sync.RWMutex
	runs map[string]*Run
	ttl  time.Duration
	now  func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		runs: make(map[string]*Run),
		ttl:  ttl,
		now:  time.Now,
	}
}

func (s *MemoryStore) Create(ctx context.Context, run *Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evictExpired()
	s.runs[run.ID] = run.clone()
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, run *Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[run.ID]; !ok {
		return apperrors.NewRunNotFoundError(run.ID)
	}
	s.runs[run.ID] = run.clone()
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok || s.expired(run) {
		return nil, apperrors.NewRunNotFoundError(id)
	}
	return run.clone(), nil
}

func (s *MemoryStore) expired(run *Run) bool {
	return s.ttl > 0 && run.FinishedAt != nil && s.now().Sub(*run.FinishedAt) > s.ttl
}

// evictExpired must be called with mu held for writing.
func (s *MemoryStore) evictExpired() {
	for id, run := range s.runs {
		if s.expired(run) {
			delete(s.runs, id)
		}
	}
}
