package persistence

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dfryer1193/storefront/catalog/domain"
)

var _ domain.JobStore = (*MemoryJobStore)(nil)

// MemoryJobStore is a process-local job registry. Finished jobs older than
// the retention window are evicted; a zero retention keeps everything.
type MemoryJobStore struct {
	mu        sync.Mutex
	jobs      map[string]*domain.Job
	retention time.Duration
	now       func() time.Time
}

func NewMemoryJobStore(retention time.Duration) *MemoryJobStore {
	return &MemoryJobStore{
		jobs:      make(map[string]*domain.Job),
		retention: retention,
		now:       time.Now,
	}
}

func (s *MemoryJobStore) Create(_ context.Context, job *domain.Job) error {
	if job == nil {
		return fmt.Errorf("job cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.ID]; exists {
		return fmt.Errorf("job %s already exists", job.ID)
	}
	s.evictLocked()
	s.jobs[job.ID] = job.Clone()
	return nil
}

func (s *MemoryJobStore) Get(_ context.Context, id string) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evictLocked()
	job, ok := s.jobs[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	return job.Clone(), nil
}

func (s *MemoryJobStore) Update(_ context.Context, id string, fn func(*domain.Job)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return domain.ErrJobNotFound
	}
	fn(job)
	return nil
}

// Len returns the number of retained jobs.
func (s *MemoryJobStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

func (s *MemoryJobStore) evictLocked() {
	if s.retention <= 0 {
		return
	}

	cutoff := s.now().Add(-s.retention)
	for id, job := range s.jobs {
		if job.Terminal() && job.FinishedAt != nil && job.FinishedAt.Before(cutoff) {
			delete(s.jobs, id)
		}
	}
}
