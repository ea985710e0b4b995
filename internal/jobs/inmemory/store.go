package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dvloznov/expense-bot/internal/jobs"
)

// Store is an in-memory implementation of JobStore. It keeps at most
// maxJobs entries, evicting the oldest finished jobs first.
type Store struct {
	mu      sync.RWMutex
	jobs    map[string]*jobs.ProcessMessagesJob
	maxJobs int
}

// NewStore creates a store; maxJobs <= 0 keeps everything.
func NewStore(maxJobs int) *Store {
	return &Store{
		jobs:    make(map[string]*jobs.ProcessMessagesJob),
		maxJobs: maxJobs,
	}
}

// SaveJob stores a copy of job.
func (s *Store) SaveJob(ctx context.Context, job *jobs.ProcessMessagesJob) error {
	if job.JobID == "" {
		return fmt.Errorf("job ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	jobCopy := *job
	s.jobs[job.JobID] = &jobCopy
	s.evict()
	return nil
}

func (s *Store) evict() {
	if s.maxJobs <= 0 || len(s.jobs) <= s.maxJobs {
		return
	}
	var finished []*jobs.ProcessMessagesJob
	for _, j := range s.jobs {
		if j.Status == jobs.JobStatusCompleted || j.Status == jobs.JobStatusFailed {
			finished = append(finished, j)
		}
	}
	sort.Slice(finished, func(a, b int) bool { return finished[a].CreatedAt.Before(finished[b].CreatedAt) })
	for _, j := range finished {
		if len(s.jobs) <= s.maxJobs {
			return
		}
		delete(s.jobs, j.JobID)
	}
}

func (s *Store) GetJob(ctx context.Context, jobID string) (*jobs.ProcessMessagesJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return nil, fmt.Errorf("job not found: %s", jobID)
	}

	jobCopy := *job
	return &jobCopy, nil
}

// ListJobs returns matching jobs newest first.
func (s *Store) ListJobs(ctx context.Context, filter jobs.JobFilter) ([]*jobs.ProcessMessagesJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []*jobs.ProcessMessagesJob{}
	for _, job := range s.jobs {
		if filter.Channel != "" && job.Channel != filter.Channel {
			continue
		}
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		jobCopy := *job
		result = append(result, &jobCopy)
	}
	sort.Slice(result, func(a, b int) bool {
		if result[a].CreatedAt.Equal(result[b].CreatedAt) {
			return result[a].JobID < result[b].JobID
		}
		return result[a].CreatedAt.After(result[b].CreatedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return []*jobs.ProcessMessagesJob{}, nil
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (s *Store) UpdateJobStatus(ctx context.Context, jobID string, status jobs.JobStatus, errorMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return fmt.Errorf("job not found: %s", jobID)
	}

	job.Status = status
	if errorMsg != "" {
		job.Error = errorMsg
	}
	return nil
}

var _ jobs.JobStore = (*Store)(nil)
