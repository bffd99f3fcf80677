package api

import (
	"sync"

	"github.com/google/uuid"
)

// JobStore keeps completed factorization records in memory.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*FactorizationJob
}

func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[string]*FactorizationJob)}
}

func (s *JobStore) Save(job *FactorizationJob) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) (*FactorizationJob, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	return job, ok
}

func (s *JobStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[id]; !ok {
		return false
	}
	delete(s.jobs, id)
	return true
}

func newJobID() string {
	return "fact_" + uuid.NewString()
}
