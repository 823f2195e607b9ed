package store

import (
	"sync"
)

// MemoryStore keeps everything in process memory.
// Used for tests and for running without Redis or PostgreSQL.
type MemoryStore struct {
	mux          sync.RWMutex
	observations map[string][]Observation
	checkRuns    []CheckRun
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		observations: map[string][]Observation{},
	}
}

func (s *MemoryStore) AddObservation(o Observation) error {
	s.mux.Lock()
	defer s.mux.Unlock()

	s.observations[o.Slug] = keepLast(append(s.observations[o.Slug], o), historyLimit)
	return nil
}

func (s *MemoryStore) GetObservations(slug string) ([]Observation, error) {
	s.mux.RLock()
	defer s.mux.RUnlock()

	return append([]Observation{}, s.observations[slug]...), nil
}

func (s *MemoryStore) GetLatestObservation(slug string) (Observation, error) {
	s.mux.RLock()
	defer s.mux.RUnlock()

	observations := s.observations[slug]
	if len(observations) == 0 {
		return Observation{}, ErrNotFound
	}

	return observations[len(observations)-1], nil
}

func (s *MemoryStore) AddCheckRun(run CheckRun) error {
	s.mux.Lock()
	defer s.mux.Unlock()

	s.checkRuns = keepLast(append(s.checkRuns, run), checkRunsLimit)
	return nil
}

func (s *MemoryStore) GetCheckRuns() ([]CheckRun, error) {
	s.mux.RLock()
	defer s.mux.RUnlock()

	return append([]CheckRun{}, s.checkRuns...), nil
}

func keepLast[T any](items []T, limit int) []T {
	if len(items) <= limit {
		return items
	}
	return items[len(items)-limit:]
}
