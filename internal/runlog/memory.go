package runlog

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemStore keeps run history in memory. Used when no database is configured
// and in tests.
type MemStore struct {
	mu       sync.Mutex
	runs     map[string]*Run
	failures []ItemFailure
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{runs: make(map[string]*Run)}
}

// StartRun records the run as running.
func (s *MemStore) StartRun(_ context.Context, runID string, startedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.runs[runID]; exists {
		return fmt.Errorf("run %s already started", runID)
	}
	s.runs[runID] = &Run{ID: runID, StartedAt: startedAt, Status: RunRunning}
	return nil
}

// FinishRun records the final status.
func (s *MemStore) FinishRun(_ context.Context, runID string, finishedAt time.Time, status string, errMsg *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[runID]
	if !ok {
		return fmt.Errorf("run %s not found", runID)
	}
	run.FinishedAt = &finishedAt
	run.Status = status
	run.ErrorMessage = errMsg
	return nil
}

// RecordFailure appends one item failure.
func (s *MemStore) RecordFailure(_ context.Context, failure ItemFailure) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, failure)
	return nil
}

// Close is a no-op.
func (s *MemStore) Close() {}

// Runs returns a copy of all recorded runs.
func (s *MemStore) Runs() []Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Run, 0, len(s.runs))
	for _, r := range s.runs {
		out = append(out, *r)
	}
	return out
}

// Failures returns a copy of all recorded failures.
func (s *MemStore) Failures() []ItemFailure {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ItemFailure(nil), s.failures...)
}
