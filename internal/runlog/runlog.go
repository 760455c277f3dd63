// Package runlog persists run history: one row per pipeline run and one per
// terminal item failure. The pipeline works fine without it; checkpoints and
// artifacts live on disk. The run log exists so failures survive for triage
// after the data directory is cleaned up.
package runlog

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Run statuses.
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// Run is one pipeline invocation.
type Run struct {
	ID           string
	StartedAt    time.Time
	FinishedAt   *time.Time
	Status       string
	ErrorMessage *string
}

// ItemFailure is one work item that exhausted its retries.
type ItemFailure struct {
	RunID     string
	Stage     string
	ItemIndex int
	Item      string
	Error     string
	FailedAt  time.Time
}

// Store persists runs and item failures.
type Store interface {
	StartRun(ctx context.Context, runID string, startedAt time.Time) error
	FinishRun(ctx context.Context, runID string, finishedAt time.Time, status string, errMsg *string) error
	RecordFailure(ctx context.Context, failure ItemFailure) error
	Close()
}

// Recorder adapts a Store to the stage runner's failure hook for one run.
// Store errors are logged, never propagated: losing a history row must not
// fail the run it describes.
type Recorder struct {
	store  Store
	runID  string
	logger *zap.Logger
}

// NewRecorder builds a Recorder for one run.
func NewRecorder(store Store, runID string, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{store: store, runID: runID, logger: logger}
}

// RecordItemFailure writes one terminal failure to the run log.
func (r *Recorder) RecordItemFailure(ctx context.Context, stage string, index int, item string, cause error) {
	failure := ItemFailure{
		RunID:     r.runID,
		Stage:     stage,
		ItemIndex: index,
		Item:      item,
		Error:     cause.Error(),
		FailedAt:  time.Now().UTC(),
	}
	if err := r.store.RecordFailure(ctx, failure); err != nil {
		r.logger.Warn("Failed to persist item failure",
			zap.String("stage", stage),
			zap.Int("item_index", index),
			zap.Error(err),
		)
	}
}
