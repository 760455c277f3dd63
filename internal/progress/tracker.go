// Package progress keeps an in-memory snapshot of the running pipeline for
// the status API.
package progress

import (
	"sync"
	"time"
)

// Snapshot is a point-in-time view of the run.
type Snapshot struct {
	RunID     string    `json:"run_id"`
	Stage     string    `json:"stage"`
	ItemIndex int       `json:"item_index"`
	ItemTotal int       `json:"item_total"`
	Succeeded int       `json:"succeeded"`
	Skipped   int       `json:"skipped"`
	Failed    int       `json:"failed"`
	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Tracker records progress updates from the stage runner. All methods are
// safe for concurrent use; the API server reads while the runner writes.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker builds a tracker for one run.
func NewTracker(runID string) *Tracker {
	return &Tracker{snap: Snapshot{
		RunID:     runID,
		StartedAt: time.Now().UTC(),
	}}
}

// StageStarted resets per-stage counters.
func (t *Tracker) StageStarted(stage string, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.Stage = stage
	t.snap.ItemTotal = total
	t.snap.ItemIndex = 0
	t.snap.Succeeded = 0
	t.snap.Skipped = 0
	t.snap.Failed = 0
	t.snap.UpdatedAt = time.Now().UTC()
}

// ItemDone records one finished item.
func (t *Tracker) ItemDone(index int, outcome string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.ItemIndex = index + 1
	switch outcome {
	case "succeeded":
		t.snap.Succeeded++
	case "skipped":
		t.snap.Skipped++
	case "failed":
		t.snap.Failed++
	}
	t.snap.UpdatedAt = time.Now().UTC()
}

// Snapshot returns a copy of the current state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snap
}
