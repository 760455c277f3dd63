// Package stage implements the resumable execution loop shared by the three
// pipeline stages.
package stage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mapleads/mapleads/internal/browser"
	"github.com/mapleads/mapleads/internal/checkpoint"
	"github.com/mapleads/mapleads/internal/metrics"
	"github.com/mapleads/mapleads/internal/progress"
	"github.com/mapleads/mapleads/internal/scrape"
)

// Extractor turns one work item, loaded in a live browser tab, into zero or
// more output records.
type Extractor[R any] interface {
	Extract(ctx context.Context, item scrape.WorkItem, tab browser.Tab) ([]R, error)
}

// SkipFilter lets an extractor answer an item without browser work. The
// enrichment stage uses it to pass records with no website straight through.
type SkipFilter[R any] interface {
	SkipExtract(item scrape.WorkItem) ([]R, bool)
}

// Sink is the durable output artifact of a stage. Append must not return
// until the records are committed; the runner checkpoints immediately after.
type Sink[R any] interface {
	Append(recs []R) error
}

// FailureRecorder receives terminal per-item failures for the run history.
type FailureRecorder interface {
	RecordItemFailure(ctx context.Context, stage string, index int, item string, cause error)
}

// Config controls one stage runner.
type Config struct {
	Stage        string
	ItemTimeout  time.Duration
	Retry        RetryPolicy
	RestartEvery int // recycle the browser after this many items; 0 disables
}

// Runner drives one stage end to end: checkpoint resume, sequential item
// processing with scoped tab acquisition, append-then-checkpoint commits,
// bounded retries, and failure containment.
type Runner[R any] struct {
	cfg         Config
	session     browser.Session
	extractor   Extractor[R]
	sink        Sink[R]
	checkpoints checkpoint.Store
	failures    FailureRecorder
	tracker     *progress.Tracker
	logger      *zap.Logger
}

// New constructs a Runner. failures and tracker may be nil.
func New[R any](
	cfg Config,
	session browser.Session,
	extractor Extractor[R],
	sink Sink[R],
	checkpoints checkpoint.Store,
	failures FailureRecorder,
	tracker *progress.Tracker,
	logger *zap.Logger,
) *Runner[R] {
	if cfg.ItemTimeout <= 0 {
		cfg.ItemTimeout = 30 * time.Second
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = DefaultRetryPolicy()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner[R]{
		cfg:         cfg,
		session:     session,
		extractor:   extractor,
		sink:        sink,
		checkpoints: checkpoints,
		failures:    failures,
		tracker:     tracker,
		logger:      logger.With(zap.String("stage", cfg.Stage)),
	}
}

// Run processes the item sequence in order and returns the outcome counts.
// Only browser-session loss and artifact/checkpoint write failures abort the
// run; everything else is contained at the item level.
func (r *Runner[R]) Run(ctx context.Context, items []scrape.WorkItem) (scrape.Summary, error) {
	start := 0
	if cp, ok, err := r.checkpoints.Load(r.cfg.Stage); err != nil {
		return scrape.Summary{}, fmt.Errorf("load checkpoint: %w", err)
	} else if ok {
		start = cp.LastCompletedIndex + 1
		r.logger.Info("Resuming from checkpoint",
			zap.Int("last_completed_index", cp.LastCompletedIndex),
			zap.Int("total_items", len(items)),
		)
	}

	if r.tracker != nil {
		r.tracker.StageStarted(r.cfg.Stage, len(items))
	}

	var summary scrape.Summary
	began := time.Now()
	sinceRestart := 0
	for i := start; i < len(items); i++ {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		item := items[i]

		if r.cfg.RestartEvery > 0 && sinceRestart >= r.cfg.RestartEvery {
			r.logger.Info("Recycling browser", zap.Int("item_index", i))
			if err := r.restartBrowser(ctx); err != nil {
				return summary, err
			}
			sinceRestart = 0
		}

		outcome, err := r.processItem(ctx, item)
		if err != nil {
			return summary, err
		}
		switch outcome {
		case outcomeSucceeded:
			summary.Succeeded++
		case outcomeSkipped:
			summary.Skipped++
		case outcomeFailed:
			summary.Failed++
		}
		metrics.ObserveItem(r.cfg.Stage, string(outcome))
		if r.tracker != nil {
			r.tracker.ItemDone(i, string(outcome))
		}
		sinceRestart++
	}

	metrics.ObserveStageDuration(r.cfg.Stage, time.Since(began))
	r.logger.Info("Stage complete",
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
	)
	return summary, nil
}

type outcome string

const (
	outcomeSucceeded outcome = "succeeded"
	outcomeSkipped   outcome = "skipped"
	outcomeFailed    outcome = "failed"
)

func (r *Runner[R]) processItem(ctx context.Context, item scrape.WorkItem) (outcome, error) {
	if sf, ok := r.extractor.(SkipFilter[R]); ok {
		if recs, skip := sf.SkipExtract(item); skip {
			if err := r.commit(item.Index, recs); err != nil {
				return "", err
			}
			return outcomeSkipped, nil
		}
	}

	for attempt := 1; ; attempt++ {
		recs, err := r.extractOnce(ctx, item)
		if err == nil {
			if err := r.commit(item.Index, recs); err != nil {
				return "", err
			}
			return outcomeSucceeded, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if scrape.IsFatal(err) {
			return "", &scrape.ExtractionError{Stage: r.cfg.Stage, Item: item.Value, Err: err}
		}

		if r.cfg.Retry.ShouldRetry(ctx, attempt) {
			metrics.ObserveRetry(r.cfg.Stage)
			r.logger.Warn("Item attempt failed; retrying",
				zap.Int("item_index", item.Index),
				zap.String("item", item.Value),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			// The tab may be wedged rather than the page broken; start from
			// a clean browser before the next attempt.
			if rerr := r.restartBrowser(ctx); rerr != nil {
				return "", rerr
			}
			if werr := r.cfg.Retry.Wait(ctx); werr != nil {
				return "", werr
			}
			continue
		}

		r.logger.Error("Item failed permanently",
			zap.Int("item_index", item.Index),
			zap.String("item", item.Value),
			zap.Int("attempts", attempt),
			zap.Error(err),
		)
		if r.failures != nil {
			r.failures.RecordItemFailure(ctx, r.cfg.Stage, item.Index, item.Value, err)
		}
		// A permanently broken item must not block the rest of the sequence:
		// advance the checkpoint past it with no records emitted.
		if err := r.checkpoints.Save(r.cfg.Stage, item.Index); err != nil {
			return "", fmt.Errorf("save checkpoint: %w", err)
		}
		return outcomeFailed, nil
	}
}

func (r *Runner[R]) extractOnce(ctx context.Context, item scrape.WorkItem) ([]R, error) {
	itemCtx, cancel := context.WithTimeout(ctx, r.cfg.ItemTimeout)
	defer cancel()

	tab, release, err := r.session.NewTab(itemCtx)
	if err != nil {
		if errors.Is(err, scrape.ErrBrowserUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("acquire tab: %w", err)
	}
	defer release()

	return r.extractor.Extract(itemCtx, item, tab)
}

// commit appends the records and then advances the checkpoint. The ordering
// is load-bearing: checkpointing first could silently drop a record on crash.
func (r *Runner[R]) commit(index int, recs []R) error {
	if len(recs) > 0 {
		if err := r.sink.Append(recs); err != nil {
			return fmt.Errorf("append records: %w", err)
		}
	}
	if err := r.checkpoints.Save(r.cfg.Stage, index); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

func (r *Runner[R]) restartBrowser(ctx context.Context) error {
	metrics.ObserveBrowserRestart()
	if err := r.session.Restart(ctx); err != nil {
		return fmt.Errorf("restart browser: %w", err)
	}
	return nil
}
