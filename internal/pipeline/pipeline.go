// Package pipeline sequences the crawl stages into one resumable run:
// query generation, search harvesting, place detail parsing, and website
// contact enrichment. Each stage reads the previous stage's artifact and
// checkpoints its own progress, so a rerun after a crash picks up where the
// last one stopped.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mapleads/mapleads/internal/archive"
	"github.com/mapleads/mapleads/internal/artifact"
	"github.com/mapleads/mapleads/internal/browser"
	"github.com/mapleads/mapleads/internal/checkpoint"
	"github.com/mapleads/mapleads/internal/config"
	"github.com/mapleads/mapleads/internal/extract"
	"github.com/mapleads/mapleads/internal/fetch"
	"github.com/mapleads/mapleads/internal/notify"
	"github.com/mapleads/mapleads/internal/progress"
	"github.com/mapleads/mapleads/internal/queries"
	"github.com/mapleads/mapleads/internal/runlog"
	"github.com/mapleads/mapleads/internal/scrape"
	"github.com/mapleads/mapleads/internal/stage"
)

// Paths locates every run artifact under the data directory.
type Paths struct {
	DataDir string
}

func (p Paths) Queries() string     { return filepath.Join(p.DataDir, "queries.txt") }
func (p Paths) Links() string       { return filepath.Join(p.DataDir, "links.txt") }
func (p Paths) Places() string      { return filepath.Join(p.DataDir, "places.csv") }
func (p Paths) EnrichInput() string { return filepath.Join(p.DataDir, "enrich_input.csv") }
func (p Paths) Enriched() string    { return filepath.Join(p.DataDir, "enriched.csv") }
func (p Paths) Checkpoints() string { return filepath.Join(p.DataDir, "checkpoints") }

// Artifacts lists the files a finished run leaves behind, in stage order.
func (p Paths) Artifacts() []string {
	return []string{p.Queries(), p.Links(), p.Places(), p.EnrichInput(), p.Enriched()}
}

// Options carries the pipeline's collaborators. Everything except Session is
// optional; nil collaborators degrade to no-ops.
type Options struct {
	Session     browser.Session
	Checkpoints checkpoint.Store
	Tracker     *progress.Tracker
	Notifier    notify.Notifier
	Runs        runlog.Store
	Archiver    *archive.Archiver
	Logger      *zap.Logger
	RunID       string
}

// Pipeline owns one run of the crawl.
type Pipeline struct {
	cfg         config.Config
	paths       Paths
	session     browser.Session
	checkpoints checkpoint.Store
	tracker     *progress.Tracker
	notifier    notify.Notifier
	runs        runlog.Store
	archiver    *archive.Archiver
	logger      *zap.Logger
	runID       string
}

// New builds a Pipeline. When no checkpoint store is supplied, a file store
// under <data_dir>/checkpoints is created.
func New(cfg config.Config, opts Options) (*Pipeline, error) {
	paths := Paths{DataDir: cfg.Pipeline.DataDir}
	if err := os.MkdirAll(paths.DataDir, 0o750); err != nil {
		return nil, scrape.NewConfigError("create data directory %s: %v", paths.DataDir, err)
	}
	if opts.Checkpoints == nil {
		store, err := checkpoint.NewFileStore(paths.Checkpoints())
		if err != nil {
			return nil, err
		}
		opts.Checkpoints = store
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.Noop{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	return &Pipeline{
		cfg:         cfg,
		paths:       paths,
		session:     opts.Session,
		checkpoints: opts.Checkpoints,
		tracker:     opts.Tracker,
		notifier:    opts.Notifier,
		runs:        opts.Runs,
		archiver:    opts.Archiver,
		logger:      opts.Logger.With(zap.String("run_id", opts.RunID)),
		runID:       opts.RunID,
	}, nil
}

// RunID returns the run identifier this pipeline logs and records under.
func (p *Pipeline) RunID() string { return p.runID }

// GenerateQueries builds the search-query list from the configured word
// lists and writes it to the queries artifact. Generation is deterministic,
// so overwriting an existing artifact on rerun changes nothing.
func (p *Pipeline) GenerateQueries(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	in, err := queries.LoadInputs(
		p.cfg.Queries.BrandsFile,
		p.cfg.Queries.CategoriesFile,
		p.cfg.Queries.LocationsFile,
	)
	if err != nil {
		return 0, scrape.NewConfigError("load query inputs: %v", err)
	}
	list := queries.Generate(in)
	if len(list) == 0 {
		return 0, scrape.NewConfigError("query generation produced no queries")
	}
	if err := os.WriteFile(p.paths.Queries(), []byte(strings.Join(list, "\n")+"\n"), 0o640); err != nil {
		return 0, fmt.Errorf("write queries artifact: %w", err)
	}
	p.logger.Info("Queries generated", zap.Int("count", len(list)))
	return len(list), nil
}

// RunSearch runs each query against the maps search UI and appends the
// discovered place URLs to the links artifact.
func (p *Pipeline) RunSearch(ctx context.Context) (scrape.Summary, error) {
	queryList, err := artifact.ReadLines(p.paths.Queries())
	if err != nil {
		return scrape.Summary{}, scrape.NewConfigError("read queries artifact: %v", err)
	}
	if len(queryList) == 0 {
		return scrape.Summary{}, scrape.NewConfigError("queries artifact %s is empty", p.paths.Queries())
	}

	sink, err := artifact.OpenLines(p.paths.Links())
	if err != nil {
		return scrape.Summary{}, fmt.Errorf("open links artifact: %w", err)
	}
	defer sink.Close()

	extractor := extract.NewSearchExtractor(extract.SearchConfig{
		BaseURL:         p.cfg.Search.BaseURL,
		SettleDelay:     p.cfg.Search.SettleDelay,
		ScrollDelay:     p.cfg.Search.ScrollDelay,
		MaxStaleScrolls: p.cfg.Search.MaxStaleScrolls,
		MaxScrolls:      p.cfg.Search.MaxScrolls,
	}, p.logger)
	// On resume the links emitted by completed queries are already on disk;
	// seed them so later queries do not duplicate places.
	if existing, err := artifact.ReadLines(p.paths.Links()); err == nil {
		extractor.Seed(existing)
	}

	runner := stage.New[string](
		p.stageConfig(scrape.StageSearch),
		p.session, extractor, sink,
		p.checkpoints, p.failureRecorder(), p.tracker, p.logger,
	)
	return runner.Run(ctx, workItems(queryList))
}

// RunPlaces opens each place URL and appends one parsed record per place to
// the places artifact.
func (p *Pipeline) RunPlaces(ctx context.Context) (scrape.Summary, error) {
	links, err := artifact.ReadLines(p.paths.Links())
	if err != nil {
		return scrape.Summary{}, scrape.NewConfigError("read links artifact: %v", err)
	}
	if len(links) == 0 {
		// An empty artifact at a stage boundary means the prior stage found
		// nothing; advancing would let the run "complete" with no output.
		return scrape.Summary{}, scrape.NewConfigError("links artifact %s is empty", p.paths.Links())
	}

	sink, err := artifact.OpenCSV[scrape.PlaceRecord](p.paths.Places(), scrape.PlaceHeader)
	if err != nil {
		return scrape.Summary{}, fmt.Errorf("open places artifact: %w", err)
	}
	defer sink.Close()

	extractor := extract.NewDetailExtractor(extract.DetailConfig{
		SettleDelay: p.cfg.Detail.SettleDelay,
	})
	runner := stage.New[scrape.PlaceRecord](
		p.stageConfig(scrape.StagePlaces),
		p.session, extractor, sink,
		p.checkpoints, p.failureRecorder(), p.tracker, p.logger,
	)
	return runner.Run(ctx, workItems(links))
}

// RunEnrich visits each place's website and appends a contact-enriched
// record to the enriched artifact. The places artifact is snapshotted to a
// dedicated input file first, so the item sequence stays stable even if the
// places artifact is regenerated mid-resume.
func (p *Pipeline) RunEnrich(ctx context.Context) (scrape.Summary, error) {
	input := p.paths.EnrichInput()
	if _, err := os.Stat(input); os.IsNotExist(err) {
		if err := artifact.CopyFile(p.paths.Places(), input); err != nil {
			return scrape.Summary{}, scrape.NewConfigError("snapshot places artifact: %v", err)
		}
	}

	table, err := artifact.ReadCSV(input, []string{"website"})
	if err != nil {
		// A malformed or column-deficient input cannot be fixed by retrying.
		return scrape.Summary{}, scrape.NewConfigError("read enrichment input: %v", err)
	}
	places := placesFromTable(table)
	if len(places) == 0 {
		return scrape.Summary{}, scrape.NewConfigError("enrichment input %s has no rows", input)
	}

	sink, err := artifact.OpenCSV[scrape.EnrichedRecord](p.paths.Enriched(), scrape.EnrichedHeader)
	if err != nil {
		return scrape.Summary{}, fmt.Errorf("open enriched artifact: %w", err)
	}
	defer sink.Close()

	fetcher := fetch.NewStaticFetcher(fetch.Config{
		UserAgent:    p.cfg.Browser.UserAgent,
		Timeout:      p.cfg.Enrich.FetchTimeout,
		PerDomainQPS: p.cfg.Enrich.PerDomainQPS,
	})
	extractor := extract.NewEnrichExtractor(extract.EnrichConfig{
		ContactPaths:  p.cfg.Enrich.ContactPaths,
		SiteBudget:    p.cfg.Enrich.SiteBudget,
		MinEmailScore: p.cfg.Scoring.MinScore,
	}, places, fetcher, fetch.NewDetector(p.cfg.Enrich.DetectorMinBytes), p.logger)

	// The website URL is the item identity; failure records and retry logs
	// key off it. Names are ambiguous across chains and franchises.
	items := make([]scrape.WorkItem, len(places))
	for i, rec := range places {
		items[i] = scrape.WorkItem{Index: i, Value: rec.Website}
	}

	runner := stage.New[scrape.EnrichedRecord](
		p.stageConfig(scrape.StageEnrich),
		p.session, extractor, sink,
		p.checkpoints, p.failureRecorder(), p.tracker, p.logger,
	)
	return runner.Run(ctx, items)
}

// Run executes the full pipeline: generate queries, then the three stages in
// order. A stage that fails on a retryable error is restarted whole, up to
// the configured budget; its checkpoint makes the restart resume, not redo.
func (p *Pipeline) Run(ctx context.Context) error {
	started := time.Now()
	p.startRun(ctx, started)
	p.logger.Info("Pipeline run starting", zap.String("data_dir", p.paths.DataDir))

	if _, err := p.GenerateQueries(ctx); err != nil {
		return p.finishFailed(ctx, "queries", err)
	}

	if _, err := p.runStage(ctx, scrape.StageSearch, p.RunSearch); err != nil {
		return p.finishFailed(ctx, scrape.StageSearch, err)
	}
	placesSummary, err := p.runStage(ctx, scrape.StagePlaces, p.RunPlaces)
	if err != nil {
		return p.finishFailed(ctx, scrape.StagePlaces, err)
	}
	enrichSummary, err := p.runStage(ctx, scrape.StageEnrich, p.RunEnrich)
	if err != nil {
		return p.finishFailed(ctx, scrape.StageEnrich, err)
	}

	p.finishRun(ctx, runlog.RunCompleted, nil)
	p.sendNotification(ctx, notify.Event{
		RunID:    p.runID,
		Kind:     notify.KindRunDone,
		Places:   placesSummary.Succeeded,
		Enriched: enrichSummary.Succeeded + enrichSummary.Skipped,
		Duration: time.Since(started),
		At:       time.Now(),
	})
	p.archiveArtifacts(ctx)
	p.logger.Info("Pipeline run complete",
		zap.Int("places", placesSummary.Succeeded),
		zap.Int("enriched", enrichSummary.Succeeded+enrichSummary.Skipped),
		zap.Duration("took", time.Since(started)),
	)
	return nil
}

// runStage runs one stage with a whole-stage retry budget. Configuration
// errors and cancellations are never retried; anything else gets another
// attempt that resumes from the stage checkpoint.
func (p *Pipeline) runStage(
	ctx context.Context,
	name string,
	fn func(context.Context) (scrape.Summary, error),
) (scrape.Summary, error) {
	attempts := p.cfg.Pipeline.StageRetries + 1
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		summary, err := fn(ctx)
		if err == nil {
			p.sendNotification(ctx, notify.Event{
				RunID: p.runID,
				Kind:  notify.KindStageDone,
				Stage: name,
				Detail: fmt.Sprintf("%d succeeded, %d skipped, %d failed",
					summary.Succeeded, summary.Skipped, summary.Failed),
				At: time.Now(),
			})
			return summary, nil
		}
		lastErr = err
		if ctx.Err() != nil || scrape.IsConfigError(err) {
			break
		}
		if attempt < attempts {
			p.logger.Warn("Stage aborted; restarting from checkpoint",
				zap.String("stage", name),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
		}
	}
	p.sendNotification(ctx, notify.Event{
		RunID:  p.runID,
		Kind:   notify.KindStageFailed,
		Stage:  name,
		Detail: lastErr.Error(),
		At:     time.Now(),
	})
	return scrape.Summary{}, fmt.Errorf("stage %s: %w", name, lastErr)
}

func (p *Pipeline) stageConfig(name string) stage.Config {
	return stage.Config{
		Stage:       name,
		ItemTimeout: p.cfg.Stage.ItemTimeout,
		Retry: stage.RetryPolicy{
			MaxAttempts: p.cfg.Stage.RetryAttempts,
			Delay:       p.cfg.Stage.RetryDelay,
		},
		RestartEvery: p.cfg.Browser.RestartEvery,
	}
}

func (p *Pipeline) failureRecorder() stage.FailureRecorder {
	if p.runs == nil {
		return nil
	}
	return runlog.NewRecorder(p.runs, p.runID, p.logger)
}

func (p *Pipeline) startRun(ctx context.Context, started time.Time) {
	if p.runs == nil {
		return
	}
	if err := p.runs.StartRun(ctx, p.runID, started.UTC()); err != nil {
		p.logger.Warn("Failed to record run start", zap.Error(err))
	}
}

func (p *Pipeline) finishRun(ctx context.Context, status string, errMsg *string) {
	if p.runs == nil {
		return
	}
	if err := p.runs.FinishRun(ctx, p.runID, time.Now().UTC(), status, errMsg); err != nil {
		p.logger.Warn("Failed to record run finish", zap.Error(err))
	}
}

func (p *Pipeline) finishFailed(ctx context.Context, stageName string, cause error) error {
	msg := cause.Error()
	p.finishRun(ctx, runlog.RunFailed, &msg)
	p.sendNotification(ctx, notify.Event{
		RunID:  p.runID,
		Kind:   notify.KindRunFailed,
		Stage:  stageName,
		Detail: msg,
		At:     time.Now(),
	})
	return cause
}

// sendNotification delivers best-effort; a dead channel never fails the run.
func (p *Pipeline) sendNotification(ctx context.Context, event notify.Event) {
	if err := p.notifier.Notify(ctx, event); err != nil {
		p.logger.Warn("Notification failed", zap.String("kind", event.Kind), zap.Error(err))
	}
}

func (p *Pipeline) archiveArtifacts(ctx context.Context) {
	if p.archiver == nil {
		return
	}
	if _, err := p.archiver.ArchiveRun(ctx, p.runID, p.paths.Artifacts()); err != nil {
		p.logger.Warn("Artifact archival failed", zap.Error(err))
	}
}

func workItems(values []string) []scrape.WorkItem {
	items := make([]scrape.WorkItem, len(values))
	for i, v := range values {
		items[i] = scrape.WorkItem{Index: i, Value: v}
	}
	return items
}

func placesFromTable(t artifact.Table) []scrape.PlaceRecord {
	out := make([]scrape.PlaceRecord, 0, len(t.Rows))
	for _, row := range t.Rows {
		out = append(out, scrape.PlaceRecord{
			Name:        row["name"],
			Category:    row["category"],
			Address:     row["address"],
			Rating:      row["rating"],
			ReviewCount: row["review_count"],
			Website:     row["website"],
			Phone:       row["phone"],
		})
	}
	return out
}
