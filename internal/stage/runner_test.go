package stage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mapleads/mapleads/internal/browser"
	"github.com/mapleads/mapleads/internal/checkpoint"
	"github.com/mapleads/mapleads/internal/scrape"
)

type fakeTab struct{}

func (fakeTab) Navigate(context.Context, string) error    { return nil }
func (fakeTab) WaitReady(context.Context, string) error   { return nil }
func (fakeTab) WaitVisible(context.Context, string) error { return nil }
func (fakeTab) HTML(context.Context) (string, error)      { return "", nil }
func (fakeTab) Eval(context.Context, string, any) error   { return nil }
func (fakeTab) Location(context.Context) (string, error)  { return "", nil }

type fakeSession struct {
	mu          sync.Mutex
	restarts    int
	unavailable bool
}

func (s *fakeSession) NewTab(context.Context) (browser.Tab, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unavailable {
		return nil, nil, scrape.ErrBrowserUnavailable
	}
	return fakeTab{}, func() {}, nil
}

func (s *fakeSession) Restart(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.restarts++
	return nil
}

func (s *fakeSession) Close(context.Context) error { return nil }

func (s *fakeSession) restartCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restarts
}

// scriptedExtractor fails items a configured number of times before
// succeeding, and emits the item value as its single record.
type scriptedExtractor struct {
	mu       sync.Mutex
	failures map[string]int // value -> remaining failures; -1 fails forever
	calls    map[string]int
}

func newScriptedExtractor(failures map[string]int) *scriptedExtractor {
	return &scriptedExtractor{
		failures: failures,
		calls:    make(map[string]int),
	}
}

func (e *scriptedExtractor) Extract(_ context.Context, item scrape.WorkItem, _ browser.Tab) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls[item.Value]++
	remaining := e.failures[item.Value]
	if remaining == -1 {
		return nil, errors.New("page load timeout")
	}
	if remaining > 0 {
		e.failures[item.Value] = remaining - 1
		return nil, errors.New("navigation error")
	}
	return []string{item.Value}, nil
}

type memSink struct {
	mu   sync.Mutex
	rows []string
}

func (s *memSink) Append(recs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, recs...)
	return nil
}

func (s *memSink) all() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.rows...)
}

func items(n int) []scrape.WorkItem {
	out := make([]scrape.WorkItem, n)
	for i := range out {
		out[i] = scrape.WorkItem{Index: i, Value: fmt.Sprintf("item-%03d", i)}
	}
	return out
}

func fastConfig(stage string) Config {
	return Config{
		Stage:       stage,
		ItemTimeout: time.Second,
		Retry:       RetryPolicy{MaxAttempts: 3, Delay: time.Millisecond},
	}
}

func TestRunnerProcessesAllItemsInOrder(t *testing.T) {
	t.Parallel()

	sink := &memSink{}
	runner := New[string](fastConfig("search"), &fakeSession{}, newScriptedExtractor(nil), sink,
		checkpoint.NewMemStore(), nil, nil, zap.NewNop())

	summary, err := runner.Run(context.Background(), items(5))
	require.NoError(t, err)
	require.Equal(t, scrape.Summary{Succeeded: 5}, summary)
	require.Equal(t, []string{"item-000", "item-001", "item-002", "item-003", "item-004"}, sink.all())
}

func TestRunnerRetriesTransientFailures(t *testing.T) {
	t.Parallel()

	session := &fakeSession{}
	extractor := newScriptedExtractor(map[string]int{"item-001": 2})
	sink := &memSink{}
	runner := New[string](fastConfig("places"), session, extractor, sink,
		checkpoint.NewMemStore(), nil, nil, zap.NewNop())

	summary, err := runner.Run(context.Background(), items(3))
	require.NoError(t, err)
	require.Equal(t, scrape.Summary{Succeeded: 3}, summary)
	require.Equal(t, 3, extractor.calls["item-001"], "two failures plus the success")
	require.Equal(t, 2, session.restartCount(), "browser recycled before each retry")
}

func TestRunnerPermanentFailureDoesNotBlockSequence(t *testing.T) {
	t.Parallel()

	// Item 47 of 100 times out on every attempt; the stage still emits the
	// other 99 records and reports exactly one failure.
	extractor := newScriptedExtractor(map[string]int{"item-047": -1})
	sink := &memSink{}
	cps := checkpoint.NewMemStore()
	runner := New[string](fastConfig("places"), &fakeSession{}, extractor, sink,
		cps, nil, nil, zap.NewNop())

	summary, err := runner.Run(context.Background(), items(100))
	require.NoError(t, err)
	require.Equal(t, scrape.Summary{Succeeded: 99, Failed: 1}, summary)
	require.Len(t, sink.all(), 99)
	require.NotContains(t, sink.all(), "item-047")
	require.Equal(t, 3, extractor.calls["item-047"])

	cp, ok, err := cps.Load("places")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 99, cp.LastCompletedIndex, "checkpoint advances past the broken item")
}

func TestRunnerResumeSkipsCompletedPrefix(t *testing.T) {
	t.Parallel()

	cps := checkpoint.NewMemStore()
	sink := &memSink{}
	all := items(10)

	// First run is cut short after item 4.
	session := &fakeSession{}
	runner := New[string](fastConfig("search"), session, newScriptedExtractor(nil), sink,
		cps, nil, nil, zap.NewNop())
	summary, err := runner.Run(context.Background(), all[:5])
	require.NoError(t, err)
	require.Equal(t, 5, summary.Succeeded)

	// Second run sees the full sequence and must continue at item 5 exactly:
	// no duplicates, no gaps.
	runner = New[string](fastConfig("search"), session, newScriptedExtractor(nil), sink,
		cps, nil, nil, zap.NewNop())
	summary, err = runner.Run(context.Background(), all)
	require.NoError(t, err)
	require.Equal(t, scrape.Summary{Succeeded: 5}, summary)

	require.Equal(t, []string{
		"item-000", "item-001", "item-002", "item-003", "item-004",
		"item-005", "item-006", "item-007", "item-008", "item-009",
	}, sink.all())
}

func TestRunnerCompletedRunIsNoOpOnRerun(t *testing.T) {
	t.Parallel()

	cps := checkpoint.NewMemStore()
	sink := &memSink{}
	all := items(6)

	runner := New[string](fastConfig("enrich"), &fakeSession{}, newScriptedExtractor(nil), sink,
		cps, nil, nil, zap.NewNop())
	_, err := runner.Run(context.Background(), all)
	require.NoError(t, err)
	require.Len(t, sink.all(), 6)

	summary, err := runner.Run(context.Background(), all)
	require.NoError(t, err)
	require.Equal(t, scrape.Summary{}, summary, "second run does nothing")
	require.Len(t, sink.all(), 6, "no additional rows on rerun")
}

func TestRunnerBrowserUnavailableIsFatal(t *testing.T) {
	t.Parallel()

	session := &fakeSession{unavailable: true}
	sink := &memSink{}
	runner := New[string](fastConfig("search"), session, newScriptedExtractor(nil), sink,
		checkpoint.NewMemStore(), nil, nil, zap.NewNop())

	_, err := runner.Run(context.Background(), items(3))
	require.Error(t, err)
	require.ErrorIs(t, err, scrape.ErrBrowserUnavailable)
	require.Empty(t, sink.all())
}

func TestRunnerHonorsCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sink := &memSink{}
	runner := New[string](fastConfig("search"), &fakeSession{}, newScriptedExtractor(nil), sink,
		checkpoint.NewMemStore(), nil, nil, zap.NewNop())

	_, err := runner.Run(ctx, items(3))
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, sink.all())
}

// passthroughExtractor mimics enrichment: items with an empty payload are
// answered without a browser.
type passthroughExtractor struct {
	skipValues map[string]bool
}

func (e *passthroughExtractor) Extract(_ context.Context, item scrape.WorkItem, _ browser.Tab) ([]string, error) {
	return []string{item.Value + ":extracted"}, nil
}

func (e *passthroughExtractor) SkipExtract(item scrape.WorkItem) ([]string, bool) {
	if e.skipValues[item.Value] {
		return []string{item.Value + ":passthrough"}, true
	}
	return nil, false
}

func TestRunnerSkipFilterBypassesBrowser(t *testing.T) {
	t.Parallel()

	extractor := &passthroughExtractor{skipValues: map[string]bool{"item-001": true}}
	sink := &memSink{}
	runner := New[string](fastConfig("enrich"), &fakeSession{}, extractor, sink,
		checkpoint.NewMemStore(), nil, nil, zap.NewNop())

	summary, err := runner.Run(context.Background(), items(3))
	require.NoError(t, err)
	require.Equal(t, scrape.Summary{Succeeded: 2, Skipped: 1}, summary)
	require.Equal(t, []string{"item-000:extracted", "item-001:passthrough", "item-002:extracted"}, sink.all())
}

type recordingFailures struct {
	mu    sync.Mutex
	items []string
}

func (r *recordingFailures) RecordItemFailure(_ context.Context, stage string, index int, item string, cause error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, fmt.Sprintf("%s/%d/%s/%v", stage, index, item, cause))
}

func TestRunnerReportsTerminalFailures(t *testing.T) {
	t.Parallel()

	failures := &recordingFailures{}
	extractor := newScriptedExtractor(map[string]int{"item-002": -1})
	runner := New[string](fastConfig("places"), &fakeSession{}, extractor, &memSink{},
		checkpoint.NewMemStore(), failures, nil, zap.NewNop())

	_, err := runner.Run(context.Background(), items(4))
	require.NoError(t, err)
	require.Len(t, failures.items, 1)
	require.Contains(t, failures.items[0], "places/2/item-002")
}
