package browser

import (
	"context"
	"fmt"
	"sync"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/mapleads/mapleads/internal/scrape"
)

// Config controls the headless Chrome session.
type Config struct {
	Headless     bool
	UserAgent    string
	WindowWidth  int
	WindowHeight int
	Lang         string
}

func (c Config) withDefaults() Config {
	if c.WindowWidth <= 0 {
		c.WindowWidth = 1280
	}
	if c.WindowHeight <= 0 {
		c.WindowHeight = 1000
	}
	if c.Lang == "" {
		c.Lang = "en"
	}
	return c
}

// ChromeSession implements Session using chromedp. One exec allocator and
// one warm browser context are shared by all tabs; Restart replaces the
// browser context while keeping the allocator.
type ChromeSession struct {
	cfg         Config
	allocator   context.Context
	allocCancel context.CancelFunc

	mu            sync.Mutex
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

// NewChromeSession launches headless Chrome and warms it up. A missing or
// broken browser binary surfaces as scrape.ErrBrowserUnavailable, the one
// condition that is fatal to a stage.
func NewChromeSession(cfg Config) (*ChromeSession, error) {
	cfg = cfg.withDefaults()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("lang", cfg.Lang),
		chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	s := &ChromeSession{
		cfg:         cfg,
		allocator:   allocCtx,
		allocCancel: allocCancel,
	}
	if err := s.startBrowser(); err != nil {
		allocCancel()
		return nil, err
	}
	return s, nil
}

func (s *ChromeSession) startBrowser() error {
	browserCtx, browserCancel := chromedp.NewContext(s.allocator)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		return fmt.Errorf("chrome warmup: %v: %w", err, scrape.ErrBrowserUnavailable)
	}
	s.mu.Lock()
	s.browserCtx = browserCtx
	s.browserCancel = browserCancel
	s.mu.Unlock()
	return nil
}

// NewTab opens a fresh tab in the running browser and applies the session's
// header and user-agent overrides to it.
func (s *ChromeSession) NewTab(ctx context.Context) (Tab, func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	s.mu.Lock()
	parent := s.browserCtx
	s.mu.Unlock()
	if parent == nil {
		return nil, nil, scrape.ErrBrowserUnavailable
	}
	tabCtx, cancel := chromedp.NewContext(parent)
	tab := &chromeTab{ctx: tabCtx}
	if err := tab.run(ctx, s.tabSetup()...); err != nil {
		cancel()
		return nil, nil, fmt.Errorf("prepare tab: %w", err)
	}
	return tab, cancel, nil
}

// tabSetup builds the per-tab override actions. Overrides are applied per
// tab rather than per allocator so they survive browser restarts.
func (s *ChromeSession) tabSetup() []chromedp.Action {
	actions := []chromedp.Action{
		network.Enable(),
		network.SetExtraHTTPHeaders(network.Headers{"Accept-Language": s.cfg.Lang}),
	}
	if s.cfg.UserAgent != "" {
		actions = append(actions, emulation.SetUserAgentOverride(s.cfg.UserAgent))
	}
	return actions
}

// Restart replaces the browser process. Used both to recover a wedged
// browser before a retry and to recycle memory on long runs.
func (s *ChromeSession) Restart(_ context.Context) error {
	s.mu.Lock()
	if s.browserCancel != nil {
		s.browserCancel()
		s.browserCancel = nil
		s.browserCtx = nil
	}
	s.mu.Unlock()
	return s.startBrowser()
}

// Close tears down the browser and its allocator.
func (s *ChromeSession) Close(_ context.Context) error {
	s.mu.Lock()
	if s.browserCancel != nil {
		s.browserCancel()
		s.browserCancel = nil
		s.browserCtx = nil
	}
	s.mu.Unlock()
	s.allocCancel()
	return nil
}

// chromeTab runs chromedp actions against one tab context while honoring
// the caller's context for cancellation and deadlines.
type chromeTab struct {
	ctx context.Context
}

func (t *chromeTab) Navigate(ctx context.Context, url string) error {
	if err := t.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

func (t *chromeTab) WaitReady(ctx context.Context, selector string) error {
	if err := t.run(ctx, chromedp.WaitReady(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("wait ready %q: %w", selector, err)
	}
	return nil
}

func (t *chromeTab) WaitVisible(ctx context.Context, selector string) error {
	if err := t.run(ctx, chromedp.WaitVisible(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("wait visible %q: %w", selector, err)
	}
	return nil
}

func (t *chromeTab) HTML(ctx context.Context) (string, error) {
	var html string
	if err := t.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("snapshot html: %w", err)
	}
	return html, nil
}

func (t *chromeTab) Eval(ctx context.Context, expr string, out any) error {
	if err := t.run(ctx, chromedp.Evaluate(expr, out)); err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}
	return nil
}

func (t *chromeTab) Location(ctx context.Context) (string, error) {
	var loc string
	if err := t.run(ctx, chromedp.Location(&loc)); err != nil {
		return "", fmt.Errorf("read location: %w", err)
	}
	return loc, nil
}

func (t *chromeTab) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(t.ctx)
	defer cancel()
	if deadline, ok := ctx.Deadline(); ok {
		var dcancel context.CancelFunc
		runCtx, dcancel = context.WithDeadline(runCtx, deadline)
		defer dcancel()
	}
	stop := forwardCancel(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
