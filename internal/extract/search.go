// Package extract implements the per-stage page extraction logic: search
// result harvesting, place detail parsing, and website contact enrichment.
package extract

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mapleads/mapleads/internal/browser"
	"github.com/mapleads/mapleads/internal/scrape"
)

// SearchConfig tunes the result-feed scroll loop.
type SearchConfig struct {
	BaseURL         string
	SettleDelay     time.Duration // after navigation, before the feed is queried
	ScrollDelay     time.Duration // after each scroll, lets lazy results load
	MaxStaleScrolls int           // consecutive no-growth scrolls before stopping
	MaxScrolls      int           // hard cap on scroll rounds per query
}

// DefaultSearchConfig returns the scroll tuning the stage ships with.
func DefaultSearchConfig() SearchConfig {
	return SearchConfig{
		BaseURL:         "https://www.google.com/maps",
		SettleDelay:     5 * time.Second,
		ScrollDelay:     3 * time.Second,
		MaxStaleScrolls: 2,
		MaxScrolls:      30,
	}
}

// SearchExtractor turns one search query into the place URLs its result feed
// contains. The seen set spans the whole run, so a place surfacing under two
// queries is emitted once.
type SearchExtractor struct {
	cfg    SearchConfig
	seen   map[string]bool
	logger *zap.Logger
}

// NewSearchExtractor builds a SearchExtractor.
func NewSearchExtractor(cfg SearchConfig, logger *zap.Logger) *SearchExtractor {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultSearchConfig().BaseURL
	}
	if cfg.MaxStaleScrolls <= 0 {
		cfg.MaxStaleScrolls = 2
	}
	if cfg.MaxScrolls <= 0 {
		cfg.MaxScrolls = 30
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SearchExtractor{
		cfg:    cfg,
		seen:   make(map[string]bool),
		logger: logger,
	}
}

// Seed marks place URLs as already discovered. On resume, the links emitted
// by completed queries are seeded back so later queries cannot re-emit them.
func (e *SearchExtractor) Seed(urls []string) {
	for _, u := range urls {
		if canon := canonicalPlaceURL(u); canon != "" {
			e.seen[canon] = true
		}
	}
}

const feedSelector = `div[role="feed"]`

const (
	scrollFeedJS = `(() => { const f = document.querySelector('div[role="feed"]'); if (f) { f.scrollTop = f.scrollHeight; } return true; })()`
	feedHeightJS = `(() => { const f = document.querySelector('div[role="feed"]'); return f ? f.scrollHeight : 0; })()`
	placeLinksJS = `Array.from(document.querySelectorAll("a[href*='/maps/place/']")).map(a => a.href)`
)

// Extract runs the query and harvests unique place URLs from the result feed.
func (e *SearchExtractor) Extract(ctx context.Context, item scrape.WorkItem, tab browser.Tab) ([]string, error) {
	searchURL := fmt.Sprintf("%s/search/%s?hl=en",
		strings.TrimRight(e.cfg.BaseURL, "/"),
		strings.ReplaceAll(url.PathEscape(item.Value), "%20", "+"),
	)
	if err := tab.Navigate(ctx, searchURL); err != nil {
		return nil, fmt.Errorf("open search results: %w", err)
	}
	if err := sleepCtx(ctx, e.cfg.SettleDelay); err != nil {
		return nil, err
	}
	if err := tab.WaitVisible(ctx, feedSelector); err != nil {
		// A query matching exactly one place skips the feed and lands on the
		// place panel directly; the URL is the result then.
		if loc, lerr := tab.Location(ctx); lerr == nil {
			if canon := canonicalPlaceURL(loc); canon != "" && !e.seen[canon] {
				e.seen[canon] = true
				return []string{canon}, nil
			}
		}
		// A query with zero results never renders a feed. Not a failure.
		e.logger.Info("No result feed rendered", zap.String("query", item.Value))
		return nil, nil
	}

	var (
		found      []string
		lastHeight float64
		stale      int
	)
	for scrolls := 0; stale < e.cfg.MaxStaleScrolls && scrolls < e.cfg.MaxScrolls; scrolls++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var ok bool
		if err := tab.Eval(ctx, scrollFeedJS, &ok); err != nil {
			return nil, fmt.Errorf("scroll result feed: %w", err)
		}
		if err := sleepCtx(ctx, e.cfg.ScrollDelay); err != nil {
			return nil, err
		}

		var height float64
		if err := tab.Eval(ctx, feedHeightJS, &height); err != nil {
			return nil, fmt.Errorf("read feed height: %w", err)
		}

		var hrefs []string
		if err := tab.Eval(ctx, placeLinksJS, &hrefs); err != nil {
			return nil, fmt.Errorf("collect place links: %w", err)
		}
		for _, href := range hrefs {
			canon := canonicalPlaceURL(href)
			if canon == "" || e.seen[canon] {
				continue
			}
			e.seen[canon] = true
			found = append(found, canon)
		}

		if height == lastHeight {
			stale++
		} else {
			stale = 0
			lastHeight = height
		}
	}

	e.logger.Info("Query harvested",
		zap.String("query", item.Value),
		zap.Int("new_places", len(found)),
	)
	return found, nil
}

// canonicalPlaceURL strips the query and fragment so the same place reached
// through different map states dedupes to one identifier.
func canonicalPlaceURL(href string) string {
	if !strings.Contains(href, "/maps/place/") {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
