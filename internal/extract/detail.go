package extract

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/mapleads/mapleads/internal/browser"
	"github.com/mapleads/mapleads/internal/scrape"
)

// DetailConfig tunes place page parsing.
type DetailConfig struct {
	SettleDelay time.Duration // after the heading appears, lets the panel finish
}

// DefaultDetailConfig returns the tuning the stage ships with.
func DefaultDetailConfig() DetailConfig {
	return DetailConfig{SettleDelay: 3 * time.Second}
}

// DetailExtractor parses one place page into a PlaceRecord. Every field is
// label-anchored: the page's class soup shifts constantly, the data tooltips
// and item ids much less.
type DetailExtractor struct {
	cfg DetailConfig
}

// NewDetailExtractor builds a DetailExtractor.
func NewDetailExtractor(cfg DetailConfig) *DetailExtractor {
	return &DetailExtractor{cfg: cfg}
}

var (
	ratingValueRe  = regexp.MustCompile(`[\d.]+`)
	reviewCountRe  = regexp.MustCompile(`[\d,]+`)
	phoneInLabelRe = regexp.MustCompile(`\+?[\d\s().-]{7,}`)
)

// Extract loads the place page and reads its info panel. Missing fields stay
// empty; only a page that never renders its heading fails the record.
func (e *DetailExtractor) Extract(ctx context.Context, item scrape.WorkItem, tab browser.Tab) ([]scrape.PlaceRecord, error) {
	if err := tab.Navigate(ctx, item.Value); err != nil {
		return nil, fmt.Errorf("open place page: %w", err)
	}
	if err := tab.WaitVisible(ctx, "h1"); err != nil {
		return nil, fmt.Errorf("place panel did not render: %w", err)
	}
	if err := sleepCtx(ctx, e.cfg.SettleDelay); err != nil {
		return nil, err
	}

	html, err := tab.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("read page: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}

	rec := parsePlace(doc)
	if rec.Name == "" {
		return nil, fmt.Errorf("place page for %s has no heading text", item.Value)
	}
	return []scrape.PlaceRecord{rec}, nil
}

func parsePlace(doc *goquery.Document) scrape.PlaceRecord {
	rec := scrape.PlaceRecord{
		Name:     text(doc.Find("h1").First()),
		Category: text(doc.Find("button.DkEaL").First()),
	}

	if href, ok := doc.Find(`a[data-tooltip="Open website"]`).First().Attr("href"); ok {
		rec.Website = strings.TrimSpace(href)
	}
	if label, ok := doc.Find(`button[data-tooltip="Copy phone number"]`).First().Attr("aria-label"); ok {
		rec.Phone = strings.TrimSpace(phoneInLabelRe.FindString(label))
	}

	ratingText := text(doc.Find(".F7nice").First())
	if ratingText == "" {
		ratingText = text(doc.Find(".MW4etd").First())
	}
	if ratingText == "" {
		if label, ok := doc.Find(`span[aria-label*="star"]`).First().Attr("aria-label"); ok {
			ratingText = label
		}
	}
	rec.Rating = ratingValueRe.FindString(ratingText)

	if label, ok := doc.Find(`span[aria-label*="review"]`).First().Attr("aria-label"); ok {
		rec.ReviewCount = strings.ReplaceAll(reviewCountRe.FindString(label), ",", "")
	}

	// The address button nests the glyph before the text; taking the whole
	// text and trimming works for both layouts seen in the wild.
	rec.Address = text(doc.Find(`button[data-item-id="address"]`).First())
	rec.Address = strings.TrimPrefix(rec.Address, "Address: ")

	return rec
}

func text(sel *goquery.Selection) string {
	return strings.TrimSpace(sel.Text())
}
