package extract

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/mapleads/mapleads/internal/browser"
	"github.com/mapleads/mapleads/internal/fetch"
	"github.com/mapleads/mapleads/internal/metrics"
	"github.com/mapleads/mapleads/internal/scrape"
)

// Contact-ish paths probed on every site, homepage first.
var defaultContactPaths = []string{
	"",
	"contact",
	"kontakt",
	"contact-us",
	"about",
	"impressum",
	"kontak",
	"get-in-touch",
}

// EnrichConfig tunes website contact extraction.
type EnrichConfig struct {
	ContactPaths  []string
	SiteBudget    time.Duration // wall clock per website across all its pages
	MinEmailScore int           // candidates scoring at or below this are rejected
}

// DefaultEnrichConfig returns the tuning the stage ships with.
func DefaultEnrichConfig() EnrichConfig {
	return EnrichConfig{
		ContactPaths: defaultContactPaths,
		SiteBudget:   25 * time.Second,
	}
}

// PageFetcher is the static-fetch dependency of the enrichment extractor.
type PageFetcher interface {
	Fetch(ctx context.Context, pageURL string) (fetch.Page, error)
}

// Promoter decides when a static fetch needs a headless render instead.
type Promoter interface {
	ShouldPromote(page fetch.Page) bool
}

// EnrichExtractor visits each place's website and fills in the scraped
// contact fields. Extraction is best-effort per record: a site that never
// loads yields the input record unchanged, not a failure.
type EnrichExtractor struct {
	cfg      EnrichConfig
	places   []scrape.PlaceRecord
	fetcher  PageFetcher
	detector Promoter
	logger   *zap.Logger
}

// NewEnrichExtractor builds an extractor over the stage's input records. The
// work item sequence must index into places one to one.
func NewEnrichExtractor(
	cfg EnrichConfig,
	places []scrape.PlaceRecord,
	fetcher PageFetcher,
	detector Promoter,
	logger *zap.Logger,
) *EnrichExtractor {
	if len(cfg.ContactPaths) == 0 {
		cfg.ContactPaths = defaultContactPaths
	}
	if cfg.SiteBudget <= 0 {
		cfg.SiteBudget = 25 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrichExtractor{
		cfg:      cfg,
		places:   places,
		fetcher:  fetcher,
		detector: detector,
		logger:   logger,
	}
}

// SkipExtract passes records with no website straight through.
func (e *EnrichExtractor) SkipExtract(item scrape.WorkItem) ([]scrape.EnrichedRecord, bool) {
	rec, err := e.place(item)
	if err != nil {
		return nil, false
	}
	if strings.TrimSpace(rec.Website) == "" {
		return []scrape.EnrichedRecord{{Place: rec}}, true
	}
	return nil, false
}

// Extract probes the site's likely contact pages and aggregates candidates.
func (e *EnrichExtractor) Extract(ctx context.Context, item scrape.WorkItem, tab browser.Tab) ([]scrape.EnrichedRecord, error) {
	rec, err := e.place(item)
	if err != nil {
		return nil, err
	}
	base, err := normalizeSiteURL(rec.Website)
	if err != nil {
		e.logger.Warn("Unusable website URL; passing record through",
			zap.String("website", rec.Website), zap.Error(err))
		return []scrape.EnrichedRecord{{Place: rec}}, nil
	}

	siteCtx, cancel := context.WithTimeout(ctx, e.cfg.SiteBudget)
	defer cancel()

	var (
		candidates []scrape.CandidateContact
		socials    = make(map[string]string)
		seen       = make(map[string]bool)
	)
	for _, path := range e.cfg.ContactPaths {
		if siteCtx.Err() != nil {
			break
		}
		pageURL := joinSiteURL(base, path)

		content, ok := e.fetchPage(siteCtx, tab, pageURL)
		if !ok {
			continue
		}

		pageEmails, pagePhones := harvestContacts(content)
		candidates = appendCandidates(candidates, seen, scrape.ContactEmail, pageEmails, pageURL)
		candidates = appendCandidates(candidates, seen, scrape.ContactPhone, pagePhones, pageURL)
		for platform, link := range SocialLinks(content) {
			if _, have := socials[platform]; !have {
				socials[platform] = link
			}
		}

		if e.haveEnough(candidates, socials) {
			break
		}
	}

	out := scrape.EnrichedRecord{Place: rec}
	if best, ok := BestEmail(contactValues(candidates, scrape.ContactEmail), e.cfg.MinEmailScore); ok {
		out.Email = best
		e.logger.Debug("Email candidate selected",
			zap.String("email", best),
			zap.String("source_page", candidateSource(candidates, scrape.ContactEmail, best)),
		)
	}
	phones := contactValues(candidates, scrape.ContactPhone)
	if len(phones) > 3 {
		phones = phones[:3]
	}
	out.Phone = strings.Join(phones, ", ")
	out.WhatsApp = socials[PlatformWhatsApp]
	out.Facebook = socials[PlatformFacebook]
	out.Instagram = socials[PlatformInstagram]
	out.LinkedIn = socials[PlatformLinkedIn]
	out.Twitter = socials[PlatformTwitter]
	out.TikTok = socials[PlatformTikTok]
	out.Snapchat = socials[PlatformSnapchat]
	return []scrape.EnrichedRecord{out}, nil
}

// fetchPage tries a static fetch first and renders headlessly only when the
// detector flags the body as a JS shell. Load failures return ok=false.
func (e *EnrichExtractor) fetchPage(ctx context.Context, tab browser.Tab, pageURL string) (string, bool) {
	page, err := e.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		e.logger.Debug("Static fetch failed", zap.String("url", pageURL), zap.Error(err))
		return "", false
	}
	if e.detector == nil || !e.detector.ShouldPromote(page) {
		metrics.ObservePageFetch("static")
		return string(page.Body), true
	}

	metrics.ObservePageFetch("rendered")
	if err := tab.Navigate(ctx, pageURL); err != nil {
		return "", false
	}
	if err := tab.WaitReady(ctx, "body"); err != nil {
		return "", false
	}
	html, err := tab.HTML(ctx)
	if err != nil {
		return "", false
	}
	return html, true
}

func (e *EnrichExtractor) place(item scrape.WorkItem) (scrape.PlaceRecord, error) {
	if item.Index < 0 || item.Index >= len(e.places) {
		return scrape.PlaceRecord{}, fmt.Errorf("work item index %d out of range (%d records)", item.Index, len(e.places))
	}
	return e.places[item.Index], nil
}

func (e *EnrichExtractor) haveEnough(candidates []scrape.CandidateContact, socials map[string]string) bool {
	emails := contactValues(candidates, scrape.ContactEmail)
	phones := contactValues(candidates, scrape.ContactPhone)
	if len(emails) == 0 || len(phones) == 0 {
		return false
	}
	_, ok := BestEmail(emails, e.cfg.MinEmailScore)
	return ok && len(socials) > 0
}

// harvestContacts extracts emails and phones from one page, anchors first
// since mailto/tel targets are deliberate.
func harvestContacts(content string) (emails, phones []string) {
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(content)); err == nil {
		emails, phones = AnchorContacts(doc)
		content = doc.Text()
	}
	emails = append(emails, Emails(content)...)
	phones = append(phones, Phones(content)...)
	return emails, phones
}

// appendCandidates records newly seen values as candidates tagged with the
// page they came from.
func appendCandidates(
	dst []scrape.CandidateContact,
	seen map[string]bool,
	kind scrape.ContactKind,
	values []string,
	sourcePage string,
) []scrape.CandidateContact {
	for _, v := range values {
		key := string(kind) + ":" + v
		if !seen[key] {
			seen[key] = true
			dst = append(dst, scrape.CandidateContact{Kind: kind, Value: v, SourcePage: sourcePage})
		}
	}
	return dst
}

// contactValues projects the candidates of one kind, preserving first-seen
// order across pages.
func contactValues(candidates []scrape.CandidateContact, kind scrape.ContactKind) []string {
	var out []string
	for _, c := range candidates {
		if c.Kind == kind {
			out = append(out, c.Value)
		}
	}
	return out
}

func candidateSource(candidates []scrape.CandidateContact, kind scrape.ContactKind, value string) string {
	for _, c := range candidates {
		if c.Kind == kind && c.Value == value {
			return c.SourcePage
		}
	}
	return ""
}

func normalizeSiteURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("empty website")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse website %q: %w", raw, err)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("website %q has no host", raw)
	}
	return u, nil
}

func joinSiteURL(base *url.URL, path string) string {
	if path == "" {
		return base.String()
	}
	u := *base
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(path, "/")
	return u.String()
}
