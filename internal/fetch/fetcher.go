// Package fetch retrieves business websites for the enrichment stage. Pages
// are fetched statically first; the detector decides when a page needs a
// headless render instead.
package fetch

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"golang.org/x/time/rate"
)

// Page is the result of one static fetch.
type Page struct {
	URL        string
	StatusCode int
	Body       []byte
	Duration   time.Duration
}

// Config controls collector behavior.
type Config struct {
	UserAgent    string
	Timeout      time.Duration
	PerDomainQPS float64
}

// StaticFetcher fetches pages over plain HTTP using a Colly collector, with a
// per-domain rate limit so hammering one site's contact pages stays polite.
type StaticFetcher struct {
	cfg           Config
	baseCollector *colly.Collector

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewStaticFetcher builds a StaticFetcher.
func NewStaticFetcher(cfg Config) *StaticFetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.PerDomainQPS <= 0 {
		cfg.PerDomainQPS = 2
	}
	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = false
	c.WithTransport(newHTTPTransport())
	return &StaticFetcher{
		cfg:           cfg,
		baseCollector: c,
		limiters:      make(map[string]*rate.Limiter),
	}
}

// Fetch executes a single GET. Non-2xx responses are returned as pages, not
// errors; the caller decides what a 404 contact page means.
func (f *StaticFetcher) Fetch(ctx context.Context, pageURL string) (Page, error) {
	host, err := hostOf(pageURL)
	if err != nil {
		return Page{}, err
	}
	if err := f.limiter(host).Wait(ctx); err != nil {
		return Page{}, err
	}

	var (
		result   Page
		fetchErr error
	)
	start := time.Now()

	collector := f.baseCollector.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.SetRequestTimeout(f.cfg.Timeout)

	collector.OnResponse(func(r *colly.Response) {
		result = Page{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode > 0 {
			// Keep error-status bodies; a 403 splash page can still carry a
			// footer email.
			result = Page{
				URL:        pageURL,
				StatusCode: r.StatusCode,
				Body:       append([]byte(nil), r.Body...),
				Duration:   time.Since(start),
			}
			return
		}
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(pageURL)
	}()

	select {
	case <-ctx.Done():
		return Page{}, fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		if result.StatusCode != 0 {
			return result, nil
		}
		if fetchErr != nil {
			return Page{}, fmt.Errorf("fetch %s: %w", pageURL, fetchErr)
		}
		if err != nil {
			return Page{}, fmt.Errorf("fetch %s: %w", pageURL, err)
		}
		return result, nil
	}
}

func (f *StaticFetcher) limiter(host string) *rate.Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.limiters[host]
	if !ok {
		l = rate.NewLimiter(rate.Limit(f.cfg.PerDomainQPS), 1)
		f.limiters[host] = l
	}
	return l
}

func hostOf(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", raw, err)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", fmt.Errorf("url %q has no host", raw)
	}
	return host, nil
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
