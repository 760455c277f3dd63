package extract

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mapleads/mapleads/internal/fetch"
	"github.com/mapleads/mapleads/internal/scrape"
)

type stubTab struct {
	html string
}

func (stubTab) Navigate(context.Context, string) error    { return nil }
func (stubTab) WaitReady(context.Context, string) error   { return nil }
func (stubTab) WaitVisible(context.Context, string) error { return nil }
func (t stubTab) HTML(context.Context) (string, error)    { return t.html, nil }
func (stubTab) Eval(context.Context, string, any) error   { return nil }
func (stubTab) Location(context.Context) (string, error)  { return "", nil }

type stubFetcher struct {
	mu    sync.Mutex
	pages map[string]fetch.Page
	calls []string
}

func (f *stubFetcher) Fetch(_ context.Context, pageURL string) (fetch.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, pageURL)
	page, ok := f.pages[pageURL]
	if !ok {
		return fetch.Page{}, errors.New("connection refused")
	}
	return page, nil
}

type alwaysPromote struct{}

func (alwaysPromote) ShouldPromote(fetch.Page) bool { return true }

func place(website string) scrape.PlaceRecord {
	return scrape.PlaceRecord{Name: "Acme", Category: "Bakery", Website: website}
}

func TestContactCandidatesCarryKindAndSource(t *testing.T) {
	t.Parallel()

	seen := make(map[string]bool)
	cands := appendCandidates(nil, seen, scrape.ContactEmail,
		[]string{"info@acme.com", "info@acme.com"}, "https://acme.com")
	cands = appendCandidates(cands, seen, scrape.ContactPhone,
		[]string{"+3611234567"}, "https://acme.com/contact")

	require.Len(t, cands, 2, "duplicate values collapse")
	require.Equal(t, []string{"info@acme.com"}, contactValues(cands, scrape.ContactEmail))
	require.Equal(t, []string{"+3611234567"}, contactValues(cands, scrape.ContactPhone))
	require.Equal(t, "https://acme.com/contact",
		candidateSource(cands, scrape.ContactPhone, "+3611234567"))
}

func TestEnrichSkipsRecordsWithoutWebsite(t *testing.T) {
	t.Parallel()

	e := NewEnrichExtractor(DefaultEnrichConfig(), []scrape.PlaceRecord{place("")}, &stubFetcher{}, nil, nil)
	recs, skip := e.SkipExtract(scrape.WorkItem{Index: 0, Value: ""})
	require.True(t, skip)
	require.Len(t, recs, 1)
	require.Equal(t, place(""), recs[0].Place)
	require.Empty(t, recs[0].Email)
}

func TestEnrichDoesNotSkipWithWebsite(t *testing.T) {
	t.Parallel()

	e := NewEnrichExtractor(DefaultEnrichConfig(), []scrape.PlaceRecord{place("acme.example")}, &stubFetcher{}, nil, nil)
	_, skip := e.SkipExtract(scrape.WorkItem{Index: 0, Value: "acme.example"})
	require.False(t, skip)
}

func TestEnrichEarlyExitOnFullContact(t *testing.T) {
	t.Parallel()

	home := `<html><body>
	<a href="mailto:info@acme.example">mail</a>
	<p>Phone: +36 30 123 4567</p>
	<a href="https://www.facebook.com/acme">fb</a>
	</body></html>`
	fetcher := &stubFetcher{pages: map[string]fetch.Page{
		"https://acme.example": {URL: "https://acme.example", StatusCode: 200, Body: []byte(home)},
	}}

	e := NewEnrichExtractor(DefaultEnrichConfig(), []scrape.PlaceRecord{place("acme.example")}, fetcher, nil, nil)
	recs, err := e.Extract(context.Background(), scrape.WorkItem{Index: 0, Value: "acme.example"}, stubTab{})
	require.NoError(t, err)
	require.Len(t, recs, 1)

	require.Equal(t, "info@acme.example", recs[0].Email)
	require.Equal(t, "+36301234567", recs[0].Phone)
	require.Equal(t, "https://www.facebook.com/acme", recs[0].Facebook)
	require.Len(t, fetcher.calls, 1, "early exit after the homepage had everything")
}

func TestEnrichAggregatesAcrossContactPages(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{pages: map[string]fetch.Page{
		"https://acme.example": {
			StatusCode: 200,
			Body:       []byte(`<html><body><a href="https://instagram.com/acme">ig</a></body></html>`),
		},
		"https://acme.example/contact": {
			StatusCode: 200,
			Body:       []byte(`<html><body><a href="mailto:contact@acme.example">m</a><p>tel +36 30 111 2222</p></body></html>`),
		},
	}}

	e := NewEnrichExtractor(DefaultEnrichConfig(), []scrape.PlaceRecord{place("acme.example")}, fetcher, nil, nil)
	recs, err := e.Extract(context.Background(), scrape.WorkItem{Index: 0, Value: "acme.example"}, stubTab{})
	require.NoError(t, err)

	require.Equal(t, "contact@acme.example", recs[0].Email)
	require.Equal(t, "+36301112222", recs[0].Phone)
	require.Equal(t, "https://instagram.com/acme", recs[0].Instagram)
}

func TestEnrichUnreachableSitePassesRecordThrough(t *testing.T) {
	t.Parallel()

	in := place("unreachable.example")
	e := NewEnrichExtractor(DefaultEnrichConfig(), []scrape.PlaceRecord{in}, &stubFetcher{}, nil, nil)
	recs, err := e.Extract(context.Background(), scrape.WorkItem{Index: 0, Value: "unreachable.example"}, stubTab{})
	require.NoError(t, err, "a dead website is not a stage failure")
	require.Len(t, recs, 1)

	require.Equal(t, in, recs[0].Place)
	require.Empty(t, recs[0].Email)
	require.Empty(t, recs[0].Phone)
	require.Empty(t, recs[0].Facebook)
}

func TestEnrichPromotesToHeadlessRender(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{pages: map[string]fetch.Page{
		"https://spa.example": {StatusCode: 200, Body: []byte(`<div id="root"></div>`)},
	}}
	tab := stubTab{html: `<html><body><a href="mailto:hello@spa.example">m</a></body></html>`}

	cfg := DefaultEnrichConfig()
	cfg.ContactPaths = []string{""}
	e := NewEnrichExtractor(cfg, []scrape.PlaceRecord{place("spa.example")}, fetcher, alwaysPromote{}, nil)
	recs, err := e.Extract(context.Background(), scrape.WorkItem{Index: 0, Value: "spa.example"}, tab)
	require.NoError(t, err)
	require.Equal(t, "hello@spa.example", recs[0].Email)
}

func TestEnrichRejectsLowScoringEmails(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{pages: map[string]fetch.Page{
		"https://acme.example": {
			StatusCode: 200,
			Body:       []byte(`<html><body><a href="mailto:test@acme.example">m</a></body></html>`),
		},
	}}
	cfg := DefaultEnrichConfig()
	cfg.ContactPaths = []string{""}
	e := NewEnrichExtractor(cfg, []scrape.PlaceRecord{place("acme.example")}, fetcher, nil, nil)
	recs, err := e.Extract(context.Background(), scrape.WorkItem{Index: 0, Value: "acme.example"}, stubTab{})
	require.NoError(t, err)
	require.Empty(t, recs[0].Email, "junk-only candidates yield no email")
}

func TestEnrichOutOfRangeIndexFails(t *testing.T) {
	t.Parallel()

	e := NewEnrichExtractor(DefaultEnrichConfig(), nil, &stubFetcher{}, nil, nil)
	_, err := e.Extract(context.Background(), scrape.WorkItem{Index: 3, Value: "x"}, stubTab{})
	require.Error(t, err)
}
