package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStaticFetcherReturnsBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html><body>hello@example.com</body></html>"))
	}))
	defer srv.Close()

	f := NewStaticFetcher(Config{Timeout: 5 * time.Second, PerDomainQPS: 100})
	page, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, 200, page.StatusCode)
	require.Contains(t, string(page.Body), "hello@example.com")
}

func TestStaticFetcherKeepsErrorStatusBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("not here"))
	}))
	defer srv.Close()

	f := NewStaticFetcher(Config{Timeout: 5 * time.Second, PerDomainQPS: 100})
	page, err := f.Fetch(context.Background(), srv.URL+"/contact")
	require.NoError(t, err)
	require.Equal(t, 404, page.StatusCode)
}

func TestStaticFetcherRejectsBadURL(t *testing.T) {
	t.Parallel()

	f := NewStaticFetcher(Config{})
	_, err := f.Fetch(context.Background(), "not a url")
	require.Error(t, err)
}

func TestStaticFetcherHonorsCancellation(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	defer srv.Close()

	f := NewStaticFetcher(Config{Timeout: 5 * time.Second, PerDomainQPS: 100})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := f.Fetch(ctx, srv.URL)
	require.Error(t, err)
}

func TestDetectorPromotesEmptyBody(t *testing.T) {
	t.Parallel()
	d := NewDetector(0)
	require.True(t, d.ShouldPromote(Page{StatusCode: 200, Body: nil}))
}

func TestDetectorPromotesSPAMarkers(t *testing.T) {
	t.Parallel()
	d := NewDetector(0)
	body := []byte(`<html><body><div id="root"></div><script src="/bundle.js"></script></body></html>`)
	require.True(t, d.ShouldPromote(Page{StatusCode: 200, Body: body}))
}

func TestDetectorPromotesScriptHeavyShortBody(t *testing.T) {
	t.Parallel()
	d := NewDetector(0)
	body := []byte(`<html><script>` + strings.Repeat("x", 500) + `</script><p>hi</p></html>`)
	require.True(t, d.ShouldPromote(Page{StatusCode: 200, Body: body}))
}

func TestDetectorKeepsPlainContent(t *testing.T) {
	t.Parallel()
	d := NewDetector(0)
	body := []byte(`<html><body><h1>Shop</h1><p>` + strings.Repeat("words ", 600) + `</p></body></html>`)
	require.False(t, d.ShouldPromote(Page{StatusCode: 200, Body: body}))
}

func TestDetectorIgnoresNon200(t *testing.T) {
	t.Parallel()
	d := NewDetector(0)
	require.False(t, d.ShouldPromote(Page{StatusCode: 500, Body: nil}))
}
