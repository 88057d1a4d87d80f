package sitecrawl

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/leadharvest/leadharvest/internal/httpx"
	"github.com/leadharvest/leadharvest/internal/politeness"
)

func newTestCrawler(opts ...Option) *Crawler {
	exec := httpx.New(httpx.Config{
		Timeout:        time.Second,
		MaxRetries:     0,
		InitialBackoff: time.Millisecond,
	}, zap.NewNop())
	return New(exec, politeness.New(politeness.Config{}), zap.NewNop(), opts...)
}

type pathRecorder struct {
	mu    sync.Mutex
	paths []string
}

func (r *pathRecorder) record(p string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, p)
}

func (r *pathRecorder) recorded() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

func TestCrawlStopsAtFirstPathWithEmails(t *testing.T) {
	t.Parallel()

	rec := &pathRecorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.record(r.URL.Path)
		switch r.URL.Path {
		case "/":
			_, _ = w.Write([]byte(`<html><body>Welcome to our shop.</body></html>`))
		case "/contact":
			_, _ = w.Write([]byte(`<html><body><a href="mailto:info@biz.com">mail</a></body></html>`))
		default:
			_, _ = w.Write([]byte(`<html><body><p>later@biz.com</p></body></html>`))
		}
	}))
	defer srv.Close()

	got := newTestCrawler().Crawl(context.Background(), srv.URL)
	require.Equal(t, []string{"info@biz.com"}, got)
	require.Equal(t, []string{"/", "/contact"}, rec.recorded())
}

func TestCrawlSkipsUnreachablePaths(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/about":
			_, _ = w.Write([]byte(`<p>write owner@biz.com</p>`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	got := newTestCrawler().Crawl(context.Background(), srv.URL)
	require.Equal(t, []string{"owner@biz.com"}, got)
}

func TestCrawlExhaustedReturnsEmpty(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><body>No contact info here.</body></html>`))
	}))
	defer srv.Close()

	require.Empty(t, newTestCrawler().Crawl(context.Background(), srv.URL))
}

func TestCrawlDefaultsScheme(t *testing.T) {
	t.Parallel()

	origin, err := normalizeOrigin("biz.example")
	require.NoError(t, err)
	require.Equal(t, "https://biz.example", origin)

	origin, err = normalizeOrigin("http://biz.example/some/page?x=1")
	require.NoError(t, err)
	require.Equal(t, "http://biz.example", origin)
}

func TestCrawlRejectsMalformedWebsite(t *testing.T) {
	t.Parallel()

	require.Empty(t, newTestCrawler().Crawl(context.Background(), ""))
	require.Empty(t, newTestCrawler().Crawl(context.Background(), "https://"))
}

type fakeRenderer struct {
	html string
	urls []string
	mu   sync.Mutex
}

func (f *fakeRenderer) Render(_ context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.urls = append(f.urls, url)
	return []byte(f.html), nil
}

type alwaysPromote struct{}

func (alwaysPromote) ShouldPromote([]byte) bool { return true }

func TestCrawlPromotesJSShellToHeadless(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><div id="root"></div></html>`))
	}))
	defer srv.Close()

	renderer := &fakeRenderer{html: `<p>rendered contact: hi@biz.com</p>`}
	c := newTestCrawler(WithHeadless(renderer, alwaysPromote{}))

	got := c.Crawl(context.Background(), srv.URL)
	require.Equal(t, []string{"hi@biz.com"}, got)
	require.NotEmpty(t, renderer.urls)
	require.True(t, strings.HasSuffix(renderer.urls[0], "/"))
}

type memArchive struct {
	mu    sync.Mutex
	paths []string
}

func (a *memArchive) Put(_ context.Context, path, _ string, _ []byte) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.paths = append(a.paths, path)
	return "mem://" + path, nil
}

func TestCrawlArchivesYieldingPage(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<a href="mailto:a@biz.com">m</a>`))
	}))
	defer srv.Close()

	arch := &memArchive{}
	c := newTestCrawler(WithArchive(arch))

	require.Equal(t, []string{"a@biz.com"}, c.Crawl(context.Background(), srv.URL))
	require.Len(t, arch.paths, 1)
	require.True(t, strings.HasSuffix(arch.paths[0], ".html"))
}
