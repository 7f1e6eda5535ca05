package crawler_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sitesense/sitesense/internal/crawler"
	"github.com/sitesense/sitesense/internal/testutil"
	"github.com/sitesense/sitesense/internal/webclient"
)

func newSiteServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprintf(w, `<a href="http://%s/page1">Page 1</a> <a href="/page2">Page 2</a> <a href="https://elsewhere.example/out">External</a>`, r.Host)
	})
	mux.HandleFunc("/page1", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<a href="/page3">Page 3</a>`)
	})
	mux.HandleFunc("/page2", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "This is page 2")
	})
	mux.HandleFunc("/page3", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "This is page 3")
	})

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func newTestSpider(t *testing.T) *crawler.Spider {
	t.Helper()
	wc := webclient.NewNetHTTPClient(webclient.DefaultConfig(), &testutil.DummyLogger{}, nil)
	t.Cleanup(func() { wc.Close() })
	return crawler.NewSpider(wc, 0, &testutil.DummyLogger{})
}

func TestSpider_CrawlDiscoversLinkedPages(t *testing.T) {
	t.Parallel()
	ts := newSiteServer(t)
	spider := newTestSpider(t)

	result, err := spider.Crawl(context.Background(), ts.URL, 2)
	if err != nil {
		t.Fatalf("Crawl: %v", err)
	}

	if len(result.Endpoints) != 4 {
		t.Fatalf("expected 4 endpoints, got %v", result.Endpoints)
	}
	if result.Endpoints[0] != ts.URL {
		t.Errorf("target must be the first endpoint, got %s", result.Endpoints[0])
	}
	for _, suffix := range []string{"/page1", "/page2", "/page3"} {
		found := false
		for _, ep := range result.Endpoints {
			if strings.HasSuffix(ep, suffix) {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("expected an endpoint ending in %s, got %v", suffix, result.Endpoints)
		}
	}
}

func TestSpider_StaysOnTargetDomain(t *testing.T) {
	t.Parallel()
	ts := newSiteServer(t)
	spider := newTestSpider(t)

	result, err := spider.Crawl(context.Background(), ts.URL, 2)
	if err != nil {
		t.Fatalf("Crawl: %v", err)
	}

	for _, ep := range result.Endpoints {
		if strings.Contains(ep, "elsewhere.example") {
			t.Errorf("external endpoint leaked into results: %s", ep)
		}
	}
}

func TestSpider_RespectsDepthLimit(t *testing.T) {
	t.Parallel()
	ts := newSiteServer(t)
	spider := newTestSpider(t)

	// Depth 0 crawls only the target page itself; its direct links are
	// discovered but never followed, so /page3 stays unknown.
	result, err := spider.Crawl(context.Background(), ts.URL, 0)
	if err != nil {
		t.Fatalf("Crawl: %v", err)
	}

	for _, ep := range result.Endpoints {
		if strings.HasSuffix(ep, "/page3") {
			t.Errorf("depth limit ignored, found %s", ep)
		}
	}
}

func TestSpider_InvalidTarget(t *testing.T) {
	t.Parallel()
	spider := newTestSpider(t)

	if _, err := spider.Crawl(context.Background(), "://bad", 1); err == nil {
		t.Error("expected error for unparseable target")
	}
}

func TestSpider_CanceledContext(t *testing.T) {
	t.Parallel()
	ts := newSiteServer(t)
	spider := newTestSpider(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := spider.Crawl(ctx, ts.URL, 2); err == nil {
		t.Error("expected error for canceled context")
	}
}
