package web

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/llm-monitor/backend/pkg/utils"
)

const samplePage = `<!DOCTYPE html>
<html>
<head><title>  Federal Reserve Bank of Example  </title><style>.x{color:red}</style></head>
<body>
<header>Site header navigation</header>
<nav><a href="/about">About</a></nav>
<main>
  <h1>Monetary Policy</h1>
  <p>The Bank supports the Federal Open Market Committee in setting policy.</p>
  <h2>Leadership</h2>
  <p>Short para.</p>
  <p>President Jane Smith leads the Bank and its research department.</p>
  <script>var tracking = "should not appear";</script>
</main>
<footer>Footer text</footer>
</body>
</html>`

func newTestClient(maxChars int) *Client {
	return NewClient(Options{
		Timeout:         2 * time.Second,
		ProbeTimeout:    time.Second,
		MaxContentChars: maxChars,
	})
}

func TestScrapeExtractsMainContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			t.Error("expected a User-Agent header")
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(samplePage))
	}))
	defer srv.Close()

	c := newTestClient(10000)
	res, err := c.Scrape(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Scrape: %v", err)
	}

	if res.Title != "Federal Reserve Bank of Example" {
		t.Errorf("unexpected title %q", res.Title)
	}
	for _, unwanted := range []string{"Site header", "Footer text", "should not appear", "About"} {
		if strings.Contains(res.Content, unwanted) {
			t.Errorf("content should not contain %q: %q", unwanted, res.Content)
		}
	}
	if !strings.HasPrefix(res.Content, "Monetary Policy The Bank supports") {
		t.Errorf("unexpected content %q", res.Content)
	}
	if len(res.Headings) != 2 || res.Headings[0] != "Monetary Policy" || res.Headings[1] != "Leadership" {
		t.Errorf("unexpected headings %v", res.Headings)
	}
	if len(res.Paragraphs) != 2 {
		t.Errorf("expected 2 substantial paragraphs, got %v", res.Paragraphs)
	}
	if res.ContentHash != utils.ContentHash(res.Content) {
		t.Errorf("hash should cover the extracted text")
	}
	if res.StatusCode != http.StatusOK {
		t.Errorf("unexpected status %d", res.StatusCode)
	}
}

func TestScrapeTruncatesButHashesFullText(t *testing.T) {
	long := strings.Repeat("word ", 100)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body><article>" + long + "</article></body></html>"))
	}))
	defer srv.Close()

	c := newTestClient(50)
	res, err := c.Scrape(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Scrape: %v", err)
	}
	if len([]rune(res.Content)) != 50 {
		t.Errorf("expected 50 runes, got %d", len([]rune(res.Content)))
	}
	full := strings.TrimSpace(long)
	if res.ContentHash != utils.ContentHash(full) {
		t.Errorf("hash should be computed before truncation")
	}
	if res.ContentLength != len(full) {
		t.Errorf("expected content length %d, got %d", len(full), res.ContentLength)
	}
}

func TestScrapeDefaultsTitleAndFallsBackToBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body><div>Plain body text</div></body></html>"))
	}))
	defer srv.Close()

	res, err := newTestClient(10000).Scrape(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Scrape: %v", err)
	}
	if res.Title != noTitle {
		t.Errorf("expected default title, got %q", res.Title)
	}
	if res.Content != "Plain body text" {
		t.Errorf("unexpected content %q", res.Content)
	}
}

func TestScrapeEmptyPageHasNoContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><head><title>Empty</title></head><body><nav>Menu</nav><script>x()</script></body></html>"))
	}))
	defer srv.Close()

	_, err := newTestClient(10000).Scrape(context.Background(), srv.URL)
	if !errors.Is(err, ErrNoContent) {
		t.Fatalf("expected ErrNoContent, got %v", err)
	}
}

func TestScrapeErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	if _, err := newTestClient(10000).Scrape(context.Background(), srv.URL); err == nil {
		t.Fatal("expected an error for a 404 page")
	}
}

func TestCheckReachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("expected HEAD, got %s", r.Method)
		}
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestClient(10000)
	if !c.CheckReachable(context.Background(), srv.URL+"/") {
		t.Error("expected reachable")
	}
	if c.CheckReachable(context.Background(), srv.URL+"/missing") {
		t.Error("expected unreachable for 404")
	}
	if c.CheckReachable(context.Background(), "http://127.0.0.1:1/") {
		t.Error("expected unreachable for refused connection")
	}
}
