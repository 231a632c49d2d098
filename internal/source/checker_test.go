package source

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/veracity/internal/model"
)

func init() {
	sleepFunc = func(context.Context, time.Duration) {}
}

func testConfig() model.SourceConfig {
	cfg := model.DefaultConfig().Sources
	cfg.Timeout = 5 * time.Second
	cfg.RespectRobots = false
	return cfg
}

func TestChecker_Inspect_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("expected HEAD request, got %s", r.Method)
		}
		w.Header().Set("Last-Modified", "Mon, 02 Jan 2023 15:04:05 GMT")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	r := NewChecker(testConfig(), nil).Inspect(context.Background(), server.URL)

	if !r.Reachable || r.Dead {
		t.Errorf("expected reachable live source, got %+v", r)
	}
	if r.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", r.StatusCode)
	}
	if r.LastModified == nil {
		t.Error("expected Last-Modified to be parsed")
	}
}

func TestChecker_Inspect_NotFound(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	r := NewChecker(testConfig(), nil).Inspect(context.Background(), server.URL)

	if r.Reachable {
		t.Error("expected 404 not to be reachable")
	}
	if !r.Dead {
		t.Error("expected 404 to be dead")
	}
}

func TestChecker_Inspect_Redirect(t *testing.T) {
	final := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer final.Close()
	redirect := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, final.URL, http.StatusMovedPermanently)
	}))
	defer redirect.Close()

	r := NewChecker(testConfig(), nil).Inspect(context.Background(), redirect.URL)

	if !r.Reachable {
		t.Error("expected redirected source to be reachable")
	}
	if r.RedirectURL != final.URL {
		t.Errorf("expected redirect to %s, got %q", final.URL, r.RedirectURL)
	}
}

func TestChecker_Inspect_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	r := NewChecker(testConfig(), nil).Inspect(context.Background(), server.URL)

	if !r.Reachable {
		t.Errorf("expected success after retries, got %+v", r)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}
}

func TestChecker_Inspect_PermanentFailureNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	r := NewChecker(testConfig(), nil).Inspect(context.Background(), server.URL)

	if r.Reachable {
		t.Error("expected 403 not to be reachable")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("expected 1 attempt, got %d", got)
	}
}

func TestChecker_Inspect_RespectsRobots(t *testing.T) {
	var heads atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			_, _ = fmt.Fprint(w, "User-agent: Veracity\nDisallow: /private/\n")
			return
		}
		heads.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.RespectRobots = true
	cfg.UserAgent = "Veracity/0.1 (+https://example.com)"
	c := NewChecker(cfg, nil)

	blocked := c.Inspect(context.Background(), server.URL+"/private/report")
	if !blocked.Disallowed || blocked.Reachable {
		t.Errorf("expected disallowed path, got %+v", blocked)
	}

	open := c.Inspect(context.Background(), server.URL+"/public/report")
	if !open.Reachable || open.Disallowed {
		t.Errorf("expected allowed path, got %+v", open)
	}
	if got := heads.Load(); got != 1 {
		t.Errorf("expected only the allowed path to be requested, got %d", got)
	}
}

func TestChecker_Inspect_NotHTTP(t *testing.T) {
	r := NewChecker(testConfig(), nil).Inspect(context.Background(), "ftp://example.com/file")
	if r.Reachable || !r.Dead || r.Error == "" {
		t.Errorf("expected non-http URL to fail, got %+v", r)
	}
}

func TestChecker_Check_ReportsPrimary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.DomainMap = map[string]string{"127.0.0.1": "primary"}

	sc := NewChecker(cfg, nil).Check(context.Background(), server.URL)

	want := model.SourceCheck{SourceURL: server.URL, Reachable: true, Primary: true}
	if sc != want {
		t.Errorf("Check() = %+v, want %+v", sc, want)
	}
}

func TestChecker_CheckMany_Concurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.Workers = 2
	urls := make([]string, 8)
	for i := range urls {
		urls[i] = fmt.Sprintf("%s/doc/%d", server.URL, i)
	}

	results := NewChecker(cfg, nil).CheckMany(context.Background(), urls)

	if len(results) != len(urls) {
		t.Fatalf("expected %d results, got %d", len(urls), len(results))
	}
	for i, r := range results {
		if r.URL != urls[i] {
			t.Errorf("result %d out of order: %s", i, r.URL)
		}
		if !r.Reachable {
			t.Errorf("expected %s reachable", r.URL)
		}
	}
	if p := peak.Load(); p > 2 {
		t.Errorf("expected at most 2 concurrent requests, saw %d", p)
	}
}

func TestChecker_CheckMany_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := testConfig()
	cfg.Workers = 1
	results := NewChecker(cfg, nil).CheckMany(ctx, []string{"https://doi.org/10.1/a", "https://doi.org/10.1/b"})

	for _, r := range results {
		if r.Reachable {
			t.Errorf("expected cancelled check to be unreachable, got %+v", r)
		}
		if r.Tier != model.AuthorityPrimary {
			t.Errorf("expected tier to be classified even when cancelled, got %v", r.Tier)
		}
	}
}

func TestProxyFunc(t *testing.T) {
	fn := proxyFunc("http://proxy:3128", "http://secure-proxy:3128", "internal.example, localhost")

	req := httptest.NewRequest(http.MethodGet, "https://doi.org/x", nil)
	u, err := fn(req)
	if err != nil || u == nil || u.Host != "secure-proxy:3128" {
		t.Errorf("https request: got %v, %v", u, err)
	}

	req = httptest.NewRequest(http.MethodGet, "http://doi.org/x", nil)
	u, err = fn(req)
	if err != nil || u == nil || u.Host != "proxy:3128" {
		t.Errorf("http request: got %v, %v", u, err)
	}

	req = httptest.NewRequest(http.MethodGet, "http://wiki.internal.example/x", nil)
	u, err = fn(req)
	if err != nil || u != nil {
		t.Errorf("bypassed host: got %v, %v", u, err)
	}
}
