package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ppiankov/veracity/internal/logging"
	"github.com/ppiankov/veracity/internal/model"
)

const maxAttempts = 3

// sleepFunc waits between retries; tests replace it
var sleepFunc = func(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Result is the full outcome of checking one URL
type Result struct {
	URL          string              `json:"url"`
	StatusCode   int                 `json:"status_code,omitempty"`
	RedirectURL  string              `json:"redirect_url,omitempty"`
	Tier         model.AuthorityTier `json:"-"`
	TierName     string              `json:"tier"`
	Reachable    bool                `json:"reachable"`
	Dead         bool                `json:"dead,omitempty"`
	Disallowed   bool                `json:"disallowed,omitempty"`
	LastModified *time.Time          `json:"last_modified,omitempty"`
	Error        string              `json:"error,omitempty"`
}

// SourceCheck reduces the result to the evaluation stored on evidence
func (r Result) SourceCheck() model.SourceCheck {
	return model.SourceCheck{
		SourceURL: r.URL,
		Reachable: r.Reachable,
		Primary:   r.Tier == model.AuthorityPrimary,
	}
}

// Checker verifies cited sources over HTTP
type Checker struct {
	client    *http.Client
	authority *Authority
	robots    *robotsChecker
	userAgent string
	workers   int
	logger    *slog.Logger
}

// NewChecker creates a checker from the sources configuration
func NewChecker(cfg model.SourceConfig, logger *slog.Logger) *Checker {
	if logger == nil {
		logger = logging.New("source")
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 8
	}
	client := &http.Client{
		Timeout: cfg.Timeout,
		Transport: &http.Transport{
			Proxy: proxyFunc(cfg.HTTPProxy, cfg.HTTPSProxy, cfg.NoProxy),
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 3 {
				return errors.New("stopped after 3 redirects")
			}
			return nil
		},
	}
	c := &Checker{
		client:    client,
		authority: NewAuthority(cfg),
		userAgent: cfg.UserAgent,
		workers:   workers,
		logger:    logger,
	}
	if cfg.RespectRobots {
		c.robots = newRobotsChecker(client, cfg.UserAgent)
	}
	return c
}

// IsURL reports whether s is an absolute http(s) URL worth checking
func IsURL(s string) bool {
	u, err := url.Parse(strings.TrimSpace(s))
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Check verifies a single source and returns the evaluation recorded on evidence
func (c *Checker) Check(ctx context.Context, rawURL string) model.SourceCheck {
	return c.Inspect(ctx, rawURL).SourceCheck()
}

// Inspect verifies a single source, retrying transient failures with exponential backoff
func (c *Checker) Inspect(ctx context.Context, rawURL string) Result {
	var r Result
	for attempt := 0; attempt < maxAttempts; attempt++ {
		r = c.head(ctx, rawURL)
		if !retryable(r) || ctx.Err() != nil {
			break
		}
		if attempt < maxAttempts-1 {
			sleepFunc(ctx, time.Duration(1<<attempt)*time.Second)
		}
	}
	c.logger.Debug("source checked",
		"url", rawURL,
		"tier", r.TierName,
		"reachable", r.Reachable,
		"status", r.StatusCode,
	)
	return r
}

// CheckMany inspects urls concurrently, at most Workers at a time. Results keep input order.
func (c *Checker) CheckMany(ctx context.Context, urls []string) []Result {
	results := make([]Result, len(urls))
	sem := make(chan struct{}, c.workers)
	var wg sync.WaitGroup

	for i, u := range urls {
		wg.Add(1)
		go func() {
			defer wg.Done()
			select {
			case <-ctx.Done():
				results[i] = c.classified(u)
				results[i].Error = "context cancelled"
				return
			case sem <- struct{}{}:
			}
			defer func() { <-sem }()
			results[i] = c.Inspect(ctx, u)
		}()
	}
	wg.Wait()
	return results
}

func (c *Checker) classified(rawURL string) Result {
	tier := c.authority.Classify(rawURL)
	return Result{URL: rawURL, Tier: tier, TierName: tier.String()}
}

func (c *Checker) head(ctx context.Context, rawURL string) Result {
	r := c.classified(rawURL)

	u, err := url.Parse(rawURL)
	if err != nil || !IsURL(rawURL) {
		r.Error = "not an http(s) URL"
		r.Dead = true
		return r
	}
	if c.robots != nil && !c.robots.allowed(ctx, u) {
		r.Disallowed = true
		r.Error = "disallowed by robots.txt"
		return r
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		r.Error = fmt.Sprintf("create request: %v", err)
		r.Dead = true
		return r
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		r.Error = fmt.Sprintf("request failed: %v", err)
		return r
	}
	defer func() { _ = resp.Body.Close() }()

	r.StatusCode = resp.StatusCode
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 400:
		r.Reachable = true
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		r.Dead = true
	}
	if final := resp.Request.URL.String(); final != rawURL {
		r.RedirectURL = final
	}
	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		if t, err := http.ParseTime(lm); err == nil {
			r.LastModified = &t
		}
	}
	return r
}

// retryable reports transient failures: 5xx, 429 and network timeouts or resets
func retryable(r Result) bool {
	if r.StatusCode == http.StatusTooManyRequests || (r.StatusCode >= 500 && r.StatusCode < 600) {
		return true
	}
	if r.Error == "" {
		return false
	}
	msg := strings.ToLower(r.Error)
	return strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset")
}

// proxyFunc routes requests through the configured proxies, falling back to the environment
func proxyFunc(httpProxy, httpsProxy, noProxy string) func(*http.Request) (*url.URL, error) {
	if httpProxy == "" && httpsProxy == "" {
		return http.ProxyFromEnvironment
	}
	bypass := strings.FieldsFunc(noProxy, func(r rune) bool { return r == ',' || r == ' ' })
	return func(req *http.Request) (*url.URL, error) {
		host := req.URL.Hostname()
		for _, b := range bypass {
			b = strings.TrimPrefix(b, ".")
			if host == b || strings.HasSuffix(host, "."+b) {
				return nil, nil
			}
		}
		if req.URL.Scheme == "https" && httpsProxy != "" {
			return url.Parse(httpsProxy)
		}
		if httpProxy != "" {
			return url.Parse(httpProxy)
		}
		return http.ProxyFromEnvironment(req)
	}
}
