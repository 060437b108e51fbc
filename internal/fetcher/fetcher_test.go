package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Suggestic/amanda-scrapping/internal/config"
	"github.com/Suggestic/amanda-scrapping/internal/observability"
	"github.com/Suggestic/amanda-scrapping/internal/session"
)

func testConfig(baseURL string) *config.Config {
	return &config.Config{
		Site: config.Site{
			BaseURL:   baseURL,
			UserAgent: "amanda-test/1.0",
		},
		Shield: config.ShieldConfig{
			Username: "shield",
			Password: "pw",
		},
		HTTP: config.HTTPConfig{
			ConnectTimeoutMS: 1000,
			TotalTimeoutMS:   5000,
			MaxRetries:       2,
			BackoffMinMS:     10,
			BackoffMaxMS:     50,
			JitterPct:        20,
		},
		RateLimit: config.RateLimitConfig{
			MaxConcurrentPerHost: 2,
			RPM:                  1000,
		},
		RobotsCacheTTLHours: 1,
	}
}

func TestFetchSendsAuthHeaders(t *testing.T) {
	var gotAuth, gotCookie, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		gotAuth = r.Header.Get("Authorization")
		gotCookie = r.Header.Get("Cookie")
		gotUA = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	f := NewFetcher(cfg, observability.NewNopLogger())

	sess := &session.Session{
		Header:    "SSESS1=abc; has_js=1",
		UserAgent: "amanda-session/1.0",
		ExpiresAt: time.Now().Add(time.Hour),
	}
	resp, err := f.Fetch(context.Background(), srv.URL+"/page", sess)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
	// "shield:pw" base64
	if gotAuth != "Basic c2hpZWxkOnB3" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotCookie != "SSESS1=abc; has_js=1" {
		t.Errorf("Cookie = %q", gotCookie)
	}
	if gotUA != "amanda-session/1.0" {
		t.Errorf("User-Agent = %q, session UA must be pinned", gotUA)
	}
}

func TestFetchRetriesOn5xx(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("recovered"))
	}))
	defer srv.Close()

	f := NewFetcher(testConfig(srv.URL), observability.NewNopLogger())

	resp, err := f.Fetch(context.Background(), srv.URL+"/page", nil)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d after retries", resp.StatusCode)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
}

func TestFetchDoesNotRetryAuthFailures(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	f := NewFetcher(testConfig(srv.URL), observability.NewNopLogger())

	resp, err := f.Fetch(context.Background(), srv.URL+"/page", nil)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("401 must not be retried, got %d attempts", calls)
	}
}

func TestFetchHonorsRobots(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			_, _ = w.Write([]byte("User-agent: *\nDisallow: /private/\n"))
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := NewFetcher(testConfig(srv.URL), observability.NewNopLogger())

	if _, err := f.Fetch(context.Background(), srv.URL+"/private/page", nil); err == nil {
		t.Error("disallowed path should fail")
	}
	if _, err := f.Fetch(context.Background(), srv.URL+"/public", nil); err != nil {
		t.Errorf("allowed path failed: %v", err)
	}
}

func TestBackoffCalculation(t *testing.T) {
	f := NewFetcher(testConfig("https://example.org"), observability.NewNopLogger())

	for attempt := 1; attempt <= 5; attempt++ {
		backoff := f.calculateBackoff(attempt)
		if backoff < f.cfg.GetBackoffMin() || backoff > f.cfg.GetBackoffMax()*2 {
			t.Errorf("backoff out of expected range: %v", backoff)
		}
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(2, 1000)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := rl.Wait(ctx, "example.org"); err != nil {
			t.Fatalf("rate limiter error: %v", err)
		}
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	rl2 := NewRateLimiter(2, 1)
	_ = rl2.Wait(ctx, "example.org")
	if err := rl2.Wait(cancelled, "example.org"); err == nil {
		t.Error("cancelled context should abort the RPM wait")
	}
}

func TestParseDisallowRules(t *testing.T) {
	content := `# comment
User-agent: GoogleBot
Disallow: /google-only/

User-agent: *
Disallow: /admin/
Disallow: /user/login
Allow: /admin/public
`
	rules := parseDisallowRules(content)
	if len(rules) != 2 {
		t.Fatalf("expected 2 wildcard rules, got %v", rules)
	}
	if !isAllowedByRules(rules, "https://example.org/conteudos") {
		t.Error("unrelated path should be allowed")
	}
	if isAllowedByRules(rules, "https://example.org/admin/settings") {
		t.Error("disallowed prefix should be blocked")
	}
}
