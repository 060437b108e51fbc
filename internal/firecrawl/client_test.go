package firecrawl

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Suggestic/amanda-scrapping/internal/config"
	"github.com/Suggestic/amanda-scrapping/internal/observability"
	"github.com/Suggestic/amanda-scrapping/internal/session"
)

func testClient(apiURL string) *Client {
	cfg := &config.Config{
		Site: config.Site{
			BaseURL:   "https://example.com",
			UserAgent: "amanda-test/1.0",
		},
		Shield: config.ShieldConfig{Username: "shield", Password: "pw"},
		Firecrawl: config.FirecrawlConfig{
			APIKey:            "fc-test-key",
			APIURL:            apiURL,
			ZeroDataRetention: true,
			RequestTimeoutS:   5,
		},
	}
	return NewClient(cfg, observability.NewNopLogger())
}

func testSession() *session.Session {
	return &session.Session{
		Header:    "SSESS1=abc; has_js=1",
		UserAgent: "pinned-agent/2.0",
	}
}

func TestScrapeForwardsSiteHeaders(t *testing.T) {
	var got scrapeRequest
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/scrape", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(scrapeResponse{
			Success: true,
			Data: ScrapeResult{
				Markdown: "# Page",
				Links:    []string{"https://example.com/a"},
				Metadata: PageMetadata{StatusCode: 200, SourceURL: "https://example.com"},
			},
		})
	}))
	defer srv.Close()

	client := testClient(srv.URL)
	result, err := client.Scrape(context.Background(), "https://example.com/page", testSession())
	require.NoError(t, err)

	require.Equal(t, "Bearer fc-test-key", gotAuth)
	require.Equal(t, "https://example.com/page", got.URL)
	require.ElementsMatch(t, []string{"markdown", "links"}, got.Formats)
	require.True(t, got.ZeroDataRetention)

	require.Equal(t, "Basic c2hpZWxkOnB3", got.Headers["Authorization"])
	require.Equal(t, "SSESS1=abc; has_js=1", got.Headers["Cookie"])
	require.Equal(t, "pinned-agent/2.0", got.Headers["User-Agent"])

	require.Equal(t, "# Page", result.Markdown)
	require.Equal(t, 200, result.Metadata.StatusCode)
}

func TestScrapeAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_ = json.NewEncoder(w).Encode(scrapeResponse{Success: false, Error: "insufficient credits"})
	}))
	defer srv.Close()

	client := testClient(srv.URL)
	_, err := client.Scrape(context.Background(), "https://example.com/page", testSession())
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusPaymentRequired, apiErr.StatusCode)
	require.Contains(t, apiErr.Message, "credits")
}

func TestMap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/map", r.URL.Path)
		var req mapRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, 500, req.Limit)
		_ = json.NewEncoder(w).Encode(mapResponse{
			Success: true,
			Links:   []string{"https://example.com/", "https://example.com/reports"},
		})
	}))
	defer srv.Close()

	client := testClient(srv.URL)
	links, err := client.Map(context.Background(), "https://example.com", testSession(), 500)
	require.NoError(t, err)
	require.Len(t, links, 2)
}

func TestWaitForCrawl(t *testing.T) {
	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/crawl":
			_ = json.NewEncoder(w).Encode(crawlStartResponse{Success: true, ID: "job-1"})
		case r.Method == http.MethodGet && r.URL.Path == "/v1/crawl/job-1":
			status := CrawlStatus{Status: "scraping", Total: 2, Completed: 1}
			if polls.Add(1) >= 2 {
				status = CrawlStatus{
					Status:    "completed",
					Total:     2,
					Completed: 2,
					Data:      []ScrapeResult{{Markdown: "a"}, {Markdown: "b"}},
				}
			}
			_ = json.NewEncoder(w).Encode(status)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	client := testClient(srv.URL)
	id, err := client.StartCrawl(context.Background(), "https://example.com", testSession(), 10, 3)
	require.NoError(t, err)
	require.Equal(t, "job-1", id)

	status, err := client.WaitForCrawl(context.Background(), id, 10*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, "completed", status.Status)
	require.Len(t, status.Data, 2)
}

func TestWaitForCrawlFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(CrawlStatus{Status: "failed", Error: "blocked"})
	}))
	defer srv.Close()

	client := testClient(srv.URL)
	_, err := client.WaitForCrawl(context.Background(), "job-2", 10*time.Millisecond)
	require.Error(t, err)
	require.Contains(t, err.Error(), "blocked")
}

func TestSiteHeadersWithoutSession(t *testing.T) {
	client := testClient("http://127.0.0.1:0")
	headers := client.siteHeaders(nil)
	require.Equal(t, "Basic c2hpZWxkOnB3", headers["Authorization"])
	require.Equal(t, "amanda-test/1.0", headers["User-Agent"])
	require.NotContains(t, headers, "Cookie")
}
