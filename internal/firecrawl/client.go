// Package firecrawl is a thin client for the Firecrawl v1 API. Every
// request forwards the shield Authorization header, the pinned
// User-Agent and the session Cookie header to the target site, so the
// hosted scraper sees the same credentials a direct fetch would send.
package firecrawl

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/Suggestic/amanda-scrapping/internal/config"
	"github.com/Suggestic/amanda-scrapping/internal/observability"
	"github.com/Suggestic/amanda-scrapping/internal/session"
)

const defaultAPIURL = "https://api.firecrawl.dev"

type Client struct {
	http   *resty.Client
	cfg    *config.Config
	logger *observability.Logger
}

func NewClient(cfg *config.Config, logger *observability.Logger) *Client {
	apiURL := cfg.Firecrawl.APIURL
	if apiURL == "" {
		apiURL = defaultAPIURL
	}

	client := resty.New()
	client.SetBaseURL(apiURL)
	client.SetAuthToken(cfg.Firecrawl.APIKey)
	client.SetTimeout(cfg.GetFirecrawlTimeout())
	client.SetHeader("content-type", "application/json")

	return &Client{
		http:   client,
		cfg:    cfg,
		logger: logger,
	}
}

// APIError is a non-success answer from the Firecrawl API itself, as
// opposed to a transport failure reaching it.
type APIError struct {
	Endpoint   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("firecrawl %s: status %d: %s", e.Endpoint, e.StatusCode, e.Message)
}

// siteHeaders are forwarded by Firecrawl to the target site.
func (c *Client) siteHeaders(sess *session.Session) map[string]string {
	headers := map[string]string{
		"Authorization": c.cfg.BasicAuthHeader(),
		"User-Agent":    c.cfg.Site.UserAgent,
	}
	if sess != nil {
		headers["Cookie"] = sess.Header
		if sess.UserAgent != "" {
			headers["User-Agent"] = sess.UserAgent
		}
	}
	return headers
}

type scrapeRequest struct {
	URL               string            `json:"url"`
	Formats           []string          `json:"formats"`
	Headers           map[string]string `json:"headers"`
	ZeroDataRetention bool              `json:"zeroDataRetention,omitempty"`
}

// PageMetadata is the metadata block the API attaches to scraped pages.
type PageMetadata struct {
	Title      string `json:"title"`
	SourceURL  string `json:"sourceURL"`
	StatusCode int    `json:"statusCode"`
}

// ScrapeResult is the useful part of a scrape response.
type ScrapeResult struct {
	Markdown string       `json:"markdown"`
	Links    []string     `json:"links"`
	Metadata PageMetadata `json:"metadata"`
}

type scrapeResponse struct {
	Success bool         `json:"success"`
	Error   string       `json:"error"`
	Data    ScrapeResult `json:"data"`
}

// Scrape fetches a single page through the API, returning its
// markdown rendering and outbound links.
func (c *Client) Scrape(ctx context.Context, pageURL string, sess *session.Session) (*ScrapeResult, error) {
	body := scrapeRequest{
		URL:               pageURL,
		Formats:           []string{"markdown", "links"},
		Headers:           c.siteHeaders(sess),
		ZeroDataRetention: c.cfg.Firecrawl.ZeroDataRetention,
	}

	var out scrapeResponse
	res, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		SetError(&out).
		Post("/v1/scrape")
	if err != nil {
		return nil, fmt.Errorf("scrape request failed: %w", err)
	}
	if res.IsError() || !out.Success {
		return nil, &APIError{Endpoint: "/v1/scrape", StatusCode: res.StatusCode(), Message: out.Error}
	}

	c.logger.Debug("Scraped page",
		"url", pageURL,
		"status", out.Data.Metadata.StatusCode,
		"links", len(out.Data.Links),
		"bytes", len(out.Data.Markdown),
	)

	return &out.Data, nil
}

type mapRequest struct {
	URL               string            `json:"url"`
	Headers           map[string]string `json:"headers"`
	IncludeSubdomains bool              `json:"includeSubdomains"`
	Limit             int               `json:"limit,omitempty"`
}

type mapResponse struct {
	Success bool     `json:"success"`
	Error   string   `json:"error"`
	Links   []string `json:"links"`
}

// Map asks the API for the site's link map.
func (c *Client) Map(ctx context.Context, siteURL string, sess *session.Session, limit int) ([]string, error) {
	body := mapRequest{
		URL:     siteURL,
		Headers: c.siteHeaders(sess),
		Limit:   limit,
	}

	var out mapResponse
	res, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		SetError(&out).
		Post("/v1/map")
	if err != nil {
		return nil, fmt.Errorf("map request failed: %w", err)
	}
	if res.IsError() || !out.Success {
		return nil, &APIError{Endpoint: "/v1/map", StatusCode: res.StatusCode(), Message: out.Error}
	}

	return out.Links, nil
}

type crawlRequest struct {
	URL          string        `json:"url"`
	Limit        int           `json:"limit,omitempty"`
	MaxDepth     int           `json:"maxDepth,omitempty"`
	ScrapeOption scrapeOptions `json:"scrapeOptions"`
}

type scrapeOptions struct {
	Formats []string          `json:"formats"`
	Headers map[string]string `json:"headers"`
}

type crawlStartResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	ID      string `json:"id"`
}

// CrawlStatus is the state of an asynchronous crawl job.
type CrawlStatus struct {
	Status    string         `json:"status"`
	Total     int            `json:"total"`
	Completed int            `json:"completed"`
	Data      []ScrapeResult `json:"data"`
	Error     string         `json:"error"`
}

// StartCrawl launches an asynchronous crawl job and returns its id.
func (c *Client) StartCrawl(ctx context.Context, siteURL string, sess *session.Session, limit, maxDepth int) (string, error) {
	body := crawlRequest{
		URL:      siteURL,
		Limit:    limit,
		MaxDepth: maxDepth,
		ScrapeOption: scrapeOptions{
			Formats: []string{"markdown", "links"},
			Headers: c.siteHeaders(sess),
		},
	}

	var out crawlStartResponse
	res, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		SetError(&out).
		Post("/v1/crawl")
	if err != nil {
		return "", fmt.Errorf("crawl request failed: %w", err)
	}
	if res.IsError() || !out.Success {
		return "", &APIError{Endpoint: "/v1/crawl", StatusCode: res.StatusCode(), Message: out.Error}
	}

	c.logger.Info("Crawl started", "id", out.ID, "url", siteURL)
	return out.ID, nil
}

// GetCrawlStatus fetches the current state of a crawl job.
func (c *Client) GetCrawlStatus(ctx context.Context, id string) (*CrawlStatus, error) {
	var out CrawlStatus
	res, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		SetError(&out).
		Get("/v1/crawl/" + id)
	if err != nil {
		return nil, fmt.Errorf("crawl status request failed: %w", err)
	}
	if res.IsError() {
		return nil, &APIError{Endpoint: "/v1/crawl/{id}", StatusCode: res.StatusCode(), Message: out.Error}
	}
	return &out, nil
}

// WaitForCrawl polls a crawl job until it completes or fails.
func (c *Client) WaitForCrawl(ctx context.Context, id string, pollInterval time.Duration) (*CrawlStatus, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		status, err := c.GetCrawlStatus(ctx, id)
		if err != nil {
			return nil, err
		}

		switch status.Status {
		case "completed":
			return status, nil
		case "failed", "cancelled":
			return nil, fmt.Errorf("crawl %s %s: %s", id, status.Status, status.Error)
		}

		c.logger.Debug("Crawl in progress",
			"id", id,
			"completed", status.Completed,
			"total", status.Total,
		)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
