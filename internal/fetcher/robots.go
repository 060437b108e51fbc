package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// RobotsCache caches per-host robots.txt rules. Fetch failures are
// treated as allow-all, mirroring what browsers do.
type RobotsCache struct {
	cache map[string]*robotsEntry
	ttl   time.Duration
	mu    sync.RWMutex
}

type robotsEntry struct {
	disallow  []string
	expiresAt time.Time
}

func NewRobotsCache(ttl time.Duration) *RobotsCache {
	return &RobotsCache{
		cache: make(map[string]*robotsEntry),
		ttl:   ttl,
	}
}

func (rc *RobotsCache) IsAllowed(ctx context.Context, host, urlStr string, client *http.Client) (bool, error) {
	rc.mu.RLock()
	cached, exists := rc.cache[host]
	rc.mu.RUnlock()

	if exists && time.Now().Before(cached.expiresAt) {
		return isAllowedByRules(cached.disallow, urlStr), nil
	}

	robotsURL := fmt.Sprintf("https://%s/robots.txt", host)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return true, nil
	}

	resp, err := client.Do(req)
	if err != nil {
		// Network error: assume allowed, the real fetch will surface it
		return true, nil
	}
	defer func() { _ = resp.Body.Close() }()

	var rules []string
	if resp.StatusCode == http.StatusOK {
		body, err := io.ReadAll(io.LimitReader(resp.Body, 512*1024))
		if err == nil {
			rules = parseDisallowRules(string(body))
		}
	}

	rc.mu.Lock()
	rc.cache[host] = &robotsEntry{
		disallow:  rules,
		expiresAt: time.Now().Add(rc.ttl),
	}
	rc.mu.Unlock()

	return isAllowedByRules(rules, urlStr), nil
}

// parseDisallowRules extracts the Disallow prefixes that apply to the
// wildcard user-agent group.
func parseDisallowRules(content string) []string {
	var rules []string
	applies := false

	for _, line := range strings.Split(content, "\n") {
		if idx := strings.Index(line, "#"); idx >= 0 {
			line = line[:idx]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		switch key {
		case "user-agent":
			applies = value == "*"
		case "disallow":
			if applies && value != "" {
				rules = append(rules, value)
			}
		}
	}

	return rules
}

func isAllowedByRules(disallow []string, urlStr string) bool {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return true
	}
	path := parsed.Path
	if path == "" {
		path = "/"
	}

	for _, prefix := range disallow {
		if strings.HasPrefix(path, prefix) {
			return false
		}
	}
	return true
}
