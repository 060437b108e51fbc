package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/Suggestic/amanda-scrapping/internal/checksum"
	"github.com/Suggestic/amanda-scrapping/internal/config"
	"github.com/Suggestic/amanda-scrapping/internal/fetcher"
	"github.com/Suggestic/amanda-scrapping/internal/firecrawl"
	"github.com/Suggestic/amanda-scrapping/internal/normalize"
	"github.com/Suggestic/amanda-scrapping/internal/observability"
	"github.com/Suggestic/amanda-scrapping/internal/scraper"
	"github.com/Suggestic/amanda-scrapping/internal/session"
	"github.com/Suggestic/amanda-scrapping/internal/storage"
)

// ErrSessionExpired aborts a crawl when a fetched page turns out to
// be the login page. The orchestrator re-logs in and resumes.
var ErrSessionExpired = errors.New("session expired during discovery")

// MapsiteReport summarizes a discovery run.
type MapsiteReport struct {
	StartURL   string         `json:"start_url"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Visited    int            `json:"visited"`
	Stored     int            `json:"stored"`
	Updated    int            `json:"updated"`
	ByPriority map[string]int `json:"by_priority"`
	Files      []string       `json:"files"`
	Skipped    int            `json:"skipped"`
	StopReason string         `json:"stop_reason"`
}

type Mapper struct {
	cfg        *config.Config
	fetcher    *fetcher.Fetcher
	fc         *firecrawl.Client
	classifier *Classifier
	detector   *scraper.LoginPageDetector
	normalizer *normalize.Normalizer
	repo       storage.Repository
	logger     *observability.Logger
}

// NewMapper builds a mapper. A nil firecrawl client means pages are
// fetched directly; with a client, the frontier is seeded through the
// hosted link map and pages come back as markdown via hosted scrapes.
func NewMapper(cfg *config.Config, f *fetcher.Fetcher, fc *firecrawl.Client, repo storage.Repository, logger *observability.Logger) (*Mapper, error) {
	classifier, err := NewClassifier(cfg.Site.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	return &Mapper{
		cfg:        cfg,
		fetcher:    f,
		fc:         fc,
		classifier: classifier,
		detector:   scraper.NewLoginPageDetector(),
		normalizer: normalize.NewNormalizer(cfg),
		repo:       repo,
		logger:     logger,
	}, nil
}

type queueItem struct {
	url   string
	depth int
}

// Run crawls breadth first from the base URL within the configured
// depth and page budgets. Every visited HTML page is normalized,
// checksummed and upserted. File URLs are recorded in the report but
// not downloaded.
func (m *Mapper) Run(ctx context.Context, sess *session.Session) (*MapsiteReport, error) {
	report := &MapsiteReport{
		StartURL:   m.cfg.Site.BaseURL,
		StartedAt:  time.Now().UTC(),
		ByPriority: make(map[string]int),
		StopReason: "exhausted",
	}

	start := normalize.NormalizeURL(m.cfg.Site.BaseURL)
	queue := []queueItem{{url: start, depth: 0}}
	seen := map[string]bool{start: true}

	if m.fc != nil {
		for _, link := range m.seedFrontier(ctx, sess) {
			link = normalize.NormalizeURL(link)
			if seen[link] {
				continue
			}
			seen[link] = true
			queue = append(queue, queueItem{url: link, depth: 1})
		}
	}

	for len(queue) > 0 {
		if report.Visited >= m.cfg.Discovery.MaxPages {
			report.StopReason = "max_pages"
			break
		}

		item := queue[0]
		queue = queue[1:]

		select {
		case <-ctx.Done():
			report.StopReason = "cancelled"
			report.FinishedAt = time.Now().UTC()
			return report, ctx.Err()
		default:
		}

		priority := m.classifier.Classify(item.url)
		if item.depth > 0 && priority == PrioritySkip {
			report.Skipped++
			continue
		}
		if priority == PriorityFile {
			report.ByPriority[priority.String()]++
			report.Files = append(report.Files, item.url)
			continue
		}

		var links []string
		var err error
		if m.fc != nil {
			links, err = m.visitHosted(ctx, item, priority, sess, report)
		} else {
			links, err = m.visit(ctx, item, priority, sess, report)
		}
		if err != nil {
			if errors.Is(err, ErrSessionExpired) {
				report.StopReason = "session_expired"
				report.FinishedAt = time.Now().UTC()
				return report, err
			}
			m.logger.Warn("Skipping page after fetch failure", "url", item.url, "error", err.Error())
			continue
		}

		if item.depth < m.cfg.Discovery.MaxDepth {
			for _, link := range links {
				link = normalize.NormalizeURL(link)
				if seen[link] {
					continue
				}
				seen[link] = true
				queue = append(queue, queueItem{url: link, depth: item.depth + 1})
			}
		}

		if delay := m.cfg.GetDiscoveryDelay(); delay > 0 && len(queue) > 0 {
			select {
			case <-ctx.Done():
				report.StopReason = "cancelled"
				report.FinishedAt = time.Now().UTC()
				return report, ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	report.FinishedAt = time.Now().UTC()

	if m.cfg.Discovery.OutputPath != "" {
		if err := m.writeReport(report); err != nil {
			m.logger.Error("Failed to write mapsite report", "error", err.Error())
		}
	}

	m.logger.Info("Discovery finished",
		"visited", report.Visited,
		"stored", report.Stored,
		"updated", report.Updated,
		"files", len(report.Files),
		"reason", report.StopReason,
	)

	return report, nil
}

const defaultCrawlPoll = 5 * time.Second

// RunManaged delegates the whole crawl to the hosted service as a
// single asynchronous job and stores every page it returns. Depth is
// not reported per page, so records carry depth zero.
func (m *Mapper) RunManaged(ctx context.Context, sess *session.Session) (*MapsiteReport, error) {
	if m.fc == nil {
		return nil, errors.New("managed crawl requires a firecrawl API key")
	}

	report := &MapsiteReport{
		StartURL:   m.cfg.Site.BaseURL,
		StartedAt:  time.Now().UTC(),
		ByPriority: make(map[string]int),
		StopReason: "completed",
	}

	id, err := m.fc.StartCrawl(ctx, m.cfg.Site.BaseURL, sess, m.cfg.Discovery.MaxPages, m.cfg.Discovery.MaxDepth)
	if err != nil {
		return nil, err
	}

	poll := m.cfg.GetDiscoveryDelay()
	if poll <= 0 {
		poll = defaultCrawlPoll
	}
	status, err := m.fc.WaitForCrawl(ctx, id, poll)
	if err != nil {
		return nil, err
	}

	for _, result := range status.Data {
		pageURL := normalize.NormalizeURL(result.Metadata.SourceURL)
		if pageURL == "" {
			report.Skipped++
			continue
		}

		priority := m.classifier.Classify(pageURL)
		if priority == PrioritySkip {
			report.Skipped++
			continue
		}
		if priority == PriorityFile {
			report.ByPriority[priority.String()]++
			report.Files = append(report.Files, pageURL)
			continue
		}

		if m.detector.IsLoginText(result.Markdown) {
			report.StopReason = "session_expired"
			report.FinishedAt = time.Now().UTC()
			return report, ErrSessionExpired
		}

		report.Visited++
		report.ByPriority[priority.String()]++

		item := queueItem{url: pageURL, depth: 0}
		if err := m.storePage(ctx, item, priority, result.Metadata.Title, result.Markdown, report); err != nil {
			m.logger.Warn("Skipping page after store failure", "url", pageURL, "error", err.Error())
			continue
		}
	}

	report.FinishedAt = time.Now().UTC()

	if m.cfg.Discovery.OutputPath != "" {
		if err := m.writeReport(report); err != nil {
			m.logger.Error("Failed to write mapsite report", "error", err.Error())
		}
	}

	m.logger.Info("Managed crawl finished",
		"visited", report.Visited,
		"stored", report.Stored,
		"files", len(report.Files),
	)

	return report, nil
}

func (m *Mapper) visit(ctx context.Context, item queueItem, priority Priority, sess *session.Session, report *MapsiteReport) ([]string, error) {
	resp, err := m.fetcher.Fetch(ctx, item.url, sess)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	html := string(resp.Body)

	isLogin, err := m.detector.IsLoginPage(html)
	if err != nil {
		return nil, err
	}
	if isLogin {
		return nil, ErrSessionExpired
	}

	report.Visited++
	report.ByPriority[priority.String()]++

	content, err := m.normalizer.ParsePage(html)
	if err != nil {
		return nil, err
	}

	if err := m.storePage(ctx, item, priority, content.Title, content.Text, report); err != nil {
		return nil, err
	}

	base, err := url.Parse(item.url)
	if err != nil {
		return nil, err
	}
	return scraper.ExtractLinks(html, base)
}

// visitHosted fetches the page through the hosted scraper instead of
// directly. The markdown rendering stands in for normalized text and
// the API's link extraction replaces the local one.
func (m *Mapper) visitHosted(ctx context.Context, item queueItem, priority Priority, sess *session.Session, report *MapsiteReport) ([]string, error) {
	result, err := m.fc.Scrape(ctx, item.url, sess)
	if err != nil {
		return nil, err
	}
	if sc := result.Metadata.StatusCode; sc != 0 && sc != 200 {
		return nil, fmt.Errorf("status %d", sc)
	}
	if m.detector.IsLoginText(result.Markdown) {
		return nil, ErrSessionExpired
	}

	report.Visited++
	report.ByPriority[priority.String()]++

	if err := m.storePage(ctx, item, priority, result.Metadata.Title, result.Markdown, report); err != nil {
		return nil, err
	}

	return result.Links, nil
}

// seedFrontier asks the hosted link map for known URLs so the crawl
// does not depend on every page being reachable from the start page.
// Failures degrade to a plain breadth first crawl.
func (m *Mapper) seedFrontier(ctx context.Context, sess *session.Session) []string {
	links, err := m.fc.Map(ctx, m.cfg.Site.BaseURL, sess, m.cfg.Discovery.MaxPages)
	if err != nil {
		m.logger.Warn("Link map unavailable, crawling from the start page only", "error", err.Error())
		return nil
	}
	m.logger.Info("Seeded frontier from link map", "links", len(links))
	return links
}

func (m *Mapper) storePage(ctx context.Context, item queueItem, priority Priority, title, text string, report *MapsiteReport) error {
	capturedAt := time.Now().UTC()
	page := &storage.PageRecord{
		URL:        item.url,
		Title:      title,
		Text:       text,
		Preview:    m.normalizer.TruncatePreview(text),
		Category:   priority.String(),
		Depth:      item.depth,
		CheckSum:   checksum.Calculate(item.url, text, capturedAt),
		CapturedAt: capturedAt,
	}

	isNew, isUpdated, err := m.repo.UpsertPage(ctx, page)
	if err != nil {
		return fmt.Errorf("failed to store page: %w", err)
	}
	if isNew {
		report.Stored++
	}
	if isUpdated {
		report.Updated++
	}

	m.logger.Debug("Visited page",
		"url", item.url,
		"depth", item.depth,
		"priority", priority.String(),
		"new", isNew,
	)
	return nil
}

func (m *Mapper) writeReport(report *MapsiteReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(m.cfg.Discovery.OutputPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(m.cfg.Discovery.OutputPath, data, 0o644)
}
