package storage

import (
	"context"
	"time"
)

// PageRecord is a captured page ready for persistence.
type PageRecord struct {
	URL        string
	Title      string
	Text       string
	Preview    string
	Category   string
	Depth      int
	CheckSum   string
	CapturedAt time.Time
}

// Repository persists captured pages.
type Repository interface {
	// UpsertPage stores or refreshes a page, returns (isNew, isUpdated, error).
	UpsertPage(ctx context.Context, page *PageRecord) (isNew bool, isUpdated bool, err error)

	// ExistsByURL reports whether a page has been captured before.
	ExistsByURL(ctx context.Context, url string) (bool, error)

	// GetPage loads a captured page, nil when absent.
	GetPage(ctx context.Context, url string) (*PageRecord, error)

	// GetPageCount counts captured pages, optionally per category
	// (empty category counts everything).
	GetPageCount(ctx context.Context, category string) (int, error)

	// GetLatestCaptureTime returns when the newest page was captured.
	GetLatestCaptureTime(ctx context.Context) (time.Time, error)

	Close() error
}
