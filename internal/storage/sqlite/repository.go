// Package sqlite is the default repository driver, a single local
// file with no server dependency.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Suggestic/amanda-scrapping/internal/observability"
	"github.com/Suggestic/amanda-scrapping/internal/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS pages (
	url         TEXT PRIMARY KEY,
	title       TEXT NOT NULL DEFAULT '',
	text        TEXT NOT NULL DEFAULT '',
	preview     TEXT NOT NULL DEFAULT '',
	category    TEXT NOT NULL DEFAULT '',
	depth       INTEGER NOT NULL DEFAULT 0,
	checksum    TEXT NOT NULL,
	captured_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_pages_category ON pages(category);
`

type Repository struct {
	db             *sql.DB
	commandTimeout time.Duration
	logger         *observability.Logger
}

func NewRepository(dsn string, commandTimeoutMS int, logger *observability.Logger) (*Repository, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return &Repository{
		db:             db,
		commandTimeout: time.Duration(commandTimeoutMS) * time.Millisecond,
		logger:         logger,
	}, nil
}

func (r *Repository) UpsertPage(ctx context.Context, page *storage.PageRecord) (isNew bool, isUpdated bool, err error) {
	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	exists, err := r.ExistsByURL(ctx, page.URL)
	if err != nil {
		return false, false, err
	}

	query := `
		INSERT INTO pages (url, title, text, preview, category, depth, checksum, captured_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET
			title = excluded.title,
			text = excluded.text,
			preview = excluded.preview,
			category = excluded.category,
			depth = excluded.depth,
			checksum = excluded.checksum,
			captured_at = excluded.captured_at
	`

	_, err = r.db.ExecContext(ctx, query,
		page.URL,
		page.Title,
		page.Text,
		page.Preview,
		page.Category,
		page.Depth,
		page.CheckSum,
		page.CapturedAt.UTC().Unix(),
	)
	if err != nil {
		return false, false, fmt.Errorf("failed to execute upsert: %w", err)
	}

	if exists {
		return false, true, nil
	}
	return true, false, nil
}

func (r *Repository) ExistsByURL(ctx context.Context, url string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pages WHERE url = ?`, url).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to query database: %w", err)
	}
	return count > 0, nil
}

func (r *Repository) GetPage(ctx context.Context, url string) (*storage.PageRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	query := `SELECT url, title, text, preview, category, depth, checksum, captured_at
		FROM pages WHERE url = ?`

	var page storage.PageRecord
	var capturedAt int64
	err := r.db.QueryRowContext(ctx, query, url).Scan(
		&page.URL,
		&page.Title,
		&page.Text,
		&page.Preview,
		&page.Category,
		&page.Depth,
		&page.CheckSum,
		&capturedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query database: %w", err)
	}
	page.CapturedAt = time.Unix(capturedAt, 0).UTC()
	return &page, nil
}

func (r *Repository) GetPageCount(ctx context.Context, category string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	var count int
	var err error
	if category == "" {
		err = r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pages`).Scan(&count)
	} else {
		err = r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pages WHERE category = ?`, category).Scan(&count)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to query database: %w", err)
	}
	return count, nil
}

func (r *Repository) GetLatestCaptureTime(ctx context.Context) (time.Time, error) {
	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	var latest sql.NullInt64
	err := r.db.QueryRowContext(ctx, `SELECT MAX(captured_at) FROM pages`).Scan(&latest)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to query database: %w", err)
	}
	if !latest.Valid {
		return time.Time{}, nil
	}
	return time.Unix(latest.Int64, 0).UTC(), nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}
