// Package mssql is the repository driver for shared SQL Server
// deployments.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/microsoft/go-mssqldb"

	"github.com/Suggestic/amanda-scrapping/internal/observability"
	"github.com/Suggestic/amanda-scrapping/internal/storage"
)

type Repository struct {
	db             *sql.DB
	commandTimeout time.Duration
	logger         *observability.Logger
}

func NewRepository(dsn string, commandTimeoutMS int, logger *observability.Logger) (*Repository, error) {
	db, err := sql.Open("sqlserver", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
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
		MERGE INTO TblPages AS target
		USING (SELECT @URL AS URL) AS source
		ON target.[URL] = source.URL
		WHEN MATCHED THEN
			UPDATE SET
				[Title] = @Title,
				[Text] = @Text,
				[Preview] = @Preview,
				[Category] = @Category,
				[Depth] = @Depth,
				[CheckSum] = @CheckSum,
				[CapturedAt] = @CapturedAt
		WHEN NOT MATCHED THEN
			INSERT ([URL], [Title], [Text], [Preview], [Category], [Depth], [CheckSum], [CapturedAt])
			VALUES (@URL, @Title, @Text, @Preview, @Category, @Depth, @CheckSum, @CapturedAt);
	`

	stmt, err := r.db.PrepareContext(ctx, query)
	if err != nil {
		return false, false, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() {
		if err := stmt.Close(); err != nil {
			r.logger.Error("Failed to close statement", "error", err.Error())
		}
	}()

	_, err = stmt.ExecContext(ctx,
		sql.Named("URL", page.URL),
		sql.Named("Title", page.Title),
		sql.Named("Text", page.Text),
		sql.Named("Preview", page.Preview),
		sql.Named("Category", page.Category),
		sql.Named("Depth", page.Depth),
		sql.Named("CheckSum", page.CheckSum),
		sql.Named("CapturedAt", page.CapturedAt.UTC()),
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

	query := `SELECT COUNT(*) FROM TblPages WHERE URL = @URL`

	stmt, err := r.db.PrepareContext(ctx, query)
	if err != nil {
		return false, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() {
		if err := stmt.Close(); err != nil {
			r.logger.Error("Failed to close statement", "error", err.Error())
		}
	}()

	var count int
	err = stmt.QueryRowContext(ctx, sql.Named("URL", url)).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to query database: %w", err)
	}

	return count > 0, nil
}

func (r *Repository) GetPage(ctx context.Context, url string) (*storage.PageRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	query := `SELECT [URL], [Title], [Text], [Preview], [Category], [Depth], [CheckSum], [CapturedAt]
		FROM TblPages WHERE [URL] = @URL`

	stmt, err := r.db.PrepareContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() {
		if err := stmt.Close(); err != nil {
			r.logger.Error("Failed to close statement", "error", err.Error())
		}
	}()

	var page storage.PageRecord
	err = stmt.QueryRowContext(ctx, sql.Named("URL", url)).Scan(
		&page.URL,
		&page.Title,
		&page.Text,
		&page.Preview,
		&page.Category,
		&page.Depth,
		&page.CheckSum,
		&page.CapturedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query database: %w", err)
	}
	return &page, nil
}

func (r *Repository) GetPageCount(ctx context.Context, category string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	query := `SELECT COUNT(*) FROM TblPages`
	args := []any{}
	if category != "" {
		query += ` WHERE [Category] = @Category`
		args = append(args, sql.Named("Category", category))
	}

	stmt, err := r.db.PrepareContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() {
		if err := stmt.Close(); err != nil {
			r.logger.Error("Failed to close statement", "error", err.Error())
		}
	}()

	var count int
	err = stmt.QueryRowContext(ctx, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to query database: %w", err)
	}

	return count, nil
}

func (r *Repository) GetLatestCaptureTime(ctx context.Context) (time.Time, error) {
	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	query := `SELECT MAX([CapturedAt]) FROM TblPages`

	stmt, err := r.db.PrepareContext(ctx, query)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() {
		if err := stmt.Close(); err != nil {
			r.logger.Error("Failed to close statement", "error", err.Error())
		}
	}()

	var latest sql.NullTime
	err = stmt.QueryRowContext(ctx).Scan(&latest)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to query database: %w", err)
	}

	if !latest.Valid {
		return time.Time{}, nil
	}
	return latest.Time, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}
