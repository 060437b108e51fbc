package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Suggestic/amanda-scrapping/internal/broker"
	"github.com/Suggestic/amanda-scrapping/internal/config"
	"github.com/Suggestic/amanda-scrapping/internal/discovery"
	"github.com/Suggestic/amanda-scrapping/internal/fetcher"
	"github.com/Suggestic/amanda-scrapping/internal/firecrawl"
	"github.com/Suggestic/amanda-scrapping/internal/observability"
	"github.com/Suggestic/amanda-scrapping/internal/session"
	"github.com/Suggestic/amanda-scrapping/internal/session/sessioncache"
	"github.com/Suggestic/amanda-scrapping/internal/storage"
	"github.com/Suggestic/amanda-scrapping/internal/storage/mssql"
	"github.com/Suggestic/amanda-scrapping/internal/storage/sqlite"
	"github.com/Suggestic/amanda-scrapping/internal/verify"
)

// ErrNoSession means no cached session exists and browser login is
// disabled, so there is nothing to authenticate with.
var ErrNoSession = errors.New("no usable session: cache is empty and browser login is disabled")

type Orchestrator struct {
	cfg      *config.Config
	logger   *observability.Logger
	fetcher  *fetcher.Fetcher
	verifier *verify.Verifier
	cache    *sessioncache.Cache
	broker   *broker.Broker
}

func NewOrchestrator(
	cfg *config.Config,
	logger *observability.Logger,
	f *fetcher.Fetcher,
	v *verify.Verifier,
	cache *sessioncache.Cache,
	b *broker.Broker,
) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		logger:   logger,
		fetcher:  f,
		verifier: v,
		cache:    cache,
		broker:   b,
	}
}

// AcquireSession returns a verified session: the cached one when it
// still passes verification, otherwise a fresh browser login. force
// skips the cache.
func (o *Orchestrator) AcquireSession(ctx context.Context, force bool) (*session.Session, error) {
	if !force {
		if sess := o.loadCached(ctx); sess != nil {
			return sess, nil
		}
	}

	if !o.cfg.Browser.Enabled {
		return nil, ErrNoSession
	}

	o.logger.Info("Acquiring fresh session through browser login")

	sess, err := o.broker.Login(ctx)
	if err != nil {
		return nil, fmt.Errorf("browser login: %w", err)
	}

	result, err := o.verifier.VerifySession(ctx, sess)
	if err != nil {
		return nil, err
	}
	if !result.OK() {
		return nil, fmt.Errorf("fresh session failed verification: %s (%s)", result.Diagnosis, result.Diagnosis.Advice())
	}

	if err := o.cache.Store(sess); err != nil {
		o.logger.Warn("Failed to cache session", "error", err.Error())
	}

	return sess, nil
}

func (o *Orchestrator) loadCached(ctx context.Context) *session.Session {
	sess, err := o.cache.Load(time.Now())
	if err != nil {
		o.logger.Warn("Failed to load cached session", "error", err.Error())
		return nil
	}
	if sess == nil {
		return nil
	}

	result, err := o.verifier.VerifySession(ctx, sess)
	if err != nil || !result.OK() {
		o.logger.Info("Cached session no longer valid, discarding",
			"diagnosis", diagnosisOf(result),
		)
		if err := o.cache.Clear(); err != nil {
			o.logger.Warn("Failed to clear session cache", "error", err.Error())
		}
		return nil
	}

	o.logger.Info("Using cached session",
		"source", sess.Source,
		"expires_at", sess.ExpiresAt,
	)
	return sess
}

func diagnosisOf(result *verify.Result) string {
	if result == nil {
		return "error"
	}
	return result.Diagnosis.String()
}

// RunDiscovery maps the site with a verified session. With a
// firecrawl API key configured the crawl goes through the hosted
// scraper, otherwise through the local fetcher. When the session
// expires mid-crawl it re-logs in once and restarts; already captured
// pages upsert idempotently.
func (o *Orchestrator) RunDiscovery(ctx context.Context, repo storage.Repository, managed bool) (*discovery.MapsiteReport, error) {
	sess, err := o.AcquireSession(ctx, false)
	if err != nil {
		return nil, err
	}

	mapper, err := discovery.NewMapper(o.cfg, o.fetcher, o.firecrawlClient(), repo, o.logger)
	if err != nil {
		return nil, err
	}

	run := mapper.Run
	if managed {
		run = mapper.RunManaged
	}

	report, err := run(ctx, sess)
	if err == nil || !errors.Is(err, discovery.ErrSessionExpired) {
		return report, err
	}

	o.logger.Warn("Session expired mid-crawl, re-authenticating once")

	sess, err = o.AcquireSession(ctx, true)
	if err != nil {
		return report, err
	}
	return run(ctx, sess)
}

// firecrawlClient returns a client when an API key is configured,
// nil otherwise.
func (o *Orchestrator) firecrawlClient() *firecrawl.Client {
	if o.cfg.Firecrawl.APIKey == "" {
		return nil
	}
	return firecrawl.NewClient(o.cfg, o.logger)
}

// OpenRepository picks the storage driver from the config.
func OpenRepository(cfg *config.Config, logger *observability.Logger) (storage.Repository, error) {
	switch cfg.Storage.Driver {
	case "mssql":
		return mssql.NewRepository(cfg.Storage.DSN, cfg.Storage.CommandTimeoutMS, logger)
	default:
		return sqlite.NewRepository(cfg.Storage.DSN, cfg.Storage.CommandTimeoutMS, logger)
	}
}
