// Package cli wires the commands around the session lifecycle:
// verify, login, import, session, scrape and map.
package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Suggestic/amanda-scrapping/internal/app"
	"github.com/Suggestic/amanda-scrapping/internal/broker"
	"github.com/Suggestic/amanda-scrapping/internal/checksum"
	"github.com/Suggestic/amanda-scrapping/internal/config"
	"github.com/Suggestic/amanda-scrapping/internal/cookies"
	"github.com/Suggestic/amanda-scrapping/internal/fetcher"
	"github.com/Suggestic/amanda-scrapping/internal/firecrawl"
	"github.com/Suggestic/amanda-scrapping/internal/normalize"
	"github.com/Suggestic/amanda-scrapping/internal/observability"
	"github.com/Suggestic/amanda-scrapping/internal/session"
	"github.com/Suggestic/amanda-scrapping/internal/session/sessioncache"
	"github.com/Suggestic/amanda-scrapping/internal/storage"
	"github.com/Suggestic/amanda-scrapping/internal/verify"
)

var (
	flagConfig  string
	flagVerbose bool

	flagHeadless bool
	flagNoCache  bool

	flagImportDomain string
	flagImportVerify bool

	flagScrapeOut string

	flagMapDepth   int
	flagMapLimit   int
	flagMapManaged bool
)

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "amanda",
		Short:         "Authenticated scraping for the dual-auth site",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flagConfig, "config", "configs/config.yaml", "Path to config file")
	root.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "Enable debug logging")

	root.AddCommand(newVerifyCmd())
	root.AddCommand(newLoginCmd())
	root.AddCommand(newImportCmd())
	root.AddCommand(newSessionCmd())
	root.AddCommand(newScrapeCmd())
	root.AddCommand(newMapCmd())

	return root
}

// runtime bundles what every command needs after setup.
type runtime struct {
	cfg    *config.Config
	logger *observability.Logger
	cache  *sessioncache.Cache
}

func setup() (*runtime, error) {
	cfg, err := config.LoadConfig(flagConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	level := cfg.Observability.LogLevel
	if flagVerbose {
		level = "debug"
	}
	logger := observability.NewLogger(cfg.Observability.LogPath, level,
		cfg.Observability.MaxSizeMB, cfg.Observability.MaxBackups)

	cache, err := sessioncache.New(cfg.Session.CachePath, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open session cache: %w", err)
	}

	return &runtime{cfg: cfg, logger: logger, cache: cache}, nil
}

func (rt *runtime) verifier() *verify.Verifier {
	f := fetcher.NewFetcher(rt.cfg, rt.logger)
	return verify.NewVerifier(rt.cfg, f, rt.logger)
}

func (rt *runtime) orchestrator() (*app.Orchestrator, error) {
	selectors, err := config.LoadLoginSelectors(rt.cfg.Login.SelectorsFile)
	if err != nil {
		return nil, err
	}
	f := fetcher.NewFetcher(rt.cfg, rt.logger)
	v := verify.NewVerifier(rt.cfg, f, rt.logger)
	b := broker.NewBroker(rt.cfg, selectors, rt.logger)
	return app.NewOrchestrator(rt.cfg, rt.logger, f, v, rt.cache, b), nil
}

func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   `verify "<cookie-header>"`,
		Short: "Check that a cookie header string grants authenticated access",
		Long: `Takes exactly one argument: the session cookies as a single
header string, name1=value1; name2=value2. Exits 0 only when the site
returns authenticated content for it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup()
			if err != nil {
				return err
			}

			result, err := rt.verifier().VerifyHeader(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			fmt.Printf("Diagnosis: %s\n", result.Diagnosis)
			if result.StatusCode != 0 {
				fmt.Printf("Status:    %d\n", result.StatusCode)
				fmt.Printf("Content:   %d bytes\n", result.ContentLength)
			}
			fmt.Printf("Advice:    %s\n", result.Diagnosis.Advice())

			if !result.OK() {
				return fmt.Errorf("verification failed: %s", result.Diagnosis)
			}
			return nil
		},
	}
}

func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in through a real browser and cache the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup()
			if err != nil {
				return err
			}
			rt.cfg.Browser.Enabled = true
			if cmd.Flags().Changed("headless") {
				rt.cfg.Browser.Headless = flagHeadless
			}

			selectors, err := config.LoadLoginSelectors(rt.cfg.Login.SelectorsFile)
			if err != nil {
				return err
			}
			b := broker.NewBroker(rt.cfg, selectors, rt.logger)

			sess, err := b.Login(cmd.Context())
			if err != nil {
				return err
			}

			result, err := rt.verifier().VerifySession(cmd.Context(), sess)
			if err != nil {
				return err
			}
			if !result.OK() {
				return fmt.Errorf("login produced an unusable session: %s", result.Diagnosis)
			}

			if !flagNoCache {
				if err := rt.cache.Store(sess); err != nil {
					return fmt.Errorf("failed to cache session: %w", err)
				}
			}

			printSession(sess)
			return nil
		},
	}
	cmd.Flags().BoolVar(&flagHeadless, "headless", true, "Run the browser headless")
	cmd.Flags().BoolVar(&flagNoCache, "no-cache", false, "Do not persist the session")
	return cmd
}

func newImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <path|auto>",
		Short: "Import session cookies from a browser cookie store",
		Long: `Reads cookies from a Firefox or Chromium cookie database or a
Netscape cookies.txt export. "auto" probes the default browser profile
locations.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup()
			if err != nil {
				return err
			}

			domain := flagImportDomain
			if domain == "" {
				domain = siteHost(rt.cfg.Site.BaseURL)
			}

			var (
				imported []session.Cookie
				source   *cookies.Source
			)
			if args[0] == "auto" {
				imported, source, err = cookies.Autodetect(domain)
			} else {
				imported, source, err = cookies.Import(args[0], domain)
			}
			if err != nil {
				return err
			}
			if len(imported) == 0 {
				return fmt.Errorf("no cookies found for domain %s", domain)
			}

			sess := session.New(imported, rt.cfg.Site.UserAgent, "import:"+source.Format.String(), rt.cfg.GetSessionDefaultTTL())

			if flagImportVerify {
				result, err := rt.verifier().VerifySession(cmd.Context(), sess)
				if err != nil {
					return err
				}
				if !result.OK() {
					return fmt.Errorf("imported session failed verification: %s (%s)", result.Diagnosis, result.Diagnosis.Advice())
				}
			}

			if err := rt.cache.Store(sess); err != nil {
				return fmt.Errorf("failed to cache session: %w", err)
			}

			fmt.Printf("Imported from %s (%s)\n", source.Path, source.Format)
			printSession(sess)
			return nil
		},
	}
	cmd.Flags().StringVar(&flagImportDomain, "domain", "", "Cookie domain to import (defaults to the site host)")
	cmd.Flags().BoolVar(&flagImportVerify, "verify", false, "Verify the session before caching it")
	return cmd
}

func newSessionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "session",
		Short: "Show the cached session status",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup()
			if err != nil {
				return err
			}

			sess, err := rt.cache.Load(time.Now())
			if err != nil {
				return err
			}
			if sess == nil {
				fmt.Println("No cached session.")
				return nil
			}

			printSession(sess)
			return nil
		},
	}
}

func newScrapeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrape <url>",
		Short: "Scrape a single page with the cached session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup()
			if err != nil {
				return err
			}

			orch, err := rt.orchestrator()
			if err != nil {
				return err
			}
			sess, err := orch.AcquireSession(cmd.Context(), false)
			if err != nil {
				return err
			}

			pageURL := normalize.NormalizeURL(args[0])

			var markdown string
			if rt.cfg.Firecrawl.APIKey != "" {
				client := firecrawl.NewClient(rt.cfg, rt.logger)
				result, err := client.Scrape(cmd.Context(), pageURL, sess)
				if err != nil {
					return err
				}
				markdown = result.Markdown
			} else {
				f := fetcher.NewFetcher(rt.cfg, rt.logger)
				resp, err := f.Fetch(cmd.Context(), pageURL, sess)
				if err != nil {
					return err
				}
				if resp.StatusCode != 200 {
					return fmt.Errorf("unexpected status %d", resp.StatusCode)
				}
				content, err := normalize.NewNormalizer(rt.cfg).ParsePage(string(resp.Body))
				if err != nil {
					return err
				}
				markdown = content.Text
			}

			if err := storeScrape(cmd, rt, pageURL, markdown); err != nil {
				rt.logger.Warn("Failed to store scraped page", "url", pageURL, "error", err.Error())
			}

			if flagScrapeOut != "" {
				return os.WriteFile(flagScrapeOut, []byte(markdown), 0o644)
			}
			fmt.Println(markdown)
			return nil
		},
	}
	cmd.Flags().StringVar(&flagScrapeOut, "out", "", "Write the scraped content to a file instead of stdout")
	return cmd
}

func storeScrape(cmd *cobra.Command, rt *runtime, pageURL, content string) error {
	repo, err := app.OpenRepository(rt.cfg, rt.logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := repo.Close(); err != nil {
			rt.logger.Warn("Failed to close repository", "error", err.Error())
		}
	}()

	capturedAt := time.Now().UTC()
	normalizer := normalize.NewNormalizer(rt.cfg)
	_, _, err = repo.UpsertPage(cmd.Context(), &storage.PageRecord{
		URL:        pageURL,
		Text:       content,
		Preview:    normalizer.TruncatePreview(content),
		Category:   "manual",
		CheckSum:   checksum.Calculate(pageURL, content, capturedAt),
		CapturedAt: capturedAt,
	})
	return err
}

func newMapCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "map",
		Short: "Map the authenticated site into storage and a mapsite report",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("depth") {
				rt.cfg.Discovery.MaxDepth = flagMapDepth
			}
			if cmd.Flags().Changed("limit") {
				rt.cfg.Discovery.MaxPages = flagMapLimit
			}
			if flagMapManaged && rt.cfg.Firecrawl.APIKey == "" {
				return fmt.Errorf("--managed requires firecrawl.api_key in the config")
			}

			orch, err := rt.orchestrator()
			if err != nil {
				return err
			}

			repo, err := app.OpenRepository(rt.cfg, rt.logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := repo.Close(); err != nil {
					rt.logger.Warn("Failed to close repository", "error", err.Error())
				}
			}()

			report, err := orch.RunDiscovery(cmd.Context(), repo, flagMapManaged)
			if report != nil {
				fmt.Fprintf(os.Stderr, "Visited: %d  Stored: %d  Updated: %d  Files: %d  Skipped: %d\n",
					report.Visited, report.Stored, report.Updated, len(report.Files), report.Skipped)
				fmt.Fprintf(os.Stderr, "Stopped: %s\n", report.StopReason)
				for priority, count := range report.ByPriority {
					fmt.Fprintf(os.Stderr, "  %s: %d\n", priority, count)
				}
			}
			return err
		},
	}
	cmd.Flags().IntVar(&flagMapDepth, "depth", 0, "Override discovery.max_depth")
	cmd.Flags().IntVar(&flagMapLimit, "limit", 0, "Override discovery.max_pages")
	cmd.Flags().BoolVar(&flagMapManaged, "managed", false, "Delegate the whole crawl to the hosted scraper as one job")
	return cmd
}

// printSession reports status without ever printing cookie values.
func printSession(sess *session.Session) {
	fmt.Printf("Source:          %s\n", sess.Source)
	fmt.Printf("Cookies:         %d\n", len(sess.Cookies))
	if names := sess.SessionCookieNames(); len(names) > 0 {
		fmt.Printf("Session cookies: %s\n", strings.Join(names, ", "))
	}
	fmt.Printf("Acquired:        %s\n", sess.AcquiredAt.Format(time.RFC3339))
	fmt.Printf("Expires:         %s\n", sess.ExpiresAt.Format(time.RFC3339))
	if sess.Valid(time.Now()) {
		fmt.Println("Status:          valid")
	} else {
		fmt.Println("Status:          expired")
	}
}

func siteHost(baseURL string) string {
	host := baseURL
	if idx := strings.Index(host, "://"); idx > -1 {
		host = host[idx+3:]
	}
	if idx := strings.IndexAny(host, "/:"); idx > -1 {
		host = host[:idx]
	}
	return host
}
