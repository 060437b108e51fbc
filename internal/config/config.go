package config

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"
)

type Config struct {
	Site                Site                `yaml:"site"`
	Shield              ShieldConfig        `yaml:"shield"`
	Login               LoginConfig         `yaml:"login"`
	Session             SessionConfig       `yaml:"session"`
	HTTP                HTTPConfig          `yaml:"http"`
	RateLimit           RateLimitConfig     `yaml:"rate_limit"`
	RobotsCacheTTLHours int                 `yaml:"robots_cache_ttl_hours"`
	Browser             BrowserConfig       `yaml:"browser"`
	Firecrawl           FirecrawlConfig     `yaml:"firecrawl"`
	Discovery           DiscoveryConfig     `yaml:"discovery"`
	Normalize           NormalizeConfig     `yaml:"normalize"`
	Storage             StorageConfig       `yaml:"storage"`
	Observability       ObservabilityConfig `yaml:"observability"`
}

type Site struct {
	BaseURL   string `yaml:"base_url"`
	LoginPath string `yaml:"login_path"`
	UserAgent string `yaml:"user_agent"`
}

// ShieldConfig holds the HTTP Basic Auth credentials for the hosting
// platform's gate in front of the site.
type ShieldConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// LoginConfig holds the application form-login credentials.
type LoginConfig struct {
	Email         string `yaml:"email"`
	Password      string `yaml:"password"`
	SelectorsFile string `yaml:"selectors_file"`
}

type SessionConfig struct {
	CachePath       string `yaml:"cache_path"`
	DefaultTTLHours int    `yaml:"default_ttl_hours"`
}

type HTTPConfig struct {
	ConnectTimeoutMS          int `yaml:"connect_timeout_ms"`
	TotalTimeoutMS            int `yaml:"total_timeout_ms"`
	MaxRetries                int `yaml:"max_retries"`
	BackoffMinMS              int `yaml:"backoff_min_ms"`
	BackoffMaxMS              int `yaml:"backoff_max_ms"`
	JitterPct                 int `yaml:"jitter_pct"`
	MaxIdleConnections        int `yaml:"max_idle_connections"`
	MaxIdleConnectionsPerHost int `yaml:"max_idle_connections_per_host"`
	IdleConnectionTimeoutS    int `yaml:"idle_connection_timeout_s"`
}

type RateLimitConfig struct {
	MaxConcurrentPerHost int `yaml:"max_concurrent_per_host"`
	RPM                  int `yaml:"rpm"`
}

type BrowserConfig struct {
	Enabled       bool   `yaml:"enabled"`
	ChromePath    string `yaml:"chrome_path"`
	Headless      bool   `yaml:"headless"`
	PageTimeoutS  int    `yaml:"page_timeout_s"`
	SettleDelayMS int    `yaml:"settle_delay_ms"`
}

type FirecrawlConfig struct {
	APIKey            string `yaml:"api_key"`
	APIURL            string `yaml:"api_url"`
	ZeroDataRetention bool   `yaml:"zero_data_retention"`
	RequestTimeoutS   int    `yaml:"request_timeout_s"`
}

type DiscoveryConfig struct {
	MaxDepth   int    `yaml:"max_depth"`
	MaxPages   int    `yaml:"max_pages"`
	DelayMS    int    `yaml:"delay_ms"`
	OutputPath string `yaml:"output_path"`
}

type NormalizeConfig struct {
	StripBlocks     []string `yaml:"strip_blocks"`
	TrimNBSP        bool     `yaml:"trim_nbsp"`
	CollapseSpaces  bool     `yaml:"collapse_spaces"`
	MaxPreviewChars int      `yaml:"max_preview_chars"`
}

type StorageConfig struct {
	Driver           string `yaml:"driver"`
	DSN              string `yaml:"dsn"`
	CommandTimeoutMS int    `yaml:"command_timeout_ms"`
}

type ObservabilityConfig struct {
	LogPath    string `yaml:"log_path"`
	LogLevel   string `yaml:"log_level"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// Validation
func (c *Config) Validate() error {
	if c.Site.BaseURL == "" {
		return fmt.Errorf("site.base_url is required")
	}
	if !strings.HasPrefix(c.Site.BaseURL, "http://") && !strings.HasPrefix(c.Site.BaseURL, "https://") {
		return fmt.Errorf("site.base_url must start with http:// or https://")
	}
	if c.Site.UserAgent == "" {
		return fmt.Errorf("site.user_agent is required")
	}
	if c.Shield.Username == "" {
		return fmt.Errorf("shield.username is required")
	}
	if c.Shield.Password == "" {
		return fmt.Errorf("shield.password is required")
	}
	if c.Login.Email == "" {
		return fmt.Errorf("login.email is required")
	}
	if c.Login.Password == "" {
		return fmt.Errorf("login.password is required")
	}
	if c.Session.DefaultTTLHours <= 0 {
		return fmt.Errorf("session.default_ttl_hours must be > 0")
	}
	if c.HTTP.ConnectTimeoutMS <= 0 {
		return fmt.Errorf("http.connect_timeout_ms must be > 0")
	}
	if c.HTTP.TotalTimeoutMS <= 0 {
		return fmt.Errorf("http.total_timeout_ms must be > 0")
	}
	if c.HTTP.MaxRetries < 0 {
		return fmt.Errorf("http.max_retries must be >= 0")
	}
	if c.HTTP.BackoffMinMS <= 0 {
		return fmt.Errorf("http.backoff_min_ms must be > 0")
	}
	if c.HTTP.BackoffMaxMS <= 0 {
		return fmt.Errorf("http.backoff_max_ms must be > 0")
	}
	if c.HTTP.BackoffMinMS > c.HTTP.BackoffMaxMS {
		return fmt.Errorf("http.backoff_min_ms must be <= http.backoff_max_ms")
	}
	if c.HTTP.JitterPct < 0 || c.HTTP.JitterPct > 100 {
		return fmt.Errorf("http.jitter_pct must be between 0 and 100")
	}
	if c.RateLimit.MaxConcurrentPerHost <= 0 {
		return fmt.Errorf("rate_limit.max_concurrent_per_host must be > 0")
	}
	if c.RateLimit.RPM <= 0 {
		return fmt.Errorf("rate_limit.rpm must be > 0")
	}
	if c.RobotsCacheTTLHours <= 0 {
		return fmt.Errorf("robots_cache_ttl_hours must be > 0")
	}
	if c.Browser.Enabled {
		if c.Browser.PageTimeoutS <= 0 {
			return fmt.Errorf("browser.page_timeout_s must be > 0")
		}
		if c.Browser.SettleDelayMS < 0 {
			return fmt.Errorf("browser.settle_delay_ms must be >= 0")
		}
	}
	if c.Firecrawl.APIURL == "" {
		return fmt.Errorf("firecrawl.api_url is required")
	}
	if c.Firecrawl.RequestTimeoutS <= 0 {
		return fmt.Errorf("firecrawl.request_timeout_s must be > 0")
	}
	if c.Discovery.MaxDepth <= 0 {
		return fmt.Errorf("discovery.max_depth must be > 0")
	}
	if c.Discovery.MaxPages <= 0 {
		return fmt.Errorf("discovery.max_pages must be > 0")
	}
	if c.Discovery.DelayMS < 0 {
		return fmt.Errorf("discovery.delay_ms must be >= 0")
	}
	if c.Normalize.MaxPreviewChars <= 0 {
		return fmt.Errorf("normalize.max_preview_chars must be > 0")
	}
	if c.Storage.Driver != "sqlite" && c.Storage.Driver != "mssql" {
		return fmt.Errorf("storage.driver must be 'sqlite' or 'mssql'")
	}
	if c.Storage.DSN == "" {
		return fmt.Errorf("storage.dsn is required")
	}
	if c.Storage.CommandTimeoutMS <= 0 {
		return fmt.Errorf("storage.command_timeout_ms must be > 0")
	}
	if c.Observability.LogLevel == "" {
		return fmt.Errorf("observability.log_level is required")
	}
	if c.Observability.MaxSizeMB < 0 {
		return fmt.Errorf("observability.max_size_mb must be >= 0")
	}
	if c.Observability.MaxBackups < 0 {
		return fmt.Errorf("observability.max_backups must be >= 0")
	}
	return nil
}

// BasicAuthHeader builds the Authorization header value for the shield.
func (c *Config) BasicAuthHeader() string {
	creds := c.Shield.Username + ":" + c.Shield.Password
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(creds))
}

// LoginURL is the form-login entry point of the application.
func (c *Config) LoginURL() string {
	path := c.Site.LoginPath
	if path == "" {
		path = "/login?destination=/"
	}
	return strings.TrimRight(c.Site.BaseURL, "/") + path
}

// Getters
func (c *Config) GetConnectTimeout() time.Duration {
	return time.Duration(c.HTTP.ConnectTimeoutMS) * time.Millisecond
}

func (c *Config) GetTotalTimeout() time.Duration {
	return time.Duration(c.HTTP.TotalTimeoutMS) * time.Millisecond
}

func (c *Config) GetIdleConnectionTimeout() time.Duration {
	return time.Duration(c.HTTP.IdleConnectionTimeoutS) * time.Second
}

func (c *Config) GetBackoffMin() time.Duration {
	return time.Duration(c.HTTP.BackoffMinMS) * time.Millisecond
}

func (c *Config) GetBackoffMax() time.Duration {
	return time.Duration(c.HTTP.BackoffMaxMS) * time.Millisecond
}

func (c *Config) GetRobotsCacheTTL() time.Duration {
	return time.Duration(c.RobotsCacheTTLHours) * time.Hour
}

func (c *Config) GetSessionDefaultTTL() time.Duration {
	return time.Duration(c.Session.DefaultTTLHours) * time.Hour
}

func (c *Config) GetPageTimeout() time.Duration {
	return time.Duration(c.Browser.PageTimeoutS) * time.Second
}

func (c *Config) GetSettleDelay() time.Duration {
	return time.Duration(c.Browser.SettleDelayMS) * time.Millisecond
}

func (c *Config) GetFirecrawlTimeout() time.Duration {
	return time.Duration(c.Firecrawl.RequestTimeoutS) * time.Second
}

func (c *Config) GetDiscoveryDelay() time.Duration {
	return time.Duration(c.Discovery.DelayMS) * time.Millisecond
}

func (c *Config) GetCommandTimeout() time.Duration {
	return time.Duration(c.Storage.CommandTimeoutMS) * time.Millisecond
}
