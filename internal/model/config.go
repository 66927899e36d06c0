package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidConfig is returned by Config.Validate
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the complete run configuration. It is built once per run and
// treated as read-only afterwards.
type Config struct {
	Target       TargetConfig       `yaml:"target" mapstructure:"target"`
	Session      SessionConfig      `yaml:"session" mapstructure:"session"`
	Browser      BrowserConfig      `yaml:"browser" mapstructure:"browser"`
	Navigation   NavigationConfig   `yaml:"navigation" mapstructure:"navigation"`
	Metrics      MetricsConfig      `yaml:"metrics" mapstructure:"metrics"`
	Comments     CommentsConfig     `yaml:"comments" mapstructure:"comments"`
	RateLimiting RateLimitingConfig `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	Cache        CacheConfig        `yaml:"cache" mapstructure:"cache"`
	Robots       RobotsConfig       `yaml:"robots" mapstructure:"robots"`
	Output       OutputConfig       `yaml:"output" mapstructure:"output"`
	Logging      LoggingConfig      `yaml:"logging" mapstructure:"logging"`
}

// TargetConfig describes the listing page and how items are found on it
type TargetConfig struct {
	ProfileURL   string `yaml:"profile_url" mapstructure:"profile_url"`
	ItemLimit    int    `yaml:"item_limit" mapstructure:"item_limit"`
	ItemSelector string `yaml:"item_selector" mapstructure:"item_selector"`
	ItemFilter   string `yaml:"item_filter" mapstructure:"item_filter"` // Substring a link must contain
}

// SessionConfig points at the persisted credential store
type SessionConfig struct {
	CookiesFile string `yaml:"cookies_file" mapstructure:"cookies_file"`
}

// BrowserConfig configures the Chrome instance
type BrowserConfig struct {
	Headless     bool   `yaml:"headless" mapstructure:"headless"`
	ExecPath     string `yaml:"exec_path" mapstructure:"exec_path"`
	UserAgent    string `yaml:"user_agent" mapstructure:"user_agent"`
	ProxyServer  string `yaml:"proxy_server" mapstructure:"proxy_server"`
	WindowWidth  int    `yaml:"window_width" mapstructure:"window_width"`
	WindowHeight int    `yaml:"window_height" mapstructure:"window_height"`
}

// NavigationConfig bounds page loads and decides what a failed load means
type NavigationConfig struct {
	Timeout    time.Duration `yaml:"timeout" mapstructure:"timeout"`
	Attempts   int           `yaml:"attempts" mapstructure:"attempts"`
	RetryDelay time.Duration `yaml:"retry_delay" mapstructure:"retry_delay"`
	FailFast   bool          `yaml:"fail_fast" mapstructure:"fail_fast"` // Abort the run on the first failed item
}

// MetricsConfig selects the two scalar metrics read per item
type MetricsConfig struct {
	LikesSelector  string        `yaml:"likes_selector" mapstructure:"likes_selector"`
	SharesSelector string        `yaml:"shares_selector" mapstructure:"shares_selector"`
	LookupTimeout  time.Duration `yaml:"lookup_timeout" mapstructure:"lookup_timeout"`
}

// CommentsConfig drives the incremental comment collector
type CommentsConfig struct {
	Cap           int           `yaml:"cap" mapstructure:"cap"`
	MaxAttempts   int           `yaml:"max_attempts" mapstructure:"max_attempts"`
	PanelSelector string        `yaml:"panel_selector" mapstructure:"panel_selector"`
	PanelTimeout  time.Duration `yaml:"panel_timeout" mapstructure:"panel_timeout"`
	PanelSettle   time.Duration `yaml:"panel_settle" mapstructure:"panel_settle"`
	InitialSettle time.Duration `yaml:"initial_settle" mapstructure:"initial_settle"`
	Selectors     []string      `yaml:"selectors" mapstructure:"selectors"` // Top-level first, then replies
	ScrollDelta   float64       `yaml:"scroll_delta" mapstructure:"scroll_delta"`
	ScrollSettle  time.Duration `yaml:"scroll_settle" mapstructure:"scroll_settle"`
}

// RateLimitingConfig paces navigations per host
type RateLimitingConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size"`
}

// CacheConfig controls the resume cache of finished records
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	TTL       time.Duration `yaml:"ttl" mapstructure:"ttl"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
}

// RobotsConfig enables robots.txt checks before each item
type RobotsConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	UserAgent string        `yaml:"user_agent" mapstructure:"user_agent"`
	Timeout   time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// OutputConfig names the destination of the records
type OutputConfig struct {
	Path string `yaml:"path" mapstructure:"path"` // .csv, .xlsx, .db or .sqlite
}

// LoggingConfig configures the zap logger
type LoggingConfig struct {
	Level       string `yaml:"level" mapstructure:"level"`
	Development bool   `yaml:"development" mapstructure:"development"`
}

// DefaultConfig returns the configuration used when nothing is overridden
func DefaultConfig() *Config {
	return &Config{
		Target: TargetConfig{
			ItemLimit:    20,
			ItemSelector: "div[data-e2e='user-post-item'] a",
			ItemFilter:   "video",
		},
		Session: SessionConfig{
			CookiesFile: "cookies.json",
		},
		Browser: BrowserConfig{
			Headless:     false,
			WindowWidth:  1366,
			WindowHeight: 900,
		},
		Navigation: NavigationConfig{
			Timeout:    60 * time.Second,
			Attempts:   2,
			RetryDelay: 2 * time.Second,
		},
		Metrics: MetricsConfig{
			LikesSelector:  "strong[data-e2e='like-count']",
			SharesSelector: "strong[data-e2e='share-count']",
			LookupTimeout:  2 * time.Second,
		},
		Comments: CommentsConfig{
			Cap:           10,
			MaxAttempts:   20,
			PanelSelector: "button[data-e2e='comment-icon']",
			PanelTimeout:  3 * time.Second,
			PanelSettle:   1 * time.Second,
			InitialSettle: 1500 * time.Millisecond,
			Selectors: []string{
				`span[data-e2e="comment-level-1"]`,
				`span[data-e2e="comment-level-2"]`,
			},
			ScrollDelta:  1200,
			ScrollSettle: 500 * time.Millisecond,
		},
		RateLimiting: RateLimitingConfig{
			RequestsPerSecond: 0.5,
			BurstSize:         1,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       ".feedharvest-cache",
			TTL:       24 * time.Hour,
			MemoryTTL: 1 * time.Hour,
		},
		Robots: RobotsConfig{
			Enabled:   false,
			UserAgent: "feedharvest",
			Timeout:   10 * time.Second,
		},
		Output: OutputConfig{
			Path: "itts_tiktok_latest.csv",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Validate checks the values that have no sensible fallback
func (c *Config) Validate() error {
	var problems []string

	if c.Target.ItemLimit <= 0 {
		problems = append(problems, "target.item_limit must be > 0")
	}
	if c.Target.ItemSelector == "" {
		problems = append(problems, "target.item_selector must not be empty")
	}
	if c.Session.CookiesFile == "" {
		problems = append(problems, "session.cookies_file must not be empty")
	}
	if c.Navigation.Timeout <= 0 {
		problems = append(problems, "navigation.timeout must be > 0")
	}
	if c.Navigation.Attempts <= 0 {
		problems = append(problems, "navigation.attempts must be > 0")
	}
	if c.Comments.Cap <= 0 {
		problems = append(problems, "comments.cap must be > 0")
	}
	if c.Comments.MaxAttempts <= 0 {
		problems = append(problems, "comments.max_attempts must be > 0")
	}
	if len(c.Comments.Selectors) == 0 {
		problems = append(problems, "comments.selectors must not be empty")
	}
	if c.Output.Path == "" {
		problems = append(problems, "output.path must not be empty")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}
