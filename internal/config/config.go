// Package config defines the daemon configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Config holds every knob recognized by the crawler, the backlink engine,
// the scheduler and the supervisor. It is serialized as JSON both on disk
// and as the config snapshot attached to each crawl session.
type Config struct {
	// === HTTP ===

	// User-Agent pool; each request picks one uniformly at random
	UserAgents []string `json:"user_agents"`

	// User-Agent for backlink discovery fetches
	BacklinkUserAgent string `json:"backlink_user_agent"`

	// Request timeout in seconds
	TimeoutSecs int `json:"timeout_secs"`

	// Request timeout for backlink discovery fetches
	BacklinkTimeoutSecs int `json:"backlink_timeout_secs"`

	// Maximum redirects followed per request
	MaxRedirects int `json:"max_redirects"`

	// Maximum response body size in bytes
	MaxResponseSize int64 `json:"max_response_size"`

	// === Crawl limits ===

	// Maximum link depth from a seed
	MaxDepth int `json:"max_depth"`

	// Maximum pages fetched per crawl session
	MaxPages int `json:"max_pages"`

	// Fixed delay after every fetch, per worker
	DelayBetweenRequestsMS int `json:"delay_between_requests_ms"`

	// Minimum interval between backlink discovery fetches
	BacklinkDelayMS int `json:"backlink_delay_ms"`

	// Concurrent request ceiling (counting semaphore size)
	MaxConcurrentRequests int `json:"max_concurrent_requests"`

	// Consult robots.txt before fetching
	RespectRobotsTxt bool `json:"respect_robots_txt"`

	// === Backlink discovery ===

	// Hard cap on URLs visited per discovery invocation
	MaxBacklinkPages int `json:"max_backlink_pages"`

	// Fan-out cap: links queued per visited page
	MaxLinksPerPage int `json:"max_links_per_page"`

	// Pages analyzed for backlinks in an integrated run
	MaxBacklinkAnalyses int `json:"max_backlink_analyses"`

	// Seed discovery from search-engine result pages (brittle; off by default)
	SearchEngineSeeding bool `json:"search_engine_seeding"`

	// === Schedule ===

	// Hours of day (UTC) reserved for backlink discovery
	BacklinkHours []int `json:"backlink_hours"`

	// Hours of day (UTC) reserved for crawling
	CrawlingHours []int `json:"crawling_hours"`

	// Wall-clock budget of one backlink discovery session, in hours
	SessionDurationHours int `json:"session_duration_hours"`

	// Supervisor tick interval, in minutes
	CheckIntervalMinutes int `json:"check_interval_minutes"`

	// === Storage & surfaces ===

	// Path of the SQLite catalog file
	DatabasePath string `json:"database_path"`

	// Port of the read-only stats server
	DashboardPort int `json:"dashboard_port"`

	// JSON seed bootstrap file, imported when the seed table is empty
	SeedFile string `json:"seed_file"`
}

// DefaultConfig returns a Config with the stock defaults.
func DefaultConfig() *Config {
	return &Config{
		// HTTP
		UserAgents:          []string{"RatCrawler/1.0"},
		BacklinkUserAgent:   "RatCrawler-Backlinks/1.0",
		TimeoutSecs:         30,
		BacklinkTimeoutSecs: 60,
		MaxRedirects:        5,
		MaxResponseSize:     10 * 1024 * 1024, // 10MB

		// Crawl limits
		MaxDepth:               3,
		MaxPages:               100,
		DelayBetweenRequestsMS: 100,
		BacklinkDelayMS:        1000,
		MaxConcurrentRequests:  10,
		RespectRobotsTxt:       true,

		// Backlink discovery
		MaxBacklinkPages:    1000,
		MaxLinksPerPage:     5,
		MaxBacklinkAnalyses: 10,
		SearchEngineSeeding: false,

		// Schedule
		BacklinkHours:        []int{6, 12, 18, 0},
		CrawlingHours:        []int{2, 3, 4, 5, 8, 9, 10, 11, 14, 15, 16, 17, 20, 21, 22, 23},
		SessionDurationHours: 2,
		CheckIntervalMinutes: 10,

		// Storage & surfaces
		DatabasePath:  "ratcrawler.db",
		DashboardPort: 8080,
		SeedFile:      "seed_urls.json",
	}
}

// ConservativeConfig returns a preset tuned for polite, low-volume crawling.
func ConservativeConfig() *Config {
	c := DefaultConfig()
	c.MaxConcurrentRequests = 2
	c.DelayBetweenRequestsMS = 2000
	c.BacklinkDelayMS = 3000
	c.MaxPages = 50
	c.MaxDepth = 2
	c.TimeoutSecs = 60
	return c
}

// AggressiveConfig returns a preset tuned for fast crawling of sites that
// tolerate it. A browser user-agent pool spreads requests across identities.
func AggressiveConfig() *Config {
	c := DefaultConfig()
	c.UserAgents = []string{
		"RatCrawler/1.0",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
	}
	c.MaxConcurrentRequests = 20
	c.DelayBetweenRequestsMS = 50
	c.MaxPages = 500
	c.TimeoutSecs = 15
	return c
}

// Validate clamps out-of-range numeric settings and rejects configurations
// the daemon cannot run with.
func (c *Config) Validate() error {
	if len(c.UserAgents) == 0 {
		c.UserAgents = []string{"RatCrawler/1.0"}
	}
	if c.BacklinkUserAgent == "" {
		c.BacklinkUserAgent = c.UserAgents[0]
	}
	if c.TimeoutSecs < 1 {
		c.TimeoutSecs = 1
	}
	if c.BacklinkTimeoutSecs < 1 {
		c.BacklinkTimeoutSecs = c.TimeoutSecs
	}
	if c.MaxRedirects < 0 {
		c.MaxRedirects = 0
	}
	if c.MaxResponseSize <= 0 {
		c.MaxResponseSize = 10 * 1024 * 1024
	}
	if c.MaxDepth < 0 {
		c.MaxDepth = 0
	}
	if c.MaxPages < 1 {
		c.MaxPages = 1
	}
	if c.DelayBetweenRequestsMS < 0 {
		c.DelayBetweenRequestsMS = 0
	}
	if c.BacklinkDelayMS < 0 {
		c.BacklinkDelayMS = 0
	}
	if c.MaxConcurrentRequests < 1 {
		c.MaxConcurrentRequests = 1
	}
	if c.MaxBacklinkPages < 1 {
		c.MaxBacklinkPages = 1
	}
	if c.MaxLinksPerPage < 1 {
		c.MaxLinksPerPage = 1
	}
	if c.MaxBacklinkAnalyses < 1 {
		c.MaxBacklinkAnalyses = 1
	}
	if c.SessionDurationHours < 1 {
		c.SessionDurationHours = 1
	}
	if c.CheckIntervalMinutes < 1 {
		c.CheckIntervalMinutes = 1
	}

	if c.DatabasePath == "" {
		return fmt.Errorf("database_path must not be empty")
	}
	if c.DashboardPort < 1 || c.DashboardPort > 65535 {
		return fmt.Errorf("dashboard_port %d out of range", c.DashboardPort)
	}

	seen := make(map[int]string)
	for _, h := range c.BacklinkHours {
		if h < 0 || h > 23 {
			return fmt.Errorf("backlink_hours contains invalid hour %d", h)
		}
		seen[h] = "backlink_hours"
	}
	for _, h := range c.CrawlingHours {
		if h < 0 || h > 23 {
			return fmt.Errorf("crawling_hours contains invalid hour %d", h)
		}
		if seen[h] == "backlink_hours" {
			return fmt.Errorf("hour %d appears in both backlink_hours and crawling_hours", h)
		}
	}

	return nil
}

// RequestTimeout returns the crawl fetch timeout.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// BacklinkTimeout returns the backlink fetch timeout.
func (c *Config) BacklinkTimeout() time.Duration {
	return time.Duration(c.BacklinkTimeoutSecs) * time.Second
}

// RequestDelay returns the fixed post-fetch delay.
func (c *Config) RequestDelay() time.Duration {
	return time.Duration(c.DelayBetweenRequestsMS) * time.Millisecond
}

// BacklinkDelay returns the minimum interval between discovery fetches.
func (c *Config) BacklinkDelay() time.Duration {
	return time.Duration(c.BacklinkDelayMS) * time.Millisecond
}

// SessionDuration returns the wall-clock budget of a discovery session.
func (c *Config) SessionDuration() time.Duration {
	return time.Duration(c.SessionDurationHours) * time.Hour
}

// CheckInterval returns the supervisor tick interval.
func (c *Config) CheckInterval() time.Duration {
	return time.Duration(c.CheckIntervalMinutes) * time.Minute
}

// Snapshot returns the canonical JSON form stored with a crawl session.
func (c *Config) Snapshot() string {
	data, err := json.Marshal(c)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// Save writes the configuration to a JSON file.
func (c *Config) Save(filePath string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Load reads a JSON configuration file. Missing keys keep their defaults.
func Load(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return config, nil
}

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c

	clone.UserAgents = make([]string, len(c.UserAgents))
	copy(clone.UserAgents, c.UserAgents)

	clone.BacklinkHours = make([]int, len(c.BacklinkHours))
	copy(clone.BacklinkHours, c.BacklinkHours)

	clone.CrawlingHours = make([]int, len(c.CrawlingHours))
	copy(clone.CrawlingHours, c.CrawlingHours)

	return &clone
}
