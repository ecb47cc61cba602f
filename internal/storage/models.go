// Package storage provides the durable catalog shared by every component:
// sessions, pages, errors, seeds, backlinks, scores and dashboard counters.
package storage

import "time"

// Session status values.
const (
	SessionRunning   = "running"
	SessionCompleted = "completed"
	SessionAborted   = "aborted"
)

// SeedURL is an entry point for crawling, operator-provided or discovered.
type SeedURL struct {
	ID          int64      `json:"id"`
	URL         string     `json:"url"`
	AddedAt     time.Time  `json:"added_at"`
	Priority    int        `json:"priority"` // higher = crawled sooner
	LastCrawled *time.Time `json:"last_crawled,omitempty"`
	CrawlCount  int        `json:"crawl_count"`
}

// CrawlSession groups the pages and errors of one crawl invocation.
type CrawlSession struct {
	ID         string     `json:"id"` // UUID
	StartTime  time.Time  `json:"start_time"`
	EndTime    *time.Time `json:"end_time,omitempty"`
	SeedURLs   []string   `json:"seed_urls"`
	ConfigJSON string     `json:"config_json"` // config snapshot
	Status     string     `json:"status"`      // running, completed, aborted
}

// CrawledPage is the structured record extracted from one fetched page.
type CrawledPage struct {
	ID                 int64     `json:"id"`
	SessionID          string    `json:"session_id"`
	URL                string    `json:"url"`
	OriginalURL        string    `json:"original_url"` // pre-redirect
	RedirectChain      []string  `json:"redirect_chain,omitempty"`
	Title              string    `json:"title"`
	MetaDescription    string    `json:"meta_description"`
	MetaKeywords       []string  `json:"meta_keywords,omitempty"`
	CanonicalURL       string    `json:"canonical_url"`
	RobotsMeta         string    `json:"robots_meta"`
	H1Tags             []string  `json:"h1_tags,omitempty"`
	H2Tags             []string  `json:"h2_tags,omitempty"`
	Language           string    `json:"language"`
	Charset            string    `json:"charset"`
	ContentText        string    `json:"content_text"`
	ContentHTML        string    `json:"content_html"`
	ContentHash        string    `json:"content_hash"` // SHA-256 hex of the raw body
	WordCount          int       `json:"word_count"`
	PageSizeBytes      int64     `json:"page_size_bytes"`
	HTTPStatus         int       `json:"http_status"`
	ResponseTimeMS     int64     `json:"response_time_ms"`
	InternalLinksCount int       `json:"internal_links_count"`
	ExternalLinksCount int       `json:"external_links_count"`
	ImagesCount        int       `json:"images_count"`
	CrawlTime          time.Time `json:"crawl_time"`
}

// CrawlError is a per-URL failure recorded against a session.
type CrawlError struct {
	ID           int64     `json:"id"`
	SessionID    string    `json:"session_id"`
	URL          string    `json:"url"`
	ErrorType    string    `json:"error_type"`
	ErrorMessage string    `json:"error_message"`
	HTTPStatus   *int      `json:"http_status,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Backlink is a hyperlink from a page on one host to a page on another.
type Backlink struct {
	ID              int64     `json:"id"`
	SourceURL       string    `json:"source_url"`
	TargetURL       string    `json:"target_url"`
	AnchorText      string    `json:"anchor_text"`
	Context         string    `json:"context"`    // surrounding text, <= 200 chars
	PageTitle       string    `json:"page_title"` // title of the source page
	DomainAuthority float64   `json:"domain_authority"`
	IsNofollow      bool      `json:"is_nofollow"`
	DiscoveredAt    time.Time `json:"discovered_at"`
}

// DomainScore is the normalized authority of a referring domain.
type DomainScore struct {
	Domain                 string    `json:"domain"`
	AuthorityScore         float64   `json:"authority_score"` // 0-100
	TotalBacklinks         int       `json:"total_backlinks"`
	UniqueReferringDomains int       `json:"unique_referring_domains"`
	LastUpdated            time.Time `json:"last_updated"`
}

// PageRankScore is the normalized one-pass rank of a target URL.
type PageRankScore struct {
	URL            string    `json:"url"`
	Score          float64   `json:"score"` // 0-100
	LastCalculated time.Time `json:"last_calculated"`
}

// DashboardStats is the singleton aggregate row consumed by the dashboard.
type DashboardStats struct {
	TotalURLsCrawled    int64     `json:"total_urls_crawled"`
	TotalBacklinksFound int64     `json:"total_backlinks_found"`
	UniqueDomains       int64     `json:"unique_domains"`
	CrawlRatePerHour    float64   `json:"crawl_rate_per_hour"`
	BacklinkRatePerHour float64   `json:"backlink_rate_per_hour"`
	DatabaseSizeMB      float64   `json:"database_size_mb"`
	CurrentMode         string    `json:"current_mode"`
	NextModeSwitch      time.Time `json:"next_mode_switch"`
	LastUpdated         time.Time `json:"last_updated"`
}
