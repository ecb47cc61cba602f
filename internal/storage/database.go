package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Database handles all catalog operations. Writes serialize through one
// connection; reads share it.
type Database struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewDatabase opens (or creates) the catalog file.
func NewDatabase(path string) (*Database, error) {
	// SQLite connection with optimizations
	dsn := fmt.Sprintf("%s?_journal=WAL&_synchronous=NORMAL&_cache_size=10000&_busy_timeout=5000", path)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// SQLite only supports one writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	return &Database{db: db}, nil
}

// Initialize creates tables and views.
func (d *Database) Initialize() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := d.db.Exec(Schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	if _, err := d.db.Exec(ViewsSchema); err != nil {
		return fmt.Errorf("failed to create views: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// marshalList encodes a string slice as JSON text, never null.
func marshalList(items []string) string {
	if len(items) == 0 {
		return "[]"
	}
	data, err := json.Marshal(items)
	if err != nil {
		return "[]"
	}
	return string(data)
}

// unmarshalList decodes JSON text into a string slice.
func unmarshalList(data string) []string {
	if data == "" || data == "[]" {
		return nil
	}
	var items []string
	if err := json.Unmarshal([]byte(data), &items); err != nil {
		return nil
	}
	return items
}

// --- Seed Operations ---

// UpsertSeed inserts a seed URL. Re-adding an existing seed promotes its
// priority by one instead of resetting it.
func (d *Database) UpsertSeed(url string, priority int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, err := d.db.Exec(`
		INSERT INTO seed_urls (url, priority)
		VALUES (?, ?)
		ON CONFLICT(url) DO UPDATE SET
			priority = seed_urls.priority + 1
	`, url, priority)
	return err
}

// Seeds returns up to limit seeds, highest priority first and
// least-recently-crawled first within a priority.
func (d *Database) Seeds(limit int) ([]*SeedURL, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rows, err := d.db.Query(`
		SELECT id, url, added_at, priority, last_crawled, crawl_count
		FROM seed_urls
		ORDER BY priority DESC, last_crawled IS NOT NULL, last_crawled ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var seeds []*SeedURL
	for rows.Next() {
		var s SeedURL
		var lastCrawled sql.NullTime
		if err := rows.Scan(&s.ID, &s.URL, &s.AddedAt, &s.Priority, &lastCrawled, &s.CrawlCount); err != nil {
			return nil, err
		}
		if lastCrawled.Valid {
			t := lastCrawled.Time
			s.LastCrawled = &t
		}
		seeds = append(seeds, &s)
	}
	return seeds, rows.Err()
}

// SeedCount returns the number of stored seeds.
func (d *Database) SeedCount() (int64, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var count int64
	err := d.db.QueryRow(`SELECT COUNT(*) FROM seed_urls`).Scan(&count)
	return count, err
}

// TouchSeed records that a seed was just crawled.
func (d *Database) TouchSeed(url string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, err := d.db.Exec(`
		UPDATE seed_urls
		SET last_crawled = CURRENT_TIMESTAMP, crawl_count = crawl_count + 1
		WHERE url = ?
	`, url)
	return err
}

// --- Session Operations ---

// CreateSession inserts a new crawl session with status running.
func (d *Database) CreateSession(session *CrawlSession) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, err := d.db.Exec(`
		INSERT INTO crawl_sessions (id, start_time, seed_urls, config_json, status)
		VALUES (?, ?, ?, ?, ?)
	`, session.ID, session.StartTime, marshalList(session.SeedURLs), session.ConfigJSON, SessionRunning)
	return err
}

// EndSession sets the end time and final status of a session.
func (d *Database) EndSession(id, status string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, err := d.db.Exec(`
		UPDATE crawl_sessions
		SET status = ?, end_time = CURRENT_TIMESTAMP
		WHERE id = ?
	`, status, id)
	return err
}

// GetSession retrieves a session by ID.
func (d *Database) GetSession(id string) (*CrawlSession, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var s CrawlSession
	var seedsJSON string
	var endTime sql.NullTime
	err := d.db.QueryRow(`
		SELECT id, start_time, end_time, seed_urls, config_json, status
		FROM crawl_sessions WHERE id = ?
	`, id).Scan(&s.ID, &s.StartTime, &endTime, &seedsJSON, &s.ConfigJSON, &s.Status)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	s.SeedURLs = unmarshalList(seedsJSON)
	if endTime.Valid {
		t := endTime.Time
		s.EndTime = &t
	}
	return &s, nil
}

// AbortStaleSessions marks running sessions started before cutoff as
// aborted. Called on startup to clean up after crashes.
func (d *Database) AbortStaleSessions(cutoff time.Time) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	result, err := d.db.Exec(`
		UPDATE crawl_sessions
		SET status = ?, end_time = CURRENT_TIMESTAMP
		WHERE status = ? AND start_time < ?
	`, SessionAborted, SessionRunning, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// RecentSessions returns the newest sessions first.
func (d *Database) RecentSessions(limit int) ([]*CrawlSession, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rows, err := d.db.Query(`
		SELECT id, start_time, end_time, seed_urls, config_json, status
		FROM crawl_sessions
		ORDER BY start_time DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*CrawlSession
	for rows.Next() {
		var s CrawlSession
		var seedsJSON string
		var endTime sql.NullTime
		if err := rows.Scan(&s.ID, &s.StartTime, &endTime, &seedsJSON, &s.ConfigJSON, &s.Status); err != nil {
			return nil, err
		}
		s.SeedURLs = unmarshalList(seedsJSON)
		if endTime.Valid {
			t := endTime.Time
			s.EndTime = &t
		}
		sessions = append(sessions, &s)
	}
	return sessions, rows.Err()
}

// SessionCounts returns the number of sessions per status.
func (d *Database) SessionCounts() (map[string]int64, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rows, err := d.db.Query(`
		SELECT status, COUNT(*) FROM crawl_sessions GROUP BY status
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

// --- Page Operations ---

// InsertPage persists a crawled page. A URL can appear at most once per
// session.
func (d *Database) InsertPage(p *CrawledPage) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, err := d.db.Exec(`
		INSERT INTO crawled_pages (session_id, url, original_url, redirect_chain,
			title, meta_description, meta_keywords, canonical_url, robots_meta,
			h1_tags, h2_tags, language, charset, content_text, content_html,
			content_hash, word_count, page_size_bytes, http_status, response_time_ms,
			internal_links_count, external_links_count, images_count, crawl_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.SessionID, p.URL, p.OriginalURL, marshalList(p.RedirectChain),
		p.Title, p.MetaDescription, marshalList(p.MetaKeywords), p.CanonicalURL, p.RobotsMeta,
		marshalList(p.H1Tags), marshalList(p.H2Tags), p.Language, p.Charset, p.ContentText, p.ContentHTML,
		p.ContentHash, p.WordCount, p.PageSizeBytes, p.HTTPStatus, p.ResponseTimeMS,
		p.InternalLinksCount, p.ExternalLinksCount, p.ImagesCount, p.CrawlTime)
	return err
}

// scanner matches both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanPage(row scanner) (*CrawledPage, error) {
	var p CrawledPage
	var redirectChain, metaKeywords, h1Tags, h2Tags string
	err := row.Scan(&p.ID, &p.SessionID, &p.URL, &p.OriginalURL, &redirectChain,
		&p.Title, &p.MetaDescription, &metaKeywords, &p.CanonicalURL, &p.RobotsMeta,
		&h1Tags, &h2Tags, &p.Language, &p.Charset, &p.ContentText, &p.ContentHTML,
		&p.ContentHash, &p.WordCount, &p.PageSizeBytes, &p.HTTPStatus, &p.ResponseTimeMS,
		&p.InternalLinksCount, &p.ExternalLinksCount, &p.ImagesCount, &p.CrawlTime)
	if err != nil {
		return nil, err
	}
	p.RedirectChain = unmarshalList(redirectChain)
	p.MetaKeywords = unmarshalList(metaKeywords)
	p.H1Tags = unmarshalList(h1Tags)
	p.H2Tags = unmarshalList(h2Tags)
	return &p, nil
}

const pageColumns = `id, session_id, url, original_url, redirect_chain,
	title, meta_description, meta_keywords, canonical_url, robots_meta,
	h1_tags, h2_tags, language, charset, content_text, content_html,
	content_hash, word_count, page_size_bytes, http_status, response_time_ms,
	internal_links_count, external_links_count, images_count, crawl_time`

// GetPage retrieves a page by session and URL.
func (d *Database) GetPage(sessionID, url string) (*CrawledPage, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	page, err := scanPage(d.db.QueryRow(
		`SELECT `+pageColumns+` FROM crawled_pages WHERE session_id = ? AND url = ?`,
		sessionID, url))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return page, err
}

// SessionURLs returns up to limit URLs crawled in a session, in fetch
// completion order.
func (d *Database) SessionURLs(sessionID string, limit int) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rows, err := d.db.Query(`
		SELECT url FROM crawled_pages
		WHERE session_id = ?
		ORDER BY id ASC
		LIMIT ?
	`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, err
		}
		urls = append(urls, url)
	}
	return urls, rows.Err()
}

// SessionPages returns every page of a session in fetch completion order.
func (d *Database) SessionPages(sessionID string) ([]*CrawledPage, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rows, err := d.db.Query(
		`SELECT `+pageColumns+` FROM crawled_pages WHERE session_id = ? ORDER BY id ASC`,
		sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pages []*CrawledPage
	for rows.Next() {
		page, err := scanPage(rows)
		if err != nil {
			return nil, err
		}
		pages = append(pages, page)
	}
	return pages, rows.Err()
}

// PageSummary is the condensed page row served to the dashboard.
type PageSummary struct {
	SessionID          string    `json:"session_id"`
	URL                string    `json:"url"`
	Title              string    `json:"title"`
	HTTPStatus         int       `json:"http_status"`
	WordCount          int       `json:"word_count"`
	InternalLinksCount int       `json:"internal_links_count"`
	ExternalLinksCount int       `json:"external_links_count"`
	ResponseTimeMS     int64     `json:"response_time_ms"`
	CrawlTime          time.Time `json:"crawl_time"`
}

// RecentPages returns the most recently crawled pages, newest first.
func (d *Database) RecentPages(limit int) ([]*PageSummary, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rows, err := d.db.Query(`
		SELECT session_id, url, title, http_status, word_count,
			internal_links_count, external_links_count, response_time_ms, crawl_time
		FROM v_recent_pages
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pages []*PageSummary
	for rows.Next() {
		var p PageSummary
		if err := rows.Scan(&p.SessionID, &p.URL, &p.Title, &p.HTTPStatus, &p.WordCount,
			&p.InternalLinksCount, &p.ExternalLinksCount, &p.ResponseTimeMS, &p.CrawlTime); err != nil {
			return nil, err
		}
		pages = append(pages, &p)
	}
	return pages, rows.Err()
}

// PageCount returns the total number of crawled pages.
func (d *Database) PageCount() (int64, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var count int64
	err := d.db.QueryRow(`SELECT COUNT(*) FROM crawled_pages`).Scan(&count)
	return count, err
}

// CountPagesSince returns the number of pages crawled at or after t.
func (d *Database) CountPagesSince(t time.Time) (int64, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var count int64
	err := d.db.QueryRow(`SELECT COUNT(*) FROM crawled_pages WHERE crawl_time >= ?`, t).Scan(&count)
	return count, err
}

// PageAverages returns the mean response time and word count over all pages.
// Both are zero when no pages are stored.
func (d *Database) PageAverages() (avgResponseMS, avgWords float64, err error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	err = d.db.QueryRow(`
		SELECT COALESCE(AVG(response_time_ms), 0), COALESCE(AVG(word_count), 0)
		FROM crawled_pages
	`).Scan(&avgResponseMS, &avgWords)
	return avgResponseMS, avgWords, err
}

// HasPageWithHash reports whether any prior session stored this URL with an
// identical content hash. Used for change detection across sessions.
func (d *Database) HasPageWithHash(url, hash string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var one int
	err := d.db.QueryRow(`
		SELECT 1 FROM crawled_pages WHERE url = ? AND content_hash = ? LIMIT 1
	`, url, hash).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// --- Error Operations ---

// InsertError records a per-URL crawl failure.
func (d *Database) InsertError(e *CrawlError) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var status any
	if e.HTTPStatus != nil {
		status = *e.HTTPStatus
	}
	_, err := d.db.Exec(`
		INSERT INTO crawl_errors (session_id, url, error_type, error_message, http_status, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`, e.SessionID, e.URL, e.ErrorType, e.ErrorMessage, status, e.Timestamp)
	return err
}

// SessionErrors retrieves all errors recorded for a session.
func (d *Database) SessionErrors(sessionID string) ([]*CrawlError, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rows, err := d.db.Query(`
		SELECT id, session_id, url, error_type, error_message, http_status, timestamp
		FROM crawl_errors WHERE session_id = ?
		ORDER BY id ASC
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var errs []*CrawlError
	for rows.Next() {
		var e CrawlError
		var status sql.NullInt64
		if err := rows.Scan(&e.ID, &e.SessionID, &e.URL, &e.ErrorType, &e.ErrorMessage, &status, &e.Timestamp); err != nil {
			return nil, err
		}
		if status.Valid {
			s := int(status.Int64)
			e.HTTPStatus = &s
		}
		errs = append(errs, &e)
	}
	return errs, rows.Err()
}

// ErrorSummary returns per-type error counts for a session.
func (d *Database) ErrorSummary(sessionID string) (map[string]int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rows, err := d.db.Query(`
		SELECT error_type, count FROM v_error_summary WHERE session_id = ?
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summary := make(map[string]int)
	for rows.Next() {
		var errType string
		var count int
		if err := rows.Scan(&errType, &count); err != nil {
			return nil, err
		}
		summary[errType] = count
	}
	return summary, rows.Err()
}

// ErrorCounts returns per-type error counts across all sessions.
func (d *Database) ErrorCounts() (map[string]int64, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rows, err := d.db.Query(`
		SELECT error_type, COUNT(*) FROM crawl_errors GROUP BY error_type
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var errType string
		var count int64
		if err := rows.Scan(&errType, &count); err != nil {
			return nil, err
		}
		counts[errType] = count
	}
	return counts, rows.Err()
}

// --- Backlink Operations ---

// InsertBacklinks stores a batch of backlinks in one transaction. A repeat
// (source, target, anchor) replaces the earlier row.
func (d *Database) InsertBacklinks(links []*Backlink) error {
	if len(links) == 0 {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO backlinks (source_url, target_url, anchor_text,
			context, page_title, domain_authority, is_nofollow, discovered_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, link := range links {
		_, err := stmt.Exec(link.SourceURL, link.TargetURL, link.AnchorText,
			link.Context, link.PageTitle, link.DomainAuthority, link.IsNofollow, link.DiscoveredAt)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func scanBacklinks(rows *sql.Rows) ([]*Backlink, error) {
	var links []*Backlink
	for rows.Next() {
		var b Backlink
		if err := rows.Scan(&b.ID, &b.SourceURL, &b.TargetURL, &b.AnchorText,
			&b.Context, &b.PageTitle, &b.DomainAuthority, &b.IsNofollow, &b.DiscoveredAt); err != nil {
			return nil, err
		}
		links = append(links, &b)
	}
	return links, rows.Err()
}

// BacklinksForTarget retrieves backlinks pointing at a target URL.
func (d *Database) BacklinksForTarget(target string, limit int) ([]*Backlink, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rows, err := d.db.Query(`
		SELECT id, source_url, target_url, anchor_text, context, page_title,
			domain_authority, is_nofollow, discovered_at
		FROM backlinks WHERE target_url = ?
		ORDER BY id ASC
		LIMIT ?
	`, target, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBacklinks(rows)
}

// AllBacklinks retrieves up to limit backlinks in discovery order.
func (d *Database) AllBacklinks(limit int) ([]*Backlink, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rows, err := d.db.Query(`
		SELECT id, source_url, target_url, anchor_text, context, page_title,
			domain_authority, is_nofollow, discovered_at
		FROM backlinks
		ORDER BY id ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBacklinks(rows)
}

// BacklinkCount returns the total number of stored backlinks.
func (d *Database) BacklinkCount() (int64, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var count int64
	err := d.db.QueryRow(`SELECT COUNT(*) FROM backlinks`).Scan(&count)
	return count, err
}

// CountBacklinksSince returns the number of backlinks discovered at or
// after t.
func (d *Database) CountBacklinksSince(t time.Time) (int64, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var count int64
	err := d.db.QueryRow(`SELECT COUNT(*) FROM backlinks WHERE discovered_at >= ?`, t).Scan(&count)
	return count, err
}

// --- Score Operations ---

// ReplaceDomainScores overwrites the stored score of each listed domain.
func (d *Database) ReplaceDomainScores(scores []*DomainScore) error {
	if len(scores) == 0 {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO domain_scores (domain, authority_score,
			total_backlinks, unique_referring_domains, last_updated)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, s := range scores {
		if _, err := stmt.Exec(s.Domain, s.AuthorityScore, s.TotalBacklinks,
			s.UniqueReferringDomains, s.LastUpdated); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// ReplacePageRankScores overwrites the stored score of each listed URL.
func (d *Database) ReplacePageRankScores(scores []*PageRankScore) error {
	if len(scores) == 0 {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO pagerank_scores (url, pagerank_score, last_calculated)
		VALUES (?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, s := range scores {
		if _, err := stmt.Exec(s.URL, s.Score, s.LastCalculated); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetDomainScore retrieves the score row for one domain.
func (d *Database) GetDomainScore(domain string) (*DomainScore, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var s DomainScore
	err := d.db.QueryRow(`
		SELECT domain, authority_score, total_backlinks, unique_referring_domains, last_updated
		FROM domain_scores WHERE domain = ?
	`, domain).Scan(&s.Domain, &s.AuthorityScore, &s.TotalBacklinks, &s.UniqueReferringDomains, &s.LastUpdated)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// TopDomainScores returns referring domains ranked by authority.
func (d *Database) TopDomainScores(limit int) ([]*DomainScore, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rows, err := d.db.Query(`
		SELECT domain, authority_score, total_backlinks, unique_referring_domains, last_updated
		FROM v_top_referrers
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scores []*DomainScore
	for rows.Next() {
		var s DomainScore
		if err := rows.Scan(&s.Domain, &s.AuthorityScore, &s.TotalBacklinks,
			&s.UniqueReferringDomains, &s.LastUpdated); err != nil {
			return nil, err
		}
		scores = append(scores, &s)
	}
	return scores, rows.Err()
}

// TopPageRankScores returns target URLs ranked by PageRank.
func (d *Database) TopPageRankScores(limit int) ([]*PageRankScore, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rows, err := d.db.Query(`
		SELECT url, pagerank_score, last_calculated
		FROM pagerank_scores
		ORDER BY pagerank_score DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scores []*PageRankScore
	for rows.Next() {
		var s PageRankScore
		if err := rows.Scan(&s.URL, &s.Score, &s.LastCalculated); err != nil {
			return nil, err
		}
		scores = append(scores, &s)
	}
	return scores, rows.Err()
}

// UniqueDomainCount returns the number of distinct referring domains seen so
// far.
func (d *Database) UniqueDomainCount() (int64, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var count int64
	err := d.db.QueryRow(`SELECT COUNT(*) FROM domain_scores`).Scan(&count)
	return count, err
}

// --- Dashboard Operations ---

// UpdateDashboardStats overwrites the singleton stats row.
func (d *Database) UpdateDashboardStats(s *DashboardStats) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, err := d.db.Exec(`
		INSERT OR REPLACE INTO dashboard_stats (id, total_urls_crawled,
			total_backlinks_found, unique_domains, crawl_rate_per_hour,
			backlink_rate_per_hour, database_size_mb, current_mode,
			next_mode_switch, last_updated)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, s.TotalURLsCrawled, s.TotalBacklinksFound, s.UniqueDomains, s.CrawlRatePerHour,
		s.BacklinkRatePerHour, s.DatabaseSizeMB, s.CurrentMode, s.NextModeSwitch, s.LastUpdated)
	return err
}

// GetDashboardStats reads the singleton stats row. Returns nil before the
// first update.
func (d *Database) GetDashboardStats() (*DashboardStats, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var s DashboardStats
	var nextSwitch sql.NullTime
	err := d.db.QueryRow(`
		SELECT total_urls_crawled, total_backlinks_found, unique_domains,
			crawl_rate_per_hour, backlink_rate_per_hour, database_size_mb,
			current_mode, next_mode_switch, last_updated
		FROM dashboard_stats WHERE id = 1
	`).Scan(&s.TotalURLsCrawled, &s.TotalBacklinksFound, &s.UniqueDomains,
		&s.CrawlRatePerHour, &s.BacklinkRatePerHour, &s.DatabaseSizeMB,
		&s.CurrentMode, &nextSwitch, &s.LastUpdated)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if nextSwitch.Valid {
		s.NextModeSwitch = nextSwitch.Time
	}
	return &s, nil
}

// DatabaseSizeMB returns the catalog file size in megabytes.
func (d *Database) DatabaseSizeMB() (float64, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var pageCount, pageSize int64
	if err := d.db.QueryRow(`PRAGMA page_count`).Scan(&pageCount); err != nil {
		return 0, err
	}
	if err := d.db.QueryRow(`PRAGMA page_size`).Scan(&pageSize); err != nil {
		return 0, err
	}
	return float64(pageCount*pageSize) / (1024 * 1024), nil
}
