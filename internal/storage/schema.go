package storage

// Schema contains SQL statements to create catalog tables.
const Schema = `
-- Seed URLs table: crawl entry points, operator-provided or discovered
CREATE TABLE IF NOT EXISTS seed_urls (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    url TEXT NOT NULL UNIQUE,
    added_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    priority INTEGER DEFAULT 1,
    last_crawled DATETIME,
    crawl_count INTEGER DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_seed_urls_priority ON seed_urls(priority DESC);

-- Crawl sessions table: one row per crawl invocation
CREATE TABLE IF NOT EXISTS crawl_sessions (
    id TEXT PRIMARY KEY,
    start_time DATETIME NOT NULL,
    end_time DATETIME,
    seed_urls TEXT,
    config_json TEXT,
    status TEXT DEFAULT 'running'
);

CREATE INDEX IF NOT EXISTS idx_crawl_sessions_status ON crawl_sessions(status);

-- Crawled pages table: extracted page records, append-only
CREATE TABLE IF NOT EXISTS crawled_pages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT NOT NULL REFERENCES crawl_sessions(id),
    url TEXT NOT NULL,
    original_url TEXT,
    redirect_chain TEXT,
    title TEXT,
    meta_description TEXT,
    meta_keywords TEXT,
    canonical_url TEXT,
    robots_meta TEXT,
    h1_tags TEXT,
    h2_tags TEXT,
    language TEXT,
    charset TEXT,
    content_text TEXT,
    content_html TEXT,
    content_hash TEXT,
    word_count INTEGER DEFAULT 0,
    page_size_bytes INTEGER DEFAULT 0,
    http_status INTEGER,
    response_time_ms INTEGER DEFAULT 0,
    internal_links_count INTEGER DEFAULT 0,
    external_links_count INTEGER DEFAULT 0,
    images_count INTEGER DEFAULT 0,
    crawl_time DATETIME DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(session_id, url)
);

CREATE INDEX IF NOT EXISTS idx_crawled_pages_url ON crawled_pages(url);
CREATE INDEX IF NOT EXISTS idx_crawled_pages_crawl_time ON crawled_pages(crawl_time);
CREATE INDEX IF NOT EXISTS idx_crawled_pages_content_hash ON crawled_pages(content_hash);

-- Crawl errors table: per-URL failures, append-only
CREATE TABLE IF NOT EXISTS crawl_errors (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT NOT NULL REFERENCES crawl_sessions(id),
    url TEXT NOT NULL,
    error_type TEXT NOT NULL,
    error_message TEXT,
    http_status INTEGER,
    timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_crawl_errors_session ON crawl_errors(session_id);
CREATE INDEX IF NOT EXISTS idx_crawl_errors_type ON crawl_errors(error_type);

-- Backlinks table: cross-host links, keyed by (source, target, anchor)
CREATE TABLE IF NOT EXISTS backlinks (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    source_url TEXT NOT NULL,
    target_url TEXT NOT NULL,
    anchor_text TEXT,
    context TEXT,
    page_title TEXT,
    domain_authority REAL DEFAULT 0,
    is_nofollow BOOLEAN DEFAULT 0,
    discovered_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(source_url, target_url, anchor_text)
);

CREATE INDEX IF NOT EXISTS idx_backlinks_source ON backlinks(source_url);
CREATE INDEX IF NOT EXISTS idx_backlinks_target ON backlinks(target_url);

-- Domain scores table: recomputed after each discovery session
CREATE TABLE IF NOT EXISTS domain_scores (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    domain TEXT NOT NULL UNIQUE,
    authority_score REAL DEFAULT 0,
    total_backlinks INTEGER DEFAULT 0,
    unique_referring_domains INTEGER DEFAULT 0,
    last_updated DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- PageRank scores table: recomputed after each discovery session
CREATE TABLE IF NOT EXISTS pagerank_scores (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    url TEXT NOT NULL UNIQUE,
    pagerank_score REAL DEFAULT 0,
    last_calculated DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Dashboard stats: singleton row (id = 1)
CREATE TABLE IF NOT EXISTS dashboard_stats (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    total_urls_crawled INTEGER DEFAULT 0,
    total_backlinks_found INTEGER DEFAULT 0,
    unique_domains INTEGER DEFAULT 0,
    crawl_rate_per_hour REAL DEFAULT 0,
    backlink_rate_per_hour REAL DEFAULT 0,
    database_size_mb REAL DEFAULT 0,
    current_mode TEXT DEFAULT 'idle',
    next_mode_switch DATETIME,
    last_updated DATETIME DEFAULT CURRENT_TIMESTAMP
);
`

// ViewsSchema contains SQL for reporting views.
const ViewsSchema = `
-- View: recent pages with their essential columns
CREATE VIEW IF NOT EXISTS v_recent_pages AS
SELECT
    p.session_id,
    p.url,
    p.title,
    p.http_status,
    p.word_count,
    p.internal_links_count,
    p.external_links_count,
    p.response_time_ms,
    p.crawl_time
FROM crawled_pages p
ORDER BY p.crawl_time DESC;

-- View: error counts per session and type
CREATE VIEW IF NOT EXISTS v_error_summary AS
SELECT
    session_id,
    error_type,
    COUNT(*) as count
FROM crawl_errors
GROUP BY session_id, error_type;

-- View: referring domains ranked by authority
CREATE VIEW IF NOT EXISTS v_top_referrers AS
SELECT
    d.domain,
    d.authority_score,
    d.total_backlinks,
    d.unique_referring_domains,
    d.last_updated
FROM domain_scores d
ORDER BY d.authority_score DESC, d.total_backlinks DESC;
`
