package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *Database {
	t.Helper()

	db, err := NewDatabase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, db.Initialize())
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSeedPromotion(t *testing.T) {
	db := newTestDB(t)

	require.NoError(t, db.UpsertSeed("https://example.com", 5))
	require.NoError(t, db.UpsertSeed("https://example.com", 5))
	require.NoError(t, db.UpsertSeed("https://other.org", 3))

	seeds, err := db.Seeds(10)
	require.NoError(t, err)
	require.Len(t, seeds, 2)

	// Re-adding bumped the first seed from 5 to 6.
	assert.Equal(t, "https://example.com", seeds[0].URL)
	assert.Equal(t, 6, seeds[0].Priority)
	assert.Equal(t, "https://other.org", seeds[1].URL)
	assert.Equal(t, 3, seeds[1].Priority)

	count, err := db.SeedCount()
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestSeedsPreferNeverCrawled(t *testing.T) {
	db := newTestDB(t)

	require.NoError(t, db.UpsertSeed("https://crawled.com", 5))
	require.NoError(t, db.UpsertSeed("https://fresh.com", 5))
	require.NoError(t, db.TouchSeed("https://crawled.com"))

	seeds, err := db.Seeds(10)
	require.NoError(t, err)
	require.Len(t, seeds, 2)

	// Equal priority: the never-crawled seed comes first.
	assert.Equal(t, "https://fresh.com", seeds[0].URL)
	assert.Nil(t, seeds[0].LastCrawled)
	assert.Equal(t, "https://crawled.com", seeds[1].URL)
	assert.NotNil(t, seeds[1].LastCrawled)
	assert.Equal(t, 1, seeds[1].CrawlCount)
}

func TestSessionLifecycle(t *testing.T) {
	db := newTestDB(t)

	session := &CrawlSession{
		ID:         "session-1",
		StartTime:  time.Now().UTC(),
		SeedURLs:   []string{"https://a.com", "https://b.com"},
		ConfigJSON: `{"max_pages":100}`,
	}
	require.NoError(t, db.CreateSession(session))

	got, err := db.GetSession("session-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, SessionRunning, got.Status)
	assert.Equal(t, []string{"https://a.com", "https://b.com"}, got.SeedURLs)
	assert.Equal(t, `{"max_pages":100}`, got.ConfigJSON)
	assert.Nil(t, got.EndTime)

	require.NoError(t, db.EndSession("session-1", SessionCompleted))

	got, err = db.GetSession("session-1")
	require.NoError(t, err)
	assert.Equal(t, SessionCompleted, got.Status)
	assert.NotNil(t, got.EndTime)

	missing, err := db.GetSession("no-such-session")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestAbortStaleSessions(t *testing.T) {
	db := newTestDB(t)

	stale := &CrawlSession{ID: "stale", StartTime: time.Now().UTC().Add(-48 * time.Hour)}
	fresh := &CrawlSession{ID: "fresh", StartTime: time.Now().UTC()}
	require.NoError(t, db.CreateSession(stale))
	require.NoError(t, db.CreateSession(fresh))

	n, err := db.AbortStaleSessions(time.Now().UTC().Add(-24 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := db.GetSession("stale")
	require.NoError(t, err)
	assert.Equal(t, SessionAborted, got.Status)
	assert.NotNil(t, got.EndTime)

	got, err = db.GetSession("fresh")
	require.NoError(t, err)
	assert.Equal(t, SessionRunning, got.Status)
}

func TestPageRoundTrip(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.CreateSession(&CrawlSession{ID: "s1", StartTime: time.Now().UTC()}))

	page := &CrawledPage{
		SessionID:          "s1",
		URL:                "https://example.com/page",
		OriginalURL:        "http://example.com/page",
		RedirectChain:      []string{"http://example.com/page", "https://example.com/page"},
		Title:              "Example Page",
		MetaDescription:    "A page about examples",
		MetaKeywords:       []string{"example", "test"},
		CanonicalURL:       "https://example.com/page",
		RobotsMeta:         "index,follow",
		H1Tags:             []string{"Welcome"},
		H2Tags:             []string{"Section One", "Section Two"},
		Language:           "en",
		Charset:            "utf-8",
		ContentText:        "Welcome to the example page.",
		ContentHTML:        "<html><body>Welcome</body></html>",
		ContentHash:        "abc123",
		WordCount:          5,
		PageSizeBytes:      33,
		HTTPStatus:         200,
		ResponseTimeMS:     142,
		InternalLinksCount: 3,
		ExternalLinksCount: 2,
		ImagesCount:        1,
		CrawlTime:          time.Now().UTC(),
	}
	require.NoError(t, db.InsertPage(page))

	got, err := db.GetPage("s1", "https://example.com/page")
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, page.URL, got.URL)
	assert.Equal(t, page.OriginalURL, got.OriginalURL)
	assert.Equal(t, page.RedirectChain, got.RedirectChain)
	assert.Equal(t, page.Title, got.Title)
	assert.Equal(t, page.MetaDescription, got.MetaDescription)
	assert.Equal(t, page.MetaKeywords, got.MetaKeywords)
	assert.Equal(t, page.CanonicalURL, got.CanonicalURL)
	assert.Equal(t, page.RobotsMeta, got.RobotsMeta)
	assert.Equal(t, page.H1Tags, got.H1Tags)
	assert.Equal(t, page.H2Tags, got.H2Tags)
	assert.Equal(t, page.Language, got.Language)
	assert.Equal(t, page.Charset, got.Charset)
	assert.Equal(t, page.ContentText, got.ContentText)
	assert.Equal(t, page.ContentHTML, got.ContentHTML)
	assert.Equal(t, page.ContentHash, got.ContentHash)
	assert.Equal(t, page.WordCount, got.WordCount)
	assert.Equal(t, page.PageSizeBytes, got.PageSizeBytes)
	assert.Equal(t, page.HTTPStatus, got.HTTPStatus)
	assert.Equal(t, page.ResponseTimeMS, got.ResponseTimeMS)
	assert.Equal(t, page.InternalLinksCount, got.InternalLinksCount)
	assert.Equal(t, page.ExternalLinksCount, got.ExternalLinksCount)
	assert.Equal(t, page.ImagesCount, got.ImagesCount)
	assert.WithinDuration(t, page.CrawlTime, got.CrawlTime, time.Second)
}

func TestPageUniquePerSession(t *testing.T) {
	db := newTestDB(t)
	now := time.Now().UTC()
	require.NoError(t, db.CreateSession(&CrawlSession{ID: "s1", StartTime: now}))
	require.NoError(t, db.CreateSession(&CrawlSession{ID: "s2", StartTime: now}))

	page := &CrawledPage{SessionID: "s1", URL: "https://example.com", CrawlTime: now}
	require.NoError(t, db.InsertPage(page))

	// Same URL in the same session violates the unique constraint.
	assert.Error(t, db.InsertPage(page))

	// Same URL in a different session is fine.
	page2 := &CrawledPage{SessionID: "s2", URL: "https://example.com", CrawlTime: now}
	assert.NoError(t, db.InsertPage(page2))

	count, err := db.PageCount()
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestHasPageWithHash(t *testing.T) {
	db := newTestDB(t)
	now := time.Now().UTC()
	require.NoError(t, db.CreateSession(&CrawlSession{ID: "s1", StartTime: now}))
	require.NoError(t, db.InsertPage(&CrawledPage{
		SessionID: "s1", URL: "https://example.com", ContentHash: "hash-a", CrawlTime: now,
	}))

	seen, err := db.HasPageWithHash("https://example.com", "hash-a")
	require.NoError(t, err)
	assert.True(t, seen)

	seen, err = db.HasPageWithHash("https://example.com", "hash-b")
	require.NoError(t, err)
	assert.False(t, seen)

	seen, err = db.HasPageWithHash("https://nope.com", "hash-a")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestSessionURLsOrder(t *testing.T) {
	db := newTestDB(t)
	now := time.Now().UTC()
	require.NoError(t, db.CreateSession(&CrawlSession{ID: "s1", StartTime: now}))

	for _, u := range []string{"https://a.com", "https://b.com", "https://c.com"} {
		require.NoError(t, db.InsertPage(&CrawledPage{SessionID: "s1", URL: u, CrawlTime: now}))
	}

	urls, err := db.SessionURLs("s1", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.com", "https://b.com"}, urls)
}

func TestErrorOperations(t *testing.T) {
	db := newTestDB(t)
	now := time.Now().UTC()
	require.NoError(t, db.CreateSession(&CrawlSession{ID: "s1", StartTime: now}))

	status := 404
	require.NoError(t, db.InsertError(&CrawlError{
		SessionID: "s1", URL: "https://example.com/missing",
		ErrorType: "http_error", ErrorMessage: "HTTP 404", HTTPStatus: &status, Timestamp: now,
	}))
	require.NoError(t, db.InsertError(&CrawlError{
		SessionID: "s1", URL: "https://slow.example.com",
		ErrorType: "timeout_error", ErrorMessage: "deadline exceeded", Timestamp: now,
	}))
	require.NoError(t, db.InsertError(&CrawlError{
		SessionID: "s1", URL: "https://example.com/gone",
		ErrorType: "http_error", ErrorMessage: "HTTP 410", Timestamp: now,
	}))

	errs, err := db.SessionErrors("s1")
	require.NoError(t, err)
	require.Len(t, errs, 3)
	require.NotNil(t, errs[0].HTTPStatus)
	assert.Equal(t, 404, *errs[0].HTTPStatus)
	assert.Nil(t, errs[1].HTTPStatus)

	summary, err := db.ErrorSummary("s1")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"http_error": 2, "timeout_error": 1}, summary)
}

func TestBacklinkDedupe(t *testing.T) {
	db := newTestDB(t)
	now := time.Now().UTC()

	link := &Backlink{
		SourceURL:    "https://blog.example.com/post",
		TargetURL:    "https://target.com",
		AnchorText:   "great site",
		Context:      "I found this great site yesterday",
		PageTitle:    "My Blog",
		IsNofollow:   false,
		DiscoveredAt: now,
	}
	require.NoError(t, db.InsertBacklinks([]*Backlink{link}))

	// Same (source, target, anchor) replaces rather than duplicates.
	link.Context = "updated context"
	require.NoError(t, db.InsertBacklinks([]*Backlink{link}))

	count, err := db.BacklinkCount()
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	links, err := db.BacklinksForTarget("https://target.com", 10)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "updated context", links[0].Context)

	// A different anchor from the same page is a distinct backlink.
	other := *link
	other.AnchorText = "click here"
	require.NoError(t, db.InsertBacklinks([]*Backlink{&other}))

	count, err = db.BacklinkCount()
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestDomainScores(t *testing.T) {
	db := newTestDB(t)
	now := time.Now().UTC()

	scores := []*DomainScore{
		{Domain: "strong.com", AuthorityScore: 100, TotalBacklinks: 10, UniqueReferringDomains: 1, LastUpdated: now},
		{Domain: "weak.com", AuthorityScore: 20, TotalBacklinks: 2, UniqueReferringDomains: 1, LastUpdated: now},
	}
	require.NoError(t, db.ReplaceDomainScores(scores))

	got, err := db.GetDomainScore("strong.com")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, float64(100), got.AuthorityScore)
	assert.Equal(t, 10, got.TotalBacklinks)

	// Replacing overwrites instead of accumulating.
	scores[0].AuthorityScore = 80
	require.NoError(t, db.ReplaceDomainScores(scores[:1]))
	got, err = db.GetDomainScore("strong.com")
	require.NoError(t, err)
	assert.Equal(t, float64(80), got.AuthorityScore)

	top, err := db.TopDomainScores(10)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "strong.com", top[0].Domain)
	assert.Equal(t, 1, top[0].UniqueReferringDomains)

	n, err := db.UniqueDomainCount()
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestPageRankScores(t *testing.T) {
	db := newTestDB(t)
	now := time.Now().UTC()

	require.NoError(t, db.ReplacePageRankScores([]*PageRankScore{
		{URL: "https://target.com/a", Score: 100, LastCalculated: now},
		{URL: "https://target.com/b", Score: 40, LastCalculated: now},
	}))

	top, err := db.TopPageRankScores(1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "https://target.com/a", top[0].URL)
	assert.Equal(t, float64(100), top[0].Score)
}

func TestDashboardStatsSingleton(t *testing.T) {
	db := newTestDB(t)

	// Nothing written yet.
	stats, err := db.GetDashboardStats()
	require.NoError(t, err)
	assert.Nil(t, stats)

	now := time.Now().UTC()
	require.NoError(t, db.UpdateDashboardStats(&DashboardStats{
		TotalURLsCrawled: 10, CurrentMode: "crawling", NextModeSwitch: now.Add(time.Hour), LastUpdated: now,
	}))
	require.NoError(t, db.UpdateDashboardStats(&DashboardStats{
		TotalURLsCrawled: 25, TotalBacklinksFound: 4, CurrentMode: "backlink",
		NextModeSwitch: now.Add(2 * time.Hour), LastUpdated: now,
	}))

	stats, err = db.GetDashboardStats()
	require.NoError(t, err)
	require.NotNil(t, stats)
	assert.Equal(t, int64(25), stats.TotalURLsCrawled)
	assert.Equal(t, int64(4), stats.TotalBacklinksFound)
	assert.Equal(t, "backlink", stats.CurrentMode)
}

func TestCountsSince(t *testing.T) {
	db := newTestDB(t)
	now := time.Now().UTC()
	require.NoError(t, db.CreateSession(&CrawlSession{ID: "s1", StartTime: now}))

	require.NoError(t, db.InsertPage(&CrawledPage{
		SessionID: "s1", URL: "https://old.com", CrawlTime: now.Add(-2 * time.Hour),
	}))
	require.NoError(t, db.InsertPage(&CrawledPage{
		SessionID: "s1", URL: "https://new.com", CrawlTime: now,
	}))

	n, err := db.CountPagesSince(now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, db.InsertBacklinks([]*Backlink{
		{SourceURL: "https://a.com", TargetURL: "https://t.com", AnchorText: "x", DiscoveredAt: now.Add(-2 * time.Hour)},
		{SourceURL: "https://b.com", TargetURL: "https://t.com", AnchorText: "y", DiscoveredAt: now},
	}))

	n, err = db.CountBacklinksSince(now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestRecentPages(t *testing.T) {
	db := newTestDB(t)
	now := time.Now().UTC()
	require.NoError(t, db.CreateSession(&CrawlSession{ID: "s1", StartTime: now}))

	for i, u := range []string{"https://first.com", "https://second.com", "https://third.com"} {
		require.NoError(t, db.InsertPage(&CrawledPage{
			SessionID: "s1", URL: u, Title: u, HTTPStatus: 200,
			CrawlTime: now.Add(time.Duration(i) * time.Minute),
		}))
	}

	recent, err := db.RecentPages(2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "https://third.com", recent[0].URL)
	assert.Equal(t, "https://second.com", recent[1].URL)
	assert.Equal(t, 200, recent[0].HTTPStatus)
}

func TestDatabaseSizeMB(t *testing.T) {
	db := newTestDB(t)

	size, err := db.DatabaseSizeMB()
	require.NoError(t, err)
	assert.Greater(t, size, 0.0)
}

func TestRecentSessionsAndCounts(t *testing.T) {
	db := newTestDB(t)
	now := time.Now().UTC()

	require.NoError(t, db.CreateSession(&CrawlSession{ID: "older", StartTime: now.Add(-time.Hour)}))
	require.NoError(t, db.CreateSession(&CrawlSession{ID: "newer", StartTime: now}))
	require.NoError(t, db.EndSession("older", SessionCompleted))

	sessions, err := db.RecentSessions(10)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "newer", sessions[0].ID)
	assert.Equal(t, "older", sessions[1].ID)

	counts, err := db.SessionCounts()
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[SessionRunning])
	assert.Equal(t, int64(1), counts[SessionCompleted])
}

func TestErrorCounts(t *testing.T) {
	db := newTestDB(t)
	now := time.Now().UTC()
	require.NoError(t, db.CreateSession(&CrawlSession{ID: "s1", StartTime: now}))
	require.NoError(t, db.CreateSession(&CrawlSession{ID: "s2", StartTime: now}))

	for i, e := range []*CrawlError{
		{SessionID: "s1", URL: "https://a.com", ErrorType: "timeout_error"},
		{SessionID: "s1", URL: "https://b.com", ErrorType: "http_error"},
		{SessionID: "s2", URL: "https://c.com", ErrorType: "timeout_error"},
	} {
		e.Timestamp = now.Add(time.Duration(i) * time.Second)
		require.NoError(t, db.InsertError(e))
	}

	counts, err := db.ErrorCounts()
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts["timeout_error"])
	assert.Equal(t, int64(1), counts["http_error"])
}

func TestPageAverages(t *testing.T) {
	db := newTestDB(t)
	now := time.Now().UTC()

	avgMS, avgWords, err := db.PageAverages()
	require.NoError(t, err)
	assert.Zero(t, avgMS)
	assert.Zero(t, avgWords)

	require.NoError(t, db.CreateSession(&CrawlSession{ID: "s1", StartTime: now}))
	require.NoError(t, db.InsertPage(&CrawledPage{
		SessionID: "s1", URL: "https://a.com", ResponseTimeMS: 100, WordCount: 200, CrawlTime: now,
	}))
	require.NoError(t, db.InsertPage(&CrawledPage{
		SessionID: "s1", URL: "https://b.com", ResponseTimeMS: 300, WordCount: 400, CrawlTime: now,
	}))

	avgMS, avgWords, err = db.PageAverages()
	require.NoError(t, err)
	assert.InDelta(t, 200.0, avgMS, 0.001)
	assert.InDelta(t, 300.0, avgWords, 0.001)
}
