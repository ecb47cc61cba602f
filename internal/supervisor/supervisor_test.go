package supervisor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rat-crawler/ratcrawler/internal/config"
	"github.com/rat-crawler/ratcrawler/internal/schedule"
	"github.com/rat-crawler/ratcrawler/internal/storage"
	"github.com/rat-crawler/ratcrawler/internal/testutil"
	"github.com/rat-crawler/ratcrawler/internal/urlutil"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.DatabasePath = filepath.Join(dir, "crawl.db")
	cfg.SeedFile = filepath.Join(dir, "seed_urls.json")
	cfg.DelayBetweenRequestsMS = 0
	cfg.BacklinkDelayMS = 0
	cfg.TimeoutSecs = 5
	cfg.BacklinkTimeoutSecs = 5
	cfg.MaxPages = 50
	cfg.MaxDepth = 3
	return cfg
}

func allHours() []int {
	hours := make([]int, 24)
	for i := range hours {
		hours[i] = i
	}
	return hours
}

func newTestSupervisor(t *testing.T, cfg *config.Config) (*Supervisor, *storage.Database) {
	t.Helper()

	db, err := storage.NewDatabase(cfg.DatabasePath)
	require.NoError(t, err)
	require.NoError(t, db.Initialize())
	t.Cleanup(func() { db.Close() })

	s := New(cfg, db)
	t.Cleanup(s.Close)
	return s, db
}

// linkedSites builds a target site and a second site whose /review page
// links back to the target's root.
func linkedSites(t *testing.T) (target, ref *testutil.Server) {
	t.Helper()

	target = testutil.NewServer()
	t.Cleanup(target.Close)
	ref = testutil.NewServer()
	t.Cleanup(ref.Close)

	ref.AddPage("/review", testutil.PageWithBacklink(
		"Review", target.URL()+"/", "the target", "We looked at", "in depth.", false))
	target.AddPage("/", testutil.PageWithLinks("Target home", ref.URL()+"/review"))
	return target, ref
}

func TestBootstrapSeedsFromFile(t *testing.T) {
	cfg := testConfig(t)
	seedJSON := `["HTTP://Example.com/Page/", "not a url", "https://other.test/"]`
	require.NoError(t, os.WriteFile(cfg.SeedFile, []byte(seedJSON), 0o644))

	s, db := newTestSupervisor(t, cfg)
	require.NoError(t, s.startup())

	seeds, err := db.Seeds(10)
	require.NoError(t, err)
	require.Len(t, seeds, 2)

	urls := make(map[string]int)
	for _, sd := range seeds {
		urls[sd.URL] = sd.Priority
	}
	assert.Equal(t, bootstrapPriority, urls["http://example.com/Page"])
	assert.Equal(t, bootstrapPriority, urls["https://other.test/"])

	// A populated table wins over the file on later startups.
	require.NoError(t, s.startup())
	count, err := db.SeedCount()
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestBootstrapMissingFileIsFine(t *testing.T) {
	cfg := testConfig(t)
	s, db := newTestSupervisor(t, cfg)

	require.NoError(t, s.startup())

	count, err := db.SeedCount()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestBootstrapMalformedFileIsFine(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.WriteFile(cfg.SeedFile, []byte(`{"seeds": [}`), 0o644))

	s, db := newTestSupervisor(t, cfg)
	require.NoError(t, s.startup())

	count, err := db.SeedCount()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestStartupAbortsStaleSessions(t *testing.T) {
	cfg := testConfig(t)
	s, db := newTestSupervisor(t, cfg)

	stale := &storage.CrawlSession{
		ID:        uuid.NewString(),
		StartTime: time.Now().UTC().Add(-3 * time.Hour),
		SeedURLs:  []string{"https://example.com/"},
	}
	require.NoError(t, db.CreateSession(stale))
	fresh := &storage.CrawlSession{
		ID:        uuid.NewString(),
		StartTime: time.Now().UTC(),
		SeedURLs:  []string{"https://example.org/"},
	}
	require.NoError(t, db.CreateSession(fresh))

	require.NoError(t, s.startup())

	got, err := db.GetSession(stale.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, storage.SessionAborted, got.Status)
	assert.NotNil(t, got.EndTime)

	got, err = db.GetSession(fresh.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, storage.SessionRunning, got.Status)
}

func TestTickCrawlsInCrawlingMode(t *testing.T) {
	site := testutil.NewServer()
	defer site.Close()
	site.BuildSite()

	cfg := testConfig(t)
	cfg.CrawlingHours = allHours()
	cfg.BacklinkHours = nil
	s, db := newTestSupervisor(t, cfg)

	require.NoError(t, db.UpsertSeed(site.URL()+"/", bootstrapPriority))
	s.tick(context.Background())

	pages, err := db.PageCount()
	require.NoError(t, err)
	assert.Greater(t, pages, int64(0))

	// The crawl engine marks the seed crawled.
	seeds, err := db.Seeds(10)
	require.NoError(t, err)
	require.Len(t, seeds, 1)
	assert.Equal(t, 1, seeds[0].CrawlCount)
	assert.NotNil(t, seeds[0].LastCrawled)

	stats, err := db.GetDashboardStats()
	require.NoError(t, err)
	require.NotNil(t, stats)
	assert.Equal(t, string(schedule.ModeCrawling), stats.CurrentMode)
	assert.Equal(t, pages, stats.TotalURLsCrawled)
}

func TestTickAnalyzesBacklinksInBacklinkMode(t *testing.T) {
	target, ref := linkedSites(t)

	cfg := testConfig(t)
	cfg.BacklinkHours = allHours()
	cfg.CrawlingHours = nil
	s, db := newTestSupervisor(t, cfg)

	require.NoError(t, db.UpsertSeed(target.URL()+"/", bootstrapPriority))
	s.tick(context.Background())

	count, err := db.BacklinkCount()
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	// The referring site's origin became a low-priority seed.
	origin, err := urlutil.ExtractOrigin(ref.URL())
	require.NoError(t, err)
	seeds, err := db.Seeds(10)
	require.NoError(t, err)
	var promoted *storage.SeedURL
	for _, sd := range seeds {
		if sd.URL == origin+"/" {
			promoted = sd
		}
	}
	require.NotNil(t, promoted, "referring origin was not promoted to a seed")
	assert.Equal(t, discoveredSeedPriority, promoted.Priority)

	stats, err := db.GetDashboardStats()
	require.NoError(t, err)
	require.NotNil(t, stats)
	assert.Equal(t, string(schedule.ModeBacklink), stats.CurrentMode)
	assert.Equal(t, int64(1), stats.TotalBacklinksFound)
}

func TestUpdateStatsWritesSnapshot(t *testing.T) {
	cfg := testConfig(t)
	s, db := newTestSupervisor(t, cfg)

	before := time.Now().UTC().Add(-time.Second)
	s.updateStats()

	stats, err := db.GetDashboardStats()
	require.NoError(t, err)
	require.NotNil(t, stats)
	assert.Zero(t, stats.TotalURLsCrawled)
	assert.Contains(t, []string{
		string(schedule.ModeCrawling),
		string(schedule.ModeBacklink),
		string(schedule.ModeIdle),
	}, stats.CurrentMode)
	assert.True(t, stats.NextModeSwitch.After(before))
	assert.False(t, stats.LastUpdated.IsZero())
}

func TestRunStopsWhenContextEnds(t *testing.T) {
	cfg := testConfig(t)
	cfg.CrawlingHours = nil
	cfg.BacklinkHours = nil
	s, _ := newTestSupervisor(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("supervisor did not stop after cancel")
	}
}

func TestRunIntegrated(t *testing.T) {
	target, ref := linkedSites(t)

	cfg := testConfig(t)
	s, db := newTestSupervisor(t, cfg)

	res, err := s.RunIntegrated(context.Background(), []string{target.URL() + "/"})
	require.NoError(t, err)
	require.NotNil(t, res.Crawl)
	require.NotNil(t, res.Report)

	assert.Equal(t, int64(1), res.Report.TotalPagesCrawled)
	assert.Equal(t, 1, res.Report.BacklinkAnalysesCompleted)
	assert.Equal(t, 1, res.Report.TotalBacklinksFound)
	assert.Equal(t, 1, res.Report.TotalUniqueDomains)
	assert.Zero(t, res.Report.TotalSpamBacklinks)
	assert.Zero(t, res.Report.CrawlErrors)
	require.Len(t, res.Analyses, 1)
	assert.Equal(t, target.URL()+"/", res.Analyses[0].TargetURL)

	// Discovery promoted the referring origin.
	origin, err := urlutil.ExtractOrigin(ref.URL())
	require.NoError(t, err)
	seeds, err := db.Seeds(10)
	require.NoError(t, err)
	var found bool
	for _, sd := range seeds {
		if sd.URL == origin+"/" {
			found = true
		}
	}
	assert.True(t, found, "referring origin was not promoted to a seed")
}

func TestRunIntegratedCapsAnalyses(t *testing.T) {
	site := testutil.NewServer()
	defer site.Close()
	site.AddPage("/", testutil.PageWithLinks("Home", site.URL()+"/a", site.URL()+"/b"))
	site.AddPage("/a", testutil.PageWithLinks("A"))
	site.AddPage("/b", testutil.PageWithLinks("B"))

	cfg := testConfig(t)
	cfg.MaxBacklinkAnalyses = 1
	s, _ := newTestSupervisor(t, cfg)

	res, err := s.RunIntegrated(context.Background(), []string{site.URL() + "/"})
	require.NoError(t, err)

	assert.Equal(t, int64(3), res.Crawl.PagesCrawled)
	assert.Len(t, res.Analyses, 1)
	assert.Equal(t, 1, res.Report.BacklinkAnalysesCompleted)
}

func TestAnalyzeDomain(t *testing.T) {
	site := testutil.NewServer()
	defer site.Close()
	site.AddPage("/", testutil.PageWithLinks("Home", site.URL()+"/about"))
	site.AddPage("/about", testutil.PageWithLinks("About"))

	cfg := testConfig(t)
	s, _ := newTestSupervisor(t, cfg)

	domain, err := urlutil.ExtractHostPort(site.URL())
	require.NoError(t, err)

	da, err := s.AnalyzeDomain(context.Background(), domain)
	require.NoError(t, err)

	assert.Equal(t, domain, da.Domain)
	assert.Equal(t, int64(2), da.PagesCrawled)
	require.NotNil(t, da.Backlinks)
	assert.Zero(t, da.Backlinks.TotalBacklinks)
	// The https seed variants cannot reach a plain-HTTP fixture.
	assert.Equal(t, int64(1), da.CrawlErrors)
}

func TestLoadSeedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seeds.json")
	require.NoError(t, os.WriteFile(path, []byte(`["https://a.test/", "https://b.test/"]`), 0o644))

	urls, err := LoadSeedFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.test/", "https://b.test/"}, urls)

	_, err = LoadSeedFile(filepath.Join(dir, "absent.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
