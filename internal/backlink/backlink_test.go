package backlink

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rat-crawler/ratcrawler/internal/config"
	"github.com/rat-crawler/ratcrawler/internal/crawlerr"
	"github.com/rat-crawler/ratcrawler/internal/storage"
	"github.com/rat-crawler/ratcrawler/internal/testutil"
	"github.com/rat-crawler/ratcrawler/internal/urlutil"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.DatabasePath = filepath.Join(t.TempDir(), "backlinks.db")
	cfg.BacklinkDelayMS = 0
	cfg.BacklinkTimeoutSecs = 5
	cfg.MaxDepth = 3
	cfg.MaxBacklinkPages = 100
	return cfg
}

func newTestEngine(t *testing.T, cfg *config.Config) (*Engine, *storage.Database) {
	t.Helper()

	db, err := storage.NewDatabase(cfg.DatabasePath)
	require.NoError(t, err)
	require.NoError(t, db.Initialize())
	t.Cleanup(func() { db.Close() })

	engine := NewEngine(cfg, db)
	t.Cleanup(engine.Close)
	return engine, db
}

// referrerPage holds two anchors at the target host wrapped in prose, the
// first marked nofollow.
func referrerPage(targetBase string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><title>Review of the target</title></head>
<body>
<p>We linked <a href=%q rel="nofollow">X</a> for reference.</p>
<p>And <a href=%q>Y</a> as well.</p>
</body>
</html>`, targetBase+"/x", targetBase+"/y")
}

func TestDiscoverBacklinks(t *testing.T) {
	ref := testutil.NewServer()
	defer ref.Close()
	target := testutil.NewServer()
	defer target.Close()

	ref.AddPage("/review", referrerPage(target.URL()))
	// The target's own page links outward to the referrer and inward to
	// itself. Only the outward link should be followed.
	target.AddPage("/", testutil.PageWithLinks("Target", ref.URL()+"/review", "/about"))

	engine, db := newTestEngine(t, testConfig(t))

	analysis, backlinks, err := engine.DiscoverBacklinks(context.Background(), target.URL(), 2)
	require.NoError(t, err)

	assert.Equal(t, 2, analysis.TotalBacklinks)
	assert.Equal(t, 1, analysis.UniqueDomains)
	assert.Zero(t, analysis.SpamBacklinks)

	require.Len(t, backlinks, 2)
	first, second := backlinks[0], backlinks[1]

	assert.Equal(t, ref.URL()+"/review", first.SourceURL)
	assert.Equal(t, target.URL()+"/x", first.TargetURL)
	assert.Equal(t, "X", first.AnchorText)
	assert.True(t, first.IsNofollow)
	assert.Equal(t, "We linked for reference.", first.Context)
	assert.Equal(t, "Review of the target", first.PageTitle)

	assert.Equal(t, target.URL()+"/y", second.TargetURL)
	assert.Equal(t, "Y", second.AnchorText)
	assert.False(t, second.IsNofollow)
	assert.Equal(t, "And as well.", second.Context)

	// The sole referring domain normalizes to full authority.
	refHost, err := urlutil.ExtractHostPort(ref.URL())
	require.NoError(t, err)
	score, err := db.GetDomainScore(refHost)
	require.NoError(t, err)
	require.NotNil(t, score)
	assert.InDelta(t, 100.0, score.AuthorityScore, 0.001)
	assert.Equal(t, 2, score.TotalBacklinks)

	assert.InDelta(t, 100.0, first.DomainAuthority, 0.001)

	// Both linked URLs got half the referrer's vote, so both normalize
	// to 100.
	ranks, err := db.TopPageRankScores(10)
	require.NoError(t, err)
	require.Len(t, ranks, 2)
	for _, r := range ranks {
		assert.InDelta(t, 100.0, r.Score, 0.001)
	}

	// Nothing links at the target root itself and the target's domain
	// never referred, so both analysis scores stay zero.
	assert.Zero(t, analysis.DomainAuthority)
	assert.Zero(t, analysis.PageRankScore)

	count, err := db.BacklinkCount()
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
}

func TestSpamBacklinksCounted(t *testing.T) {
	ref := testutil.NewServer()
	defer ref.Close()
	target := testutil.NewServer()
	defer target.Close()

	ref.AddPage("/promo", fmt.Sprintf(`<html><head><title>Promo</title></head><body>
<p>Visit <a href=%q>best casino bonus</a> now.</p>
<p>Or read <a href=%q>the docs</a> instead.</p>
</body></html>`, target.URL()+"/a", target.URL()+"/b"))
	target.AddPage("/", testutil.PageWithLinks("Target", ref.URL()+"/promo"))

	engine, _ := newTestEngine(t, testConfig(t))

	analysis, _, err := engine.DiscoverBacklinks(context.Background(), target.URL(), 2)
	require.NoError(t, err)

	assert.Equal(t, 2, analysis.TotalBacklinks)
	assert.Equal(t, 1, analysis.SpamBacklinks)
}

func TestDuplicateAnchorsCollapse(t *testing.T) {
	ref := testutil.NewServer()
	defer ref.Close()
	target := testutil.NewServer()
	defer target.Close()

	// The same link repeated in header and footer is one backlink.
	link := fmt.Sprintf("<a href=%q>Home</a>", target.URL()+"/")
	ref.AddPage("/page", fmt.Sprintf(`<html><head><title>P</title></head><body>
<div>%s</div>
<div>%s</div>
</body></html>`, link, link))
	target.AddPage("/", testutil.PageWithLinks("Target", ref.URL()+"/page"))

	engine, _ := newTestEngine(t, testConfig(t))

	analysis, backlinks, err := engine.DiscoverBacklinks(context.Background(), target.URL(), 2)
	require.NoError(t, err)

	assert.Equal(t, 1, analysis.TotalBacklinks)
	require.Len(t, backlinks, 1)
	assert.Equal(t, "Home", backlinks[0].AnchorText)
}

func TestPerPageLinkCap(t *testing.T) {
	ref := testutil.NewServer()
	defer ref.Close()
	target := testutil.NewServer()
	defer target.Close()

	var hrefs []string
	for i := 1; i <= 5; i++ {
		path := fmt.Sprintf("/p%d", i)
		hrefs = append(hrefs, ref.URL()+path)
		ref.AddPage(path, testutil.PageWithBacklink(
			fmt.Sprintf("P%d", i), target.URL()+"/x", "X", "see", "here", false))
	}
	target.AddPage("/", testutil.PageWithLinks("Target", hrefs...))

	cfg := testConfig(t)
	cfg.MaxLinksPerPage = 2
	engine, _ := newTestEngine(t, cfg)

	analysis, _, err := engine.DiscoverBacklinks(context.Background(), target.URL(), 2)
	require.NoError(t, err)

	// Only the first two referrer pages were followed.
	assert.Equal(t, 2, analysis.TotalBacklinks)
	assert.Equal(t, 1, ref.Hits("/p1"))
	assert.Equal(t, 1, ref.Hits("/p2"))
	assert.Zero(t, ref.Hits("/p3"))
}

func TestVisitedPageBudget(t *testing.T) {
	ref := testutil.NewServer()
	defer ref.Close()
	target := testutil.NewServer()
	defer target.Close()

	var hrefs []string
	for i := 1; i <= 4; i++ {
		path := fmt.Sprintf("/p%d", i)
		hrefs = append(hrefs, ref.URL()+path)
		ref.AddPage(path, testutil.PageWithBacklink(
			fmt.Sprintf("P%d", i), target.URL()+"/x", "X", "see", "here", false))
	}
	target.AddPage("/", testutil.PageWithLinks("Target", hrefs...))

	cfg := testConfig(t)
	cfg.MaxBacklinkPages = 2
	cfg.MaxLinksPerPage = 10
	engine, _ := newTestEngine(t, cfg)

	analysis, _, err := engine.DiscoverBacklinks(context.Background(), target.URL(), 2)
	require.NoError(t, err)

	// The target page and one referrer fit in the budget.
	assert.LessOrEqual(t, analysis.PagesVisited, 2)
	assert.Equal(t, 1, analysis.TotalBacklinks)
}

func TestContextTruncated(t *testing.T) {
	ref := testutil.NewServer()
	defer ref.Close()
	target := testutil.NewServer()
	defer target.Close()

	long := ""
	for i := 0; i < 60; i++ {
		long += "rambling "
	}
	ref.AddPage("/wall", testutil.PageWithBacklink(
		"Wall", target.URL()+"/x", "X", long, "done", false))
	target.AddPage("/", testutil.PageWithLinks("Target", ref.URL()+"/wall"))

	engine, _ := newTestEngine(t, testConfig(t))

	_, backlinks, err := engine.DiscoverBacklinks(context.Background(), target.URL(), 2)
	require.NoError(t, err)

	require.Len(t, backlinks, 1)
	assert.Equal(t, 200, utf8.RuneCountInString(backlinks[0].Context))
}

func TestUnreachableReferrerSkipped(t *testing.T) {
	ref := testutil.NewServer()
	defer ref.Close()
	target := testutil.NewServer()
	defer target.Close()

	ref.AddPage("/good", testutil.PageWithBacklink(
		"Good", target.URL()+"/x", "X", "see", "here", false))
	target.AddPage("/", testutil.PageWithLinks("Target",
		"http://127.0.0.1:1/unreachable", ref.URL()+"/good"))

	engine, _ := newTestEngine(t, testConfig(t))

	analysis, _, err := engine.DiscoverBacklinks(context.Background(), target.URL(), 2)
	require.NoError(t, err)

	assert.Equal(t, 1, analysis.TotalBacklinks)
}

func TestDepthLimitStopsExpansion(t *testing.T) {
	hop := testutil.NewServer()
	defer hop.Close()
	ref := testutil.NewServer()
	defer ref.Close()
	target := testutil.NewServer()
	defer target.Close()

	// The backlink sits two hops out: target -> hop -> ref.
	ref.AddPage("/deep", testutil.PageWithBacklink(
		"Deep", target.URL()+"/x", "X", "see", "here", false))
	hop.AddPage("/middle", testutil.PageWithLinks("Middle", ref.URL()+"/deep"))
	target.AddPage("/", testutil.PageWithLinks("Target", hop.URL()+"/middle"))

	engine, _ := newTestEngine(t, testConfig(t))

	analysis, _, err := engine.DiscoverBacklinks(context.Background(), target.URL(), 1)
	require.NoError(t, err)
	assert.Zero(t, analysis.TotalBacklinks)

	analysis, _, err = engine.DiscoverBacklinks(context.Background(), target.URL(), 2)
	require.NoError(t, err)
	assert.Equal(t, 1, analysis.TotalBacklinks)
}

func TestBadTargetURL(t *testing.T) {
	engine, _ := newTestEngine(t, testConfig(t))

	_, _, err := engine.DiscoverBacklinks(context.Background(), "not-a-url", 1)
	require.Error(t, err)

	var perr *crawlerr.ParseError
	assert.True(t, errors.As(err, &perr))
}
