// Package report materializes catalog tables as exportable datasets and
// builds aggregate rollups of crawl and backlink activity.
package report

import (
	"fmt"
	"time"

	"github.com/rat-crawler/ratcrawler/internal/backlink"
	"github.com/rat-crawler/ratcrawler/internal/storage"
)

// Table identifies an exportable catalog dataset.
type Table string

const (
	TablePages     Table = "pages"
	TableBacklinks Table = "backlinks"
	TableDomains   Table = "domains"
)

// Tables lists every exportable dataset.
func Tables() []Table {
	return []Table{TablePages, TableBacklinks, TableDomains}
}

// Definition describes a dataset's shape.
type Definition struct {
	Table       Table
	Name        string
	Description string
	Columns     []string
}

// Row is one record keyed by column name.
type Row struct {
	Values map[string]interface{}
}

// Dataset is a materialized table ready for export.
type Dataset struct {
	Definition *Definition
	Rows       []*Row
	TotalCount int
}

// Generator materializes datasets from the catalog.
type Generator struct {
	db *storage.Database
}

// NewGenerator creates a generator over an open catalog.
func NewGenerator(db *storage.Database) *Generator {
	return &Generator{db: db}
}

// Generate builds the named dataset. A limit below one means no limit.
func (g *Generator) Generate(table Table, limit int) (*Dataset, error) {
	if limit < 1 {
		limit = -1 // SQLite treats a negative LIMIT as unbounded.
	}

	switch table {
	case TablePages:
		return g.pages(limit)
	case TableBacklinks:
		return g.backlinks(limit)
	case TableDomains:
		return g.domains(limit)
	default:
		return nil, fmt.Errorf("unknown table %q", table)
	}
}

func (g *Generator) pages(limit int) (*Dataset, error) {
	def := &Definition{
		Table:       TablePages,
		Name:        "Crawled Pages",
		Description: "Every stored page, newest first",
		Columns: []string{"Session", "URL", "Title", "Status", "Words",
			"Internal Links", "External Links", "Response Time (ms)", "Crawl Time"},
	}

	pages, err := g.db.RecentPages(limit)
	if err != nil {
		return nil, err
	}

	ds := &Dataset{Definition: def}
	for _, p := range pages {
		ds.Rows = append(ds.Rows, &Row{Values: map[string]interface{}{
			"Session":            p.SessionID,
			"URL":                p.URL,
			"Title":              p.Title,
			"Status":             p.HTTPStatus,
			"Words":              p.WordCount,
			"Internal Links":     p.InternalLinksCount,
			"External Links":     p.ExternalLinksCount,
			"Response Time (ms)": p.ResponseTimeMS,
			"Crawl Time":         p.CrawlTime,
		}})
	}
	ds.TotalCount = len(ds.Rows)
	return ds, nil
}

func (g *Generator) backlinks(limit int) (*Dataset, error) {
	def := &Definition{
		Table:       TableBacklinks,
		Name:        "Backlinks",
		Description: "Discovered backlinks in discovery order",
		Columns: []string{"Source", "Target", "Anchor", "Page Title",
			"Authority", "Nofollow", "Spam", "Discovered"},
	}

	links, err := g.db.AllBacklinks(limit)
	if err != nil {
		return nil, err
	}

	ds := &Dataset{Definition: def}
	for _, b := range links {
		ds.Rows = append(ds.Rows, &Row{Values: map[string]interface{}{
			"Source":     b.SourceURL,
			"Target":     b.TargetURL,
			"Anchor":     b.AnchorText,
			"Page Title": b.PageTitle,
			"Authority":  b.DomainAuthority,
			"Nofollow":   b.IsNofollow,
			"Spam":       backlink.IsSpam(b),
			"Discovered": b.DiscoveredAt,
		}})
	}
	ds.TotalCount = len(ds.Rows)
	return ds, nil
}

func (g *Generator) domains(limit int) (*Dataset, error) {
	def := &Definition{
		Table:       TableDomains,
		Name:        "Domain Scores",
		Description: "Referring domains ranked by authority",
		Columns: []string{"Domain", "Authority", "Total Backlinks",
			"Unique Referrers", "Updated"},
	}

	scores, err := g.db.TopDomainScores(limit)
	if err != nil {
		return nil, err
	}

	ds := &Dataset{Definition: def}
	for _, s := range scores {
		ds.Rows = append(ds.Rows, &Row{Values: map[string]interface{}{
			"Domain":           s.Domain,
			"Authority":        s.AuthorityScore,
			"Total Backlinks":  s.TotalBacklinks,
			"Unique Referrers": s.UniqueReferringDomains,
			"Updated":          s.LastUpdated,
		}})
	}
	ds.TotalCount = len(ds.Rows)
	return ds, nil
}

// CrawlReport is the sessions, pages and errors rollup.
type CrawlReport struct {
	GeneratedAt       time.Time        `json:"generated_at"`
	TotalSessions     int64            `json:"total_sessions"`
	SessionsByStatus  map[string]int64 `json:"sessions_by_status"`
	TotalPages        int64            `json:"total_pages"`
	TotalErrors       int64            `json:"total_errors"`
	ErrorsByType      map[string]int64 `json:"errors_by_type"`
	AvgResponseTimeMS float64          `json:"avg_response_time_ms"`
	AvgWordCount      float64          `json:"avg_word_count"`
}

// BuildCrawlReport aggregates all sessions, pages and errors in the catalog.
func BuildCrawlReport(db *storage.Database) (*CrawlReport, error) {
	sessions, err := db.SessionCounts()
	if err != nil {
		return nil, err
	}
	pages, err := db.PageCount()
	if err != nil {
		return nil, err
	}
	errCounts, err := db.ErrorCounts()
	if err != nil {
		return nil, err
	}
	avgMS, avgWords, err := db.PageAverages()
	if err != nil {
		return nil, err
	}

	r := &CrawlReport{
		GeneratedAt:       time.Now().UTC(),
		SessionsByStatus:  sessions,
		TotalPages:        pages,
		ErrorsByType:      errCounts,
		AvgResponseTimeMS: avgMS,
		AvgWordCount:      avgWords,
	}
	for _, n := range sessions {
		r.TotalSessions += n
	}
	for _, n := range errCounts {
		r.TotalErrors += n
	}
	return r, nil
}

// BacklinkReport is the backlink profile rollup.
type BacklinkReport struct {
	GeneratedAt       time.Time                `json:"generated_at"`
	TotalBacklinks    int64                    `json:"total_backlinks"`
	UniqueDomains     int64                    `json:"unique_domains"`
	SpamBacklinks     int                      `json:"spam_backlinks"`
	NofollowBacklinks int                      `json:"nofollow_backlinks"`
	TopDomains        []*storage.DomainScore   `json:"top_domains"`
	TopPages          []*storage.PageRankScore `json:"top_pages"`
}

// BuildBacklinkReport aggregates stored backlinks and their scores, keeping
// the topN domains and pages.
func BuildBacklinkReport(db *storage.Database, topN int) (*BacklinkReport, error) {
	total, err := db.BacklinkCount()
	if err != nil {
		return nil, err
	}
	domains, err := db.UniqueDomainCount()
	if err != nil {
		return nil, err
	}
	links, err := db.AllBacklinks(-1)
	if err != nil {
		return nil, err
	}
	topDomains, err := db.TopDomainScores(topN)
	if err != nil {
		return nil, err
	}
	topPages, err := db.TopPageRankScores(topN)
	if err != nil {
		return nil, err
	}

	r := &BacklinkReport{
		GeneratedAt:    time.Now().UTC(),
		TotalBacklinks: total,
		UniqueDomains:  domains,
		TopDomains:     topDomains,
		TopPages:       topPages,
	}
	for _, b := range links {
		if backlink.IsSpam(b) {
			r.SpamBacklinks++
		}
		if b.IsNofollow {
			r.NofollowBacklinks++
		}
	}
	return r, nil
}
