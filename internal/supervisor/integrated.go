package supervisor

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/rat-crawler/ratcrawler/internal/backlink"
	"github.com/rat-crawler/ratcrawler/internal/crawler"
)

// CrawlReport aggregates one integrated run: a crawl session followed by
// backlink analyses of the pages it stored.
type CrawlReport struct {
	TotalPagesCrawled         int64   `json:"total_pages_crawled"`
	TotalBacklinksFound       int     `json:"total_backlinks_found"`
	TotalUniqueDomains        int     `json:"total_unique_domains"`
	TotalSpamBacklinks        int     `json:"total_spam_backlinks"`
	AverageDomainAuthority    float64 `json:"average_domain_authority"`
	CrawlErrors               int64   `json:"crawl_errors"`
	BacklinkAnalysesCompleted int     `json:"backlink_analyses_completed"`
}

// IntegratedResult pairs the crawl outcome with the per-page analyses and
// the aggregate report.
type IntegratedResult struct {
	Crawl    *crawler.Result
	Analyses []*backlink.Analysis
	Report   *CrawlReport
}

// DomainAnalysis is the outcome of crawling one domain and analyzing its
// backlink profile.
type DomainAnalysis struct {
	Domain          string
	PagesCrawled    int64
	Backlinks       *backlink.Analysis
	DomainAuthority float64
	CrawlErrors     int64
}

// RunIntegrated crawls the given seeds, then runs backlink discovery on the
// crawled pages, capped at max_backlink_analyses. Per-page analysis failures
// are logged and skipped; the crawl itself failing is fatal.
func (s *Supervisor) RunIntegrated(ctx context.Context, seeds []string) (*IntegratedResult, error) {
	result, err := s.crawler.Run(ctx, seeds)
	if err != nil {
		return nil, err
	}

	urls, err := s.db.SessionURLs(result.SessionID, s.cfg.MaxBacklinkAnalyses)
	if err != nil {
		return nil, err
	}

	var analyses []*backlink.Analysis
	for _, u := range urls {
		if ctx.Err() != nil {
			break
		}
		analysis, found, err := s.backlinks.DiscoverBacklinks(ctx, u, s.cfg.MaxDepth)
		if err != nil {
			s.log.WithError(err).WithField("target", u).Warn("backlink analysis skipped")
			continue
		}
		s.promoteSources(found)
		analyses = append(analyses, analysis)
	}

	report := buildReport(result, analyses)
	s.log.WithFields(logrus.Fields{
		"session":   result.SessionID,
		"pages":     report.TotalPagesCrawled,
		"backlinks": report.TotalBacklinksFound,
		"analyses":  report.BacklinkAnalysesCompleted,
	}).Info("integrated run finished")

	return &IntegratedResult{Crawl: result, Analyses: analyses, Report: report}, nil
}

// AnalyzeDomain crawls one domain from its scheme and slash variants, then
// analyzes the domain root's backlink profile.
func (s *Supervisor) AnalyzeDomain(ctx context.Context, domain string) (*DomainAnalysis, error) {
	seeds := []string{
		"https://" + domain,
		"https://" + domain + "/",
		"http://" + domain,
		"http://" + domain + "/",
	}

	result, err := s.crawler.Run(ctx, seeds)
	if err != nil {
		return nil, err
	}

	analysis, found, err := s.backlinks.DiscoverBacklinks(ctx, "https://"+domain, s.cfg.MaxDepth)
	if err != nil {
		return nil, err
	}
	s.promoteSources(found)

	da := &DomainAnalysis{
		Domain:       domain,
		PagesCrawled: result.PagesCrawled,
		Backlinks:    analysis,
		CrawlErrors:  result.ErrorCount,
	}
	if score, err := s.db.GetDomainScore(domain); err == nil && score != nil {
		da.DomainAuthority = score.AuthorityScore
	}
	return da, nil
}

func buildReport(result *crawler.Result, analyses []*backlink.Analysis) *CrawlReport {
	report := &CrawlReport{
		TotalPagesCrawled:         result.PagesCrawled,
		CrawlErrors:               result.ErrorCount,
		BacklinkAnalysesCompleted: len(analyses),
	}

	var authoritySum float64
	for _, a := range analyses {
		report.TotalBacklinksFound += a.TotalBacklinks
		report.TotalUniqueDomains += a.UniqueDomains
		report.TotalSpamBacklinks += a.SpamBacklinks
		authoritySum += a.DomainAuthority
	}
	if len(analyses) > 0 {
		report.AverageDomainAuthority = authoritySum / float64(len(analyses))
	}
	return report
}
