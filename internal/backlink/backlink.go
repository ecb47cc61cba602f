// Package backlink discovers pages linking back to a target URL and
// scores the referring domains.
//
// Discovery is a bounded BFS outward from the target: every fetched page
// is checked for anchors resolving to the target's host, and each such
// anchor crossing a domain boundary becomes a Backlink. Other links are
// followed, a few per page, until the depth or page budget runs out.
package backlink

import (
	"bytes"
	"context"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/html"
	"golang.org/x/time/rate"

	"github.com/rat-crawler/ratcrawler/internal/config"
	"github.com/rat-crawler/ratcrawler/internal/crawlerr"
	"github.com/rat-crawler/ratcrawler/internal/fetcher"
	"github.com/rat-crawler/ratcrawler/internal/storage"
	"github.com/rat-crawler/ratcrawler/internal/urlutil"
)

// contextLimit caps the surrounding-text snippet stored per backlink.
const contextLimit = 200

// Analysis aggregates one discovery run.
type Analysis struct {
	TargetURL       string
	TotalBacklinks  int
	UniqueDomains   int
	SpamBacklinks   int
	DomainAuthority float64
	PageRankScore   float64
	PagesVisited    int
	Duration        time.Duration
}

// Engine runs backlink discovery. All fetches share one rate limiter so a
// discovery run never exceeds the configured pace.
type Engine struct {
	cfg     *config.Config
	db      *storage.Database
	client  *fetcher.Client
	limiter *rate.Limiter
	log     *logrus.Entry
}

// NewEngine builds a backlink engine over an open catalog.
func NewEngine(cfg *config.Config, db *storage.Database) *Engine {
	return &Engine{
		cfg:     cfg,
		db:      db,
		client:  fetcher.NewBacklinkClient(cfg),
		limiter: rate.NewLimiter(rate.Every(cfg.BacklinkDelay()), 1),
		log:     logrus.WithField("component", "backlink"),
	}
}

// Close releases the engine's HTTP resources.
func (e *Engine) Close() {
	e.client.Close()
}

// queueItem is one BFS entry.
type queueItem struct {
	url   string
	depth int
}

// DiscoverBacklinks walks outward from targetURL collecting links that
// point back at its host, then scores and stores the results. maxDepth 0
// falls back to the configured crawl depth.
func (e *Engine) DiscoverBacklinks(ctx context.Context, targetURL string, maxDepth int) (*Analysis, []*storage.Backlink, error) {
	start := time.Now()

	target, err := urlutil.Normalize(targetURL)
	if err != nil {
		return nil, nil, &crawlerr.ParseError{URL: targetURL, Err: err}
	}
	targetHost, err := urlutil.ExtractHostPort(target)
	if err != nil || targetHost == "" {
		return nil, nil, &crawlerr.ParseError{URL: targetURL, Err: err}
	}

	if maxDepth <= 0 {
		maxDepth = e.cfg.MaxDepth
	}

	log := e.log.WithField("target", target)
	log.WithField("max_depth", maxDepth).Info("backlink discovery started")

	queue := []queueItem{{url: target, depth: 0}}
	if e.cfg.SearchEngineSeeding {
		for _, seed := range e.searchSeeds(ctx, target, targetHost) {
			queue = append(queue, queueItem{url: seed, depth: 0})
		}
	}

	visited := make(map[string]struct{})
	recorded := make(map[string]struct{})
	var backlinks []*storage.Backlink
	pagesVisited := 0

	for len(queue) > 0 && ctx.Err() == nil {
		item := queue[0]
		queue = queue[1:]

		if item.depth > maxDepth {
			continue
		}
		if _, seen := visited[item.url]; seen {
			continue
		}
		if len(visited) >= e.cfg.MaxBacklinkPages {
			log.WithField("visited", len(visited)).Info("page budget reached")
			break
		}
		visited[item.url] = struct{}{}

		if err := e.limiter.Wait(ctx); err != nil {
			break
		}

		resp, err := e.client.Fetch(ctx, item.url)
		if err != nil {
			log.WithField("url", item.url).WithError(err).Debug("fetch failed")
			continue
		}
		pagesVisited++
		if !resp.IsSuccess() || !resp.IsHTML() {
			continue
		}

		found, candidates := e.scanPage(resp, targetHost, item.depth)
		for _, b := range found {
			key := b.SourceURL + "|" + b.TargetURL + "|" + b.AnchorText
			if _, dup := recorded[key]; dup {
				continue
			}
			recorded[key] = struct{}{}
			backlinks = append(backlinks, b)
		}
		for _, c := range candidates {
			if _, seen := visited[c.url]; !seen {
				queue = append(queue, c)
			}
		}
	}

	scores := Score(backlinks, time.Now().UTC())
	for _, b := range backlinks {
		if host, err := urlutil.ExtractHostPort(b.SourceURL); err == nil {
			b.DomainAuthority = scores.AuthorityOf(host)
		}
	}

	if err := e.db.InsertBacklinks(backlinks); err != nil {
		return nil, backlinks, &crawlerr.DatabaseError{Op: "insert backlinks", Err: err}
	}
	if err := e.db.ReplaceDomainScores(scores.Domains); err != nil {
		return nil, backlinks, &crawlerr.DatabaseError{Op: "store domain scores", Err: err}
	}
	if err := e.db.ReplacePageRankScores(scores.PageRanks); err != nil {
		return nil, backlinks, &crawlerr.DatabaseError{Op: "store pagerank scores", Err: err}
	}

	analysis := &Analysis{
		TargetURL:       target,
		TotalBacklinks:  len(backlinks),
		UniqueDomains:   len(scores.Domains),
		SpamBacklinks:   scores.SpamCount,
		DomainAuthority: scores.AuthorityOf(targetHost),
		PageRankScore:   scores.PageRankOf(target),
		PagesVisited:    pagesVisited,
		Duration:        time.Since(start),
	}

	log.WithFields(logrus.Fields{
		"backlinks": analysis.TotalBacklinks,
		"domains":   analysis.UniqueDomains,
		"spam":      analysis.SpamBacklinks,
		"visited":   analysis.PagesVisited,
		"duration":  analysis.Duration.Round(time.Millisecond),
	}).Info("backlink discovery finished")

	return analysis, backlinks, nil
}

// scanPage extracts backlinks and follow-up candidates from one fetched
// page. An anchor is a backlink when it resolves to the target host from a
// page on a different host. Links to other hosts become BFS candidates,
// capped per page.
func (e *Engine) scanPage(resp *fetcher.Response, targetHost string, depth int) ([]*storage.Backlink, []queueItem) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		e.log.WithField("url", resp.FinalURL).WithError(err).Debug("parse failed")
		return nil, nil
	}

	pageURL := resp.FinalURL
	if n, err := urlutil.Normalize(pageURL); err == nil {
		pageURL = n
	}
	pageHost, _ := urlutil.ExtractHostPort(pageURL)
	pageTitle := strings.TrimSpace(doc.Find("title").First().Text())
	now := time.Now().UTC()

	var found []*storage.Backlink
	var candidates []queueItem

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") ||
			strings.HasPrefix(href, "javascript:") ||
			strings.HasPrefix(href, "mailto:") ||
			strings.HasPrefix(href, "tel:") {
			return
		}

		resolved, err := urlutil.ResolveURL(pageURL, href)
		if err != nil {
			return
		}
		normalized, err := urlutil.Normalize(resolved)
		if err != nil || !urlutil.IsHTTP(normalized) {
			return
		}
		linkHost, err := urlutil.ExtractHostPort(normalized)
		if err != nil || linkHost == "" {
			return
		}

		if linkHost == targetHost {
			// Only links crossing a domain boundary count.
			if pageHost == targetHost {
				return
			}
			rel, _ := sel.Attr("rel")
			found = append(found, &storage.Backlink{
				SourceURL:    pageURL,
				TargetURL:    normalized,
				AnchorText:   strings.TrimSpace(sel.Text()),
				Context:      anchorContext(sel),
				PageTitle:    pageTitle,
				IsNofollow:   strings.Contains(strings.ToLower(rel), "nofollow"),
				DiscoveredAt: now,
			})
			return
		}

		if len(candidates) < e.cfg.MaxLinksPerPage && urlutil.IsCrawlable(normalized) {
			candidates = append(candidates, queueItem{url: normalized, depth: depth + 1})
		}
	})

	return found, candidates
}

// anchorContext joins the direct text-node children of the anchor's
// parent, which yields the prose surrounding the link without the link's
// own text.
func anchorContext(sel *goquery.Selection) string {
	parent := sel.Parent()
	if parent.Length() == 0 {
		return ""
	}

	var parts []string
	parent.Contents().Each(func(_ int, c *goquery.Selection) {
		for _, node := range c.Nodes {
			if node.Type != html.TextNode {
				continue
			}
			if t := strings.TrimSpace(node.Data); t != "" {
				parts = append(parts, t)
			}
		}
	})

	context := strings.Join(parts, " ")
	if runes := []rune(context); len(runes) > contextLimit {
		context = string(runes[:contextLimit])
	}
	return context
}
