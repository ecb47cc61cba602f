// Package crawler runs crawl sessions: it drains the frontier through the
// fetch, extract and store pipeline and records every page and failure in
// the catalog.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/rat-crawler/ratcrawler/internal/config"
	"github.com/rat-crawler/ratcrawler/internal/crawlerr"
	"github.com/rat-crawler/ratcrawler/internal/extractor"
	"github.com/rat-crawler/ratcrawler/internal/fetcher"
	"github.com/rat-crawler/ratcrawler/internal/frontier"
	"github.com/rat-crawler/ratcrawler/internal/robots"
	"github.com/rat-crawler/ratcrawler/internal/storage"
	"github.com/rat-crawler/ratcrawler/internal/urlutil"
)

// Result summarizes one finished crawl session.
type Result struct {
	SessionID      string
	Status         string
	PagesCrawled   int64
	PagesUnchanged int64
	ErrorCount     int64
	RobotsSkipped  int64
	NonHTMLSkipped int64
	URLsQueued     int
	Duplicates     int
	Duration       time.Duration
}

// Engine crawls from seed URLs until the frontier drains, the page budget
// fills, or the context ends.
type Engine struct {
	cfg    *config.Config
	db     *storage.Database
	client *fetcher.Client
	gate   *robots.Gate
	log    *logrus.Entry

	pagesStored    atomic.Int64
	pagesUnchanged atomic.Int64
	failed         atomic.Int64
	robotsSkipped  atomic.Int64
	nonHTMLSkipped atomic.Int64
}

// NewEngine builds a crawl engine over an open catalog.
func NewEngine(cfg *config.Config, db *storage.Database) *Engine {
	primaryAgent := fetcher.DefaultUserAgent
	if len(cfg.UserAgents) > 0 {
		primaryAgent = cfg.UserAgents[0]
	}

	return &Engine{
		cfg:    cfg,
		db:     db,
		client: fetcher.NewCrawlClient(cfg),
		gate: robots.NewGate(
			&http.Client{Timeout: cfg.RequestTimeout()},
			primaryAgent,
			cfg.RespectRobotsTxt,
		),
		log: logrus.WithField("component", "crawler"),
	}
}

// Close releases the engine's HTTP resources.
func (e *Engine) Close() {
	e.client.Close()
}

// Run crawls one session from the given seeds. The session is recorded as
// completed when the frontier drains or the page budget fills, and as
// aborted when ctx ends first.
func (e *Engine) Run(ctx context.Context, seeds []string) (*Result, error) {
	normalized := normalizeSeeds(seeds)
	if len(normalized) == 0 {
		return nil, fmt.Errorf("no usable seed URLs")
	}

	e.resetCounters()

	session := &storage.CrawlSession{
		ID:         uuid.NewString(),
		StartTime:  time.Now().UTC(),
		SeedURLs:   normalized,
		ConfigJSON: e.cfg.Snapshot(),
	}
	if err := e.db.CreateSession(session); err != nil {
		return nil, &crawlerr.DatabaseError{Op: "create session", Err: err}
	}

	e.log.WithFields(logrus.Fields{
		"session": session.ID,
		"seeds":   len(normalized),
	}).Info("crawl session started")

	fr := frontier.New(e.cfg.MaxDepth)
	for _, seed := range normalized {
		fr.PushSeed(seed)
	}

	start := time.Now()
	e.dispatch(ctx, session.ID, fr)

	status := storage.SessionCompleted
	if ctx.Err() != nil {
		status = storage.SessionAborted
	}
	if err := e.db.EndSession(session.ID, status); err != nil {
		e.log.WithError(err).Error("failed to end session")
	}

	stats := fr.Stats()
	result := &Result{
		SessionID:      session.ID,
		Status:         status,
		PagesCrawled:   e.pagesStored.Load(),
		PagesUnchanged: e.pagesUnchanged.Load(),
		ErrorCount:     e.failed.Load(),
		RobotsSkipped:  e.robotsSkipped.Load(),
		NonHTMLSkipped: e.nonHTMLSkipped.Load(),
		URLsQueued:     stats.TotalAdded,
		Duplicates:     stats.Duplicates,
		Duration:       time.Since(start),
	}

	e.log.WithFields(logrus.Fields{
		"session":  session.ID,
		"status":   status,
		"pages":    result.PagesCrawled,
		"errors":   result.ErrorCount,
		"duration": result.Duration.Round(time.Millisecond),
	}).Info("crawl session finished")

	return result, nil
}

// dispatch pops frontier items and hands each to a bounded worker pool.
// Budget accounting reserves a page slot per in-flight fetch so the
// session never stores more than MaxPages pages.
func (e *Engine) dispatch(ctx context.Context, sessionID string, fr *frontier.Frontier) {
	g, ctx := errgroup.WithContext(ctx)
	sem := semaphore.NewWeighted(int64(e.cfg.MaxConcurrentRequests))
	budget := int64(e.cfg.MaxPages)

	var inFlight atomic.Int64

	for ctx.Err() == nil && e.pagesStored.Load() < budget {
		if e.pagesStored.Load()+inFlight.Load() >= budget {
			// Budget fully reserved; failed fetches may free slots.
			time.Sleep(25 * time.Millisecond)
			continue
		}

		item := fr.Pop()
		if item == nil {
			if inFlight.Load() == 0 && fr.IsEmpty() {
				break
			}
			time.Sleep(50 * time.Millisecond)
			continue
		}

		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		inFlight.Add(1)

		g.Go(func() error {
			defer sem.Release(1)
			defer inFlight.Add(-1)
			e.processURL(ctx, sessionID, item, fr)
			return nil
		})
	}

	g.Wait()
}

// processURL runs one frontier item through the full pipeline.
func (e *Engine) processURL(ctx context.Context, sessionID string, item *frontier.Item, fr *frontier.Frontier) {
	log := e.log.WithFields(logrus.Fields{"session": sessionID, "url": item.URL, "depth": item.Depth})

	if !e.gate.Allowed(ctx, item.URL) {
		e.robotsSkipped.Add(1)
		log.Debug("skipped by robots.txt")
		return
	}

	resp, err := e.client.Fetch(ctx, item.URL)
	if err != nil {
		e.recordError(sessionID, item.URL, err)
		log.WithError(err).Debug("fetch failed")
		return
	}

	if !resp.IsSuccess() {
		e.recordError(sessionID, item.URL, &crawlerr.HTTPError{URL: item.URL, Status: resp.StatusCode})
		log.WithField("status", resp.StatusCode).Debug("non-success status")
		return
	}

	if !resp.IsHTML() {
		e.nonHTMLSkipped.Add(1)
		log.WithField("content_type", resp.ContentType).Debug("skipping non-HTML content")
		return
	}

	finalURL := item.URL
	if n, err := urlutil.Normalize(resp.FinalURL); err == nil {
		finalURL = n
	}

	data, err := extractor.Extract(finalURL, resp.Body)
	if err != nil {
		e.recordError(sessionID, item.URL, err)
		log.WithError(err).Debug("extraction failed")
		return
	}

	now := time.Now().UTC()
	if seen, err := e.db.HasPageWithHash(finalURL, data.ContentHash); err == nil && seen {
		e.pagesUnchanged.Add(1)
		log.Debug("content unchanged since a previous session")
	}

	page := &storage.CrawledPage{
		SessionID:          sessionID,
		URL:                finalURL,
		OriginalURL:        item.URL,
		RedirectChain:      resp.RedirectChain,
		Title:              data.Title,
		MetaDescription:    data.MetaDescription,
		MetaKeywords:       data.MetaKeywords,
		CanonicalURL:       data.CanonicalURL,
		RobotsMeta:         data.RobotsMeta,
		H1Tags:             data.H1,
		H2Tags:             data.H2,
		Language:           data.Language,
		Charset:            resp.Charset(),
		ContentText:        data.TextContent,
		ContentHTML:        string(resp.Body),
		ContentHash:        data.ContentHash,
		WordCount:          data.WordCount,
		PageSizeBytes:      resp.BodySize,
		HTTPStatus:         resp.StatusCode,
		ResponseTimeMS:     resp.ResponseTime.Milliseconds(),
		InternalLinksCount: data.InternalLinksCount,
		ExternalLinksCount: data.ExternalLinksCount,
		ImagesCount:        data.ImagesCount,
		CrawlTime:          now,
	}

	if err := e.db.InsertPage(page); err != nil {
		if isConstraintError(err) {
			// Two queued URLs redirected to the same final URL.
			log.Debug("final URL already stored this session")
			return
		}
		e.recordError(sessionID, item.URL, &crawlerr.DatabaseError{Op: "insert page", Err: err})
		log.WithError(err).Error("failed to store page")
		return
	}
	e.pagesStored.Add(1)

	if item.Depth == 0 {
		if err := e.db.TouchSeed(item.URL); err != nil {
			log.WithError(err).Warn("failed to update seed")
		}
	}

	e.enqueueLinks(fr, item, finalURL, data.Links)

	log.WithFields(logrus.Fields{
		"status": resp.StatusCode,
		"links":  len(data.Links),
		"words":  data.WordCount,
	}).Debug("page stored")
}

// enqueueLinks offers a page's same-host links to the frontier. Crossing
// domain boundaries is the backlink pipeline's job, not the crawl's.
func (e *Engine) enqueueLinks(fr *frontier.Frontier, item *frontier.Item, pageURL string, links []extractor.Link) {
	pageHost, err := urlutil.ExtractHostPort(pageURL)
	if err != nil || pageHost == "" {
		return
	}
	for _, link := range links {
		normalized, err := urlutil.Normalize(link.URL)
		if err != nil || !urlutil.IsCrawlable(normalized) {
			continue
		}
		if linkHost, err := urlutil.ExtractHostPort(normalized); err != nil || linkHost != pageHost {
			continue
		}
		fr.Push(normalized, item.Depth+1, item.URL)
	}
}

// recordError stores a classified failure for one URL.
func (e *Engine) recordError(sessionID, url string, err error) {
	e.failed.Add(1)

	crawlError := &storage.CrawlError{
		SessionID:    sessionID,
		URL:          url,
		ErrorType:    crawlerr.Kind(err),
		ErrorMessage: err.Error(),
		Timestamp:    time.Now().UTC(),
	}
	if status := crawlerr.StatusCode(err); status != 0 {
		crawlError.HTTPStatus = &status
	}

	if dbErr := e.db.InsertError(crawlError); dbErr != nil {
		e.log.WithError(dbErr).Error("failed to record crawl error")
	}
}

func (e *Engine) resetCounters() {
	e.pagesStored.Store(0)
	e.pagesUnchanged.Store(0)
	e.failed.Store(0)
	e.robotsSkipped.Store(0)
	e.nonHTMLSkipped.Store(0)
}

// normalizeSeeds normalizes the seed list, dropping URLs that do not
// survive normalization or are not crawlable.
func normalizeSeeds(seeds []string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, seed := range seeds {
		normalized, err := urlutil.Normalize(seed)
		if err != nil || !urlutil.IsCrawlable(normalized) {
			continue
		}
		if _, dup := seen[normalized]; dup {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}
	return out
}

// isConstraintError reports whether err is a SQLite uniqueness violation.
func isConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint
}
