// Package supervisor runs the long-lived daemon loop. It watches the
// hour-of-day schedule, dispatches crawl or backlink sessions for the active
// mode and keeps the dashboard snapshot fresh after every tick.
package supervisor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rat-crawler/ratcrawler/internal/backlink"
	"github.com/rat-crawler/ratcrawler/internal/config"
	"github.com/rat-crawler/ratcrawler/internal/crawler"
	"github.com/rat-crawler/ratcrawler/internal/schedule"
	"github.com/rat-crawler/ratcrawler/internal/storage"
	"github.com/rat-crawler/ratcrawler/internal/urlutil"
)

const (
	// seedBatchSize bounds how many seeds a single tick hands to an engine.
	seedBatchSize = 50

	// idleWait is the re-check cadence while the schedule says idle.
	idleWait = 60 * time.Second

	bootstrapPriority      = 5
	discoveredSeedPriority = 1
)

// Supervisor owns the daemon loop. Ticks run one at a time; each engine
// session inherits a deadline so it cannot outlive its scheduling window.
type Supervisor struct {
	cfg       *config.Config
	db        *storage.Database
	sched     *schedule.Scheduler
	crawler   *crawler.Engine
	backlinks *backlink.Engine
	log       *logrus.Entry

	now      func() time.Time
	lastMode schedule.Mode
}

// New builds a Supervisor around an open catalog.
func New(cfg *config.Config, db *storage.Database) *Supervisor {
	return &Supervisor{
		cfg:       cfg,
		db:        db,
		sched:     schedule.New(cfg),
		crawler:   crawler.NewEngine(cfg, db),
		backlinks: backlink.NewEngine(cfg, db),
		log:       logrus.WithField("component", "supervisor"),
		now:       time.Now,
	}
}

// Close releases both engines. The catalog stays open; the caller owns it.
func (s *Supervisor) Close() {
	s.crawler.Close()
	s.backlinks.Close()
}

// Run drives the daemon until ctx ends. Engine failures are logged and the
// loop keeps going; only an unreadable catalog at startup is fatal.
func (s *Supervisor) Run(ctx context.Context) error {
	if err := s.startup(); err != nil {
		return err
	}

	s.lastMode = s.sched.CurrentMode()
	s.log.WithFields(logrus.Fields{
		"mode":           s.lastMode,
		"check_interval": s.cfg.CheckInterval(),
	}).Info("supervisor started")

	for {
		s.tick(ctx)

		wait := s.cfg.CheckInterval()
		if s.sched.CurrentMode() == schedule.ModeIdle {
			wait = idleWait
		}
		select {
		case <-ctx.Done():
			s.log.Info("supervisor stopped")
			return nil
		case <-time.After(wait):
		}
	}
}

func (s *Supervisor) startup() error {
	cutoff := s.now().UTC().Add(-s.cfg.SessionDuration())
	aborted, err := s.db.AbortStaleSessions(cutoff)
	if err != nil {
		s.log.WithError(err).Warn("stale session sweep failed")
	} else if aborted > 0 {
		s.log.WithField("sessions", aborted).Warn("aborted stale sessions from a previous run")
	}
	return s.bootstrapSeeds()
}

// bootstrapSeeds loads the seed file into an empty seed table. A populated
// table wins over the file so operator edits survive restarts.
func (s *Supervisor) bootstrapSeeds() error {
	count, err := s.db.SeedCount()
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	urls, err := LoadSeedFile(s.cfg.SeedFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.log.WithField("path", s.cfg.SeedFile).Info("no seed file, starting with an empty seed list")
			return nil
		}
		s.log.WithError(err).Warn("seed file unreadable, starting with an empty seed list")
		return nil
	}

	added := 0
	for _, raw := range urls {
		normalized, err := urlutil.Normalize(raw)
		if err != nil || !urlutil.IsCrawlable(normalized) {
			s.log.WithField("url", raw).Debug("skipping unusable seed")
			continue
		}
		if err := s.db.UpsertSeed(normalized, bootstrapPriority); err != nil {
			return err
		}
		added++
	}
	s.log.WithFields(logrus.Fields{"path": s.cfg.SeedFile, "seeds": added}).Info("bootstrapped seed list")
	return nil
}

// LoadSeedFile reads a JSON array of URL strings.
func LoadSeedFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var urls []string
	if err := json.Unmarshal(data, &urls); err != nil {
		return nil, fmt.Errorf("parse seed file %s: %w", path, err)
	}
	return urls, nil
}

func (s *Supervisor) tick(ctx context.Context) {
	mode := s.sched.CurrentMode()
	if mode != s.lastMode {
		s.log.WithFields(logrus.Fields{"from": s.lastMode, "to": mode}).Info("mode switch")
		s.lastMode = mode
	}

	switch mode {
	case schedule.ModeCrawling:
		s.runCrawl(ctx)
	case schedule.ModeBacklink:
		s.runBacklinks(ctx)
	}

	s.updateStats()
}

func (s *Supervisor) runCrawl(ctx context.Context) {
	seeds, err := s.db.Seeds(seedBatchSize)
	if err != nil {
		s.log.WithError(err).Error("loading seeds failed")
		return
	}
	if len(seeds) == 0 {
		s.log.Debug("no seeds to crawl")
		return
	}

	urls := make([]string, len(seeds))
	for i, sd := range seeds {
		urls[i] = sd.URL
	}

	// The crawl must not run past the next scheduled mode change.
	cctx, cancel := context.WithDeadline(ctx, s.sched.NextModeSwitch())
	defer cancel()

	result, err := s.crawler.Run(cctx, urls)
	if err != nil {
		s.log.WithError(err).Error("crawl session failed")
		return
	}
	s.log.WithFields(logrus.Fields{
		"session": result.SessionID,
		"status":  result.Status,
		"pages":   result.PagesCrawled,
		"errors":  result.ErrorCount,
	}).Info("crawl session finished")
}

func (s *Supervisor) runBacklinks(ctx context.Context) {
	seeds, err := s.db.Seeds(seedBatchSize)
	if err != nil {
		s.log.WithError(err).Error("loading seeds failed")
		return
	}
	if len(seeds) == 0 {
		s.log.Debug("no seeds to analyze")
		return
	}

	// One wall-clock budget covers the whole batch.
	bctx, cancel := context.WithTimeout(ctx, s.cfg.SessionDuration())
	defer cancel()

	for _, sd := range seeds {
		if bctx.Err() != nil {
			break
		}
		analysis, found, err := s.backlinks.DiscoverBacklinks(bctx, sd.URL, s.cfg.MaxDepth)
		if err != nil {
			s.log.WithError(err).WithField("target", sd.URL).Error("backlink discovery failed")
			continue
		}
		promoted := s.promoteSources(found)
		s.log.WithFields(logrus.Fields{
			"target":    analysis.TargetURL,
			"backlinks": analysis.TotalBacklinks,
			"domains":   analysis.UniqueDomains,
			"spam":      analysis.SpamBacklinks,
			"promoted":  promoted,
		}).Info("backlink analysis finished")
	}
}

// promoteSources turns referring origins into low-priority seeds so future
// crawl sessions explore the sites that link to us.
func (s *Supervisor) promoteSources(found []*storage.Backlink) int {
	seen := make(map[string]bool)
	added := 0
	for _, b := range found {
		origin, err := urlutil.ExtractOrigin(b.SourceURL)
		if err != nil {
			continue
		}
		seed, err := urlutil.Normalize(origin)
		if err != nil || seen[seed] {
			continue
		}
		seen[seed] = true
		if err := s.db.UpsertSeed(seed, discoveredSeedPriority); err != nil {
			s.log.WithError(err).WithField("url", seed).Warn("seed promotion failed")
			continue
		}
		added++
	}
	return added
}

// updateStats recomputes the dashboard snapshot. Failures are logged only;
// a stale dashboard must never stop the daemon.
func (s *Supervisor) updateStats() {
	stats, err := s.collectStats()
	if err != nil {
		s.log.WithError(err).Warn("stats refresh failed")
		return
	}
	if err := s.db.UpdateDashboardStats(stats); err != nil {
		s.log.WithError(err).Warn("stats write failed")
	}
}

func (s *Supervisor) collectStats() (*storage.DashboardStats, error) {
	now := s.now().UTC()
	hourAgo := now.Add(-time.Hour)

	pages, err := s.db.PageCount()
	if err != nil {
		return nil, err
	}
	links, err := s.db.BacklinkCount()
	if err != nil {
		return nil, err
	}
	domains, err := s.db.UniqueDomainCount()
	if err != nil {
		return nil, err
	}
	recentPages, err := s.db.CountPagesSince(hourAgo)
	if err != nil {
		return nil, err
	}
	recentLinks, err := s.db.CountBacklinksSince(hourAgo)
	if err != nil {
		return nil, err
	}
	sizeMB, err := s.db.DatabaseSizeMB()
	if err != nil {
		return nil, err
	}

	return &storage.DashboardStats{
		TotalURLsCrawled:    pages,
		TotalBacklinksFound: links,
		UniqueDomains:       domains,
		CrawlRatePerHour:    float64(recentPages),
		BacklinkRatePerHour: float64(recentLinks),
		DatabaseSizeMB:      sizeMB,
		CurrentMode:         string(s.sched.CurrentMode()),
		NextModeSwitch:      s.sched.NextModeSwitch(),
		LastUpdated:         now,
	}, nil
}
