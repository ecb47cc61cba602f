// Package schedule maps the hour of day onto the daemon's working mode.
//
// The day is partitioned into crawling hours, backlink hours and idle
// gaps. A Scheduler is a pure function of the clock and the configured
// hour sets, so the supervisor can poll it on every tick without holding
// any state of its own.
package schedule

import (
	"time"

	"github.com/rat-crawler/ratcrawler/internal/config"
)

// Mode is a daemon working mode.
type Mode string

// The three modes the supervisor cycles through.
const (
	ModeCrawling Mode = "crawling"
	ModeBacklink Mode = "backlink_processing"
	ModeIdle     Mode = "idle"
)

// Scheduler decides the working mode for any instant. All decisions use
// UTC hours.
type Scheduler struct {
	backlink [24]bool
	crawling [24]bool
	now      func() time.Time
}

// New builds a scheduler from the configured hour sets. An hour claimed by
// both sets counts as a backlink hour.
func New(cfg *config.Config) *Scheduler {
	s := &Scheduler{now: time.Now}
	for _, h := range cfg.BacklinkHours {
		if h >= 0 && h < 24 {
			s.backlink[h] = true
		}
	}
	for _, h := range cfg.CrawlingHours {
		if h >= 0 && h < 24 && !s.backlink[h] {
			s.crawling[h] = true
		}
	}
	return s
}

// ModeAt returns the mode in effect at t.
func (s *Scheduler) ModeAt(t time.Time) Mode {
	hour := t.UTC().Hour()
	switch {
	case s.backlink[hour]:
		return ModeBacklink
	case s.crawling[hour]:
		return ModeCrawling
	default:
		return ModeIdle
	}
}

// CurrentMode returns the mode in effect right now.
func (s *Scheduler) CurrentMode() Mode {
	return s.ModeAt(s.now())
}

// NextSwitchAfter returns the earliest hour boundary after t whose mode is
// a working mode other than the one in effect at t. When the next day
// holds no such boundary, the same hour tomorrow is returned so callers
// always get a usable deadline.
func (s *Scheduler) NextSwitchAfter(t time.Time) time.Time {
	current := s.ModeAt(t)
	top := t.UTC().Truncate(time.Hour)
	for i := 1; i <= 24; i++ {
		boundary := top.Add(time.Duration(i) * time.Hour)
		m := s.ModeAt(boundary)
		if m != ModeIdle && m != current {
			return boundary
		}
	}
	return top.Add(24 * time.Hour)
}

// NextModeSwitch returns the next mode boundary after the current instant.
func (s *Scheduler) NextModeSwitch() time.Time {
	return s.NextSwitchAfter(s.now())
}
