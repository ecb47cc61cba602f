// Package robots gates crawl traffic on each origin's robots.txt policy.
package robots

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/temoto/robotstxt"
	"golang.org/x/sync/singleflight"
)

// maxRobotsSize caps how much of a robots.txt response is read.
const maxRobotsSize = 512 * 1024

// Gate fetches and caches robots.txt per origin and answers allow/deny
// questions for crawl candidates. Concurrent lookups for the same origin
// share one fetch.
type Gate struct {
	client    *http.Client
	userAgent string
	respect   bool
	log       *logrus.Entry

	mu    sync.RWMutex
	cache map[string]*robotstxt.RobotsData // nil entry = allow all
	group singleflight.Group
}

// NewGate creates a robots gate. When respect is false every URL is
// allowed and nothing is fetched.
func NewGate(client *http.Client, userAgent string, respect bool) *Gate {
	if client == nil {
		client = http.DefaultClient
	}
	return &Gate{
		client:    client,
		userAgent: userAgent,
		respect:   respect,
		log:       logrus.WithField("component", "robots"),
		cache:     make(map[string]*robotstxt.RobotsData),
	}
}

// Allowed reports whether the gate's user agent may fetch rawURL.
// Unreachable or malformed robots.txt files allow everything; only an
// explicit disallow rule blocks a URL.
func (g *Gate) Allowed(ctx context.Context, rawURL string) bool {
	if !g.respect {
		return true
	}

	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return true
	}
	origin := u.Scheme + "://" + u.Host

	data := g.lookup(ctx, origin)
	if data == nil {
		return true
	}
	return data.TestAgent(pathForMatch(u), g.userAgent)
}

// CachedOrigins returns how many origins have a cached policy.
func (g *Gate) CachedOrigins() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.cache)
}

// lookup returns the cached policy for an origin, fetching it on first use.
func (g *Gate) lookup(ctx context.Context, origin string) *robotstxt.RobotsData {
	g.mu.RLock()
	data, ok := g.cache[origin]
	g.mu.RUnlock()
	if ok {
		return data
	}

	// Collapse concurrent first-time lookups for one origin into one fetch.
	v, _, _ := g.group.Do(origin, func() (any, error) {
		g.mu.RLock()
		data, ok := g.cache[origin]
		g.mu.RUnlock()
		if ok {
			return data, nil
		}

		data = g.fetch(ctx, origin)

		g.mu.Lock()
		g.cache[origin] = data
		g.mu.Unlock()
		return data, nil
	})

	data, _ = v.(*robotstxt.RobotsData)
	return data
}

// fetch retrieves and parses an origin's robots.txt. Any failure, a
// non-200 status, or unparseable content yields nil (allow all).
func (g *Gate) fetch(ctx context.Context, origin string) *robotstxt.RobotsData {
	robotsURL := origin + "/robots.txt"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", g.userAgent)

	resp, err := g.client.Do(req)
	if err != nil {
		g.log.WithField("origin", origin).WithError(err).Debug("robots.txt unreachable, allowing all")
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		g.log.WithFields(logrus.Fields{
			"origin": origin,
			"status": resp.StatusCode,
		}).Debug("no robots.txt, allowing all")
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsSize))
	if err != nil {
		return nil
	}

	data, err := robotstxt.FromBytes(body)
	if err != nil {
		g.log.WithField("origin", origin).WithError(err).Debug("robots.txt unparseable, allowing all")
		return nil
	}

	g.log.WithField("origin", origin).Debug("robots.txt cached")
	return data
}

// pathForMatch builds the path component robots rules match against,
// query string included.
func pathForMatch(u *url.URL) string {
	path := u.Path
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return path
}
