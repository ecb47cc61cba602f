package backlink

import (
	"bytes"
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"github.com/rat-crawler/ratcrawler/internal/urlutil"
)

// searchEngine is one public backlink-query endpoint.
type searchEngine struct {
	name  string
	host  string
	query func(target, targetHost string) string
}

var searchEngines = []searchEngine{
	{
		name: "google",
		host: "google.",
		query: func(target, _ string) string {
			return "https://www.google.com/search?q=" + url.QueryEscape("link:"+target) + "&num=100"
		},
	},
	{
		name: "bing",
		host: "bing.",
		query: func(_, targetHost string) string {
			return "https://www.bing.com/search?q=" + url.QueryEscape("linkfromdomain:"+targetHost) + "&count=50"
		},
	},
}

// searchSeeds queries public search engines for pages already known to
// link at the target and returns them as extra BFS entry points. Engines
// throttle and reshape these result pages freely, so every failure is
// logged and skipped rather than surfaced.
func (e *Engine) searchSeeds(ctx context.Context, target, targetHost string) []string {
	var seeds []string
	seen := make(map[string]struct{})

	for _, engine := range searchEngines {
		if err := e.limiter.Wait(ctx); err != nil {
			break
		}
		resp, err := e.client.Fetch(ctx, engine.query(target, targetHost))
		if err != nil {
			e.log.WithField("engine", engine.name).WithError(err).Debug("search seeding failed")
			continue
		}
		if !resp.IsSuccess() || !resp.IsHTML() {
			e.log.WithFields(logrus.Fields{
				"engine": engine.name,
				"status": resp.StatusCode,
			}).Debug("search seeding refused")
			continue
		}
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
		if err != nil {
			continue
		}

		doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
			href, _ := sel.Attr("href")
			resolved, err := urlutil.ResolveURL(resp.FinalURL, strings.TrimSpace(href))
			if err != nil {
				return
			}
			normalized, err := urlutil.Normalize(resolved)
			if err != nil || !urlutil.IsHTTP(normalized) {
				return
			}
			host, err := urlutil.ExtractHostPort(normalized)
			if err != nil || host == "" {
				return
			}
			// Result pages link heavily back into the engine itself.
			if strings.Contains(host, engine.host) || host == targetHost {
				return
			}
			if _, dup := seen[normalized]; dup {
				return
			}
			seen[normalized] = struct{}{}
			seeds = append(seeds, normalized)
		})
	}

	if len(seeds) > 0 {
		e.log.WithField("seeds", len(seeds)).Info("search engines contributed candidate pages")
	}
	return seeds
}
