package backlink

import (
	"sort"
	"strings"
	"time"

	"github.com/rat-crawler/ratcrawler/internal/storage"
	"github.com/rat-crawler/ratcrawler/internal/urlutil"
)

// SpamKeywords flags low-quality referring pages. A backlink counts as spam
// when any keyword appears in its source URL, anchor text or context.
var SpamKeywords = []string{
	"casino", "poker", "viagra", "pharmacy", "loan",
	"insurance", "free-money", "make-money-fast", "weight-loss", "dating",
}

// IsSpam reports whether b matches any spam keyword.
func IsSpam(b *storage.Backlink) bool {
	hay := strings.ToLower(b.SourceURL + " " + b.AnchorText + " " + b.Context)
	for _, kw := range SpamKeywords {
		if strings.Contains(hay, kw) {
			return true
		}
	}
	return false
}

// ScoreSet holds the scores derived from one discovery run. Domains and
// PageRanks are sorted best-first with a stable tie-break so repeated runs
// over the same links produce identical output.
type ScoreSet struct {
	Domains   []*storage.DomainScore
	PageRanks []*storage.PageRankScore
	SpamCount int

	authority map[string]float64
	pagerank  map[string]float64
}

// AuthorityOf returns the authority of domain, or 0 when it never appeared
// as a referrer.
func (s *ScoreSet) AuthorityOf(domain string) float64 {
	return s.authority[domain]
}

// PageRankOf returns the rank of url, or 0 when nothing linked to it.
func (s *ScoreSet) PageRankOf(url string) float64 {
	return s.pagerank[url]
}

// Score computes domain authority, page rank and the spam count for a set
// of backlinks.
//
// Authority is each referring domain's raw backlink count scaled so the
// busiest domain lands at 100. Rank credits every linked URL with 1/out(d)
// per link from domain d, where out(d) is the domain's total outgoing
// backlinks, then scales the top URL to 100. An empty set scores everything
// zero.
func Score(backlinks []*storage.Backlink, now time.Time) *ScoreSet {
	set := &ScoreSet{
		authority: make(map[string]float64),
		pagerank:  make(map[string]float64),
	}

	raw := make(map[string]int)
	pages := make(map[string]map[string]struct{})
	for _, b := range backlinks {
		if IsSpam(b) {
			set.SpamCount++
		}
		host, err := urlutil.ExtractHostPort(b.SourceURL)
		if err != nil || host == "" {
			continue
		}
		raw[host]++
		if pages[host] == nil {
			pages[host] = make(map[string]struct{})
		}
		pages[host][b.SourceURL] = struct{}{}
	}

	maxRaw := 0
	for _, n := range raw {
		if n > maxRaw {
			maxRaw = n
		}
	}
	for host, n := range raw {
		score := 0.0
		if maxRaw > 0 {
			score = float64(n) / float64(maxRaw) * 100
		}
		set.authority[host] = score
		set.Domains = append(set.Domains, &storage.DomainScore{
			Domain:                 host,
			AuthorityScore:         score,
			TotalBacklinks:         n,
			UniqueReferringDomains: len(pages[host]),
			LastUpdated:            now,
		})
	}
	sort.Slice(set.Domains, func(i, j int) bool {
		if set.Domains[i].AuthorityScore != set.Domains[j].AuthorityScore {
			return set.Domains[i].AuthorityScore > set.Domains[j].AuthorityScore
		}
		return set.Domains[i].Domain < set.Domains[j].Domain
	})

	for _, b := range backlinks {
		host, err := urlutil.ExtractHostPort(b.SourceURL)
		if err != nil || host == "" || raw[host] == 0 {
			continue
		}
		set.pagerank[b.TargetURL] += 1.0 / float64(raw[host])
	}
	maxRank := 0.0
	for _, r := range set.pagerank {
		if r > maxRank {
			maxRank = r
		}
	}
	for url, r := range set.pagerank {
		score := 0.0
		if maxRank > 0 {
			score = r / maxRank * 100
		}
		set.pagerank[url] = score
		set.PageRanks = append(set.PageRanks, &storage.PageRankScore{
			URL:            url,
			Score:          score,
			LastCalculated: now,
		})
	}
	sort.Slice(set.PageRanks, func(i, j int) bool {
		if set.PageRanks[i].Score != set.PageRanks[j].Score {
			return set.PageRanks[i].Score > set.PageRanks[j].Score
		}
		return set.PageRanks[i].URL < set.PageRanks[j].URL
	})

	return set
}
