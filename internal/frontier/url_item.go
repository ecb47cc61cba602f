// Package frontier implements the prioritized URL queue feeding the crawl
// pipeline.
package frontier

import (
	"net/url"
	"strings"

	"github.com/rat-crawler/ratcrawler/internal/urlutil"
)

// Priority levels. Higher values pop first.
const (
	// SeedPriority is assigned to session seeds.
	SeedPriority = 10

	// BasePriority is the starting score of every discovered link.
	BasePriority = 5

	// SameHostBonus is added when a link stays on its referrer's host.
	SameHostBonus = 3

	// KeyPathBonus is added when the path contains a high-value segment.
	KeyPathBonus = 2
)

// keyPathSegments mark pages that tend to describe a site.
var keyPathSegments = []string{"/about", "/contact", "/services"}

// Item is one queued URL.
type Item struct {
	// Normalized URL
	URL string

	// Normalized URL this one was discovered on, empty for seeds
	Referrer string

	// Hops from the seed, 0 for seeds
	Depth int

	// Computed priority
	Priority int

	// Insertion order, ties pop oldest first
	seq int64

	// Heap bookkeeping
	index int
}

// PriorityFor scores a discovered link: the base score, plus a bonus for
// staying on the referrer's host, plus a bonus for high-value paths.
func PriorityFor(rawURL, referrer string) int {
	priority := BasePriority

	if referrer != "" && urlutil.SameHost(rawURL, referrer) {
		priority += SameHostBonus
	}

	if u, err := url.Parse(rawURL); err == nil {
		path := strings.ToLower(u.Path)
		for _, segment := range keyPathSegments {
			if strings.Contains(path, segment) {
				priority += KeyPathBonus
				break
			}
		}
	}

	return priority
}
