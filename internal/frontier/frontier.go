package frontier

import (
	"container/heap"
	"sync"
)

// Stats holds a point-in-time view of the frontier.
type Stats struct {
	Queued      int
	Visited     int
	TotalAdded  int
	Duplicates  int
	DepthCounts map[int]int
}

// Frontier is a thread-safe priority queue of URLs. Higher priority pops
// first, shallower depth breaks priority ties, and insertion order breaks
// the rest. A URL enters the queue at most once for the frontier's
// lifetime: once queued or popped it is never accepted again.
type Frontier struct {
	mu          sync.Mutex
	queue       itemHeap
	visited     map[string]struct{}
	queued      map[string]struct{}
	maxDepth    int
	nextSeq     int64
	totalAdded  int
	duplicates  int
	depthCounts map[int]int
}

// New creates an empty frontier. Items deeper than maxDepth are rejected.
func New(maxDepth int) *Frontier {
	return &Frontier{
		visited:     make(map[string]struct{}),
		queued:      make(map[string]struct{}),
		maxDepth:    maxDepth,
		depthCounts: make(map[int]int),
	}
}

// PushSeed queues a session seed at depth 0 with seed priority.
func (f *Frontier) PushSeed(url string) bool {
	return f.push(&Item{URL: url, Depth: 0, Priority: SeedPriority})
}

// Push queues a discovered link, scoring it against its referrer. Returns
// false for duplicates and for items beyond the depth limit.
func (f *Frontier) Push(url string, depth int, referrer string) bool {
	return f.push(&Item{
		URL:      url,
		Referrer: referrer,
		Depth:    depth,
		Priority: PriorityFor(url, referrer),
	})
}

func (f *Frontier) push(item *Item) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if item.Depth > f.maxDepth {
		return false
	}

	if _, seen := f.visited[item.URL]; seen {
		f.duplicates++
		return false
	}
	if _, inQueue := f.queued[item.URL]; inQueue {
		f.duplicates++
		return false
	}

	item.seq = f.nextSeq
	f.nextSeq++

	heap.Push(&f.queue, item)
	f.queued[item.URL] = struct{}{}
	f.totalAdded++
	f.depthCounts[item.Depth]++

	return true
}

// Pop removes and returns the best queued item, marking its URL visited.
// Returns nil when the frontier is empty.
func (f *Frontier) Pop() *Item {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.queue.Len() == 0 {
		return nil
	}

	item := heap.Pop(&f.queue).(*Item)
	delete(f.queued, item.URL)
	f.visited[item.URL] = struct{}{}
	return item
}

// Len returns the number of queued items.
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queue.Len()
}

// IsEmpty reports whether nothing is queued.
func (f *Frontier) IsEmpty() bool {
	return f.Len() == 0
}

// HasVisited reports whether a URL was popped at some point.
func (f *Frontier) HasVisited(url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, seen := f.visited[url]
	return seen
}

// Contains reports whether a URL is queued or was already popped.
func (f *Frontier) Contains(url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, seen := f.visited[url]; seen {
		return true
	}
	_, inQueue := f.queued[url]
	return inQueue
}

// VisitedCount returns how many URLs have been popped.
func (f *Frontier) VisitedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.visited)
}

// Stats returns frontier counters.
func (f *Frontier) Stats() Stats {
	f.mu.Lock()
	defer f.mu.Unlock()

	depthCounts := make(map[int]int, len(f.depthCounts))
	for depth, count := range f.depthCounts {
		depthCounts[depth] = count
	}

	return Stats{
		Queued:      f.queue.Len(),
		Visited:     len(f.visited),
		TotalAdded:  f.totalAdded,
		Duplicates:  f.duplicates,
		DepthCounts: depthCounts,
	}
}

// itemHeap orders items by priority desc, then depth asc, then insertion
// order.
type itemHeap []*Item

func (h itemHeap) Len() int { return len(h) }

func (h itemHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority > h[j].Priority
	}
	if h[i].Depth != h[j].Depth {
		return h[i].Depth < h[j].Depth
	}
	return h[i].seq < h[j].seq
}

func (h itemHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *itemHeap) Push(x any) {
	item := x.(*Item)
	item.index = len(*h)
	*h = append(*h, item)
}

func (h *itemHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[:n-1]
	return item
}
