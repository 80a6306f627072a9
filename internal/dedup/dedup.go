package dedup

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	DefaultSize   = 10000
	DefaultWindow = 10 * time.Minute
)

// Deduplicator remembers recently seen event fingerprints. Memory is bounded
// both by entry count (least recently seen evicted first) and by a retention
// window after which a fingerprint is forgotten.
type Deduplicator struct {
	mu      sync.Mutex
	entries *lru.LRU[string, time.Time]
	window  time.Duration
}

// New creates a deduplicator. Non-positive arguments fall back to defaults.
func New(size int, window time.Duration) *Deduplicator {
	if size <= 0 {
		size = DefaultSize
	}
	if window <= 0 {
		window = DefaultWindow
	}

	return &Deduplicator{
		entries: lru.NewLRU[string, time.Time](size, nil, window),
		window:  window,
	}
}

// Seen reports whether fingerprint was remembered within the window.
func (d *Deduplicator) Seen(fingerprint string) bool {
	_, ok := d.entries.Peek(fingerprint)
	return ok
}

// Remember records fingerprint as seen now.
func (d *Deduplicator) Remember(fingerprint string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries.Add(fingerprint, time.Now())
}

// SeenOrRemember atomically checks and records fingerprint. It returns true
// when the fingerprint was already present; either way its lastSeen moves to now.
func (d *Deduplicator) SeenOrRemember(fingerprint string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, seen := d.entries.Peek(fingerprint)
	d.entries.Add(fingerprint, time.Now())
	return seen
}

// LastSeen returns when fingerprint was last published.
func (d *Deduplicator) LastSeen(fingerprint string) (time.Time, bool) {
	return d.entries.Peek(fingerprint)
}

func (d *Deduplicator) Len() int {
	return d.entries.Len()
}

func (d *Deduplicator) Window() time.Duration {
	return d.window
}
