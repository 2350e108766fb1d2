// Package dedup tracks recently seen upstream message ids so the
// poller never dispatches the same message twice in a run.
package dedup

import "sync"

const (
	// DefaultMaxSize is the size at which a Tracker compacts.
	DefaultMaxSize = 1000
	// DefaultCleanupSize is the size a Tracker compacts down to.
	DefaultCleanupSize = 500
)

// Tracker is a process-local set of message ids with a high-water-mark
// eviction policy: once the set exceeds maxSize, entries are evicted
// (in insertion order, i.e. FIFO, for predictability — the eviction
// order itself is not load-bearing) until the set is back down to
// cleanupSize. Calls are serialized by the poller's single dispatch
// loop, but the mutex lets the admin surface inspect/clear state
// safely from a second goroutine.
type Tracker struct {
	mu          sync.Mutex
	maxSize     int
	cleanupSize int
	seen        map[string]struct{}
	order       []string
}

// New creates a Tracker with the given maxSize/cleanupSize. Values
// less than 1 fall back to the package defaults.
func New(maxSize, cleanupSize int) *Tracker {
	if maxSize < 1 {
		maxSize = DefaultMaxSize
	}
	if cleanupSize < 1 || cleanupSize > maxSize {
		cleanupSize = DefaultCleanupSize
	}
	return &Tracker{
		maxSize:     maxSize,
		cleanupSize: cleanupSize,
		seen:        make(map[string]struct{}),
	}
}

// Seen reports whether id has already been marked.
func (tr *Tracker) Seen(id string) bool {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	_, ok := tr.seen[id]
	return ok
}

// Mark records id as processed. Idempotent. If marking would leave the
// tracker over maxSize, the oldest entries are evicted until the size
// is cleanupSize.
func (tr *Tracker) Mark(id string) {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	if _, ok := tr.seen[id]; ok {
		return
	}
	tr.seen[id] = struct{}{}
	tr.order = append(tr.order, id)

	if len(tr.seen) > tr.maxSize {
		excess := len(tr.seen) - tr.cleanupSize
		for i := 0; i < excess && i < len(tr.order); i++ {
			delete(tr.seen, tr.order[i])
		}
		tr.order = tr.order[excess:]
	}
}

// Clear removes all tracked ids.
func (tr *Tracker) Clear() {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.seen = make(map[string]struct{})
	tr.order = nil
}

// Len returns the current number of tracked ids.
func (tr *Tracker) Len() int {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return len(tr.seen)
}
