// Package inflight tracks which mutating operations are outstanding so a
// UI can disable the control that triggered them.
package inflight

import "sync"

// Tracker counts outstanding calls per operation name.
type Tracker struct {
	mu     sync.Mutex
	counts map[string]int
	ops    []string
}

// New returns a tracker that always reports the given operations, even
// when idle.
func New(ops ...string) *Tracker {
	return &Tracker{counts: make(map[string]int), ops: ops}
}

// Begin marks op as in flight and returns the func that ends it. Callers
// defer the returned func so the flag clears on every exit path.
func (t *Tracker) Begin(op string) func() {
	t.mu.Lock()
	t.counts[op]++
	t.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			if t.counts[op] > 0 {
				t.counts[op]--
			}
			t.mu.Unlock()
		})
	}
}

// Active reports whether at least one op call is outstanding.
func (t *Tracker) Active(op string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[op] > 0
}

// Snapshot returns the flag of every known operation.
func (t *Tracker) Snapshot() map[string]bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]bool, len(t.ops)+len(t.counts))
	for _, op := range t.ops {
		out[op] = false
	}
	for op, n := range t.counts {
		out[op] = n > 0
	}
	return out
}
