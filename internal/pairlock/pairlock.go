// ABOUTME: Keyed mutex serializing conversation creation per participant pair.
// ABOUTME: Closes the check-then-act window between pair lookup and create.

package pairlock

import (
	"sort"
	"strings"
	"sync"
)

// Key derives the canonical pair key for two participant identifiers.
// The pair is unordered: Key(a, b) == Key(b, a).
func Key(userID, userID2 string) string {
	ids := []string{userID, userID2}
	sort.Strings(ids)
	return strings.Join(ids, "|")
}

// entry is one key's mutex plus a count of waiters holding a reference.
type entry struct {
	mu   sync.Mutex
	refs int
}

// Registry hands out one mutex per key. Entries are dropped as soon as the
// last holder releases, so the registry stays small regardless of how many
// distinct pairs pass through.
type Registry struct {
	mu    sync.Mutex
	locks map[string]*entry
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		locks: make(map[string]*entry),
	}
}

// Lock acquires the mutex for key, blocking until it is available, and
// returns the release function. The release function must be called
// exactly once.
func (r *Registry) Lock(key string) func() {
	r.mu.Lock()
	e, ok := r.locks[key]
	if !ok {
		e = &entry{}
		r.locks[key] = e
	}
	e.refs++
	r.mu.Unlock()

	e.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Unlock()
			r.mu.Lock()
			e.refs--
			if e.refs == 0 {
				delete(r.locks, key)
			}
			r.mu.Unlock()
		})
	}
}
