// Package priority implements the per-application ordered list of
// experiment ids (spec §4.3), in the style of an in-memory manager guarded
// by a single RWMutex.
package priority

import "sync"

// List is the per-application ordered list of experiment ids. Mutations on
// the same application are serialized; reads return a consistent snapshot
// (spec §5).
type List struct {
	mu    sync.RWMutex
	order map[string][]string
}

// New creates an empty priority list.
func New() *List {
	return &List{order: make(map[string][]string)}
}

// Append adds id to the end of appName's list if not already present.
// Idempotent: appending an id already in the list is a no-op.
func (l *List) Append(appName, id string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ids := l.order[appName]
	for _, existing := range ids {
		if existing == id {
			return
		}
	}
	l.order[appName] = append(ids, id)
}

// Remove deletes id from appName's list, if present.
func (l *List) Remove(appName, id string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ids := l.order[appName]
	for i, existing := range ids {
		if existing == id {
			l.order[appName] = append(ids[:i], ids[i+1:]...)
			return
		}
	}
}

// Reorder replaces appName's order with newOrder wholesale. Callers are
// responsible for newOrder containing the same set of ids as the current
// list; Reorder does not validate membership.
func (l *List) Reorder(appName string, newOrder []string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cp := make([]string, len(newOrder))
	copy(cp, newOrder)
	l.order[appName] = cp
}

// Snapshot returns a copy of appName's current order.
func (l *List) Snapshot(appName string) []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ids := l.order[appName]
	cp := make([]string, len(ids))
	copy(cp, ids)
	return cp
}

// Contains reports whether id is present in appName's list.
func (l *List) Contains(appName, id string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for _, existing := range l.order[appName] {
		if existing == id {
			return true
		}
	}
	return false
}
