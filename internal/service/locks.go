package service

import "sync"

// keyedMutex serializes operations on the same key (spec §5: "acquire a
// lock keyed by id (and by (app, label) during create)"). Locks are held
// only for the duration of one call's orchestration; they are not
// persisted, so a simple refcounted entry map is sufficient — no need for a
// fully lock-free structure since contention is expected to be low (two
// different ids proceed in parallel).
type keyedMutex struct {
	mu      sync.Mutex
	entries map[string]*refCountedMutex
}

type refCountedMutex struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{entries: make(map[string]*refCountedMutex)}
}

// Lock blocks until key is uncontended, then acquires it.
func (k *keyedMutex) Lock(key string) {
	k.mu.Lock()
	entry, ok := k.entries[key]
	if !ok {
		entry = &refCountedMutex{}
		k.entries[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()
}

// Unlock releases key, cleaning up the entry once no one else references it.
func (k *keyedMutex) Unlock(key string) {
	k.mu.Lock()
	entry, ok := k.entries[key]
	if !ok {
		k.mu.Unlock()
		return
	}
	entry.refs--
	if entry.refs == 0 {
		delete(k.entries, key)
	}
	k.mu.Unlock()

	entry.mu.Unlock()
}

func appLabelKey(appName, label string) string {
	return appName + "\x00" + label
}
