package orchestrator

import "sync"

// keyedLocks serializes transitions per swap id. Entries are reference
// counted so the map does not grow with the swap history.
type keyedLocks struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{locks: make(map[string]*lockEntry)}
}

func (k *keyedLocks) lock(id string) {
	k.mu.Lock()
	entry, ok := k.locks[id]
	if !ok {
		entry = &lockEntry{}
		k.locks[id] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()
}

func (k *keyedLocks) unlock(id string) {
	k.mu.Lock()
	entry, ok := k.locks[id]
	if ok {
		entry.refs--
		if entry.refs == 0 {
			delete(k.locks, id)
		}
	}
	k.mu.Unlock()

	if ok {
		entry.mu.Unlock()
	}
}
