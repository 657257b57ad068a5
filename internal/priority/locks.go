package priority

import "sync"

// Locks is a registry of per-press mutexes. Entries are released when no
// holder or waiter remains.
type Locks struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// NewLocks returns an empty registry.
func NewLocks() *Locks {
	return &Locks{entries: make(map[string]*lockEntry)}
}

// Lock blocks until the press is free and returns its unlock function.
func (l *Locks) Lock(press string) func() {
	l.mu.Lock()
	entry, ok := l.entries[press]
	if !ok {
		entry = &lockEntry{}
		l.entries[press] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.entries, press)
		}
		l.mu.Unlock()
	}
}

// Len returns the number of presses currently held or awaited.
func (l *Locks) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
