package services

import "sync"

// WorldLocker hands out exclusive, non-blocking per-world locks. A backup holds
// the lock from before save-off until after save-on; a delete holds it while
// the directory is removed.
type WorldLocker struct {
	mu     sync.Mutex
	locked map[string]bool
}

// NewWorldLocker creates an empty WorldLocker.
func NewWorldLocker() *WorldLocker {
	return &WorldLocker{locked: make(map[string]bool)}
}

// TryLock takes the lock for world and reports whether it succeeded.
func (l *WorldLocker) TryLock(world string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.locked[world] {
		return false
	}
	l.locked[world] = true
	return true
}

// Unlock releases the lock for world.
func (l *WorldLocker) Unlock(world string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.locked, world)
}

// IsLocked reports whether world is currently locked.
func (l *WorldLocker) IsLocked(world string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.locked[world]
}
