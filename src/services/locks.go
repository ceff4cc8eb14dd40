package services

import "sync"

// keyedMutex serializes work per string key. Used to give each (user, stock)
// position — and each user's cash balance — a single writer at a time, so an
// append and its recompute never interleave with another.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for key, creating it on first use. Returns the
// unlock function. Mutexes are never evicted; the key space is bounded by the
// number of (user, stock) pairs.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
