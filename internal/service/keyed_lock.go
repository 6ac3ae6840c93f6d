package service

import "sync"

// keyedLock hands out one RWMutex per policy ID so that mutations on the
// same policy serialize while operations on different policies proceed in
// parallel. Locks live for the process lifetime; the map is bounded by the
// number of distinct policy IDs seen.
type keyedLock struct {
	mu    sync.Mutex
	locks map[string]*sync.RWMutex
}

func newKeyedLock() *keyedLock {
	return &keyedLock{locks: make(map[string]*sync.RWMutex)}
}

// get returns the mutex for the given key, creating it on first use.
func (k *keyedLock) get(key string) *sync.RWMutex {
	k.mu.Lock()
	defer k.mu.Unlock()

	l, ok := k.locks[key]
	if !ok {
		l = &sync.RWMutex{}
		k.locks[key] = l
	}
	return l
}
