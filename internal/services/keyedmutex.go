package services

import "sync"

// keyedMutex serializes mutations per family name. Entries are reference
// counted so the map does not grow without bound across many families.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*familyLock
}

type familyLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: map[string]*familyLock{}}
}

// Lock acquires the mutex for key and returns its release func.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	fl, ok := k.locks[key]
	if !ok {
		fl = &familyLock{}
		k.locks[key] = fl
	}
	fl.refs++
	k.mu.Unlock()

	fl.mu.Lock()
	return func() {
		fl.mu.Unlock()
		k.mu.Lock()
		fl.refs--
		if fl.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
