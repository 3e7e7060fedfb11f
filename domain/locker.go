package domain

import (
	"sort"
	"strings"
	"sync"
)

// AddressLocker hands out per-address mutexes. Transfers touching disjoint
// addresses never contend; overlapping ones are serialized.
type AddressLocker struct {
	mu    sync.Mutex
	locks map[string]*addressLock
}

type addressLock struct {
	mu   sync.Mutex
	refs int
}

func NewAddressLocker() *AddressLocker {
	return &AddressLocker{locks: make(map[string]*addressLock)}
}

// Lock acquires every address in a global order to avoid deadlocks and returns the unlock func.
// Duplicates and case variants of one address are locked once.
func (l *AddressLocker) Lock(addresses ...string) (unlock func()) {
	keys := make([]string, 0, len(addresses))
	seen := make(map[string]struct{}, len(addresses))
	for _, a := range addresses {
		k := strings.ToLower(a)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	held := make([]*addressLock, 0, len(keys))
	for _, k := range keys {
		lk := l.acquire(k)
		lk.mu.Lock()
		held = append(held, lk)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			for i := len(held) - 1; i >= 0; i-- {
				held[i].mu.Unlock()
				l.release(keys[i])
			}
		})
	}
}

func (l *AddressLocker) acquire(key string) *addressLock {
	l.mu.Lock()
	defer l.mu.Unlock()
	lk, ok := l.locks[key]
	if !ok {
		lk = &addressLock{}
		l.locks[key] = lk
	}
	lk.refs++
	return lk
}

func (l *AddressLocker) release(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lk := l.locks[key]
	lk.refs--
	if lk.refs == 0 {
		delete(l.locks, key)
	}
}

func (l *AddressLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
