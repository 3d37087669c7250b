package netlock

import (
	"sync"

	"github.com/itzTheMeow/Modular-Storage-System-sub002/pkg/types"
)

// LockMap provides per-network mutual exclusion. At most one operation runs
// per NetworkID at any time; operations on different ids do not block each
// other. Entries are removed once the last waiter releases, so the map does
// not grow with the number of networks ever seen.
type LockMap struct {
	mu    sync.Mutex
	locks map[types.NetworkID]*entry
}

type entry struct {
	mu      sync.Mutex
	waiters int
}

func NewLockMap() *LockMap {
	return &LockMap{
		locks: make(map[types.NetworkID]*entry),
	}
}

// Acquire blocks until the lock for id is held and returns the release
// function. Release is unconditional and must be called on every exit path;
// the usual form is `defer lm.Acquire(id)()`.
func (lm *LockMap) Acquire(id types.NetworkID) func() {
	lm.mu.Lock()
	e := lm.locks[id]
	if e == nil {
		e = &entry{}
		lm.locks[id] = e
	}
	e.waiters++
	lm.mu.Unlock()

	e.mu.Lock()

	return func() {
		lm.mu.Lock()
		e.waiters--
		if e.waiters == 0 {
			delete(lm.locks, id)
		}
		lm.mu.Unlock()
		e.mu.Unlock()
	}
}

// With runs op while holding the lock for id. The lock is released on every
// exit path; op's error propagates unchanged. There is no re-entrancy: op
// must not acquire the same id again.
func (lm *LockMap) With(id types.NetworkID, op func() error) error {
	defer lm.Acquire(id)()
	return op()
}

// WithAll runs op while holding the locks of several ids. Callers must pass
// ids in a globally consistent order (the registry sorts them) so two
// multi-id operations cannot deadlock against each other.
func (lm *LockMap) WithAll(ids []types.NetworkID, op func() error) error {
	releases := make([]func(), 0, len(ids))
	for _, id := range ids {
		releases = append(releases, lm.Acquire(id))
	}
	defer func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}()
	return op()
}

// Held reports how many lock entries currently exist. Only used by tests to
// verify idle entries are collected.
func (lm *LockMap) Held() int {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	return len(lm.locks)
}
