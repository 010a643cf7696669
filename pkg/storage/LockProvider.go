package storage

import "sort"


//=========================================== Lock Provider


func NewLockProvider() *LockProvider {
	return &LockProvider{ locks: make(map[string]*refLock) }
}

/*
	Lock / RLock:
		1.) take (or create) the lock entry for the key and bump its reference count
		2.) block on the underlying rw mutex outside of the provider mutex
		3.) the returned unlocker releases the mutex and frees the entry once nobody references it
*/

func (lp *LockProvider) Lock(key string) Unlocker {
	entry := lp.acquire(key)
	entry.Lock()

	return func() {
		entry.Unlock()
		lp.release(key, entry)
	}
}

func (lp *LockProvider) RLock(key string) Unlocker {
	entry := lp.acquire(key)
	entry.RLock()

	return func() {
		entry.RUnlock()
		lp.release(key, entry)
	}
}

/*
	Lock All
		write lock several keys in sorted order, duplicates collapsed, so concurrent callers never deadlock
*/

func (lp *LockProvider) LockAll(keys []string) Unlocker {
	return lp.all(keys, lp.Lock)
}

func (lp *LockProvider) RLockAll(keys []string) Unlocker {
	return lp.all(keys, lp.RLock)
}

func (lp *LockProvider) Held() int {
	lp.mutex.Lock()
	defer lp.mutex.Unlock()

	return len(lp.locks)
}

func (lp *LockProvider) all(keys []string, lock func(string) Unlocker) Unlocker {
	sorted := append([]string{}, keys...)
	sort.Strings(sorted)

	var unlockers []Unlocker
	for idx, key := range sorted {
		if idx > 0 && sorted[idx - 1] == key { continue }
		unlockers = append(unlockers, lock(key))
	}

	return func() {
		for idx := len(unlockers) - 1; idx >= 0; idx-- {
			unlockers[idx]()
		}
	}
}

func (lp *LockProvider) acquire(key string) *refLock {
	lp.mutex.Lock()
	defer lp.mutex.Unlock()

	entry, ok := lp.locks[key]
	if ! ok {
		entry = &refLock{}
		lp.locks[key] = entry
	}

	entry.refs++
	return entry
}

func (lp *LockProvider) release(key string, entry *refLock) {
	lp.mutex.Lock()
	defer lp.mutex.Unlock()

	entry.refs--
	if entry.refs == 0 { delete(lp.locks, key) }
}
