package ride

import "sync"

// keyedLocks hands out one mutex per ride id so lifecycle transitions on the
// same ride linearize while rides never contend with each other. Entries are
// never reclaimed; rides are finite per process lifetime and a mutex is
// cheap.
type keyedLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{locks: make(map[string]*sync.Mutex)}
}

func (k *keyedLocks) get(id string) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()
	l, ok := k.locks[id]
	if !ok {
		l = &sync.Mutex{}
		k.locks[id] = l
	}
	return l
}
