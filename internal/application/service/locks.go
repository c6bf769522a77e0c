package service

import "sync"

// instanceLocks serializes all mutations of a single workflow instance so a
// step-completion recomputation always sees a consistent snapshot of votes.
// Different instances lock independently and never block each other.
type instanceLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newInstanceLocks() *instanceLocks {
	return &instanceLocks{locks: make(map[string]*sync.Mutex)}
}

// acquire locks the mutex for the given instance and returns its release
// function. Lock entries live for the process lifetime; the set of active
// instances per process is small.
func (l *instanceLocks) acquire(instanceID string) func() {
	l.mu.Lock()
	m, ok := l.locks[instanceID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[instanceID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
