package reconcile

import "sync"

// refLocks serializes saga runs per merchant reference. Two concurrent
// notifications for the same payment would otherwise race on the
// read-modify-write of the ledger blob.
type refLocks struct {
	mu   sync.Mutex
	held map[string]*refLock
}

type refLock struct {
	mu   sync.Mutex
	refs int
}

func newRefLocks() *refLocks {
	return &refLocks{held: make(map[string]*refLock)}
}

func (l *refLocks) lock(ref string) (unlock func()) {
	l.mu.Lock()
	e, ok := l.held[ref]
	if !ok {
		e = &refLock{}
		l.held[ref] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.held, ref)
		}
		l.mu.Unlock()
	}
}
