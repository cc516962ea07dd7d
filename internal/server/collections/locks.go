package collections

import "github.com/EagleChen/mapmutex"

// keyedLock serializes writers per collection name. The backend has no
// compare-and-swap, so two concurrent read-modify-write cycles on the same
// collection would silently drop one of the updates; holding the name's
// lock across the whole cycle closes that race. Different names lock
// independently, keeping cross-collection writes parallel.
type keyedLock struct {
	m *mapmutex.Mutex
}

func newKeyedLock() *keyedLock {
	// maxTry 800 with exponential backoff up to 0.1s: under contention a
	// writer waits rather than failing fast.
	return &keyedLock{m: mapmutex.NewCustomizedMapMutex(800, 100000000, 10, 1.1, 0.2)}
}

// acquire returns false only once the retry budget is exhausted.
func (l *keyedLock) acquire(name string) bool {
	return l.m.TryLock(name)
}

func (l *keyedLock) release(name string) {
	l.m.Unlock(name)
}
