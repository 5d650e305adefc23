package publicholiday

import (
	"sync"

	"github.com/warp/leave-engine/leave"
)

type dayKey struct {
	contact leave.ContactID
	date    string
}

// dayLocks is a mutex per (contact, date). Entries are reference counted and
// dropped once nobody holds or waits for them.
type dayLocks struct {
	mu    sync.Mutex
	locks map[dayKey]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newDayLocks() *dayLocks {
	return &dayLocks{locks: make(map[dayKey]*refMutex)}
}

// lock blocks until the (contact, date) lock is held and returns its release.
func (l *dayLocks) lock(contact leave.ContactID, date leave.Date) (unlock func()) {
	k := dayKey{contact: contact, date: date.String()}

	l.mu.Lock()
	m, ok := l.locks[k]
	if !ok {
		m = &refMutex{}
		l.locks[k] = m
	}
	m.refs++
	l.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		l.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(l.locks, k)
		}
		l.mu.Unlock()
	}
}

// size returns the number of live entries.
func (l *dayLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
