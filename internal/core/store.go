package core

import (
	"sync"
	"sync/atomic"
)

// Store holds the latest PlayerState snapshot under a single-writer,
// many-reader discipline. The controller is the only writer; readers get
// lock-free immutable copies.
type Store struct {
	cur atomic.Pointer[PlayerState]

	mu       sync.Mutex
	watchers []chan struct{}
}

// NewStore returns a store seeded with an idle snapshot at revision zero.
func NewStore() *Store {
	s := &Store{}
	s.cur.Store(&PlayerState{Status: StatusIdle})
	return s
}

// Load returns the current snapshot.
func (s *Store) Load() PlayerState {
	return *s.cur.Load()
}

// Publish assigns the next revision to st, swaps it in atomically and
// notifies watchers. It returns the published snapshot. Publish must only
// be called from the controller goroutine.
func (s *Store) Publish(st PlayerState) PlayerState {
	st.Revision = s.cur.Load().Revision + 1
	if st.Track != nil {
		t := *st.Track
		st.Track = &t
	}
	s.cur.Store(&st)

	s.mu.Lock()
	for _, ch := range s.watchers {
		select {
		case ch <- struct{}{}:
		default: // watcher is behind, it will read the latest snapshot anyway
		}
	}
	s.mu.Unlock()
	return st
}

// Watch returns a channel that receives a notification after each
// publish. Notifications are coalesced: a slow watcher sees at least one
// wakeup for any number of intervening publishes.
func (s *Store) Watch() <-chan struct{} {
	ch := make(chan struct{}, 1)
	s.mu.Lock()
	s.watchers = append(s.watchers, ch)
	s.mu.Unlock()
	return ch
}
