package tracking

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/edge-hybrid/location-tracker/internal/shared/geo"
	"github.com/google/uuid"
)

const subscriberBuffer = 64

// Store owns the single live session. Writes are serialized and each one is
// computed from the last committed State; reads never take the write lock.
type Store struct {
	mu    sync.Mutex
	state atomic.Pointer[State]

	subsMu sync.RWMutex
	subs   map[*Subscriber]struct{}

	now   func() time.Time
	newID func() string
}

// Subscriber receives every committed State in commit order. If C is full the
// notification is dropped; the next one still carries the complete state.
type Subscriber struct {
	C chan State
}

type StoreOption func(*Store)

func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

func WithIDGenerator(newID func() string) StoreOption {
	return func(s *Store) { s.newID = newID }
}

func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		subs:  map[*Subscriber]struct{}{},
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.state.Store(&State{Points: []geo.Point{}})
	return s
}

func (s *Store) Snapshot() State {
	return *s.state.Load()
}

// Start discards the current session, if any, and begins a new one.
func (s *Store) Start() State {
	next, _ := s.commit(Started{SessionID: s.newID(), At: s.now().UnixMilli()})
	return next
}

// Stop freezes the active session and reports whether one was active. It
// does nothing when idle.
func (s *Store) Stop() (State, bool) {
	return s.commit(Stopped{At: s.now().UnixMilli()})
}

// AddPoint records one fix and reports whether it was accepted. Fixes are
// ignored while idle and when a coordinate is not finite.
func (s *Store) AddPoint(p geo.Point) bool {
	_, ok := s.commit(FixReceived{Point: p})
	return ok
}

func (s *Store) commit(ev Event) (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, changed := Reduce(*s.state.Load(), ev)
	if !changed {
		return next, false
	}
	s.state.Store(&next)
	s.notify(next)
	return next, true
}

func (s *Store) Subscribe() *Subscriber {
	sub := &Subscriber{C: make(chan State, subscriberBuffer)}
	s.subsMu.Lock()
	s.subs[sub] = struct{}{}
	s.subsMu.Unlock()
	return sub
}

func (s *Store) Unsubscribe(sub *Subscriber) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	if _, ok := s.subs[sub]; !ok {
		return
	}
	delete(s.subs, sub)
	close(sub.C)
}

func (s *Store) notify(state State) {
	s.subsMu.RLock()
	defer s.subsMu.RUnlock()
	for sub := range s.subs {
		select {
		case sub.C <- state:
		default:
		}
	}
}
