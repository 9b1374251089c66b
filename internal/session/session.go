package session

import (
	"sync"

	"github.com/google/uuid"
)

// Session owns one State and serialises every transition through Reduce.
// Operations running on other goroutines read snapshots and dispatch their
// results; nothing else writes the state.
type Session struct {
	id string

	mu        sync.Mutex
	state     State
	listeners []func(Action, State)
}

func New() *Session {
	return &Session{id: uuid.NewString(), state: Initial()}
}

func (s *Session) ID() string {
	return s.id
}

// Dispatch applies a and returns the resulting state. Listeners run after the
// transition, outside the lock, in registration order.
func (s *Session) Dispatch(a Action) State {
	s.mu.Lock()
	s.state = Reduce(s.state, a)
	next := s.state
	listeners := append([](func(Action, State))(nil), s.listeners...)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(a, next)
	}
	return next
}

func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// OnChange registers fn to observe every dispatched action.
func (s *Session) OnChange(fn func(Action, State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *Session) Store() Store {
	return StoreOf(s.Snapshot())
}

func (s *Session) Tracker() Tracker {
	return TrackerOf(s.Snapshot())
}
