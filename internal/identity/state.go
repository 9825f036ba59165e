package identity

import (
	"sync"
	"time"

	"aiformreply-backend/internal/models"
)

type StateKind string

const (
	SignedUp     StateKind = "signed_up"
	SignedIn     StateKind = "signed_in"
	SignedOut    StateKind = "signed_out"
	EmailChanged StateKind = "email_changed"
)

// StateChange describes a change in a user's authentication state.
type StateChange struct {
	Kind StateKind
	User models.User
	At   time.Time
}

type Listener func(StateChange)

type subscription struct {
	id uint64
	fn Listener
}

// Subscribe registers a listener for auth-state changes. Listeners run
// synchronously in subscription order. The returned func unsubscribes and is
// safe to call more than once.
func (s *Service) Subscribe(fn Listener) (unsubscribe func()) {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, subscription{id: id, fn: fn})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, sub := range s.listeners {
				if sub.id == id {
					s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

func (s *Service) emit(change StateChange) {
	s.mu.RLock()
	subs := make([]subscription, len(s.listeners))
	copy(subs, s.listeners)
	s.mu.RUnlock()

	for _, sub := range subs {
		sub.fn(change)
	}
}
