package session

import (
	"sync"

	"github.com/havenmind/havend/internal/backend"
)

// State holds the current session and notifies subscribers on change.
// Mutated only through Set and Clear; everything else reads.
type State struct {
	mu      sync.RWMutex
	current *backend.Session
	subs    []func(*backend.Session)
}

// NewState creates an empty (signed-out) state.
func NewState() *State {
	return &State{}
}

// Set installs a session (sign-in or token refresh) and notifies
// subscribers with the new value.
func (s *State) Set(session *backend.Session) {
	s.mu.Lock()
	s.current = session
	subs := make([]func(*backend.Session), len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	for _, fn := range subs {
		fn(session)
	}
}

// Clear drops the session (sign-out) and notifies subscribers with nil.
func (s *State) Clear() {
	s.Set(nil)
}

// Current returns the session, nil when signed out.
func (s *State) Current() *backend.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// SignedIn reports whether a session is present.
func (s *State) SignedIn() bool {
	return s.Current() != nil
}

// UserID returns the signed-in user's id, empty when signed out.
func (s *State) UserID() string {
	if cur := s.Current(); cur != nil {
		return cur.UserID
	}
	return ""
}

// Subscribe registers fn for every subsequent state change. The
// callback runs on the mutating goroutine; keep it fast.
func (s *State) Subscribe(fn func(*backend.Session)) {
	s.mu.Lock()
	s.subs = append(s.subs, fn)
	s.mu.Unlock()
}
