// Package session tracks who is logged in on a request. A State is owned by
// a single request; it only changes through a Manager.
package session

import (
	"errors"

	"github.com/oklog/ulid/v2"
)

// ErrNotAuthenticated is returned when a page needs a logged-in user.
var ErrNotAuthenticated = errors.New("not authenticated")

// Identity is what an authenticated session knows about its user.
type Identity struct {
	UserID   int64
	Username string
}

// State is either anonymous or authenticated. The zero value is anonymous.
type State struct {
	identity  *Identity
	sessionID ulid.ULID
}

// Anonymous returns a fresh anonymous state.
func Anonymous() *State { return &State{} }

func (s *State) Authenticated() bool {
	return s != nil && s.identity != nil
}

func (s *State) Identity() (Identity, bool) {
	if !s.Authenticated() {
		return Identity{}, false
	}
	return *s.identity, true
}

// RequireAuthenticated returns the identity or ErrNotAuthenticated.
func (s *State) RequireAuthenticated() (Identity, error) {
	id, ok := s.Identity()
	if !ok {
		return Identity{}, ErrNotAuthenticated
	}
	return id, nil
}

func (s *State) authenticate(sessionID ulid.ULID, id Identity) {
	s.identity = &id
	s.sessionID = sessionID
}

func (s *State) reset() {
	s.identity = nil
	s.sessionID = ulid.ULID{}
}
