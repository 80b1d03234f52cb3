package app

import (
	"sync"

	"github.com/firasmosbehi/microservice-chatapp/internal/core"
	"github.com/firasmosbehi/microservice-chatapp/internal/domain"
)

// SessionState is the client-facing protocol state machine.
type SessionState int

const (
	StateAuthenticating SessionState = iota
	StateJoined
	StateClosing
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateAuthenticating:
		return "authenticating"
	case StateJoined:
		return "joined"
	case StateClosing:
		return "closing"
	default:
		return "closed"
	}
}

// Session is one accepted streaming connection: the authenticated
// principal, the current room (at most one), and the outbound endpoint.
type Session struct {
	ID   core.ConnID
	conn core.ClientConn

	mu        sync.Mutex
	state     SessionState
	principal domain.Principal
	roomID    domain.RoomID
}

func NewSession(id core.ConnID, conn core.ClientConn) *Session {
	return &Session{ID: id, conn: conn, state: StateAuthenticating}
}

func (s *Session) Conn() core.ClientConn { return s.conn }

func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Authenticate binds the verified principal. Only valid once, while the
// session is still in the authenticating state.
func (s *Session) Authenticate(p domain.Principal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateAuthenticating {
		return domain.ErrUnauthenticated
	}
	s.principal = p
	s.state = StateJoined
	return nil
}

// Principal returns the bound identity; ok is false before a
// successful handshake.
func (s *Session) Principal() (domain.Principal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateAuthenticating {
		return domain.Principal{}, false
	}
	return s.principal, true
}

// Room returns the currently occupied room, if any. A session may
// briefly occupy zero rooms between leave and join.
func (s *Session) Room() (domain.RoomID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roomID, s.roomID != ""
}

func (s *Session) setRoom(id domain.RoomID) {
	s.mu.Lock()
	s.roomID = id
	s.mu.Unlock()
}

func (s *Session) clearRoom() {
	s.mu.Lock()
	s.roomID = ""
	s.mu.Unlock()
}

// BeginClose transitions to closing exactly once; callers that lose the
// race skip teardown.
func (s *Session) BeginClose() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosing || s.state == StateClosed {
		return false
	}
	s.state = StateClosing
	return true
}

func (s *Session) markClosed() {
	s.mu.Lock()
	s.state = StateClosed
	s.mu.Unlock()
}
