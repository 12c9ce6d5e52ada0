package presence

import (
	"errors"
	"sync"
)

// State is the lifecycle stage of one connection.
type State int

const (
	// StateConnected is a live connection that has not joined yet.
	StateConnected State = iota

	// StateJoined is a connection bound to a user identity.
	StateJoined

	// StateClosed is a disconnected connection. It is terminal.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateJoined:
		return "joined"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

var (
	// ErrSessionClosed is returned by Join after the connection went away.
	ErrSessionClosed = errors.New("presence: session closed")

	// ErrIdentityMismatch is returned by Join when the claimed identity differs from the
	// authenticated one.
	ErrIdentityMismatch = errors.New("presence: join identity does not match authenticated identity")

	// ErrEmptyIdentity is returned by Join without a user id.
	ErrEmptyIdentity = errors.New("presence: empty user id")
)

// Session binds one connection to a user identity in a Registry.
// Join and Close serialize on the session, so a join racing a disconnect either
// binds and is then unbound, or observes the close and binds nothing.
type Session struct {
	mu       sync.Mutex
	registry *Registry
	conn     Conn

	// verified is the authenticated identity of the connection; empty means unverified.
	verified string

	state  State
	userID string
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithVerifiedIdentity restricts Join to the given authenticated user id.
func WithVerifiedIdentity(userID string) SessionOption {
	return func(s *Session) {
		s.verified = userID
	}
}

// NewSession starts the lifecycle of conn in the Connected state.
func NewSession(registry *Registry, conn Conn, opts ...SessionOption) *Session {
	s := &Session{
		registry: registry,
		conn:     conn,
		state:    StateConnected,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Join binds the connection to userID. Joining again with another id moves the binding;
// the earlier id is released if it still points at this connection.
func (s *Session) Join(userID string) error {
	if userID == "" {
		return ErrEmptyIdentity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return ErrSessionClosed
	}

	if s.verified != "" && userID != s.verified {
		return ErrIdentityMismatch
	}

	if s.state == StateJoined && s.userID != userID {
		s.registry.unbindUser(s.userID, s.conn)
	}

	s.registry.Bind(userID, s.conn)
	s.state = StateJoined
	s.userID = userID

	return nil
}

// Close ends the session and removes the connection from the registry. Idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return
	}

	s.registry.UnbindByConnection(s.conn)
	s.state = StateClosed
}

// State returns the current lifecycle stage.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// UserID returns the joined identity, or "" if the session never joined.
func (s *Session) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.userID
}

// Conn returns the connection driven by this session.
func (s *Session) Conn() Conn {
	return s.conn
}
