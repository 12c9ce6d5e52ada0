/*
Package presence tracks which user is reachable on which live connection.

The Registry is the only shared mutable state of the real-time path. It keeps at most one
connection per user (a later bind replaces the earlier one) and is safe for concurrent use
by the goroutines serving independent connections. A Session drives one connection
through Connected -> Joined -> Closed and is the only writer of its own entries.
*/
package presence

import (
	"sync"

	"github.com/rs/zerolog"

	"echochat/internal/app/message"
	"echochat/internal/pkg/logx"
)

// Conn is a live, message-framed channel to one client process.
type Conn interface {
	// ID uniquely identifies the connection for its whole life.
	ID() string

	// Deliver hands a push to the connection. It must not block on the network.
	Deliver(push message.Push) error
}

// Registry maps user identities to their single live connection.
type Registry struct {
	// mu protects conns.
	mu sync.RWMutex

	// conns holds the bound connection of every present user.
	conns map[string]Conn

	logger zerolog.Logger
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		conns:  make(map[string]Conn),
		logger: logx.Component("Registry"),
	}
}

// Bind registers conn for userID, replacing any earlier connection of that user.
// The replaced connection is left open; it simply stops receiving pushes.
func (r *Registry) Bind(userID string, conn Conn) {
	r.mu.Lock()
	previous, replaced := r.conns[userID]
	r.conns[userID] = conn
	r.mu.Unlock()

	if replaced && previous != conn {
		r.logger.Info().
			Str("user_id", userID).
			Str("conn_id", conn.ID()).
			Str("stale_conn_id", previous.ID()).
			Msg("User rebound to a new connection; previous connection is now stale.")
		return
	}

	r.logger.Debug().Str("user_id", userID).Str("conn_id", conn.ID()).Msg("User bound.")
}

// Lookup returns the connection currently bound to userID.
func (r *Registry) Lookup(userID string) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.conns[userID]
	return conn, ok
}

// IsOnline reports whether userID has a bound connection.
func (r *Registry) IsOnline(userID string) bool {
	_, ok := r.Lookup(userID)
	return ok
}

// UnbindByConnection removes every entry pointing at conn and returns the user ids it
// was bound to. Unknown connections are a no-op.
func (r *Registry) UnbindByConnection(conn Conn) []string {
	r.mu.Lock()
	var removed []string
	for userID, bound := range r.conns {
		if bound == conn {
			delete(r.conns, userID)
			removed = append(removed, userID)
		}
	}
	r.mu.Unlock()

	for _, userID := range removed {
		r.logger.Debug().Str("user_id", userID).Str("conn_id", conn.ID()).Msg("User unbound.")
	}

	return removed
}

// unbindUser removes the entry of userID only if it still points at conn.
func (r *Registry) unbindUser(userID string, conn Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if bound, ok := r.conns[userID]; ok && bound == conn {
		delete(r.conns, userID)
		return true
	}
	return false
}

// Len returns the number of present users.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.conns)
}
