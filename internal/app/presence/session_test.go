package presence

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSession_Lifecycle(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	conn := newFakeConn("c1")

	session := NewSession(registry, conn)
	req.Equal(StateConnected, session.State())

	req.NoError(session.Join("u1"))
	req.Equal(StateJoined, session.State())
	req.Equal("u1", session.UserID())
	req.True(registry.IsOnline("u1"))

	session.Close()
	req.Equal(StateClosed, session.State())
	req.False(registry.IsOnline("u1"))

	// idempotent
	session.Close()
	req.Equal(StateClosed, session.State())
}

func TestSession_CloseBeforeJoin(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	session := NewSession(registry, newFakeConn("c1"))
	session.Close()

	req.ErrorIs(session.Join("u1"), ErrSessionClosed)
	req.Zero(registry.Len())
}

func TestSession_RejectsEmptyIdentity(t *testing.T) {
	req := require.New(t)

	session := NewSession(NewRegistry(), newFakeConn("c1"))
	req.ErrorIs(session.Join(""), ErrEmptyIdentity)
	req.Equal(StateConnected, session.State())
}

func TestSession_VerifiedIdentity(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	session := NewSession(registry, newFakeConn("c1"), WithVerifiedIdentity("u1"))

	req.ErrorIs(session.Join("u2"), ErrIdentityMismatch)
	req.Equal(StateConnected, session.State())
	req.False(registry.IsOnline("u2"))

	req.NoError(session.Join("u1"))
	req.True(registry.IsOnline("u1"))
}

func TestSession_RejoinMovesBinding(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	conn := newFakeConn("c1")

	session := NewSession(registry, conn)
	req.NoError(session.Join("u1"))
	req.NoError(session.Join("u2"))

	req.False(registry.IsOnline("u1"))
	req.True(registry.IsOnline("u2"))

	session.Close()
	req.Zero(registry.Len())
}

func TestSession_ReloadLeavesOldConnectionStale(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	c1, c2 := newFakeConn("c1"), newFakeConn("c2")

	first := NewSession(registry, c1)
	second := NewSession(registry, c2)
	req.NoError(first.Join("u1"))
	req.NoError(second.Join("u1"))

	got, _ := registry.Lookup("u1")
	req.Same(c2, got)

	// the stale tab disconnecting must not evict the new one
	first.Close()
	got, ok := registry.Lookup("u1")
	req.True(ok)
	req.Same(c2, got)
}

func TestSession_JoinRacingCloseNeverLeavesDanglingEntry(t *testing.T) {
	req := require.New(t)

	for range 200 {
		registry := NewRegistry()
		session := NewSession(registry, newFakeConn("c1"))

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = session.Join("u1")
		}()
		go func() {
			defer wg.Done()
			session.Close()
		}()
		wg.Wait()

		req.Equal(StateClosed, session.State())
		req.False(registry.IsOnline("u1"))
	}
}
