package presence

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"echochat/internal/app/message"
)

type fakeConn struct {
	id string

	mu     sync.Mutex
	pushes []message.Push
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id}
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Deliver(push message.Push) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pushes = append(c.pushes, push)
	return nil
}

func TestRegistry_LastBindWins(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	c1, c2 := newFakeConn("c1"), newFakeConn("c2")

	_, ok := registry.Lookup("u1")
	req.False(ok)

	registry.Bind("u1", c1)
	got, ok := registry.Lookup("u1")
	req.True(ok)
	req.Same(c1, got)

	registry.Bind("u1", c2)
	got, ok = registry.Lookup("u1")
	req.True(ok)
	req.Same(c2, got)
	req.Equal(1, registry.Len())
}

func TestRegistry_UnbindByConnection(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	c1, c2 := newFakeConn("c1"), newFakeConn("c2")

	registry.Bind("u1", c1)
	registry.Bind("u2", c2)

	req.Equal([]string{"u1"}, registry.UnbindByConnection(c1))
	req.False(registry.IsOnline("u1"))
	req.True(registry.IsOnline("u2"))

	// already removed, and never bound: both no-ops
	req.Empty(registry.UnbindByConnection(c1))
	req.Empty(registry.UnbindByConnection(newFakeConn("c3")))
	req.Equal(1, registry.Len())
}

func TestRegistry_StaleConnectionDisconnectKeepsNewerBinding(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	c1, c2 := newFakeConn("c1"), newFakeConn("c2")

	registry.Bind("u1", c1)
	registry.Bind("u1", c2)

	req.Empty(registry.UnbindByConnection(c1))

	got, ok := registry.Lookup("u1")
	req.True(ok)
	req.Same(c2, got)
}

func TestRegistry_ConcurrentBindLookupUnbind(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	const users = 64
	conns := make([]*fakeConn, users)
	for i := range conns {
		conns[i] = newFakeConn(fmt.Sprintf("c%d", i))
	}

	var wg sync.WaitGroup
	for i := range users {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			userID := fmt.Sprintf("u%d", i)
			registry.Bind(userID, conns[i])
			registry.Lookup(fmt.Sprintf("u%d", (i+1)%users))
			if i%2 == 1 {
				registry.UnbindByConnection(conns[i])
			}
		}(i)
	}
	wg.Wait()

	req.Equal(users/2, registry.Len())
	for i := range users {
		got, ok := registry.Lookup(fmt.Sprintf("u%d", i))
		if i%2 == 1 {
			req.False(ok)
			continue
		}
		req.True(ok)
		req.Same(conns[i], got)
	}
}
