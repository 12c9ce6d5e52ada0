/*
Package chat serves the real-time side of the chat server.

This file defines the Hub struct, which owns the presence registry for the lifetime of the
process. It tracks every live Client and closes them all on shutdown.
*/
package chat

import (
	"errors"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"echochat/internal/app/presence"
	"echochat/internal/pkg/logx"
)

// ErrHubClosed is returned by Serve after Shutdown.
var ErrHubClosed = errors.New("chat: hub is shut down")

// Hub struct coordinates all live WebSocket clients.
type Hub struct {
	registry *presence.Registry
	pusher   Pusher

	// mu protects clients and closed.
	mu      sync.RWMutex
	clients map[string]*Client
	closed  bool

	// wg tracks the pump goroutines so Shutdown can wait for them.
	wg sync.WaitGroup

	logger zerolog.Logger
}

// NewHub constructs a Hub around registry. pusher serves sendMessage events.
func NewHub(registry *presence.Registry, pusher Pusher) *Hub {
	return &Hub{
		registry: registry,
		pusher:   pusher,
		clients:  make(map[string]*Client),
		logger:   logx.Component("Hub"),
	}
}

// Registry returns the registry shared by every client of the hub.
func (h *Hub) Registry() *presence.Registry {
	return h.registry
}

// Serve takes ownership of an upgraded connection and starts its pumps.
// A non-empty verifiedID restricts join and sendMessage to that identity.
func (h *Hub) Serve(wsConn *websocket.Conn, verifiedID string) (*Client, error) {
	client := newClient(h, wsConn, verifiedID)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = wsConn.Close()
		return nil, ErrHubClosed
	}
	h.clients[client.id] = client
	h.wg.Add(2)
	h.mu.Unlock()

	go func() {
		defer h.wg.Done()
		client.WritePump()
	}()
	go func() {
		defer h.wg.Done()
		client.ReadPump()
	}()

	h.logger.Info().
		Str("conn_id", client.id).
		Str("verified_id", verifiedID).
		Msg("Client connected.")

	return client, nil
}

// unregister forgets a client after its read loop ended.
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.clients, c.id)
}

// ClientCount returns the number of live clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients)
}

// Shutdown closes every live client and waits for their pumps to exit.
// Serve rejects new connections afterwards.
func (h *Hub) Shutdown() {
	h.logger.Info().Msg("Shutting down Hub...")

	h.mu.Lock()
	h.closed = true
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.Close()
	}

	h.wg.Wait()

	h.logger.Info().Int("closed_clients", len(clients)).Msg("Hub shutdown complete.")
}
