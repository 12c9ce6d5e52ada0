/*
Package chat serves the real-time side of the chat server.

This file defines the Client struct, representing an active WebSocket connection. It manages the
connection's presence session, its read and write loops (ReadPump and WritePump), and the
handling of inbound events.
*/
package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"echochat/internal/app/message"
	"echochat/internal/app/presence"
	"echochat/internal/app/relay"
	"echochat/internal/pkg/errs"
	"echochat/internal/pkg/logx"
	"echochat/internal/pkg/randx"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed for the server to wait for a Pong message from the client.
	pongWait = 60 * time.Second

	// frequency at which the server sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// maximum allowed size (in bytes) of a frame sent by the client.
	maxMessageSize = 8192

	// capacity of the outbound queue.
	sendQueueSize = 256
)

var (
	// ErrClientClosed is returned by Deliver after the connection went away.
	ErrClientClosed = errors.New("chat: client closed")

	// ErrSendQueueFull is returned by Deliver when the outbound queue is full.
	ErrSendQueueFull = errors.New("chat: client send queue full")
)

// Pusher performs the live push of a sendMessage event.
type Pusher interface {
	Push(senderID, receiverID, content string) bool
}

// Client struct represents an active WebSocket connection. It implements presence.Conn.
type Client struct {
	id string

	hub *Hub

	// underlying WebSocket connection object.
	conn *websocket.Conn

	session *presence.Session

	// verifiedID is the authenticated user of the connection; empty for anonymous connections.
	verifiedID string

	// a buffered channel used to queue frames waiting to be written to the client.
	send chan []byte

	// done is closed once the client starts shutting down.
	done      chan struct{}
	closeOnce sync.Once

	logger zerolog.Logger
}

var _ presence.Conn = (*Client)(nil)

// newClient constructs a Client in the Connected state.
func newClient(hub *Hub, wsConn *websocket.Conn, verifiedID string) *Client {
	id := randx.ConnectionID()

	c := &Client{
		id:         id,
		hub:        hub,
		conn:       wsConn,
		verifiedID: verifiedID,
		send:       make(chan []byte, sendQueueSize),
		done:       make(chan struct{}),
		logger: logx.Logger().With().
			Str("component", "Client").
			Str("conn_id", id).
			Str("verified_id", verifiedID).
			Logger(),
	}

	var opts []presence.SessionOption
	if verifiedID != "" {
		opts = append(opts, presence.WithVerifiedIdentity(verifiedID))
	}
	c.session = presence.NewSession(hub.registry, c, opts...)

	return c
}

// ID returns the connection id.
func (c *Client) ID() string {
	return c.id
}

// Session returns the presence session of the connection.
func (c *Client) Session() *presence.Session {
	return c.session
}

// Deliver queues a receiveMessage event. It never blocks: a full queue drops the push.
func (c *Client) Deliver(push message.Push) error {
	frame, err := EncodeEvent(EventReceiveMessage, push)
	if err != nil {
		return err
	}
	return c.enqueue(frame)
}

func (c *Client) enqueue(frame []byte) error {
	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}

	select {
	case c.send <- frame:
		return nil
	default:
		c.logger.Warn().Int("queue_len", len(c.send)).Msg("Client send channel full, dropping message")
		return ErrSendQueueFull
	}
}

// Close stops the write loop, which sends a close frame and closes the connection.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// ReadPump handles reading frames from the WebSocket connection.
// It handles heartbeats (Pong), event parsing, and performs cleanup upon connection closure.
func (c *Client) ReadPump() {
	defer c.cleanupOnDisconnect()

	c.conn.SetReadLimit(maxMessageSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Error reading message (Client close/going away)")
			}
			break
		}

		c.processInboundEvent(frame)
	}
}

// cleanupOnDisconnect unbinds the connection and releases it. It runs exactly once per client.
func (c *Client) cleanupOnDisconnect() {
	c.session.Close()
	c.hub.unregister(c)
	c.Close()

	if err := c.conn.Close(); err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		c.logger.Debug().Err(err).Msg("Client connection close error")
	}

	c.logger.Info().Str("user_id", c.session.UserID()).Msg("Client disconnected.")
}

// processInboundEvent dispatches one inbound frame.
func (c *Client) processInboundEvent(frame []byte) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		c.logger.Warn().Err(err).Msg("Client sent invalid JSON")
		c.SendError(errs.NewError(errs.ErrInvalidJSONFormat))
		return
	}

	switch env.Type {
	case EventJoin:
		c.handleJoin(env.Payload)

	case EventSendMessage:
		c.handleSendMessage(env.Payload)

	default:
		c.logger.Warn().Str("event", string(env.Type)).Msg("Client sent unsupported event type")
	}
}

// handleJoin binds the connection to the claimed user id.
func (c *Client) handleJoin(payload json.RawMessage) {
	var userID string
	if err := json.Unmarshal(payload, &userID); err != nil {
		c.logger.Warn().Err(err).Msg("Client sent invalid join payload")
		c.SendError(errs.NewError(errs.ErrInvalidParams))
		return
	}

	err := c.session.Join(userID)
	switch {
	case err == nil:
		c.logger.Info().Str("user_id", userID).Msg("Client joined.")

	case errors.Is(err, presence.ErrIdentityMismatch):
		c.logger.Warn().Str("claimed_id", userID).Msg("Join rejected: identity mismatch.")
		c.SendError(errs.NewError(errs.ErrIdentityMismatch))

	case errors.Is(err, presence.ErrEmptyIdentity):
		c.SendError(errs.NewError(errs.ErrInvalidParams))

	default:
		c.logger.Debug().Err(err).Msg("Join ignored.")
	}
}

// handleSendMessage pushes the payload to the receiver's live connection. Nothing is persisted.
func (c *Client) handleSendMessage(payload json.RawMessage) {
	var p SendMessagePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		c.logger.Warn().Err(err).Msg("Client sent invalid sendMessage payload")
		c.SendError(errs.NewError(errs.ErrInvalidParams))
		return
	}

	if c.verifiedID != "" {
		if c.session.State() != presence.StateJoined {
			c.SendError(errs.NewError(errs.ErrNotJoined))
			return
		}
		if p.SenderID != c.session.UserID() {
			c.logger.Warn().Str("claimed_sender", p.SenderID).Msg("sendMessage rejected: identity mismatch.")
			c.SendError(errs.NewError(errs.ErrIdentityMismatch))
			return
		}
	}

	if customErr := relay.Validate(p.ReceiverID, p.Content); customErr != nil {
		c.SendError(customErr)
		return
	}

	c.hub.pusher.Push(p.SenderID, p.ReceiverID, p.Content)
}

// WritePump handles writing frames from the Client.send channel to the WebSocket connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()

		// ensure the connection is closed on exit
		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Client connection close error in WritePump")
		}
	}()

	for {
		select {
		case frame := <-c.send:
			if !c.writeFrame(websocket.TextMessage, frame) {
				return
			}

		case <-ticker.C:
			if !c.writeFrame(websocket.PingMessage, nil) {
				return
			}

		case <-c.done:
			c.writeFrame(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server closing"))
			return
		}
	}
}

// writeFrame writes one frame under the write deadline.
// Returns true if the WritePump loop should continue, false if it should terminate.
func (c *Client) writeFrame(messageType int, data []byte) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}

	if err := c.conn.WriteMessage(messageType, data); err != nil {
		c.logger.Debug().Err(err).Int("frame_type", messageType).Msg("Error writing frame")
		return false
	}

	return true
}

// SendError queues an error event describing err.
func (c *Client) SendError(err error) {
	var payload ErrorPayload

	var customErr *errs.CustomError
	if errors.As(err, &customErr) {
		payload = ErrorPayload{Code: customErr.Code, Message: customErr.Message}
	} else {
		payload = ErrorPayload{Code: errs.ErrUnknown, Message: fmt.Sprintf("Internal server error: %v", err)}
	}

	frame, encErr := EncodeEvent(EventError, payload)
	if encErr != nil {
		c.logger.Error().Err(encErr).Msg("Failed to build error event")
		return
	}

	if err := c.enqueue(frame); err != nil {
		c.logger.Debug().Err(err).Msg("Failed to queue error event")
	}
}
