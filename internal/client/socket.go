package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"echochat/internal/app/chat"
	"echochat/internal/app/message"
	"echochat/internal/pkg/logx"
)

const socketWriteWait = 10 * time.Second

// ErrSocketClosed is returned by emits after Close or a dropped connection.
var ErrSocketClosed = errors.New("client: socket closed")

// Socket is one live connection to the server.
type Socket struct {
	conn *websocket.Conn

	// writeMu serializes frame writes; gorilla allows one concurrent writer.
	writeMu sync.Mutex

	mu            sync.Mutex
	nextID        uint64
	pushHandlers  map[uint64]func(message.Push)
	errorHandlers map[uint64]func(chat.ErrorPayload)

	done      chan struct{}
	closeOnce sync.Once

	logger zerolog.Logger
}

// Dial opens the socket at baseURL ("http://host:port"), authenticating with token if non-empty.
func Dial(ctx context.Context, baseURL, token string) (*Socket, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/") + "/ws")
	if err != nil {
		return nil, fmt.Errorf("invalid server url: %w", err)
	}

	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	if token != "" {
		q := u.Query()
		q.Set("token", token)
		u.RawQuery = q.Encode()
	}

	conn, res, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if res != nil {
			return nil, fmt.Errorf("dial %s: HTTP %d: %w", u.Redacted(), res.StatusCode, err)
		}
		return nil, fmt.Errorf("dial %s: %w", u.Redacted(), err)
	}

	s := &Socket{
		conn:          conn,
		pushHandlers:  make(map[uint64]func(message.Push)),
		errorHandlers: make(map[uint64]func(chat.ErrorPayload)),
		done:          make(chan struct{}),
		logger:        logx.Component("Socket"),
	}
	go s.readLoop()

	return s, nil
}

// Join binds this connection to userID on the server.
func (s *Socket) Join(userID string) error {
	return s.emit(chat.EventJoin, userID)
}

// EmitSendMessage asks the server to push p to its receiver. Nothing is persisted.
func (s *Socket) EmitSendMessage(p chat.SendMessagePayload) error {
	return s.emit(chat.EventSendMessage, p)
}

// Subscribe registers handler for receiveMessage events until the returned function is called.
func (s *Socket) Subscribe(handler func(message.Push)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.pushHandlers[id] = handler

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.pushHandlers, id)
	}
}

// OnError registers handler for error events until the returned function is called.
func (s *Socket) OnError(handler func(chat.ErrorPayload)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.errorHandlers[id] = handler

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.errorHandlers, id)
	}
}

// Done is closed when the connection ends.
func (s *Socket) Done() <-chan struct{} {
	return s.done
}

// Close sends a close frame and releases the connection.
func (s *Socket) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.writeMu.Lock()
		_ = s.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(socketWriteWait),
		)
		s.writeMu.Unlock()

		err = s.conn.Close()
	})
	return err
}

func (s *Socket) emit(eventType chat.EventType, payload any) error {
	frame, err := chat.EncodeEvent(eventType, payload)
	if err != nil {
		return err
	}

	select {
	case <-s.done:
		return ErrSocketClosed
	default:
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.conn.SetWriteDeadline(time.Now().Add(socketWriteWait)); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, frame)
}

func (s *Socket) readLoop() {
	defer close(s.done)

	for {
		_, frame, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn().Err(err).Msg("Socket closed unexpectedly")
			}
			return
		}

		var env chat.Envelope
		if err := json.Unmarshal(frame, &env); err != nil {
			s.logger.Warn().Err(err).Msg("Server sent invalid JSON")
			continue
		}

		switch env.Type {
		case chat.EventReceiveMessage:
			var push message.Push
			if err := json.Unmarshal(env.Payload, &push); err != nil {
				s.logger.Warn().Err(err).Msg("Invalid receiveMessage payload")
				continue
			}
			for _, h := range s.snapshotPush() {
				h(push)
			}

		case chat.EventError:
			var p chat.ErrorPayload
			if err := json.Unmarshal(env.Payload, &p); err != nil {
				s.logger.Warn().Err(err).Msg("Invalid error payload")
				continue
			}
			s.logger.Debug().Int("code", p.Code).Str("message", p.Message).Msg("Server reported an error")
			for _, h := range s.snapshotErrors() {
				h(p)
			}

		default:
			s.logger.Debug().Str("event", string(env.Type)).Msg("Ignoring event")
		}
	}
}

func (s *Socket) snapshotPush() []func(message.Push) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lo.Values(s.pushHandlers)
}

func (s *Socket) snapshotErrors() []func(chat.ErrorPayload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lo.Values(s.errorHandlers)
}
