package client

import (
	"context"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"echochat/internal/app/chat"
	"echochat/internal/app/conversation"
	"echochat/internal/app/kv"
	"echochat/internal/app/message"
	"echochat/internal/app/presence"
	"echochat/internal/app/relay"
	"echochat/internal/configs"
	"echochat/internal/handler"
	"echochat/internal/pkg/errs"
)

const waitFor = 2 * time.Second

type server struct {
	url string
	hub *chat.Hub
}

func startServer(t *testing.T) *server {
	t.Helper()

	st, err := kv.Open("")
	require.NoError(t, err)

	registry := presence.NewRegistry()
	rl := relay.New(st, registry)
	deps := &handler.AppDeps{
		Config: &configs.AppConfig{
			Environment:   configs.EnvDevelopment,
			JWTSecret:     "client-test-secret",
			JWTExpiration: time.Hour,
			StrictJoin:    true,
			AuthRate:      1000,
			AuthBurst:     1000,
		},
		Store: st,
		Hub:   chat.NewHub(registry, rl),
		Relay: rl,
	}
	srv := httptest.NewServer(handler.Router(deps))

	t.Cleanup(func() {
		deps.Hub.Shutdown()
		srv.Close()
		deps.AuthLimiter.Stop()
		_ = st.Close()
	})

	return &server{url: srv.URL, hub: deps.Hub}
}

func (s *server) signUp(t *testing.T, name string) *Client {
	t.Helper()
	c := New(s.url)
	_, err := c.Register(context.Background(), name, name+"@example.com", "password-"+name)
	require.NoError(t, err)
	return c
}

func (s *server) connect(t *testing.T, c *Client) *Socket {
	t.Helper()
	sock, err := Dial(context.Background(), s.url, c.Token())
	require.NoError(t, err)
	t.Cleanup(func() { _ = sock.Close() })

	require.NoError(t, sock.Join(c.Self().ID))
	require.Eventually(t, func() bool {
		return s.hub.Registry().IsOnline(c.Self().ID)
	}, waitFor, 10*time.Millisecond)
	return sock
}

type pushRecorder struct {
	mu     sync.Mutex
	pushes []message.Push
}

func (r *pushRecorder) record(p message.Push) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pushes = append(r.pushes, p)
}

func (r *pushRecorder) snapshot() []message.Push {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]message.Push(nil), r.pushes...)
}

func TestClient_AccountAndMessages(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := startServer(t)

	alice := s.signUp(t, "alice")
	bob := s.signUp(t, "bob")

	again := New(s.url)
	res, err := again.Login(ctx, "alice@example.com", "password-alice")
	req.NoError(err)
	req.Equal(alice.Self(), res.User)

	peers, err := alice.ListPeers(ctx)
	req.NoError(err)
	req.Len(peers, 1)
	req.Equal(bob.Self(), peers[0].User)
	req.False(peers[0].Online)

	sent, err := alice.CreateMessage(ctx, bob.Self().ID, "hi bob")
	req.NoError(err)
	req.NotEmpty(sent.ID)

	history, err := bob.History(ctx, alice.Self().ID)
	req.NoError(err)
	req.Len(history, 1)
	req.Equal(sent.ID, history[0].ID)
}

func TestClient_ErrorsCarryCodes(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := startServer(t)
	s.signUp(t, "alice")

	_, err := New(s.url).Register(ctx, "alice", "alice@example.com", "password")
	req.ErrorIs(err, errs.NewError(errs.ErrUserAlreadyExists))

	_, err = New(s.url).Login(ctx, "alice@example.com", "nope-nope")
	req.True(errs.HasCode(err, errs.ErrInvalidCredentials))

	_, err = New(s.url).ListPeers(ctx)
	req.ErrorIs(err, errs.NewError(errs.ErrUnauthorized))

	_, err = New(s.url, WithToken("not-a-token")).History(ctx, "someone")
	req.ErrorIs(err, errs.NewError(errs.ErrUnauthorized))
}

func TestSocket_SubscribeAndUnsubscribe(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := startServer(t)

	alice := s.signUp(t, "alice")
	bob := s.signUp(t, "bob")
	bobSock := s.connect(t, bob)

	var rec pushRecorder
	unsubscribe := bobSock.Subscribe(rec.record)

	_, err := alice.CreateMessage(ctx, bob.Self().ID, "first")
	req.NoError(err)
	req.Eventually(func() bool { return len(rec.snapshot()) == 1 }, waitFor, 10*time.Millisecond)
	req.Equal(message.Push{SenderID: alice.Self().ID, Content: "first"}, rec.snapshot()[0])

	unsubscribe()

	var after pushRecorder
	bobSock.Subscribe(after.record)
	_, err = alice.CreateMessage(ctx, bob.Self().ID, "second")
	req.NoError(err)
	req.Eventually(func() bool { return len(after.snapshot()) == 1 }, waitFor, 10*time.Millisecond)
	req.Len(rec.snapshot(), 1)
}

func TestSocket_EmitSendMessagePushesWithoutPersisting(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := startServer(t)

	alice := s.signUp(t, "alice")
	bob := s.signUp(t, "bob")
	aliceSock := s.connect(t, alice)
	bobSock := s.connect(t, bob)

	var rec pushRecorder
	bobSock.Subscribe(rec.record)

	req.NoError(aliceSock.EmitSendMessage(chat.SendMessagePayload{
		SenderID:   alice.Self().ID,
		ReceiverID: bob.Self().ID,
		Content:    "ephemeral",
	}))
	req.Eventually(func() bool { return len(rec.snapshot()) == 1 }, waitFor, 10*time.Millisecond)

	history, err := bob.History(ctx, alice.Self().ID)
	req.NoError(err)
	req.Empty(history)
}

func TestSocket_ErrorEvents(t *testing.T) {
	req := require.New(t)
	s := startServer(t)

	alice := s.signUp(t, "alice")
	bob := s.signUp(t, "bob")

	sock, err := Dial(context.Background(), s.url, alice.Token())
	req.NoError(err)
	defer sock.Close()

	codes := make(chan int, 1)
	sock.OnError(func(p chat.ErrorPayload) { codes <- p.Code })

	req.NoError(sock.Join(bob.Self().ID))

	select {
	case code := <-codes:
		req.Equal(errs.ErrIdentityMismatch, code)
	case <-time.After(waitFor):
		t.Fatal("no error event")
	}
}

func TestSocket_DialRejectedWithoutToken(t *testing.T) {
	s := startServer(t)
	_, err := Dial(context.Background(), s.url, "")
	require.Error(t, err)
}

func TestSocket_CloseEndsReadLoop(t *testing.T) {
	req := require.New(t)
	s := startServer(t)
	alice := s.signUp(t, "alice")
	sock := s.connect(t, alice)

	req.NoError(sock.Close())
	select {
	case <-sock.Done():
	case <-time.After(waitFor):
		t.Fatal("read loop still running")
	}
	req.ErrorIs(sock.Join(alice.Self().ID), ErrSocketClosed)

	req.Eventually(func() bool { return !s.hub.Registry().IsOnline(alice.Self().ID) }, waitFor, 10*time.Millisecond)
}

func TestConversationOverRealServer(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := startServer(t)

	alice := s.signUp(t, "alice")
	bob := s.signUp(t, "bob")
	bobSock := s.connect(t, bob)

	_, err := alice.CreateMessage(ctx, bob.Self().ID, "before")
	req.NoError(err)

	state := conversation.New(bob.Self().ID, bob, conversation.WithPeerFilter())
	detach := state.Attach(bobSock)
	defer detach()

	peers, err := state.ListPeers(ctx)
	req.NoError(err)
	req.Len(peers, 1)

	req.NoError(state.SelectPeer(ctx, peers[0].User))
	req.Len(state.View(), 1)

	_, err = alice.CreateMessage(ctx, bob.Self().ID, "live")
	req.NoError(err)
	req.Eventually(func() bool { return len(state.View()) == 2 }, waitFor, 10*time.Millisecond)

	view := state.View()
	req.Equal(conversation.KindPersisted, view[0].Kind)
	req.Equal(conversation.KindPushed, view[1].Kind)
	req.Equal("live", view[1].Message.Content)

	reply, err := state.Send(ctx, "reply")
	req.NoError(err)
	req.Equal(alice.Self().ID, reply.ReceiverID)
	req.Len(state.View(), 3)
}
