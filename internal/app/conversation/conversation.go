/*
Package conversation holds the client-side view of one user's direct messages.

A State tracks the selected peer and the ordered messages exchanged with that peer. Messages
arrive from two sources: history fetches and successful sends (persisted entries) and live
pushes (pushed entries, carrying a local placeholder id and the client's clock). Every selection
starts a new generation; a history result that belongs to an older generation is dropped, so
switching peers quickly never mixes two conversations.
*/
package conversation

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"echochat/internal/app/message"
	"echochat/internal/app/user"
	"echochat/internal/pkg/errs"
	"echochat/internal/pkg/logx"
	"echochat/internal/pkg/randx"
)

// Backend is the server API the State talks to.
type Backend interface {
	ListPeers(ctx context.Context) ([]user.Peer, error)
	History(ctx context.Context, peerID string) ([]message.Message, error)
	Send(ctx context.Context, receiverID, content string) (message.Message, error)
}

// Subscriber delivers live pushes until the returned function is called.
type Subscriber interface {
	Subscribe(handler func(message.Push)) (unsubscribe func())
}

// EntryKind tells persisted messages from pushed ones.
type EntryKind int

const (
	// KindPersisted is a message with a server-assigned id and timestamp.
	KindPersisted EntryKind = iota

	// KindPushed is a message received live; its id is a placeholder and its time is local.
	KindPushed
)

func (k EntryKind) String() string {
	if k == KindPushed {
		return "pushed"
	}
	return "persisted"
}

// Entry is one line of the conversation view.
type Entry struct {
	Kind    EntryKind
	Message message.Message
}

// State is safe for concurrent use: pushes usually arrive on another goroutine.
type State struct {
	selfID  string
	backend Backend

	filterByPeer bool
	now          func() time.Time
	notify       func(Entry)

	mu         sync.Mutex
	peer       *user.User
	generation uint64
	view       []Entry

	// peersMu is held across the directory fetch so it happens once per session.
	peersMu     sync.Mutex
	peers       []user.Peer
	peersLoaded bool

	logger zerolog.Logger
}

// Option configures a State.
type Option func(*State)

// WithPeerFilter only appends pushes whose sender is the selected peer.
func WithPeerFilter() Option {
	return func(s *State) {
		s.filterByPeer = true
	}
}

// WithClock replaces time.Now for pushed entries.
func WithClock(now func() time.Time) Option {
	return func(s *State) {
		s.now = now
	}
}

// WithNotify registers a callback invoked after each appended entry, outside the lock.
func WithNotify(fn func(Entry)) Option {
	return func(s *State) {
		s.notify = fn
	}
}

// New returns an empty State for the signed-in user selfID.
func New(selfID string, backend Backend, opts ...Option) *State {
	s := &State{
		selfID:  selfID,
		backend: backend,
		now:     time.Now,
		logger:  logx.Component("Conversation").With().Str("user_id", selfID).Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Attach subscribes OnPush to sub. Call the returned function to stop receiving pushes.
func (s *State) Attach(sub Subscriber) (detach func()) {
	return sub.Subscribe(s.OnPush)
}

// SelectPeer makes peer the open conversation and loads its history.
// The view is cleared immediately; a result arriving after a newer selection is discarded.
// Entries appended while the fetch was in flight survive unless the history already has them.
func (s *State) SelectPeer(ctx context.Context, peer user.User) error {
	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.peer = &peer
	s.view = nil
	s.mu.Unlock()

	history, err := s.backend.History(ctx, peer.ID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		s.logger.Debug().
			Str("peer_id", peer.ID).
			Uint64("generation", gen).
			Uint64("current_generation", s.generation).
			Msg("Stale history discarded.")
		return nil
	}

	if err != nil {
		return err
	}

	s.view = mergeFetched(history, s.view)
	return nil
}

// mergeFetched lays the fetched history under the entries that arrived while it was in flight.
// A live entry already covered by the history is dropped: persisted ones match by id, pushed
// ones by sender and content, each history message covering at most one push.
func mergeFetched(history []message.Message, live []Entry) []Entry {
	view := lo.Map(history, func(m message.Message, _ int) Entry {
		return Entry{Kind: KindPersisted, Message: m}
	})
	if len(live) == 0 {
		return view
	}

	type pushKey struct{ sender, content string }
	ids := make(map[string]struct{}, len(history))
	pending := make(map[pushKey]int)
	for _, m := range history {
		ids[m.ID] = struct{}{}
		pending[pushKey{m.SenderID, m.Content}]++
	}

	for _, e := range live {
		switch e.Kind {
		case KindPersisted:
			if _, ok := ids[e.Message.ID]; ok {
				continue
			}
		case KindPushed:
			k := pushKey{e.Message.SenderID, e.Message.Content}
			if pending[k] > 0 {
				pending[k]--
				continue
			}
		}
		view = append(view, e)
	}
	return view
}

// Send relays content to the selected peer and appends the persisted message on success.
// Nothing is appended on failure.
func (s *State) Send(ctx context.Context, content string) (message.Message, error) {
	s.mu.Lock()
	if s.peer == nil {
		s.mu.Unlock()
		return message.Message{}, errs.NewError(errs.ErrNoPeerSelected)
	}
	peerID := s.peer.ID
	s.mu.Unlock()

	msg, err := s.backend.Send(ctx, peerID, content)
	if err != nil {
		return message.Message{}, err
	}

	s.mu.Lock()
	appended := s.peer != nil && s.peer.ID == msg.ReceiverID
	entry := Entry{Kind: KindPersisted, Message: msg}
	if appended {
		s.view = append(s.view, entry)
	}
	s.mu.Unlock()

	if appended && s.notify != nil {
		s.notify(entry)
	}
	return msg, nil
}

// OnPush appends a live push to the open conversation. Without a selected peer it is dropped.
func (s *State) OnPush(push message.Push) {
	s.mu.Lock()
	if s.peer == nil || (s.filterByPeer && push.SenderID != s.peer.ID) {
		s.mu.Unlock()
		s.logger.Debug().Str("sender_id", push.SenderID).Msg("Push not shown in the open conversation.")
		return
	}

	entry := Entry{
		Kind: KindPushed,
		Message: message.Message{
			ID:         randx.PlaceholderID(),
			SenderID:   push.SenderID,
			ReceiverID: s.selfID,
			Content:    push.Content,
			CreatedAt:  s.now(),
		},
	}
	s.view = append(s.view, entry)
	s.mu.Unlock()

	if s.notify != nil {
		s.notify(entry)
	}
}

// ListPeers returns the directory, fetched once per State. A failed fetch is retried on the next call.
func (s *State) ListPeers(ctx context.Context) ([]user.Peer, error) {
	s.peersMu.Lock()
	defer s.peersMu.Unlock()

	if !s.peersLoaded {
		peers, err := s.backend.ListPeers(ctx)
		if err != nil {
			return nil, err
		}
		s.peers = peers
		s.peersLoaded = true
	}

	return append([]user.Peer(nil), s.peers...), nil
}

// Peer returns the selected peer.
func (s *State) Peer() (user.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.peer == nil {
		return user.User{}, false
	}
	return *s.peer, true
}

// View returns a copy of the conversation view.
func (s *State) View() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]Entry(nil), s.view...)
}
