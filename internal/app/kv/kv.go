/*
Package kv is the embedded Badger backend of the chat server.

Layout:

	user:{id}                          -> userRecord (CBOR)
	email:{lowercased email}           -> user id
	msg:{conversation}:{nanos}:{uuid}  -> messageRecord (CBOR)

The conversation segment is message.ConversationKey, and nanos is zero padded to 19
digits, so a prefix scan over one conversation yields its messages in creation order.
*/
package kv

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"echochat/internal/app/message"
	"echochat/internal/app/store"
	"echochat/internal/app/user"
	"echochat/internal/pkg/logx"
)

const (
	userPrefix  = "user:"
	emailPrefix = "email:"
	msgPrefix   = "msg:"
)

// Store implements store.Store on Badger.
type Store struct {
	db     *badger.DB
	logger zerolog.Logger

	// clock hands out strictly increasing creation times.
	clockMu sync.Mutex
	last    time.Time
	now     func() time.Time
}

var _ store.Store = (*Store)(nil)

// Open opens the Badger database at path. An empty path opens an in-memory database.
func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger at %q: %w", path, err)
	}

	return New(db), nil
}

// New wraps an already opened Badger database.
func New(db *badger.DB) *Store {
	return &Store{
		db:     db,
		logger: logx.Component("KVStore"),
		now:    time.Now,
	}
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// stamp returns the creation time of the next message, never earlier than the previous one.
func (s *Store) stamp() time.Time {
	s.clockMu.Lock()
	defer s.clockMu.Unlock()

	t := s.now().UTC()
	if !t.After(s.last) {
		t = s.last.Add(time.Nanosecond)
	}
	s.last = t
	return t
}

func userKey(id string) []byte {
	return []byte(userPrefix + id)
}

func emailKey(email string) []byte {
	return []byte(emailPrefix + strings.ToLower(strings.TrimSpace(email)))
}

func conversationPrefix(a, b string) []byte {
	return []byte(msgPrefix + message.ConversationKey(a, b) + ":")
}

func messageKey(m message.Message) []byte {
	return fmt.Appendf(conversationPrefix(m.SenderID, m.ReceiverID), "%019d:%s", m.CreatedAt.UnixNano(), m.ID)
}

func (s *Store) CreateUser(_ context.Context, username, email, passwordHash string) (user.User, error) {
	rec := userRecord{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        strings.TrimSpace(email),
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UnixNano(),
	}

	data, err := encMode.Marshal(rec)
	if err != nil {
		return user.User{}, fmt.Errorf("marshal user: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(emailKey(email)); err == nil {
			return fmt.Errorf("email %q: %w", email, store.ErrDuplicate)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		if err := txn.Set(emailKey(email), []byte(rec.ID)); err != nil {
			return err
		}
		return txn.Set(userKey(rec.ID), data)
	})
	if errors.Is(err, badger.ErrConflict) {
		// Another transaction claimed the same email first.
		return user.User{}, fmt.Errorf("email %q: %w", email, store.ErrDuplicate)
	}
	if err != nil {
		return user.User{}, err
	}

	return user.User{ID: rec.ID, Username: rec.Username, Email: rec.Email}, nil
}

func (s *Store) GetAccountByEmail(_ context.Context, email string) (user.Account, error) {
	var rec userRecord

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(emailKey(email))
		if err != nil {
			return err
		}

		id, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}

		rec, err = getUser(txn, string(id))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return user.Account{}, fmt.Errorf("email %q: %w", email, store.ErrNotFound)
	}
	if err != nil {
		return user.Account{}, fmt.Errorf("get account: %w", err)
	}

	return user.Account{
		User:         user.User{ID: rec.ID, Username: rec.Username, Email: rec.Email},
		PasswordHash: rec.PasswordHash,
	}, nil
}

func (s *Store) ListUsers(_ context.Context, excludingID string) ([]user.User, error) {
	var records []userRecord

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{PrefetchValues: true, PrefetchSize: 100, Prefix: []byte(userPrefix)})
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var rec userRecord
			if err := it.Item().Value(func(val []byte) error {
				return decMode.Unmarshal(val, &rec)
			}); err != nil {
				return err
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	users := lo.FilterMap(records, func(rec userRecord, _ int) (user.User, bool) {
		return user.User{ID: rec.ID, Username: rec.Username, Email: rec.Email}, rec.ID != excludingID
	})
	sortUsers(users)
	return users, nil
}

func (s *Store) Append(_ context.Context, senderID, receiverID, content string) (message.Message, error) {
	var msg message.Message

	err := s.db.Update(func(txn *badger.Txn) error {
		for _, id := range []string{senderID, receiverID} {
			if _, err := txn.Get(userKey(id)); err != nil {
				if errors.Is(err, badger.ErrKeyNotFound) {
					return fmt.Errorf("user %q: %w", id, store.ErrNotFound)
				}
				return err
			}
		}

		msg = message.Message{
			ID:         uuid.NewString(),
			SenderID:   senderID,
			ReceiverID: receiverID,
			Content:    content,
			CreatedAt:  s.stamp(),
		}

		data, err := encMode.Marshal(messageRecord{
			ID:         msg.ID,
			SenderID:   msg.SenderID,
			ReceiverID: msg.ReceiverID,
			Content:    msg.Content,
			CreatedAt:  msg.CreatedAt.UnixNano(),
		})
		if err != nil {
			return fmt.Errorf("marshal message: %w", err)
		}

		return txn.Set(messageKey(msg), data)
	})
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.logger.Error().Err(err).Str("sender_id", senderID).Msg("Append failed.")
		}
		return message.Message{}, err
	}

	return msg, nil
}

func (s *Store) History(_ context.Context, userA, userB string) ([]message.Message, error) {
	messages := make([]message.Message, 0)
	prefix := conversationPrefix(userA, userB)

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{PrefetchValues: true, PrefetchSize: 100, Prefix: prefix})
		defer it.Close()

		for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
			var rec messageRecord
			if err := it.Item().Value(func(val []byte) error {
				return decMode.Unmarshal(val, &rec)
			}); err != nil {
				return err
			}

			// Ids containing ':' can make two conversation keys collide.
			m := toMessage(rec)
			if !m.Involves(userA, userB) {
				continue
			}
			messages = append(messages, m)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}

	return messages, nil
}

func getUser(txn *badger.Txn, id string) (userRecord, error) {
	var rec userRecord

	item, err := txn.Get(userKey(id))
	if err != nil {
		return rec, err
	}

	err = item.Value(func(val []byte) error {
		return decMode.Unmarshal(val, &rec)
	})
	return rec, err
}

func sortUsers(users []user.User) {
	slices.SortFunc(users, func(a, b user.User) int {
		return cmp.Or(cmp.Compare(a.Username, b.Username), cmp.Compare(a.ID, b.ID))
	})
}

func toMessage(rec messageRecord) message.Message {
	return message.Message{
		ID:         rec.ID,
		SenderID:   rec.SenderID,
		ReceiverID: rec.ReceiverID,
		Content:    rec.Content,
		CreatedAt:  time.Unix(0, rec.CreatedAt).UTC(),
	}
}
