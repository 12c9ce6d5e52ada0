package db

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"echochat/internal/app/store"
)

// openTestStore connects to TEST_DATABASE_URL; the tests are skipped without it.
func openTestStore(t *testing.T) *Store {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	pool, err := NewPool(context.Background(), dsn)
	require.NoError(t, err)

	s := NewStore(pool)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func uniqueEmail(prefix string) string {
	return fmt.Sprintf("%s-%s@example.com", prefix, uuid.NewString()[:8])
}

func TestStore_UsersAndHistory(t *testing.T) {
	req := require.New(t)
	s := openTestStore(t)
	ctx := context.Background()

	alice, err := s.CreateUser(ctx, "alice", uniqueEmail("alice"), "hash")
	req.NoError(err)
	bob, err := s.CreateUser(ctx, "bob", uniqueEmail("bob"), "hash")
	req.NoError(err)

	_, err = s.CreateUser(ctx, "alice2", alice.Email, "hash")
	req.ErrorIs(err, store.ErrDuplicate)

	account, err := s.GetAccountByEmail(ctx, alice.Email)
	req.NoError(err)
	req.Equal(alice.ID, account.ID)
	req.Equal("hash", account.PasswordHash)

	first, err := s.Append(ctx, alice.ID, bob.ID, "hi")
	req.NoError(err)
	second, err := s.Append(ctx, bob.ID, alice.ID, "hello")
	req.NoError(err)
	req.False(second.CreatedAt.Before(first.CreatedAt))

	history, err := s.History(ctx, bob.ID, alice.ID)
	req.NoError(err)
	req.Len(history, 2)
	req.Equal(first.ID, history[0].ID)
	req.Equal(second.ID, history[1].ID)

	users, err := s.ListUsers(ctx, alice.ID)
	req.NoError(err)
	for _, u := range users {
		req.NotEqual(alice.ID, u.ID)
	}
}

func TestStore_AppendUnknownReceiver(t *testing.T) {
	req := require.New(t)
	s := openTestStore(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	alice, err := s.CreateUser(ctx, "alice", uniqueEmail("alice"), "hash")
	req.NoError(err)

	_, err = s.Append(ctx, alice.ID, uuid.NewString(), "anyone?")
	req.True(errors.Is(err, store.ErrNotFound))

	_, err = s.Append(ctx, alice.ID, "not-a-uuid", "anyone?")
	req.ErrorIs(err, store.ErrNotFound)

	_, err = s.GetAccountByEmail(ctx, uniqueEmail("nobody"))
	req.ErrorIs(err, store.ErrNotFound)
}
