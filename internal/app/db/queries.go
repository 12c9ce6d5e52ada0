package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"echochat/internal/app/message"
	"echochat/internal/app/store"
	"echochat/internal/app/user"
)

const (
	insertUserSQL = `
INSERT INTO users (username, email, password_hash)
VALUES ($1, $2, $3)
RETURNING id::text, username, email`

	accountByEmailSQL = `
SELECT id::text, username, email, password_hash
FROM users
WHERE lower(email) = lower($1)`

	listUsersSQL = `
SELECT id::text, username, email
FROM users
WHERE id::text <> $1
ORDER BY username, id`

	insertMessageSQL = `
INSERT INTO messages (sender_id, receiver_id, content)
VALUES ($1::uuid, $2::uuid, $3)
RETURNING id::text, sender_id::text, receiver_id::text, content, created_at`

	historySQL = `
SELECT id::text, sender_id::text, receiver_id::text, content, created_at
FROM messages
WHERE (sender_id = $1::uuid AND receiver_id = $2::uuid)
   OR (sender_id = $2::uuid AND receiver_id = $1::uuid)
ORDER BY created_at, seq`
)

// Store implements store.Store on PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

var _ store.Store = (*Store)(nil)

// NewStore wraps an already migrated pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close closes the underlying pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) CreateUser(ctx context.Context, username, email, passwordHash string) (user.User, error) {
	var u user.User
	err := s.pool.QueryRow(ctx, insertUserSQL, username, strings.TrimSpace(email), passwordHash).
		Scan(&u.ID, &u.Username, &u.Email)
	if err != nil {
		if IsUniqueViolation(err) {
			return user.User{}, fmt.Errorf("email %q: %w", email, store.ErrDuplicate)
		}
		return user.User{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

func (s *Store) GetAccountByEmail(ctx context.Context, email string) (user.Account, error) {
	var a user.Account
	err := s.pool.QueryRow(ctx, accountByEmailSQL, strings.TrimSpace(email)).
		Scan(&a.ID, &a.Username, &a.Email, &a.PasswordHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.Account{}, fmt.Errorf("email %q: %w", email, store.ErrNotFound)
		}
		return user.Account{}, fmt.Errorf("select account: %w", err)
	}
	return a, nil
}

func (s *Store) ListUsers(ctx context.Context, excludingID string) ([]user.User, error) {
	rows, err := s.pool.Query(ctx, listUsersSQL, excludingID)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	users, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (user.User, error) {
		var u user.User
		err := row.Scan(&u.ID, &u.Username, &u.Email)
		return u, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan users: %w", err)
	}
	return users, nil
}

func (s *Store) Append(ctx context.Context, senderID, receiverID, content string) (message.Message, error) {
	var m message.Message
	err := s.pool.QueryRow(ctx, insertMessageSQL, senderID, receiverID, content).
		Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Content, &m.CreatedAt)
	if err != nil {
		if IsForeignKeyViolation(err) || IsInvalidID(err) {
			return message.Message{}, fmt.Errorf("participants %s/%s: %w", senderID, receiverID, store.ErrNotFound)
		}
		return message.Message{}, fmt.Errorf("insert message: %w", err)
	}
	return m, nil
}

func (s *Store) History(ctx context.Context, userA, userB string) ([]message.Message, error) {
	rows, err := s.pool.Query(ctx, historySQL, userA, userB)
	if err != nil {
		if IsInvalidID(err) {
			return nil, fmt.Errorf("participants %s/%s: %w", userA, userB, store.ErrNotFound)
		}
		return nil, fmt.Errorf("select history: %w", err)
	}

	messages, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (message.Message, error) {
		var m message.Message
		err := row.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Content, &m.CreatedAt)
		return m, err
	})
	if err != nil {
		if IsInvalidID(err) {
			return nil, fmt.Errorf("participants %s/%s: %w", userA, userB, store.ErrNotFound)
		}
		return nil, fmt.Errorf("scan history: %w", err)
	}
	return messages, nil
}
