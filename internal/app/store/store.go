//go:generate go run go.uber.org/mock/mockgen -source=store.go -destination=mocks/mock_store.go -package=mocks

/*
Package store defines the persistence contracts of the chat server.

Two implementations exist: PostgreSQL (package db) and Badger (package kv). Both create
messages with a generated id and a creation time that never decreases within a
conversation, and return histories in ascending creation order.
*/
package store

import (
	"context"
	"errors"

	"echochat/internal/app/message"
	"echochat/internal/app/user"
)

var (
	// ErrNotFound is returned when a referenced user does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrDuplicate is returned when a unique attribute (email) is already taken.
	ErrDuplicate = errors.New("store: duplicate")
)

// MessageStore is the durable message log.
type MessageStore interface {
	// Append persists a message and returns it fully populated.
	// An unknown sender or receiver yields ErrNotFound.
	Append(ctx context.Context, senderID, receiverID, content string) (message.Message, error)

	// History returns the conversation between userA and userB, oldest first.
	History(ctx context.Context, userA, userB string) ([]message.Message, error)
}

// UserStore is the account directory.
type UserStore interface {
	// CreateUser registers an account. A taken email yields ErrDuplicate.
	CreateUser(ctx context.Context, username, email, passwordHash string) (user.User, error)

	// GetAccountByEmail returns the account for email, or ErrNotFound.
	GetAccountByEmail(ctx context.Context, email string) (user.Account, error)

	// ListUsers returns every user except excludingID, ordered by username.
	ListUsers(ctx context.Context, excludingID string) ([]user.User, error)
}

// Store is a complete backend.
type Store interface {
	MessageStore
	UserStore

	// Close releases the backend.
	Close() error
}
