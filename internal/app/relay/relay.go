/*
Package relay persists outgoing direct messages and pushes them to the recipient's live
connection when there is one.

The durable write is authoritative: if it fails the caller gets an error and nothing is
pushed. The push is best effort, attempted exactly once, and never reported to the
sender; a recipient without a live connection sees the message on its next history fetch.
*/
package relay

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"echochat/internal/app/message"
	"echochat/internal/app/presence"
	"echochat/internal/app/store"
	"echochat/internal/pkg/errs"
	"echochat/internal/pkg/logx"
)

// Relay combines the message store with the presence registry.
type Relay struct {
	messages store.MessageStore
	registry *presence.Registry
	logger   zerolog.Logger
}

// New returns a Relay writing to messages and pushing through registry.
func New(messages store.MessageStore, registry *presence.Registry) *Relay {
	return &Relay{
		messages: messages,
		registry: registry,
		logger:   logx.Component("Relay"),
	}
}

// Validate checks a send request: a receiver and non-blank content within the size limit.
func Validate(receiverID, content string) *errs.CustomError {
	if receiverID == "" || message.IsBlank(content) {
		return errs.NewError(errs.ErrInvalidRequest)
	}

	if len(content) > message.MaxContentBytes {
		return errs.NewError(errs.ErrMessageContentTooLong, message.MaxContentBytes)
	}

	return nil
}

// Relay persists the message from senderID to receiverID, then attempts one live push.
// It fails with ErrInvalidRequest (bad request or unknown user) or ErrPersistenceFailure.
// Once the write has started it runs to completion even if ctx is canceled.
func (r *Relay) Relay(ctx context.Context, senderID, receiverID, content string) (message.Message, error) {
	if senderID == "" {
		return message.Message{}, errs.NewError(errs.ErrInvalidRequest)
	}

	if customErr := Validate(receiverID, content); customErr != nil {
		return message.Message{}, customErr
	}

	msg, err := r.messages.Append(context.WithoutCancel(ctx), senderID, receiverID, content)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			r.logger.Warn().
				Str("sender_id", senderID).
				Str("receiver_id", receiverID).
				Msg("Relay rejected: unknown participant.")
			return message.Message{}, errs.Wrap(errs.ErrInvalidRequest, err)
		}

		r.logger.Error().
			Err(err).
			Str("sender_id", senderID).
			Str("receiver_id", receiverID).
			Msg("Failed to persist message; push skipped.")
		return message.Message{}, errs.Wrap(errs.ErrPersistenceFailure, err)
	}

	r.Push(msg.SenderID, msg.ReceiverID, msg.Content)

	return msg, nil
}

// Push delivers {senderID, content} to the connection bound to receiverID, if any.
// It reports whether the push was handed to a connection. Absence is a normal outcome.
func (r *Relay) Push(senderID, receiverID, content string) bool {
	conn, ok := r.registry.Lookup(receiverID)
	if !ok {
		r.logger.Debug().
			Str("receiver_id", receiverID).
			Msg("Receiver offline; message left for history fetch.")
		return false
	}

	if err := conn.Deliver(message.Push{SenderID: senderID, Content: content}); err != nil {
		r.logger.Warn().
			Err(err).
			Str("receiver_id", receiverID).
			Str("conn_id", conn.ID()).
			Msg("Live push dropped.")
		return false
	}

	return true
}
