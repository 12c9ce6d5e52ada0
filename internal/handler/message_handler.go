package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"echochat/internal/app/store"
	"echochat/internal/pkg/auth/jwt"
	"echochat/internal/pkg/errs"
	"echochat/internal/pkg/req"
	"echochat/internal/pkg/resp"
)

// CreateMessageInput is validated by the relay, so blank content maps to ErrInvalidRequest.
type CreateMessageInput struct {
	ReceiverID string `json:"receiverId"`
	Content    string `json:"content"`
}

// HandleCreateMessage relays a message from the caller: persist, then push to the receiver if present.
func HandleCreateMessage(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)

		var input CreateMessageInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		msg, err := deps.Relay.Relay(r.Context(), identity.ID, input.ReceiverID, input.Content)
		if err != nil {
			respondServiceError(w, r, err, "relay failed")
			return
		}

		resp.RespondCreated(w, r, msg)
	}
}

// HandleGetHistory returns the conversation between the caller and {userId}, oldest first.
func HandleGetHistory(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)

		peerID := chi.URLParam(r, "userId")
		if peerID == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidRequest))
			return
		}

		history, err := deps.Store.History(r.Context(), identity.ID, peerID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				resp.RespondError(w, r, errs.NewError(errs.ErrInvalidRequest))
				return
			}
			respondServiceError(w, r, err, "history fetch failed")
			return
		}

		resp.RespondSuccess(w, r, history)
	}
}
