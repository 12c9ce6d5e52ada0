/*
Package handler provides the HTTP handler function for WebSocket connection upgrading and initialization.

This file contains the HandleWebSocket function, which is responsible for rate limiting, resolving
the identity of the connection, upgrading the HTTP connection to WebSocket, and handing it to the Hub.
*/
package handler

import (
	"net/http"

	"github.com/gorilla/websocket"

	"echochat/internal/pkg/auth/jwt"
	"echochat/internal/pkg/errs"
	"echochat/internal/pkg/limiter"
	"echochat/internal/pkg/logx"
	"echochat/internal/pkg/resp"
)

// HandleWebSocket creates an HTTP HandlerFunc to process WebSocket connection requests.
// With strict join the request must carry a valid token, and the connection may only join as its subject.
func HandleWebSocket(deps *AppDeps, upgrader websocket.Upgrader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !deps.AuthLimiter.Allow(r) {
			logx.Warn("WebSocket connection rejected: Rate limit exceeded.", "ip", limiter.ClientIP(r))
			resp.RespondError(w, r, errs.NewError(errs.ErrRateLimitExceeded))
			return
		}

		verifiedID := ""
		if deps.Config.StrictJoin {
			identity := jwt.GetPayloadFromContext(r)
			if identity == nil {
				logx.Warn("WebSocket request rejected: missing or invalid token")
				resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
				return
			}
			verifiedID = identity.ID
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket")
			return
		}

		client, err := deps.Hub.Serve(conn, verifiedID)
		if err != nil {
			logx.Warn("WebSocket connection dropped: hub is shutting down")
			return
		}

		logx.Info("WebSocket connection established", "conn_id", client.ID(), "verified_id", verifiedID)
	}
}
