package handler

import (
	"net/http"

	"github.com/samber/lo"

	"echochat/internal/app/user"
	"echochat/internal/pkg/auth/jwt"
	"echochat/internal/pkg/errs"
	"echochat/internal/pkg/logx"
	"echochat/internal/pkg/resp"
)

// HandleListPeers returns every other user with their current presence.
func HandleListPeers(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)

		users, err := deps.Store.ListUsers(r.Context(), identity.ID)
		if err != nil {
			logx.Error(err, "list peers failed", "user_id", identity.ID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		registry := deps.Hub.Registry()
		peers := lo.Map(users, func(u user.User, _ int) user.Peer {
			return user.Peer{User: u, Online: registry.IsOnline(u.ID)}
		})

		resp.RespondSuccess(w, r, peers)
	}
}
