package handler

import (
	"errors"
	"net/http"

	"echochat/internal/app/chat"
	"echochat/internal/app/relay"
	"echochat/internal/app/store"
	"echochat/internal/configs"
	"echochat/internal/pkg/errs"
	"echochat/internal/pkg/limiter"
	"echochat/internal/pkg/logx"
	"echochat/internal/pkg/resp"
)

// AppDeps carries everything the handlers need.
type AppDeps struct {
	Config *configs.AppConfig
	Store  store.Store
	Hub    *chat.Hub
	Relay  *relay.Relay

	// AuthLimiter throttles register, login and socket upgrades per client IP.
	// Router creates one from the config when nil.
	AuthLimiter *limiter.IPRateLimiter
}

// respondServiceError writes err if it is a CustomError and ErrUnknown otherwise.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	var customErr *errs.CustomError
	if errors.As(err, &customErr) {
		if customErr.Status >= http.StatusInternalServerError {
			logx.Error(err, msg)
		}
		resp.RespondError(w, r, customErr)
		return
	}

	logx.Error(err, msg)
	resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
}
