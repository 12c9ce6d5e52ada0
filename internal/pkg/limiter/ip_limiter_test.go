package limiter

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestMiddleware_RejectsAfterBurst(t *testing.T) {
	req := require.New(t)

	l := NewIPRateLimiter(rate.Limit(0.001), 2)
	t.Cleanup(l.Stop)

	handler := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	call := func(remote string) int {
		r := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		r.RemoteAddr = remote
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		return w.Code
	}

	req.Equal(http.StatusNoContent, call("10.1.1.1:4000"))
	req.Equal(http.StatusNoContent, call("10.1.1.1:4001"))
	req.Equal(http.StatusTooManyRequests, call("10.1.1.1:4002"))

	// another address has its own bucket
	req.Equal(http.StatusNoContent, call("10.1.1.2:4000"))
}

func TestClientIP(t *testing.T) {
	req := require.New(t)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "203.0.113.9:5555"
	req.Equal("203.0.113.9", ClientIP(r))

	r.RemoteAddr = ""
	req.Equal("unknown_ip", ClientIP(r))
}
