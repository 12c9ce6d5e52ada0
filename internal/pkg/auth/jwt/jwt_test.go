package jwt

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func TestGenerateAndParseToken(t *testing.T) {
	req := require.New(t)

	token, err := GenerateToken(&Payload{ID: "u1", Email: "a@echo.dev", Username: "alice"}, testSecret, time.Hour)
	req.NoError(err)

	payload, err := ParseToken(token, testSecret)
	req.NoError(err)
	req.Equal("u1", payload.ID)
	req.Equal("alice", payload.Username)
	req.Equal(TokenIssuer, payload.Issuer)

	_, err = ParseToken(token, "other-secret")
	req.Error(err)
}

func TestParseToken_Expired(t *testing.T) {
	req := require.New(t)

	token, err := GenerateToken(&Payload{ID: "u1"}, testSecret, -time.Minute)
	req.NoError(err)

	_, err = ParseToken(token, testSecret)
	req.Error(err)
}

func TestRequireIdentity(t *testing.T) {
	req := require.New(t)

	token, err := GenerateToken(&Payload{ID: "u1"}, testSecret, time.Hour)
	req.NoError(err)

	var seen *Payload
	handler := IdentityExtractorMiddleware(testSecret)(RequireIdentity(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetPayloadFromContext(r)
		w.WriteHeader(http.StatusNoContent)
	})))

	anonymous := httptest.NewRecorder()
	handler.ServeHTTP(anonymous, httptest.NewRequest(http.MethodGet, "/api/users", nil))
	req.Equal(http.StatusUnauthorized, anonymous.Code)
	req.Nil(seen)

	withHeader := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	withHeader.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, withHeader)
	req.Equal(http.StatusNoContent, w.Code)
	req.Equal("u1", seen.ID)

	seen = nil
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws?token="+token, nil))
	req.Equal(http.StatusNoContent, w.Code)
	req.Equal("u1", seen.ID)
}

func TestParseToken_RejectsForeignIssuer(t *testing.T) {
	req := require.New(t)

	claims := &Payload{
		StandardClaims: gojwt.StandardClaims{
			ExpiresAt: time.Now().Add(time.Hour).Unix(),
			Issuer:    "someone-else",
			Subject:   "u1",
		},
		ID: "u1",
	}
	token, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	req.NoError(err)

	_, err = ParseToken(token, testSecret)
	req.ErrorContains(err, "issuer")
}
