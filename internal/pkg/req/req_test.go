package req

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"echochat/internal/pkg/errs"
)

type loginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func newRequest(body, contentType string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	r.Header.Set("Content-Type", contentType)
	return r
}

func TestBindJSON(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		contentType string
		wantCode    int
	}{
		{"valid body", `{"email":"a@b.io","password":"secret"}`, "application/json", 0},
		{"wrong content type", `{"email":"a@b.io","password":"secret"}`, "text/plain", errs.ErrUnsupportedMediaType},
		{"broken json", `{"email":`, "application/json", errs.ErrInvalidJSONFormat},
		{"unknown field", `{"email":"a@b.io","password":"x","admin":true}`, "application/json", errs.ErrInvalidJSONFormat},
		{"trailing document", `{"email":"a@b.io","password":"x"}{}`, "application/json", errs.ErrExtraContentInBody},
		{"invalid email", `{"email":"nope","password":"secret"}`, "application/json", errs.ErrInvalidParams},
		{"missing password", `{"email":"a@b.io"}`, "application/json; charset=utf-8", errs.ErrInvalidParams},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			var input loginInput

			err := BindJSON(httptest.NewRecorder(), newRequest(tt.body, tt.contentType), &input)
			if tt.wantCode == 0 {
				req.Nil(err)
				req.Equal("a@b.io", input.Email)
				return
			}
			req.NotNil(err)
			req.Equal(tt.wantCode, err.Code)
		})
	}
}
