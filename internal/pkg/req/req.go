/*
Package req provides helpers for decoding and validating HTTP request bodies.

Bodies are strict JSON (unknown fields rejected, one document per body) and are then
checked against the `validate` struct tags of the destination type.
*/
package req

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"echochat/internal/pkg/errs"
)

// MaxBodyBytes caps the size of a JSON request body.
const MaxBodyBytes int64 = 64 << 10 // 64 KB

var validate = validator.New(validator.WithRequiredStructEnabled())

// BindJSON decodes the JSON body of r into dst and validates it.
func BindJSON(w http.ResponseWriter, r *http.Request, dst any) *errs.CustomError {
	contentType := r.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "application/json") {
		return errs.NewError(errs.ErrUnsupportedMediaType)
	}

	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		return errs.NewError(errs.ErrInvalidJSONFormat)
	}

	if decoder.More() {
		return errs.NewError(errs.ErrExtraContentInBody)
	}

	return Validate(dst)
}

// Validate runs the struct tag rules on v.
func Validate(v any) *errs.CustomError {
	if err := validate.Struct(v); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return errs.Wrap(errs.ErrInvalidParams, validationErrs)
		}
		return errs.Wrap(errs.ErrInvalidParams, err)
	}
	return nil
}
