package errs

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewError_FormatsDetails(t *testing.T) {
	req := require.New(t)

	err := NewError(ErrMessageContentTooLong, 5000)

	req.Equal(ErrMessageContentTooLong, err.Code)
	req.Equal("Message is too long (max 5000 bytes).", err.Message)
	req.Equal(http.StatusBadRequest, err.Status)
}

func TestNewError_UnknownCodeFallsBack(t *testing.T) {
	req := require.New(t)

	err := NewError(424242)

	req.Equal(ErrUnknown, err.Code)
	req.Equal(http.StatusInternalServerError, err.Status)
}

func TestCustomError_IsMatchesByCode(t *testing.T) {
	req := require.New(t)

	cause := errors.New("connection refused")
	wrapped := fmt.Errorf("relay: %w", Wrap(ErrPersistenceFailure, cause))

	req.ErrorIs(wrapped, NewError(ErrPersistenceFailure))
	req.ErrorIs(wrapped, cause)
	req.NotErrorIs(wrapped, NewError(ErrInvalidRequest))
	req.True(HasCode(wrapped, ErrPersistenceFailure))
	req.False(HasCode(cause, ErrPersistenceFailure))
}

func TestFromCode_KeepsRemoteMessage(t *testing.T) {
	req := require.New(t)

	err := FromCode(ErrInvalidRequest, "remote says no", http.StatusBadRequest)
	req.ErrorIs(err, NewError(ErrInvalidRequest))
	req.Equal("remote says no", err.Message)

	unknown := FromCode(9999, "??", http.StatusTeapot)
	req.Equal(ErrUnknown, unknown.Code)
}
