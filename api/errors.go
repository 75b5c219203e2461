package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/poiesic/bookgrep/core"
	"github.com/poiesic/bookgrep/storage"
)

// Error codes written in the "error" field of an error response.
const (
	CodeInvalidMode     = "invalid_mode"
	CodeInvalidPattern  = "invalid_pattern"
	CodePatternTooShort = "pattern_too_short"
	CodeInvalidRequest  = "invalid_request"
	CodeNotFound        = "not_found"
	CodeRateLimited     = "rate_limited"
	CodeCanceled        = "canceled"
	CodeTimeout         = "timeout"
	CodeInternal        = "internal"
)

// StatusClientClosedRequest is written when the client goes away before the
// response is ready.
const StatusClientClosedRequest = 499

var (
	// ErrLibraryRequired is returned when NewServer is given no library.
	ErrLibraryRequired = errors.New("library required")

	errPatternTooShort = errors.New("pattern too short")
	errInvalidRequest  = errors.New("invalid request")
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// classify maps an error to its status code and wire code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, core.ErrInvalidMode):
		return http.StatusBadRequest, CodeInvalidMode
	case errors.Is(err, core.ErrInvalidPattern):
		return http.StatusBadRequest, CodeInvalidPattern
	case errors.Is(err, errPatternTooShort):
		return http.StatusBadRequest, CodePatternTooShort
	case errors.Is(err, errInvalidRequest), errors.Is(err, storage.ErrInvalidQuery):
		return http.StatusBadRequest, CodeInvalidRequest
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, context.Canceled):
		return StatusClientClosedRequest, CodeCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, CodeTimeout
	}
	return http.StatusInternalServerError, CodeInternal
}
