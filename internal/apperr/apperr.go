// Package apperr defines the error taxonomy shared by the authorization gate,
// the transcode orchestrator, and the streaming endpoints, and maps it onto
// HTTP status codes for the Echo server.
package apperr

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Kind identifies one of the taxonomy's error classes.
type Kind int

const (
	// Internal covers unexpected I/O or serialization failure.
	Internal Kind = iota
	// BadRequest covers missing form fields, invalid filetypes, oversize
	// uploads, and missing required query parameters.
	BadRequest
	// Unauthorized covers a missing credential, invalid signature, expired
	// token, binding mismatch, or referrer mismatch.
	Unauthorized
	// NotFound covers a requested stored artifact that does not exist.
	NotFound
	// TranscodeFailed covers a non-zero exit from the external transcoder.
	TranscodeFailed
	// CallbackFailed covers an outbound callback POST failure.
	CallbackFailed
)

// Error is a taxonomy-tagged error. The public Message is safe to return to
// a caller; Cause, when present, is logged but never serialized.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

func newErr(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// NewBadRequest builds a BadRequest error with a client-safe message.
func NewBadRequest(msg string) *Error { return newErr(BadRequest, msg, nil) }

// NewUnauthorized builds an Unauthorized error. cause is logged server-side
// only; msg is what the caller sees (a generic message unless the route
// wants a specific "missing credential" wording).
func NewUnauthorized(msg string, cause error) *Error { return newErr(Unauthorized, msg, cause) }

// NewNotFound builds a NotFound error.
func NewNotFound(msg string) *Error { return newErr(NotFound, msg, nil) }

// NewTranscodeFailed wraps the transcoder's failure for the job state machine.
func NewTranscodeFailed(cause error) *Error {
	return newErr(TranscodeFailed, "transcode failed", cause)
}

// NewCallbackFailed wraps an outbound callback POST failure. Always logged,
// never surfaced to an HTTP client (callbacks are fire-and-forget).
func NewCallbackFailed(cause error) *Error {
	return newErr(CallbackFailed, "callback delivery failed", cause)
}

// NewInternal builds an Internal error.
func NewInternal(cause error) *Error {
	return newErr(Internal, "internal error", cause)
}

func statusFor(k Kind) int {
	switch k {
	case BadRequest:
		return http.StatusBadRequest
	case Unauthorized:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// HTTPErrorHandler is installed as the Echo server's error handler. It maps
// the apperr taxonomy onto the status codes spec.md §6 requires, logging the
// specific cause server-side while returning only the generic message.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var ae *Error
	if errors.As(err, &ae) {
		if ae.Cause != nil {
			slog.Warn("request failed", "kind", ae.Kind, "path", c.Path(), "cause", ae.Cause)
		}
		_ = c.JSON(statusFor(ae.Kind), echo.Map{"error": ae.Message})
		return
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		_ = c.JSON(he.Code, echo.Map{"error": he.Message})
		return
	}

	slog.Error("unhandled error", "path", c.Path(), "error", err)
	_ = c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
