package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/desertthunder/igloo/internal/models"
	"github.com/desertthunder/igloo/internal/shared"
)

// User-facing messages for failed requests.
const (
	MsgUnreachable  = "Unable to reach the server. Check your connection and try again."
	MsgBadRequest   = "Invalid request."
	MsgUnauthorized = "You need to log in to continue."
	MsgForbidden    = "You don't have permission to do that."
	MsgNotFound     = "Not found."
	MsgRateLimited  = "Too many requests. Please wait a moment and try again."
	MsgServerError  = "Server error. Please try again later."
	MsgUnexpected   = "An unexpected error occurred."
	MsgCanceled     = "Request canceled."
)

// ErrorKind tags the failure mode of an [APIError].
type ErrorKind int

const (
	// KindUnreachable means no response was received.
	KindUnreachable ErrorKind = iota
	// KindStatus means the server answered with a status of 400 or above.
	KindStatus
	// KindDecode means a 2xx body could not be decoded.
	KindDecode
)

func (k ErrorKind) String() string {
	switch k {
	case KindUnreachable:
		return "unreachable"
	case KindStatus:
		return "status"
	case KindDecode:
		return "decode"
	default:
		return "unknown"
	}
}

// APIError is the normalized failure for every API call.
type APIError struct {
	Kind       ErrorKind
	StatusCode int
	// Message is safe to show to the user.
	Message string
	// FromServer is true when Message came from the response's error field.
	FromServer bool
	RequestID  string
	Err        error
}

func (e *APIError) Error() string {
	switch e.Kind {
	case KindStatus:
		return fmt.Sprintf("%s (status %d)", e.Message, e.StatusCode)
	case KindDecode:
		return fmt.Sprintf("failed to decode response: %v", e.Err)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s: %v", e.Message, e.Err)
		}
		return e.Message
	}
}

// Unwrap exposes the matching shared sentinel and the underlying cause.
func (e *APIError) Unwrap() []error {
	errs := []error{e.sentinel()}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func (e *APIError) sentinel() error {
	if e.Kind == KindUnreachable {
		return shared.ErrServiceUnavailable
	}
	switch e.StatusCode {
	case http.StatusUnauthorized:
		return shared.ErrNotAuthenticated
	case http.StatusForbidden:
		return shared.ErrForbidden
	case http.StatusNotFound:
		return shared.ErrNotFound
	case http.StatusTooManyRequests:
		return shared.ErrRateLimited
	default:
		return shared.ErrAPIRequest
	}
}

// StatusMessage returns the fallback message for an HTTP status code.
func StatusMessage(code int) string {
	switch code {
	case http.StatusBadRequest:
		return MsgBadRequest
	case http.StatusUnauthorized:
		return MsgUnauthorized
	case http.StatusForbidden:
		return MsgForbidden
	case http.StatusNotFound:
		return MsgNotFound
	case http.StatusTooManyRequests:
		return MsgRateLimited
	case http.StatusInternalServerError:
		return MsgServerError
	default:
		return MsgUnexpected
	}
}

type errorBody struct {
	Error string `json:"error"`
}

// newStatusError prefers the server's error field and falls back to [StatusMessage].
func newStatusError(code int, body []byte) *APIError {
	e := &APIError{Kind: KindStatus, StatusCode: code, Message: StatusMessage(code)}

	var eb errorBody
	if json.Unmarshal(body, &eb) == nil {
		if msg := strings.TrimSpace(eb.Error); msg != "" {
			e.Message = msg
			e.FromServer = true
		}
	}
	return e
}

// ErrorMessage converts any error into text suitable for a banner or CLI output.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}

	var verr *models.ValidationError
	if errors.As(err, &verr) {
		return verr.Error()
	}

	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return MsgCanceled
	case errors.Is(err, shared.ErrNotAuthenticated):
		return MsgUnauthorized
	case errors.Is(err, shared.ErrForbidden):
		return MsgForbidden
	case errors.Is(err, shared.ErrNotFound), errors.Is(err, shared.ErrRouteNotFound):
		return MsgNotFound
	case errors.Is(err, shared.ErrInvalidInput), errors.Is(err, shared.ErrPlaybackFailed):
		return err.Error()
	default:
		return MsgUnexpected
	}
}
