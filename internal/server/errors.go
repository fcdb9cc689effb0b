package server

import (
	"errors"
	"net/http"

	"curve-analyzer/curvelog"
	"curve-analyzer/internal/logging"
	"github.com/go-chi/render"
)

// APIError is the JSON body of every non-2xx response.
type APIError struct {
	StatusCode int    `json:"status_code"`
	ErrorCode  string `json:"error_code"`
	Message    string `json:"message"`
	Details    any    `json:"details,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
}

func (e *APIError) Error() string {
	return e.Message
}

// Render implements render.Renderer.
func (e *APIError) Render(w http.ResponseWriter, r *http.Request) error {
	e.RequestID = logging.RequestIDFrom(r.Context())
	render.Status(r, e.StatusCode)
	return nil
}

func newAPIError(status int, code, message string) *APIError {
	return &APIError{StatusCode: status, ErrorCode: code, Message: message}
}

func errEmptyInput() *APIError {
	return newAPIError(http.StatusBadRequest, "EMPTY_INPUT", "request contained no log content")
}

func errNotText() *APIError {
	return newAPIError(http.StatusUnsupportedMediaType, "NOT_TEXT", "log content is not UTF-8 text")
}

func errTooLarge(limit int64) *APIError {
	e := newAPIError(http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "request body exceeds the upload limit")
	e.Details = map[string]int64{"max_bytes": limit}
	return e
}

func errInvalidParameter(details any) *APIError {
	e := newAPIError(http.StatusBadRequest, "INVALID_PARAMETER", "invalid query parameter")
	e.Details = details
	return e
}

func errInvalidRequest(message string) *APIError {
	return newAPIError(http.StatusBadRequest, "INVALID_REQUEST", message)
}

func errRateLimited() *APIError {
	return newAPIError(http.StatusTooManyRequests, "RATE_LIMITED", "rate limit exceeded")
}

func errInternal() *APIError {
	return newAPIError(http.StatusInternalServerError, "INTERNAL_ERROR", "an unexpected error occurred")
}

// apiErrorFor maps domain errors onto HTTP responses.
func apiErrorFor(err error, uploadLimit int64) *APIError {
	var apiErr *APIError
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.Is(err, curvelog.ErrEmptyInput):
		return errEmptyInput()
	case errors.Is(err, curvelog.ErrNotText):
		return errNotText()
	case errors.As(err, &tooLarge):
		return errTooLarge(uploadLimit)
	default:
		return errInternal()
	}
}
