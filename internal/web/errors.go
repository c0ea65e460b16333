package web

// errors.go provides unified error responses for the web layer.
//
// Every error is logged with its technical detail and request ID, then mapped
// through core.MapError so clients only see a user message, an action and a
// support code. API routes answer in JSON, pages in plain text.

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/render"

	"github.com/JonMunkholm/snapdiff/internal/core"
	"github.com/JonMunkholm/snapdiff/internal/logging"
)

// ErrorResponse is the JSON body of an API error.
type ErrorResponse struct {
	HTTPStatusCode int `json:"-"`

	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// Render implements render.Renderer.
func (e *ErrorResponse) Render(_ http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.HTTPStatusCode)
	return nil
}

// respondError logs err and writes a user-facing error response.
func respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	msg := core.MapError(err)

	logger := logging.FromContext(r.Context())
	logArgs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", msg.Code,
	}
	if statusCode >= http.StatusInternalServerError {
		logger.Error("request error", logArgs...)
	} else {
		logger.Warn("request error", logArgs...)
	}

	if !wantsJSON(r) {
		http.Error(w, msg.Message+" (Code: "+msg.Code+")", statusCode)
		return
	}

	if err := render.Render(w, r, &ErrorResponse{
		HTTPStatusCode: statusCode,
		Error:          msg.Message,
		Message:        msg.Message,
		Action:         msg.Action,
		Code:           msg.Code,
	}); err != nil {
		logger.Error("render error response", "error", err)
	}
}

// statusFor picks the HTTP status of a run error.
func statusFor(err error) int {
	var le *core.LoadError
	var se *core.SinkError
	switch {
	case errors.Is(err, core.ErrInsufficientSnapshots):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrTooManyRuns):
		return http.StatusServiceUnavailable
	case errors.As(err, &le):
		switch core.MapError(err).Code {
		case "LOAD003":
			return http.StatusBadRequest
		case "LOAD004":
			return http.StatusServiceUnavailable
		}
		return http.StatusUnprocessableEntity
	case errors.As(err, &se):
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}

// wantsJSON checks if the client prefers a JSON response.
func wantsJSON(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	return strings.HasPrefix(r.URL.Path, "/api/")
}
