package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/tendant/storefront-api/pkg/domain"
)

// ErrorResponse is the JSON body of every error reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// JSON writes v as a JSON response with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// Error writes an error response with a code derived from the status.
func Error(w http.ResponseWriter, status int, message string) {
	ErrorCode(w, status, codeForStatus(status), message)
}

// ErrorCode writes an error response with an explicit machine-readable code.
func ErrorCode(w http.ResponseWriter, status int, code, message string) {
	JSON(w, status, ErrorResponse{Error: message, Code: code})
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return domain.KindValidation.Code()
	case http.StatusUnauthorized:
		return "UNAUTHORIZED"
	case http.StatusForbidden:
		return domain.KindForbidden.Code()
	case http.StatusNotFound:
		return domain.KindNotFound.Code()
	case http.StatusRequestEntityTooLarge:
		return "PAYLOAD_TOO_LARGE"
	case http.StatusTooManyRequests:
		return "RATE_LIMITED"
	default:
		return domain.KindInternal.Code()
	}
}

// ErrorWriter maps errors to responses by their domain kind.
type ErrorWriter struct {
	Logger *slog.Logger
	// Stack includes a stack trace when logging unexpected errors.
	Stack bool
}

// Write replies with the status and code of err's kind. Unexpected errors
// are logged and their detail is never sent to the client.
func (ew ErrorWriter) Write(w http.ResponseWriter, r *http.Request, err error) {
	kind := domain.KindOf(err)
	if kind == domain.KindInternal {
		logger := ew.Logger
		if logger == nil {
			logger = slog.Default()
		}
		attrs := []any{"error", err, "method", r.Method, "path", r.URL.Path}
		if ew.Stack {
			attrs = append(attrs, "stack", string(debug.Stack()))
		}
		logger.Error("request failed", attrs...)
		ErrorCode(w, kind.HTTPStatus(), kind.Code(), "internal server error")
		return
	}

	message := kind.String()
	var de *domain.Error
	if errors.As(err, &de) && de.Message != "" {
		message = de.Message
	}
	ErrorCode(w, kind.HTTPStatus(), kind.Code(), message)
}

// DecodeJSON decodes the request body into v. An empty body leaves v
// untouched when allowEmpty is set.
func DecodeJSON(r *http.Request, v any, allowEmpty bool) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil {
		return nil
	}
	if allowEmpty && errors.Is(err, io.EOF) {
		return nil
	}
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return domain.Wrap(domain.KindValidation, "request body too large", err)
	}
	return domain.Wrap(domain.KindValidation, "invalid request body", err)
}
