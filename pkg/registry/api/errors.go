package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/tendant/media-registry/pkg/registry"
)

const (
	// CodeBadRequest is returned for malformed ids and request bodies.
	CodeBadRequest = "bad_request"
	// CodeUnauthenticated is returned when a request carries no usable caller identity.
	CodeUnauthenticated = "unauthenticated"
)

// ErrorBody carries a stable error code and a human readable message
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse is the response body for every failed request
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

var statusByCode = map[string]int{
	registry.CodeContentMissing:          http.StatusNotFound,
	registry.CodeContentAlreadyExists:    http.StatusConflict,
	registry.CodeInvalidMetadata:         http.StatusBadRequest,
	registry.CodeFileSizeViolation:       http.StatusBadRequest,
	registry.CodeTagValidationFailed:     http.StatusBadRequest,
	registry.CodeOwnershipMismatch:       http.StatusForbidden,
	registry.CodeViewingRestricted:       http.StatusForbidden,
	registry.CodeAdminPrivilegesRequired: http.StatusForbidden,
	registry.CodeUnauthorizedAccess:      http.StatusUnauthorized,
	CodeBadRequest:                       http.StatusBadRequest,
}

// StatusForError maps a registry error to its HTTP status and code.
func StatusForError(err error) (int, string) {
	code := registry.ErrorCode(err)
	if status, ok := statusByCode[code]; ok {
		return status, code
	}
	return http.StatusInternalServerError, registry.CodeInternal
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := StatusForError(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "registry request failed",
			"method", r.Method, "path", r.URL.Path, "error", err)
		message = "internal error"
	}
	writeErrorCode(w, r, status, code, message)
}

func writeErrorCode(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: ErrorBody{Code: code, Message: message}})
}

func writeBadRequest(w http.ResponseWriter, r *http.Request, message string) {
	writeErrorCode(w, r, http.StatusBadRequest, CodeBadRequest, message)
}
