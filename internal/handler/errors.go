package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ecopickup/pooling/internal/domain"
)

// errorBody builds the standard error envelope.
func errorBody(code, message string) ErrorResponse {
	return ErrorResponse{Error: ErrorDetail{Code: code, Message: message}}
}

// writeError maps a service error onto its HTTP status and error envelope.
// what names the resource being looked up, for 404 messages.
// Unrecognised errors are logged and reported as 500 without detail.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, what string, err error) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		writeJSON(w, http.StatusRequestEntityTooLarge, errorBody("payload_too_large", "request body too large"))
	case errors.Is(err, errBadRequest):
		writeJSON(w, http.StatusBadRequest, errorBody("bad_request", unwrapMessage(err, errBadRequest)))
	case errors.Is(err, domain.ErrValidation):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody("validation_error", unwrapMessage(err, domain.ErrValidation)))
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not_found", what+" not found"))
	case errors.Is(err, domain.ErrInvalidTransition):
		writeJSON(w, http.StatusConflict, errorBody("invalid_transition", unwrapMessage(err, domain.ErrInvalidTransition)))
	case errors.Is(err, domain.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody("conflict", "request was updated concurrently; reload and retry"))
	case errors.Is(err, domain.ErrUnavailable):
		s.logger.WarnContext(r.Context(), "store unavailable", "path", r.URL.Path, "error", err)
		w.Header().Set("Retry-After", "1")
		writeJSON(w, http.StatusServiceUnavailable, errorBody("unavailable", "storage temporarily unavailable; retry"))
	default:
		s.logger.ErrorContext(r.Context(), "unhandled error", "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody("internal_error", "internal server error"))
	}
}

// unwrapMessage extracts the human-readable part that follows the sentinel in
// a wrapped error.
// e.g. "service.PoolingService.Submit: validation error: quantity must be at least 1"
// → "quantity must be at least 1"
func unwrapMessage(err, sentinel error) string {
	msg := err.Error()
	marker := sentinel.Error() + ": "
	if i := strings.LastIndex(msg, marker); i >= 0 {
		return msg[i+len(marker):]
	}
	return msg
}
