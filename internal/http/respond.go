package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/melsimpson1023/project-2-gemstone/internal/domain"
	"github.com/melsimpson1023/project-2-gemstone/internal/repository"
	"github.com/melsimpson1023/project-2-gemstone/internal/service/auth"
	"github.com/melsimpson1023/project-2-gemstone/internal/service/gemstone"
)

// writeJSON writes JSON response with status code.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError sends an error message.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps service errors onto HTTP status codes. Ownership failures answer 401.
func statusFor(err error) int {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, auth.ErrUnauthenticated),
		errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, gemstone.ErrForbidden):
		return http.StatusUnauthorized
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, auth.ErrEmailTaken), errors.Is(err, repository.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError renders err with the status statusFor picks. Internal errors
// are logged and replaced by a generic message.
func (r *Router) writeServiceError(w http.ResponseWriter, req *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		r.logger.Error("request failed", "error", err, "path", req.URL.Path)
		writeError(w, status, "internal server error")
		return
	}
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, status, map[string]string{"error": verr.Error(), "field": verr.Field})
		return
	}
	if status == http.StatusNotFound {
		writeError(w, status, "not found")
		return
	}
	writeError(w, status, err.Error())
}
