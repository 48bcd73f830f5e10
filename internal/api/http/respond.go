package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/mind-engage/mindsprint/internal/catalog"
	"github.com/mind-engage/mindsprint/internal/exam"
	"github.com/mind-engage/mindsprint/internal/storage"
	"github.com/mind-engage/mindsprint/internal/users"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors to status codes. Unknown errors are 500 and their
// text is not echoed.
func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, exam.ErrNotFound), errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, users.ErrNotFound), errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, exam.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, exam.ErrTestNotPublished), errors.Is(err, exam.ErrInsufficientQuestions),
		errors.Is(err, exam.ErrAttemptCompleted), errors.Is(err, exam.ErrAttemptExpired),
		errors.Is(err, exam.ErrAttemptInProgress), errors.Is(err, catalog.ErrConflict),
		errors.Is(err, users.ErrUsernameTaken), errors.Is(err, users.ErrLastAdmin):
		return http.StatusConflict
	case errors.Is(err, exam.ErrInvalidOption), errors.Is(err, exam.ErrQuestionNotInAttempt),
		catalog.IsValidation(err), errors.Is(err, users.ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(err, users.ErrInvalidCredentials):
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad json"})
		return false
	}
	return true
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil && v >= 0 {
		return v
	}
	return def
}
