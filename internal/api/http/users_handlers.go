package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	auth "github.com/mind-engage/mindsprint/internal/auth/middleware"
	"github.com/mind-engage/mindsprint/internal/users"
)

// UserStore is the account surface the HTTP layer needs.
type UserStore interface {
	Get(ctx context.Context, id string) (users.User, error)
	List(ctx context.Context, role string) ([]users.User, error)
	Upsert(ctx context.Context, in []users.NewUser) (inserted, updated int, err error)
	SetRole(ctx context.Context, target, role string) (users.User, error)
	ChangePassword(ctx context.Context, id, oldPassword, newPassword string) error
}

// GET /me
func MeHandler(store UserStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, err := store.Get(r.Context(), auth.SubjectFromContext(r.Context()))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, u)
	}
}

// POST /me/password {"old_password": "...", "new_password": "..."}
func ChangePasswordHandler(store UserStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			OldPassword string `json:"old_password"`
			NewPassword string `json:"new_password"`
		}
		if !decode(w, r, &req) {
			return
		}
		if err := store.ChangePassword(r.Context(), auth.SubjectFromContext(r.Context()), req.OldPassword, req.NewPassword); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// GET /admin/users?role=...
func ListUsersHandler(store UserStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := store.List(r.Context(), strings.TrimSpace(r.URL.Query().Get("role")))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// POST /admin/users/bulk
// Accepts a multipart file= (CSV or JSON array) or a raw JSON array body.
func BulkUpsertUsersHandler(store UserStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var rows []users.NewUser
		if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			f, _, err := r.FormFile("file")
			if err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "file required"})
				return
			}
			defer f.Close()
			raw, err := io.ReadAll(f)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "read upload"})
				return
			}
			// sniff JSON vs CSV by first non-space byte
			if t := strings.TrimSpace(string(raw)); strings.HasPrefix(t, "[") {
				err = json.Unmarshal(raw, &rows)
			} else {
				rows, err = users.ParseCSV(strings.NewReader(string(raw)))
			}
			if err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad file: " + err.Error()})
				return
			}
		} else if !decode(w, r, &rows) {
			return
		}

		ins, upd, err := store.Upsert(r.Context(), rows)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"inserted": ins, "updated": upd})
	}
}

// PATCH /admin/users/{userID} {"role": "admin"}; userID may also be a username.
func UpdateUserRoleHandler(store UserStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Role string `json:"role"`
		}
		if !decode(w, r, &req) {
			return
		}
		u, err := store.SetRole(r.Context(), chi.URLParam(r, "userID"), req.Role)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, u)
	}
}
