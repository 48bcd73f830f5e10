package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/mind-engage/mindsprint/internal/rbac"
	"github.com/mind-engage/mindsprint/internal/users"
)

// UserLookup resolves the token subject to a stored account.
type UserLookup interface {
	Get(ctx context.Context, id string) (users.User, error)
}

// AttachRoleFromStore replaces the token's role with the stored one, so a demoted
// admin loses access before the token expires. Tokens for deleted accounts are rejected.
func AttachRoleFromStore(lookup UserLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			u, err := lookup.Get(ctx, SubjectFromContext(ctx))
			switch {
			case errors.Is(err, users.ErrNotFound):
				http.Error(w, "unknown user", http.StatusUnauthorized)
			case err != nil:
				http.Error(w, "forbidden", http.StatusForbidden)
			default:
				next.ServeHTTP(w, r.WithContext(rbac.WithRole(ctx, u.Role)))
			}
		})
	}
}
