package rbac

import (
	"net/http"
)

var Default = NewChecker(nil)

// Require answers 403 unless the request role grants at least one of perms.
func (c *Checker) Require(perms ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !c.Allowed(RoleFromContext(r.Context()), perms...) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte(`{"error":"forbidden"}` + "\n"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func Require(perms ...string) func(http.Handler) http.Handler {
	return Default.Require(perms...)
}
