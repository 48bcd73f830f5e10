package rbac

import (
	"context"
	"strings"
)

type Checker struct {
	policy Policy
}

// NewChecker returns a checker for p, or for DefaultPolicy when p is nil.
func NewChecker(p Policy) *Checker {
	if p == nil {
		p = DefaultPolicy
	}
	return &Checker{policy: p}
}

// Allowed reports whether role grants at least one of perms.
func (c *Checker) Allowed(role string, perms ...string) bool {
	if role == "" {
		return false
	}
	for _, granted := range c.policy[role] {
		for _, p := range perms {
			if grants(granted, p) {
				return true
			}
		}
	}
	return false
}

func grants(pattern, perm string) bool {
	if pattern == "*" || pattern == perm {
		return true
	}
	prefix, ok := strings.CutSuffix(pattern, "*")
	return ok && strings.HasPrefix(perm, prefix)
}

type roleKey struct{}

func WithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, roleKey{}, role)
}

func RoleFromContext(ctx context.Context) string {
	s, _ := ctx.Value(roleKey{}).(string)
	return s
}

// Can checks the role stored in ctx against the default checker.
func Can(ctx context.Context, perm string) bool {
	return Default.Allowed(RoleFromContext(ctx), perm)
}
