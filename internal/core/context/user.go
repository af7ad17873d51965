// Package context carries request-scoped identity and tracing values.
//
// Operator identity is always supplied by the caller (HTTP middleware, worker, CLI);
// nothing in the domain layer reads ambient session state.
package context

import (
	"context"
	"slices"
)

// UserContext describes the authenticated operator acting on a tenant.
type UserContext struct {
	UserID   string
	TenantID string
	Email    string
	Roles    []string
	IsAdmin  bool
}

type userContextKey struct{}

// WithUser adds UserContext to ctx.
func WithUser(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// GetUser returns the UserContext from ctx, or nil.
func GetUser(ctx context.Context) *UserContext {
	if v, ok := ctx.Value(userContextKey{}).(*UserContext); ok {
		return v
	}
	return nil
}

// GetUserID returns the operator id or an empty string.
func GetUserID(ctx context.Context) string {
	if u := GetUser(ctx); u != nil {
		return u.UserID
	}
	return ""
}

// HasAnyRole reports whether the operator holds one of roles. Admins always pass.
func HasAnyRole(ctx context.Context, roles ...string) bool {
	u := GetUser(ctx)
	if u == nil {
		return false
	}
	if u.IsAdmin {
		return true
	}
	for _, r := range roles {
		if slices.Contains(u.Roles, r) {
			return true
		}
	}
	return false
}

// System returns an identity used by background jobs.
func System(tenantID string) *UserContext {
	return &UserContext{UserID: "system", TenantID: tenantID, IsAdmin: true}
}
