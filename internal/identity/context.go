// Package identity carries the authenticated user through request contexts.
// The session provider itself (JWT issuance, sign-in) lives outside this
// service; here a user is whatever the auth middleware vouched for.
package identity

import (
	"context"

	"github.com/promptdeck/promptdeck/internal/models"
)

type contextKey struct{}

func WithUser(ctx context.Context, u models.User) context.Context {
	return context.WithValue(ctx, contextKey{}, u)
}

// UserFromContext returns the authenticated user and whether one is present.
func UserFromContext(ctx context.Context) (models.User, bool) {
	u, ok := ctx.Value(contextKey{}).(models.User)
	return u, ok
}
