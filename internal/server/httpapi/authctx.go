package httpapi

import (
	"context"

	"github.com/and161185/speedcube/internal/model"
)

type ctxKey string

const userKey ctxKey = "speedcube.user"

// WithUser stores the authenticated user in ctx.
func WithUser(ctx context.Context, u model.User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

// UserFromCtx fetches the authenticated user from ctx.
func UserFromCtx(ctx context.Context) (model.User, bool) {
	u, ok := ctx.Value(userKey).(model.User)
	return u, ok
}
