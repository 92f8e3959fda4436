package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/fthabet1/Kaizen-sub000/internal/apperr"
)

type ctxKey int

const userIDKey ctxKey = 0

// UserID returns the authenticated user id from the request context.
func UserID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey).(int64)
	return id, ok
}

// WithUserID returns a context carrying the user id. Exported for tests.
func WithUserID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

// Middleware authenticates requests with a Bearer token and injects the
// user id into the context. Refusals go through writeErr so they carry the
// same JSON error envelope as every other handler.
func (t *Tokens) Middleware(writeErr func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" || !strings.HasPrefix(header, "Bearer ") {
				writeErr(w, r, fmt.Errorf("%w: missing bearer token", apperr.ErrUnauthorized))
				return
			}
			claims, err := t.Parse(strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				writeErr(w, r, fmt.Errorf("%w: invalid or expired token", apperr.ErrUnauthorized))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), claims.UserID)))
		})
	}
}
