package httpmiddleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// sessionCookie is the cookie carrying the storefront session id. The cart
// and checkout state are keyed by it.
const sessionCookie = "sid"

type sessionIDKey struct{}

// SessionIDFromContext extracts the session id from the context, or returns
// an empty string.
func SessionIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(sessionIDKey{}).(string); ok {
		return id
	}
	return ""
}

// Session ensures every request has a storefront session id. An existing sid
// cookie that parses as a UUID is reused; otherwise a new one is issued. The
// id is stored in the request context for handlers.
func Session() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := ""
			if c, err := r.Cookie(sessionCookie); err == nil {
				if parsed, err := uuid.Parse(c.Value); err == nil {
					id = parsed.String()
				}
			}
			if id == "" {
				id = uuid.New().String()
				http.SetCookie(w, &http.Cookie{
					Name:     sessionCookie,
					Value:    id,
					Path:     "/",
					MaxAge:   30 * 24 * 3600,
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
				})
			}

			ctx := context.WithValue(r.Context(), sessionIDKey{}, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
