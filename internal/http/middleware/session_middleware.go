package middleware

import (
	"context"
	"net/http"

	"github.com/urbanloom/storefront/internal/security"
	"github.com/urbanloom/storefront/internal/session"
)

const sessionContextKey contextKey = "session"

// SessionMiddleware attaches a server-side session to every request.
// A missing or unknown sid cookie gets a fresh session transparently;
// state only materializes in Redis once a handler writes to it.
func SessionMiddleware(store *session.Store, cookies *security.CookieManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sid := security.GetCookie(r, security.SessionCookie)
			if sid == "" {
				sid = store.NewID()
				cookies.SetSessionCookie(w, sid)
			}
			ctx := context.WithValue(r.Context(), sessionContextKey, store.Session(sid))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func SessionFromContext(ctx context.Context) (*session.Session, bool) {
	s, ok := ctx.Value(sessionContextKey).(*session.Session)
	return s, ok
}
