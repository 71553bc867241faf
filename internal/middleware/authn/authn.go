package authn

import (
	"context"
	"net/http"

	resp "community_service/internal/lib/api/response"
	"community_service/internal/lib/session"
	"community_service/internal/models"

	"github.com/go-chi/render"
)

type contextKey string

const claimsKey contextKey = "session_claims"

// RequireUser validates the session cookie and stores the claims in the
// request context.
func RequireUser(sessions *session.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(sessions.CookieName())
			if err != nil {
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, resp.Error("authentication required"))

				return
			}

			claims, err := sessions.Parse(cookie.Value)
			if err != nil {
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, resp.Error("authentication required"))

				return
			}

			next.ServeHTTP(w, r.WithContext(
				context.WithValue(r.Context(), claimsKey, claims),
			))
		})
	}
}

// RequireAdmin must be stacked after RequireUser.
func RequireAdmin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok || claims.Role != models.RoleAdmin {
				render.Status(r, http.StatusForbidden)
				render.JSON(w, r, resp.Error("admin privileges required"))

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func ClaimsFromContext(ctx context.Context) (*session.Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*session.Claims)
	return claims, ok
}

// UserIDFromContext returns the authenticated account id, or "" when the
// request carries no session.
func UserIDFromContext(ctx context.Context) string {
	claims, ok := ClaimsFromContext(ctx)
	if !ok {
		return ""
	}
	return claims.Subject
}
