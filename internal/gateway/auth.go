package gateway

import (
	"context"
	"net/http"

	"github.com/driftlab/driftfs/internal/logger"
	"github.com/driftlab/driftfs/pkg/identity"
)

type principalKey struct{}

// PrincipalFromContext returns the authenticated user for the request, or
// nil for anonymous requests.
func PrincipalFromContext(ctx context.Context) *identity.User {
	user, _ := ctx.Value(principalKey{}).(*identity.User)
	return user
}

// withPrincipal stores the authenticated user in the request context.
func withPrincipal(ctx context.Context, user *identity.User) context.Context {
	return context.WithValue(ctx, principalKey{}, user)
}

// Authentication validates HTTP Basic credentials against the user store
// and stores the principal in the request context.
//
// Requests without credentials pass through with no principal; whether
// anonymous access is allowed is a per-share decision made by the handlers.
// Requests with bad credentials are rejected immediately: a typo'd password
// must never silently degrade to guest access.
//
// A nil user store means no users are configured; every request proceeds
// anonymously.
func Authentication(userStore identity.UserStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if userStore == nil {
				next.ServeHTTP(w, r)
				return
			}

			username, password, ok := r.BasicAuth()
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			user, err := userStore.ValidateCredentials(username, password)
			if err != nil {
				logger.WarnCtx(r.Context(), "authentication failed",
					logger.KeyUsername, username,
					logger.KeyClientIP, r.RemoteAddr)
				w.Header().Set("WWW-Authenticate", `Basic realm="driftfs"`)
				writeError(w, http.StatusUnauthorized, "invalid credentials")
				return
			}

			next.ServeHTTP(w, r.WithContext(withPrincipal(r.Context(), user)))
		})
	}
}
