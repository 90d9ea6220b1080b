package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/blueline/blueline/pkg/contextkeys"
	"github.com/blueline/blueline/pkg/httputil"
	"github.com/blueline/blueline/pkg/identity"
	"github.com/blueline/blueline/pkg/profile"
)

// AuthMiddleware authenticates requests and attaches the principal and its
// scoped profile to the context. A valid credential without a provisioned
// profile still passes; downstream authorization treats the missing profile
// as unauthenticated.
type AuthMiddleware struct {
	resolver identity.Resolver
	profiles profile.Lookup
}

// NewAuthMiddleware creates the authentication middleware.
func NewAuthMiddleware(resolver identity.Resolver, profiles profile.Lookup) *AuthMiddleware {
	return &AuthMiddleware{resolver: resolver, profiles: profiles}
}

// Handler wraps an HTTP handler with authentication.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			httputil.WriteUnauthorized(w, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			httputil.WriteUnauthorized(w, "invalid authorization header format")
			return
		}

		principal, err := m.resolver.Resolve(r.Context(), parts[1])
		if err != nil {
			if errors.Is(err, identity.ErrInvalidCredentials) {
				httputil.WriteUnauthorized(w, "invalid or expired credentials")
			} else {
				httputil.WriteInternalError(w)
			}
			return
		}

		ctx := contextkeys.WithPrincipal(r.Context(), principal)

		p, err := m.profiles.GetProfile(ctx, principal.ID)
		if err != nil {
			httputil.WriteInternalError(w)
			return
		}
		if p != nil {
			ctx = contextkeys.WithProfile(ctx, p)
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
