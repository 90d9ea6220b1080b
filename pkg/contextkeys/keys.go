// Package contextkeys provides centralized context key definitions.
//
// All context keys used across the application must be defined here. This
// prevents typos, documents dependencies, and makes key usage discoverable.
package contextkeys

import (
	"context"

	"github.com/blueline/blueline/pkg/identity"
	"github.com/blueline/blueline/pkg/profile"
)

// Key is the type for context keys to prevent collisions.
type Key string

const (
	// PrincipalKey contains *identity.Principal.
	// Set by: middleware.AuthMiddleware
	PrincipalKey Key = "principal"

	// ProfileKey contains *profile.Profile.
	// Set by: middleware.AuthMiddleware after profile lookup
	ProfileKey Key = "profile"

	// RequestIDKey contains the request ID string.
	RequestIDKey Key = "request_id"
)

// WithPrincipal adds the authenticated principal to the context.
func WithPrincipal(ctx context.Context, p *identity.Principal) context.Context {
	return context.WithValue(ctx, PrincipalKey, p)
}

// PrincipalFrom extracts the authenticated principal, or nil.
func PrincipalFrom(ctx context.Context) *identity.Principal {
	p, _ := ctx.Value(PrincipalKey).(*identity.Principal)
	return p
}

// WithProfile adds the scoped profile to the context.
func WithProfile(ctx context.Context, p *profile.Profile) context.Context {
	return context.WithValue(ctx, ProfileKey, p)
}

// ProfileFrom extracts the scoped profile, or nil when the request carries
// a principal without a provisioned profile.
func ProfileFrom(ctx context.Context) *profile.Profile {
	p, _ := ctx.Value(ProfileKey).(*profile.Profile)
	return p
}

// WithRequestID adds the request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// RequestIDFrom extracts the request ID, or "".
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}
