// Package identity authenticates requests. It resolves bearer credentials
// (API tokens or OIDC ID tokens) to a principal; turning a principal into a
// scoped profile is the profile package's job.
package identity

import (
	"context"
	"errors"
	"time"
)

// Principal is an authenticated caller. ID matches the profile id.
type Principal struct {
	ID    string
	Email string
}

// APIToken is the stored metadata for one issued token. The plaintext token
// is returned exactly once at creation and never stored.
type APIToken struct {
	ID         string     `json:"id"`
	ProfileID  string     `json:"profile_id"`
	Name       string     `json:"name"`
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
}

// ErrInvalidCredentials covers every authentication failure: malformed,
// unknown, expired, and revoked credentials all look the same to callers.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Resolver resolves a bearer credential to a principal.
type Resolver interface {
	Resolve(ctx context.Context, credential string) (*Principal, error)
}
