package api

import (
	"context"
	"net/http"
	"time"

	"github.com/blueline/blueline/pkg/contextkeys"
	"github.com/blueline/blueline/pkg/httputil"
	"github.com/blueline/blueline/pkg/identity"
)

// TokenService is the slice of the token store the handlers consume.
type TokenService interface {
	CreateToken(ctx context.Context, profileID, name string, expiresAt *time.Time) (*identity.APIToken, string, error)
	ListTokens(ctx context.Context, profileID string) ([]*identity.APIToken, error)
	RevokeToken(ctx context.Context, profileID, tokenID string) error
}

type createTokenRequest struct {
	Name      string     `json:"name"`
	ExpiresAt *time.Time `json:"expires_at"`
}

type createTokenResponse struct {
	Token     *identity.APIToken `json:"token"`
	Plaintext string             `json:"plaintext"`
}

func (s *Server) handleCreateToken(w http.ResponseWriter, r *http.Request) {
	principal := contextkeys.PrincipalFrom(r.Context())
	if principal == nil {
		httputil.WriteUnauthorized(w, "no authenticated principal")
		return
	}

	var req createTokenRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Name == "" {
		httputil.WriteBadRequest(w, "token name is required")
		return
	}
	if req.ExpiresAt != nil && !req.ExpiresAt.After(time.Now()) {
		httputil.WriteBadRequest(w, "expires_at must be in the future")
		return
	}

	token, plaintext, err := s.tokens.CreateToken(r.Context(), principal.ID, req.Name, req.ExpiresAt)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	// The plaintext token is shown exactly once; only its hash is stored.
	httputil.WriteCreated(w, createTokenResponse{Token: token, Plaintext: plaintext})
}

func (s *Server) handleListTokens(w http.ResponseWriter, r *http.Request) {
	principal := contextkeys.PrincipalFrom(r.Context())
	if principal == nil {
		httputil.WriteUnauthorized(w, "no authenticated principal")
		return
	}

	tokens, err := s.tokens.ListTokens(r.Context(), principal.ID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if tokens == nil {
		tokens = []*identity.APIToken{}
	}
	httputil.WriteSuccess(w, tokens)
}

func (s *Server) handleRevokeToken(w http.ResponseWriter, r *http.Request) {
	principal := contextkeys.PrincipalFrom(r.Context())
	if principal == nil {
		httputil.WriteUnauthorized(w, "no authenticated principal")
		return
	}

	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	if err := s.tokens.RevokeToken(r.Context(), principal.ID, id); err != nil {
		if err == identity.ErrInvalidCredentials {
			// Revoking someone else's token looks identical to a missing id.
			httputil.WriteNotFound(w, "token not found")
			return
		}
		s.writeServiceError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}
