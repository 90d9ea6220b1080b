package api

import (
	"net/http"

	"github.com/blueline/blueline/pkg/contextkeys"
	"github.com/blueline/blueline/pkg/httputil"
	"github.com/blueline/blueline/pkg/identity"
	"github.com/blueline/blueline/pkg/profile"
)

type meResponse struct {
	Principal *identity.Principal `json:"principal"`
	Profile   *profile.Profile    `json:"profile,omitempty"`
}

// handleMe returns the caller's resolved identity. A principal without a
// provisioned profile sees its principal only; that state means every
// document operation will be rejected.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	principal := contextkeys.PrincipalFrom(r.Context())
	if principal == nil {
		httputil.WriteUnauthorized(w, "no authenticated principal")
		return
	}

	httputil.WriteSuccess(w, meResponse{
		Principal: principal,
		Profile:   contextkeys.ProfileFrom(r.Context()),
	})
}
