package api

import (
	"errors"
	"net/http"

	"github.com/blueline/blueline/pkg/blueprints"
	"github.com/blueline/blueline/pkg/documents"
	"github.com/blueline/blueline/pkg/httputil"
	"github.com/blueline/blueline/pkg/identity"
	"github.com/blueline/blueline/pkg/observability"
)

// writeServiceError maps domain errors onto the response envelope. Anything
// unmapped is a 500 with the cause logged, never echoed.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *documents.ValidationError
	switch {
	case errors.As(err, &verr):
		httputil.WriteValidationError(w, "validation failed", verr.Violations)
	case errors.Is(err, documents.ErrNotFound):
		httputil.WriteNotFound(w, "document not found")
	case errors.Is(err, documents.ErrUnauthenticated):
		httputil.WriteUnauthorized(w, "no active profile for this principal")
	case errors.Is(err, identity.ErrInvalidCredentials):
		httputil.WriteUnauthorized(w, "invalid or expired credentials")
	case errors.Is(err, blueprints.ErrUnsupportedContentType):
		httputil.WriteBadRequest(w, err.Error())
	default:
		observability.WithTraceContext(r.Context(), s.logger.FromContext(r.Context())).
			WithError(err).Error("request failed")
		httputil.WriteInternalError(w)
	}
}
