package api

import (
	"context"
	"net/http"

	"github.com/blueline/blueline/pkg/blueprints"
	"github.com/blueline/blueline/pkg/contextkeys"
	"github.com/blueline/blueline/pkg/httputil"
)

// BlueprintService is the slice of the blueprint service the handlers
// consume.
type BlueprintService interface {
	CreateUpload(ctx context.Context, req blueprints.UploadRequest) (*blueprints.Upload, error)
	DownloadURL(ctx context.Context, key string) (string, error)
}

func (s *Server) handleCreateBlueprintUpload(w http.ResponseWriter, r *http.Request) {
	if contextkeys.ProfileFrom(r.Context()) == nil {
		httputil.WriteUnauthorized(w, "no active profile for this principal")
		return
	}

	var req blueprints.UploadRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	upload, err := s.blueprints.CreateUpload(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	httputil.WriteCreated(w, upload)
}

func (s *Server) handleBlueprintDownload(w http.ResponseWriter, r *http.Request) {
	if contextkeys.ProfileFrom(r.Context()) == nil {
		httputil.WriteUnauthorized(w, "no active profile for this principal")
		return
	}

	key := httputil.ParseQueryString(r, "key", "")
	if key == "" {
		httputil.WriteBadRequest(w, "key query parameter is required")
		return
	}

	url, err := s.blueprints.DownloadURL(r.Context(), key)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	httputil.WriteSuccess(w, map[string]string{"url": url})
}
