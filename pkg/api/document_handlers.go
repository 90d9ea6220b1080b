package api

import (
	"context"
	"net/http"

	"github.com/blueline/blueline/pkg/contextkeys"
	"github.com/blueline/blueline/pkg/documents"
	"github.com/blueline/blueline/pkg/httputil"
	"github.com/blueline/blueline/pkg/profile"
)

// DocumentService is the slice of the document service the handlers consume.
type DocumentService interface {
	List(ctx context.Context, p *profile.Profile, q documents.ListQuery) (*documents.Page, error)
	Get(ctx context.Context, p *profile.Profile, id string) (*documents.MarkupDocument, error)
	Create(ctx context.Context, p *profile.Profile, req *documents.CreateRequest) (*documents.MarkupDocument, error)
	Update(ctx context.Context, p *profile.Profile, id string, req *documents.UpdateRequest) (*documents.MarkupDocument, error)
	SoftDelete(ctx context.Context, p *profile.Profile, id string) error
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	page, err := httputil.ParseQueryInt(r, "page", 0)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	limit, err := httputil.ParseQueryInt(r, "limit", 0)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	q := documents.ListQuery{
		Location: documents.Location(httputil.ParseQueryString(r, "location", "")),
		Search:   httputil.ParseQueryString(r, "search", ""),
		Page:     page,
		Limit:    limit,
		OrderBy:  httputil.ParseQueryString(r, "order_by", ""),
		Order:    httputil.ParseQueryString(r, "order", ""),
	}

	result, err := s.documents.List(r.Context(), contextkeys.ProfileFrom(r.Context()), q)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, result)
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	doc, err := s.documents.Get(r.Context(), contextkeys.ProfileFrom(r.Context()), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, doc)
}

func (s *Server) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	var req documents.CreateRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	doc, err := s.documents.Create(r.Context(), contextkeys.ProfileFrom(r.Context()), &req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	httputil.WriteCreated(w, doc)
}

func (s *Server) handleUpdateDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	var req documents.UpdateRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	doc, err := s.documents.Update(r.Context(), contextkeys.ProfileFrom(r.Context()), id, &req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, doc)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	if err := s.documents.SoftDelete(r.Context(), contextkeys.ProfileFrom(r.Context()), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

// handleDocumentAudit returns the audit trail for a document the caller can
// see. Visibility is decided by the same path as a read.
func (s *Server) handleDocumentAudit(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	if _, err := s.documents.Get(r.Context(), contextkeys.ProfileFrom(r.Context()), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	limit, err := httputil.ParseQueryInt(r, "limit", 0)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	events, err := s.auditTrail.ListByDocument(r.Context(), id, limit)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, events)
}
