package documents

import (
	"context"
	"fmt"

	"github.com/blueline/blueline/pkg/authz"
	"github.com/blueline/blueline/pkg/profile"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// Auditor records document mutations and denied accesses. Implementations
// must not block the request path.
type Auditor interface {
	Record(ctx context.Context, action string, actorID string, documentID string, status string)
}

// NopAuditor discards audit events.
type NopAuditor struct{}

func (NopAuditor) Record(context.Context, string, string, string, string) {}

// Service sequences every document operation: profile in, authorization
// decision, lifecycle stamping, store round-trip. It carries no per-request
// state; the calling profile is an explicit parameter on every method.
type Service struct {
	engine    *authz.Engine
	lifecycle *Lifecycle
	store     Store
	audit     Auditor
}

// NewService creates a document service. The auditor may be nil.
func NewService(engine *authz.Engine, lifecycle *Lifecycle, store Store, auditor Auditor) *Service {
	if auditor == nil {
		auditor = NopAuditor{}
	}
	return &Service{
		engine:    engine,
		lifecycle: lifecycle,
		store:     store,
		audit:     auditor,
	}
}

// List returns the page of documents visible to the profile under the
// compiled predicate, narrowed by any requested filters.
func (s *Service) List(ctx context.Context, p *profile.Profile, q ListQuery) (*Page, error) {
	if q.Location != "" && !q.Location.Valid() {
		verr := &ValidationError{}
		verr.add("location", "must be personal or shared")
		return nil, verr
	}

	out := s.engine.Decide(authz.Input{
		Profile:        p,
		Operation:      authz.OpList,
		LocationFilter: string(q.Location),
	})
	if out.Effect == authz.EffectUnauthenticated {
		return nil, ErrUnauthenticated
	}

	page, limit := normalizePagination(q.Page, q.Limit)
	opts := ListOptions{
		Search:  q.Search,
		OrderBy: q.OrderBy,
		Order:   q.Order,
		Offset:  (page - 1) * limit,
		Limit:   limit,
	}

	items, total, err := s.store.List(ctx, out.Predicate, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	if items == nil {
		items = []*MarkupDocument{}
	}
	return &Page{Items: items, TotalCount: total, Page: page, Limit: limit}, nil
}

// Get returns a single document if it is visible to the profile; absent and
// forbidden are the same ErrNotFound.
func (s *Service) Get(ctx context.Context, p *profile.Profile, id string) (*MarkupDocument, error) {
	doc, out, err := s.resolveTarget(ctx, p, authz.OpRead, id)
	if err != nil {
		return nil, err
	}
	if !out.Allowed() {
		return nil, ErrNotFound
	}
	return doc, nil
}

// Create validates, stamps, and persists a new document. Authorization can
// only fail for inactive profiles: any active profile may create.
func (s *Service) Create(ctx context.Context, p *profile.Profile, req *CreateRequest) (*MarkupDocument, error) {
	out := s.engine.Decide(authz.Input{Profile: p, Operation: authz.OpCreate})
	if out.Effect == authz.EffectUnauthenticated {
		return nil, ErrUnauthenticated
	}

	// Validation resolves before anything touches the store.
	if err := s.lifecycle.ValidateCreate(req); err != nil {
		return nil, err
	}

	doc := s.lifecycle.NewDocument(p, req)
	if err := s.store.Insert(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to insert document: %w", err)
	}

	s.audit.Record(ctx, "document.create", p.ID, doc.ID, "success")
	return doc, nil
}

// Update applies a patch to a visible document. Ownership, site, and
// location are untouchable: the patch type cannot carry them.
func (s *Service) Update(ctx context.Context, p *profile.Profile, id string, req *UpdateRequest) (*MarkupDocument, error) {
	doc, out, err := s.resolveTarget(ctx, p, authz.OpUpdate, id)
	if err != nil {
		return nil, err
	}
	if !out.Allowed() {
		s.audit.Record(ctx, "document.update", p.ID, id, "denied")
		return nil, ErrNotFound
	}

	patch, err := s.lifecycle.BuildPatch(req)
	if err != nil {
		return nil, err
	}
	if req.Empty() {
		return doc, nil
	}

	updated, err := s.store.UpdateByID(ctx, id, patch)
	if err != nil {
		return nil, fmt.Errorf("failed to update document: %w", err)
	}
	if updated == nil {
		// Concurrently deleted between the visibility check and the write.
		return nil, ErrNotFound
	}

	s.audit.Record(ctx, "document.update", p.ID, id, "success")
	return updated, nil
}

// SoftDelete marks a visible document deleted. Deleting an already-deleted
// or invisible document is ErrNotFound, exactly like a missing id.
func (s *Service) SoftDelete(ctx context.Context, p *profile.Profile, id string) error {
	_, out, err := s.resolveTarget(ctx, p, authz.OpSoftDelete, id)
	if err != nil {
		return err
	}
	if !out.Allowed() {
		s.audit.Record(ctx, "document.delete", p.ID, id, "denied")
		return ErrNotFound
	}

	deleted, err := s.store.SoftDeleteByID(ctx, id, s.lifecycle.DeletedAt())
	if err != nil {
		return fmt.Errorf("failed to soft-delete document: %w", err)
	}
	if deleted == nil {
		return ErrNotFound
	}

	s.audit.Record(ctx, "document.delete", p.ID, id, "success")
	return nil
}

// resolveTarget fetches the target document and asks the engine about it.
// The site's organization is only resolved when an org admin needs it, to
// keep the common path at a single store round-trip.
func (s *Service) resolveTarget(ctx context.Context, p *profile.Profile, op authz.Operation, id string) (*MarkupDocument, authz.Outcome, error) {
	if !p.Active() {
		return nil, authz.Outcome{Effect: authz.EffectUnauthenticated}, ErrUnauthenticated
	}

	doc, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, authz.Outcome{}, fmt.Errorf("failed to load document: %w", err)
	}
	if doc == nil {
		return nil, authz.Outcome{Effect: authz.EffectInaccessible}, ErrNotFound
	}

	target := &authz.Target{
		CreatedBy: doc.CreatedBy,
		SiteID:    doc.SiteID,
		Location:  string(doc.Location),
		IsDeleted: doc.IsDeleted,
	}

	if p.Role == profile.RoleAdmin && p.OrganizationID != nil && doc.SiteID != nil {
		org, err := s.store.GetSiteOrganization(ctx, *doc.SiteID)
		if err != nil {
			return nil, authz.Outcome{}, fmt.Errorf("failed to resolve site organization: %w", err)
		}
		target.SiteOrganizationID = org
	}

	out := s.engine.Decide(authz.Input{Profile: p, Operation: op, Target: target})
	return doc, out, nil
}

func normalizePagination(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return page, limit
}
