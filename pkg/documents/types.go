// Package documents owns the markup document model, its lifecycle
// (create → update → soft delete), and the service that sequences profile
// scoping, authorization, and storage for every operation.
package documents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/blueline/blueline/pkg/authz"
)

// Location is the sharing scope chosen at creation time. Immutable for the
// life of the document; no scope-migration operation exists.
type Location string

const (
	LocationPersonal Location = "personal"
	LocationShared   Location = "shared"
)

// Valid reports whether l is a known location.
func (l Location) Valid() bool {
	return l == LocationPersonal || l == LocationShared
}

// MarkupDocument is an annotated blueprint shared within the org/site/user
// hierarchy. MarkupData is opaque to this service beyond structural
// well-formedness; the canvas editor owns its semantics.
type MarkupDocument struct {
	ID                        string            `json:"id"`
	Title                     string            `json:"title"`
	Description               string            `json:"description,omitempty"`
	OriginalBlueprintURL      string            `json:"original_blueprint_url"`
	OriginalBlueprintFilename string            `json:"original_blueprint_filename"`
	MarkupData                []json.RawMessage `json:"markup_data"`
	Location                  Location          `json:"location"`
	CreatedBy                 string            `json:"created_by"`
	SiteID                    *string           `json:"site_id,omitempty"`
	IsDeleted                 bool              `json:"is_deleted"`
	PreviewImageURL           string            `json:"preview_image_url,omitempty"`
	MarkupCount               int               `json:"markup_count"`
	CreatedAt                 time.Time         `json:"created_at"`
	UpdatedAt                 time.Time         `json:"updated_at"`
}

// CreateRequest is the client payload for document creation. Ownership and
// site fields are absent on purpose: they are stamped from the authenticated
// profile and can never be client-supplied.
type CreateRequest struct {
	Title                     string            `json:"title"`
	Description               string            `json:"description"`
	OriginalBlueprintURL      string            `json:"original_blueprint_url"`
	OriginalBlueprintFilename string            `json:"original_blueprint_filename"`
	MarkupData                []json.RawMessage `json:"markup_data"`
	Location                  Location          `json:"location"`
	PreviewImageURL           string            `json:"preview_image_url"`
}

// UpdateRequest is the client patch for document updates. created_by,
// site_id, and location have no fields here, so a patch carrying them is
// silently dropped during decoding rather than rejected.
type UpdateRequest struct {
	Title           *string           `json:"title"`
	Description     *string           `json:"description"`
	MarkupData      []json.RawMessage `json:"markup_data"`
	PreviewImageURL *string           `json:"preview_image_url"`
}

// Empty reports whether the patch changes nothing.
func (r *UpdateRequest) Empty() bool {
	return r.Title == nil && r.Description == nil && r.MarkupData == nil && r.PreviewImageURL == nil
}

// ListQuery is a collection read request.
type ListQuery struct {
	Location Location // optional narrowing filter
	Search   string   // case-insensitive substring match on title
	Page     int      // 1-based, default 1
	Limit    int      // default 20, max 100
	OrderBy  string   // created_at | updated_at | title, default created_at
	Order    string   // asc | desc, default desc
}

// Page is a list result with its total count for pagination.
type Page struct {
	Items      []*MarkupDocument `json:"items"`
	TotalCount int               `json:"total_count"`
	Page       int               `json:"page"`
	Limit      int               `json:"limit"`
}

// StorePatch is the storage-level projection of an update: only fields the
// lifecycle manager allows through, plus the recomputed denormalizations.
type StorePatch struct {
	Title           *string
	Description     *string
	MarkupData      []json.RawMessage
	MarkupCount     *int
	PreviewImageURL *string
	UpdatedAt       time.Time
}

// ListOptions carries the query mechanics the gateway applies alongside the
// authorization predicate.
type ListOptions struct {
	Search  string
	OrderBy string
	Order   string
	Offset  int
	Limit   int
}

// Store is the document store gateway contract. Its single obligation is to
// apply exactly the predicate it is given: never more, never fewer rows.
// GetByID returns (nil, nil) for an absent id and does not filter on
// is_deleted: visibility of deleted rows is the engine's decision, not the
// gateway's.
type Store interface {
	List(ctx context.Context, pred authz.Predicate, opts ListOptions) ([]*MarkupDocument, int, error)
	GetByID(ctx context.Context, id string) (*MarkupDocument, error)
	Insert(ctx context.Context, doc *MarkupDocument) error
	UpdateByID(ctx context.Context, id string, patch StorePatch) (*MarkupDocument, error)
	SoftDeleteByID(ctx context.Context, id string, at time.Time) (*MarkupDocument, error)
	GetSiteOrganization(ctx context.Context, siteID string) (*string, error)
}

// ErrNotFound is returned when a document id does not resolve to a visible,
// non-deleted document for the calling profile; whether it is truly absent
// or access-denied is indistinguishable by design.
var ErrNotFound = errors.New("document not found")

// ErrUnauthenticated is returned when no active profile backs the request.
var ErrUnauthenticated = errors.New("unauthenticated")

// FieldViolation is one structural problem with a payload.
type FieldViolation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError reports every violation in a payload at once, so clients
// never fix forms one round-trip at a time.
type ValidationError struct {
	Violations []FieldViolation
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, fmt.Sprintf("%s: %s", v.Field, v.Message))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, message string) {
	e.Violations = append(e.Violations, FieldViolation{Field: field, Message: message})
}

func (e *ValidationError) orNil() error {
	if len(e.Violations) == 0 {
		return nil
	}
	return e
}
