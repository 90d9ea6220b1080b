package documents

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/blueline/blueline/pkg/profile"
)

// Lifecycle validates and stamps documents at each mutating operation. It
// enforces the field-level invariants independent of who is authorized: the
// engine decides "may", the lifecycle decides "how".
type Lifecycle struct {
	now   func() time.Time
	newID func() string
}

// NewLifecycle creates a Lifecycle using wall-clock time and UUID ids.
func NewLifecycle() *Lifecycle {
	return &Lifecycle{
		now:   func() time.Time { return time.Now().UTC() },
		newID: func() string { return uuid.NewString() },
	}
}

// ValidateCreate checks a creation payload and reports every violation in a
// single error.
func (l *Lifecycle) ValidateCreate(req *CreateRequest) error {
	verr := &ValidationError{}

	if isBlank(req.Title) {
		verr.add("title", "is required")
	}
	if isBlank(req.OriginalBlueprintURL) {
		verr.add("original_blueprint_url", "is required")
	}
	if isBlank(req.OriginalBlueprintFilename) {
		verr.add("original_blueprint_filename", "is required")
	}
	if req.Location != "" && !req.Location.Valid() {
		verr.add("location", "must be personal or shared")
	}
	validateMarkupData(verr, req.MarkupData)

	return verr.orNil()
}

// NewDocument builds the persisted form of a creation payload: server id,
// ownership and site stamped from the profile, timestamps, markup count.
func (l *Lifecycle) NewDocument(p *profile.Profile, req *CreateRequest) *MarkupDocument {
	now := l.now()

	loc := req.Location
	if loc == "" {
		loc = LocationPersonal
	}

	return &MarkupDocument{
		ID:                        l.newID(),
		Title:                     req.Title,
		Description:               req.Description,
		OriginalBlueprintURL:      req.OriginalBlueprintURL,
		OriginalBlueprintFilename: req.OriginalBlueprintFilename,
		MarkupData:                req.MarkupData,
		Location:                  loc,
		CreatedBy:                 p.ID,
		SiteID:                    p.SiteID,
		IsDeleted:                 false,
		PreviewImageURL:           req.PreviewImageURL,
		MarkupCount:               len(req.MarkupData),
		CreatedAt:                 now,
		UpdatedAt:                 now,
	}
}

// BuildPatch validates an update payload and projects it onto the fields the
// store may touch. The markup count is recomputed whenever markup data is
// part of the patch.
func (l *Lifecycle) BuildPatch(req *UpdateRequest) (StorePatch, error) {
	verr := &ValidationError{}

	if req.Title != nil && isBlank(*req.Title) {
		verr.add("title", "must not be empty")
	}
	validateMarkupData(verr, req.MarkupData)

	if err := verr.orNil(); err != nil {
		return StorePatch{}, err
	}

	patch := StorePatch{
		Title:           req.Title,
		Description:     req.Description,
		MarkupData:      req.MarkupData,
		PreviewImageURL: req.PreviewImageURL,
		UpdatedAt:       l.now(),
	}
	if req.MarkupData != nil {
		count := len(req.MarkupData)
		patch.MarkupCount = &count
	}

	return patch, nil
}

// DeletedAt returns the timestamp stamped on soft deletion.
func (l *Lifecycle) DeletedAt() time.Time {
	return l.now()
}

// validateMarkupData checks structural well-formedness only: markup data is
// a sequence of JSON objects. Annotation semantics belong to the editor.
func validateMarkupData(verr *ValidationError, data []json.RawMessage) {
	for _, raw := range data {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			verr.add("markup_data", "must be a sequence of JSON objects")
			return
		}
	}
}

func isBlank(s string) bool {
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return false
		}
	}
	return true
}
