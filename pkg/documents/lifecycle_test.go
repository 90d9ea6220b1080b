package documents

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blueline/blueline/pkg/profile"
)

func fixedLifecycle(t time.Time) *Lifecycle {
	ids := 0
	return &Lifecycle{
		now: func() time.Time { return t },
		newID: func() string {
			ids++
			return "doc-1"
		},
	}
}

func TestValidateCreate_ReportsAllMissingFieldsAtOnce(t *testing.T) {
	l := NewLifecycle()

	err := l.ValidateCreate(&CreateRequest{Description: "x"})
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	fields := make([]string, 0, len(verr.Violations))
	for _, v := range verr.Violations {
		fields = append(fields, v.Field)
	}
	assert.ElementsMatch(t,
		[]string{"title", "original_blueprint_url", "original_blueprint_filename"},
		fields,
		"every missing required field is enumerated, not just the first")
}

func TestValidateCreate_TwoMissingFields(t *testing.T) {
	l := NewLifecycle()

	err := l.ValidateCreate(&CreateRequest{OriginalBlueprintFilename: "plan.pdf"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Violations, 2)
	assert.Contains(t, err.Error(), "title")
	assert.Contains(t, err.Error(), "original_blueprint_url")
}

func TestValidateCreate_BlankTitleCountsAsMissing(t *testing.T) {
	l := NewLifecycle()

	err := l.ValidateCreate(&CreateRequest{
		Title:                     "   ",
		OriginalBlueprintURL:      "https://cdn.example.com/plan.pdf",
		OriginalBlueprintFilename: "plan.pdf",
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Violations, 1)
	assert.Equal(t, "title", verr.Violations[0].Field)
}

func TestValidateCreate_RejectsUnknownLocation(t *testing.T) {
	l := NewLifecycle()

	err := l.ValidateCreate(&CreateRequest{
		Title:                     "Plan",
		OriginalBlueprintURL:      "https://cdn.example.com/plan.pdf",
		OriginalBlueprintFilename: "plan.pdf",
		Location:                  "public",
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Violations, 1)
	assert.Equal(t, "location", verr.Violations[0].Field)
}

func TestValidateCreate_MarkupDataMustBeObjects(t *testing.T) {
	l := NewLifecycle()

	err := l.ValidateCreate(&CreateRequest{
		Title:                     "Plan",
		OriginalBlueprintURL:      "https://cdn.example.com/plan.pdf",
		OriginalBlueprintFilename: "plan.pdf",
		MarkupData:                []json.RawMessage{json.RawMessage(`"not-an-object"`)},
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Violations, 1)
	assert.Equal(t, "markup_data", verr.Violations[0].Field)
}

func TestNewDocument_StampsOwnershipFromProfile(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	l := fixedLifecycle(now)
	site := "site-1"
	p := &profile.Profile{ID: "w1", Role: profile.RoleWorker, SiteID: &site, Status: profile.StatusActive}

	doc := l.NewDocument(p, &CreateRequest{
		Title:                     "Plan",
		OriginalBlueprintURL:      "https://cdn.example.com/plan.pdf",
		OriginalBlueprintFilename: "plan.pdf",
		MarkupData: []json.RawMessage{
			json.RawMessage(`{"type":"arrow"}`),
			json.RawMessage(`{"type":"note"}`),
		},
	})

	assert.Equal(t, "doc-1", doc.ID)
	assert.Equal(t, "w1", doc.CreatedBy)
	require.NotNil(t, doc.SiteID)
	assert.Equal(t, "site-1", *doc.SiteID)
	assert.Equal(t, LocationPersonal, doc.Location, "location defaults to personal")
	assert.False(t, doc.IsDeleted)
	assert.Equal(t, 2, doc.MarkupCount)
	assert.Equal(t, now, doc.CreatedAt)
	assert.Equal(t, now, doc.UpdatedAt)
}

func TestNewDocument_NullSiteProfileYieldsNullSiteDocument(t *testing.T) {
	l := NewLifecycle()
	p := &profile.Profile{ID: "w1", Role: profile.RoleWorker, Status: profile.StatusActive}

	doc := l.NewDocument(p, &CreateRequest{
		Title:                     "Plan",
		OriginalBlueprintURL:      "https://cdn.example.com/plan.pdf",
		OriginalBlueprintFilename: "plan.pdf",
		Location:                  LocationShared,
	})

	assert.Nil(t, doc.SiteID)
	assert.Equal(t, LocationShared, doc.Location)
}

func TestBuildPatch_RecomputesMarkupCount(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	l := fixedLifecycle(now)

	patch, err := l.BuildPatch(&UpdateRequest{
		MarkupData: []json.RawMessage{
			json.RawMessage(`{"type":"arrow"}`),
			json.RawMessage(`{"type":"note"}`),
			json.RawMessage(`{"type":"stamp"}`),
		},
	})
	require.NoError(t, err)
	require.NotNil(t, patch.MarkupCount)
	assert.Equal(t, 3, *patch.MarkupCount)
	assert.Equal(t, now, patch.UpdatedAt)
}

func TestBuildPatch_NoMarkupDataLeavesCountAlone(t *testing.T) {
	l := NewLifecycle()
	title := "Renamed"

	patch, err := l.BuildPatch(&UpdateRequest{Title: &title})
	require.NoError(t, err)
	assert.Nil(t, patch.MarkupCount)
	assert.Nil(t, patch.MarkupData)
	require.NotNil(t, patch.Title)
	assert.Equal(t, "Renamed", *patch.Title)
}

func TestBuildPatch_RejectsEmptyTitle(t *testing.T) {
	l := NewLifecycle()
	empty := ""

	_, err := l.BuildPatch(&UpdateRequest{Title: &empty})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "title", verr.Violations[0].Field)
}

func TestUpdateRequest_ForbiddenFieldsDoNotSurviveDecoding(t *testing.T) {
	// The wire payload may carry created_by/site_id/location; the patch type
	// has no fields for them, so they vanish before reaching any store.
	payload := `{
		"title": "Renamed",
		"created_by": "attacker",
		"site_id": "site-evil",
		"location": "shared"
	}`

	var req UpdateRequest
	require.NoError(t, json.Unmarshal([]byte(payload), &req))

	l := NewLifecycle()
	patch, err := l.BuildPatch(&req)
	require.NoError(t, err)
	require.NotNil(t, patch.Title)
	assert.Equal(t, "Renamed", *patch.Title)
}
