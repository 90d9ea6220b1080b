package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPredicateString(t *testing.T) {
	p := allOf(
		Eq{Field: FieldIsDeleted, Value: false},
		anyOf(
			allOf(
				Eq{Field: FieldLocation, Value: LocationPersonal},
				Eq{Field: FieldCreatedBy, Value: "u1"},
			),
			Nothing{},
		),
	)

	assert.Equal(t,
		"(is_deleted = false AND ((location = personal AND created_by = u1) OR FALSE))",
		p.String())
}

func TestPredicateStringNullAndOrgTerms(t *testing.T) {
	assert.Equal(t, "site_id IS NULL", IsNull{Field: FieldSiteID}.String())
	assert.Equal(t, "site.organization_id = org-1",
		SiteInOrganization{OrganizationID: "org-1"}.String())
}
