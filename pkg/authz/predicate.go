package authz

import (
	"fmt"
	"strings"
)

// Field names a filterable column of the document table.
type Field string

const (
	FieldIsDeleted Field = "is_deleted"
	FieldLocation  Field = "location"
	FieldCreatedBy Field = "created_by"
	FieldSiteID    Field = "site_id"
)

// Predicate is a compiled filter condition. The store gateway must apply the
// tree it receives exactly: never more, never fewer conditions. Representing
// the filter as a value object keeps it testable without a database.
type Predicate interface {
	fmt.Stringer
	predicate()
}

// Eq matches rows where Field equals Value.
type Eq struct {
	Field Field
	Value interface{}
}

// IsNull matches rows where Field is NULL.
type IsNull struct {
	Field Field
}

// SiteInOrganization matches rows whose site belongs to the given
// organization. Organization membership is derived through the sites table,
// never stored on the document itself.
type SiteInOrganization struct {
	OrganizationID string
}

// And matches rows satisfying every term.
type And struct {
	Terms []Predicate
}

// Or matches rows satisfying at least one term.
type Or struct {
	Terms []Predicate
}

// Nothing matches no rows. Compiled when a clause degrades to empty results,
// e.g. a profile without a site asking for shared documents.
type Nothing struct{}

func (Eq) predicate()                 {}
func (IsNull) predicate()             {}
func (SiteInOrganization) predicate() {}
func (And) predicate()                {}
func (Or) predicate()                 {}
func (Nothing) predicate()            {}

func (p Eq) String() string {
	return fmt.Sprintf("%s = %v", p.Field, p.Value)
}

func (p IsNull) String() string {
	return fmt.Sprintf("%s IS NULL", p.Field)
}

func (p SiteInOrganization) String() string {
	return fmt.Sprintf("site.organization_id = %s", p.OrganizationID)
}

func (p And) String() string {
	return joinTerms(p.Terms, " AND ")
}

func (p Or) String() string {
	return joinTerms(p.Terms, " OR ")
}

func (Nothing) String() string {
	return "FALSE"
}

func joinTerms(terms []Predicate, sep string) string {
	parts := make([]string, 0, len(terms))
	for _, t := range terms {
		parts = append(parts, t.String())
	}
	return "(" + strings.Join(parts, sep) + ")"
}

func allOf(terms ...Predicate) Predicate {
	return And{Terms: terms}
}

func anyOf(terms ...Predicate) Predicate {
	return Or{Terms: terms}
}
