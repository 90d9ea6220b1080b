package postgres

import (
	"fmt"
	"strings"

	"github.com/blueline/blueline/pkg/authz"
)

// sqlBuilder accumulates positional arguments while a predicate tree is
// compiled, so nested terms keep their $n placeholders in order.
type sqlBuilder struct {
	args []interface{}
}

func (b *sqlBuilder) bind(v interface{}) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

// compile turns a predicate tree into a SQL condition over the
// markup_documents table. Every tree compiles to exactly one parenthesized
// expression; an unknown node is an error rather than a silently widened
// query.
func (b *sqlBuilder) compile(pred authz.Predicate) (string, error) {
	switch p := pred.(type) {
	case authz.Eq:
		col, err := columnFor(p.Field)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s = %s", col, b.bind(p.Value)), nil

	case authz.IsNull:
		col, err := columnFor(p.Field)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s IS NULL", col), nil

	case authz.SiteInOrganization:
		// Organization membership is derived through the sites table; the
		// document row never stores it.
		return fmt.Sprintf(
			"site_id IN (SELECT id FROM sites WHERE organization_id = %s)",
			b.bind(p.OrganizationID),
		), nil

	case authz.And:
		return b.compileJoin(p.Terms, " AND ")

	case authz.Or:
		return b.compileJoin(p.Terms, " OR ")

	case authz.Nothing:
		return "FALSE", nil
	}

	return "", fmt.Errorf("unknown predicate node %T", pred)
}

func (b *sqlBuilder) compileJoin(terms []authz.Predicate, sep string) (string, error) {
	if len(terms) == 0 {
		return "", fmt.Errorf("empty predicate junction")
	}
	parts := make([]string, 0, len(terms))
	for _, t := range terms {
		s, err := b.compile(t)
		if err != nil {
			return "", err
		}
		parts = append(parts, s)
	}
	return "(" + strings.Join(parts, sep) + ")", nil
}

func columnFor(f authz.Field) (string, error) {
	switch f {
	case authz.FieldIsDeleted:
		return "is_deleted", nil
	case authz.FieldLocation:
		return "location", nil
	case authz.FieldCreatedBy:
		return "created_by", nil
	case authz.FieldSiteID:
		return "site_id", nil
	}
	return "", fmt.Errorf("unknown predicate field %q", f)
}

// orderClause whitelists the sortable columns. Anything else falls back to
// the default ordering instead of reaching the query text.
func orderClause(orderBy, order string) string {
	col := "created_at"
	switch orderBy {
	case "updated_at":
		col = "updated_at"
	case "title":
		col = "title"
	case "created_at", "":
	}

	dir := "DESC"
	if strings.EqualFold(order, "asc") {
		dir = "ASC"
	}

	return col + " " + dir
}

// escapeLike escapes LIKE wildcards in user-supplied search text. Queries
// using the result must carry ESCAPE '\'.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
