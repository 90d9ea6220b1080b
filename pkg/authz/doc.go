// Package authz decides, for every document operation, whether the calling
// profile may proceed. It is pure: it never touches storage, holds no state,
// and its only outputs are Allow, Inaccessible, Unauthenticated, or, for
// list operations, a compiled predicate tree the store gateway must apply
// verbatim.
//
// Rules are evaluated as an ordered table; the first matching rule wins.
// Access denial on a single document is deliberately indistinguishable from
// the document not existing, so callers cannot probe for resources across
// tenants.
package authz
