package authz

import (
	"github.com/blueline/blueline/pkg/profile"
)

// Operation is a requested document operation.
type Operation string

const (
	OpList       Operation = "list"
	OpRead       Operation = "read-one"
	OpCreate     Operation = "create"
	OpUpdate     Operation = "update"
	OpSoftDelete Operation = "soft-delete"
)

// Location values mirror the document sharing scopes. Kept as plain strings
// here so the engine has no dependency on the documents package.
const (
	LocationPersonal = "personal"
	LocationShared   = "shared"
)

// Target carries the access-relevant attributes of a single document.
// SiteOrganizationID is the organization the target's site belongs to,
// resolved by the caller when known; it is only consulted for org admins.
type Target struct {
	CreatedBy          string
	SiteID             *string
	Location           string
	IsDeleted          bool
	SiteOrganizationID *string
}

// Input is one authorization question.
type Input struct {
	Profile   *profile.Profile
	Operation Operation

	// Target is required for read-one/update/soft-delete.
	Target *Target

	// LocationFilter optionally narrows a list to "personal" or "shared".
	// Narrowing only: a filter can never widen what the profile may see.
	LocationFilter string
}

// Effect is the decision category.
type Effect int

const (
	// EffectAllow permits the operation. List operations additionally carry
	// the compiled predicate.
	EffectAllow Effect = iota

	// EffectInaccessible merges NotFound and Forbidden for single-target
	// operations: the caller must not learn whether the document exists.
	EffectInaccessible

	// EffectUnauthenticated means no usable profile backed the request.
	EffectUnauthenticated
)

// Outcome is the engine's decision.
type Outcome struct {
	Effect    Effect
	Predicate Predicate // set only for allowed list operations
	Rule      string    // name of the rule that decided, for logs and metrics
}

func (o Outcome) Allowed() bool {
	return o.Effect == EffectAllow
}

// rule is one row of the decision table. The first rule whose applies
// function returns true decides the outcome.
type rule struct {
	name    string
	applies func(in Input) bool
	decide  func(in Input) Outcome
}

// Engine evaluates the ordered decision table. It is stateless and safe for
// concurrent use.
type Engine struct {
	rules []rule
}

// NewEngine builds the engine with the fixed rule order: authentication
// gates, then system_admin, then org admin, then the base worker/manager
// scoping. New roles or scopes are added as rows, not edits to existing ones.
func NewEngine() *Engine {
	return &Engine{rules: []rule{
		{
			name:    "deny-inactive",
			applies: func(in Input) bool { return !in.Profile.Active() },
			decide: func(in Input) Outcome {
				return Outcome{Effect: EffectUnauthenticated, Rule: "deny-inactive"}
			},
		},
		{
			name:    "allow-create",
			applies: func(in Input) bool { return in.Operation == OpCreate },
			decide: func(in Input) Outcome {
				// Any active profile may create; ownership stamping is the
				// lifecycle manager's job.
				return Outcome{Effect: EffectAllow, Rule: "allow-create"}
			},
		},
		{
			name:    "system-admin",
			applies: func(in Input) bool { return in.Profile.Role == profile.RoleSystemAdmin },
			decide:  decideSystemAdmin,
		},
		{
			name: "org-admin",
			applies: func(in Input) bool {
				// An admin without an organization has nothing to be admin
				// of; such a profile falls through to base scoping.
				return in.Profile.Role == profile.RoleAdmin && in.Profile.OrganizationID != nil
			},
			decide: decideOrgAdmin,
		},
		{
			name:    "base-scope",
			applies: func(in Input) bool { return true },
			decide:  decideBase,
		},
	}}
}

// Decide runs the decision table for one operation.
func (e *Engine) Decide(in Input) Outcome {
	for _, r := range e.rules {
		if r.applies(in) {
			return r.decide(in)
		}
	}
	// Unreachable: the base rule always applies.
	return Outcome{Effect: EffectInaccessible, Rule: "fallthrough"}
}

func decideSystemAdmin(in Input) Outcome {
	if in.Operation == OpList {
		terms := []Predicate{Eq{Field: FieldIsDeleted, Value: false}}
		if t := locationTerm(in.LocationFilter); t != nil {
			terms = append(terms, t)
		}
		return Outcome{Effect: EffectAllow, Predicate: And{Terms: terms}, Rule: "system-admin"}
	}
	if in.Target == nil || in.Target.IsDeleted {
		return Outcome{Effect: EffectInaccessible, Rule: "system-admin"}
	}
	return Outcome{Effect: EffectAllow, Rule: "system-admin"}
}

func decideOrgAdmin(in Input) Outcome {
	org := *in.Profile.OrganizationID

	if in.Operation == OpList {
		terms := []Predicate{
			Eq{Field: FieldIsDeleted, Value: false},
			// Documents with no site have no derivable organization; they
			// stay visible to org admins per the legacy/unassigned edge rule.
			anyOf(SiteInOrganization{OrganizationID: org}, IsNull{Field: FieldSiteID}),
		}
		if t := locationTerm(in.LocationFilter); t != nil {
			terms = append(terms, t)
		}
		return Outcome{Effect: EffectAllow, Predicate: And{Terms: terms}, Rule: "org-admin"}
	}

	t := in.Target
	if t == nil || t.IsDeleted {
		return Outcome{Effect: EffectInaccessible, Rule: "org-admin"}
	}
	if t.SiteID == nil {
		return Outcome{Effect: EffectAllow, Rule: "org-admin"}
	}
	if t.SiteOrganizationID != nil && *t.SiteOrganizationID == org {
		return Outcome{Effect: EffectAllow, Rule: "org-admin"}
	}
	return Outcome{Effect: EffectInaccessible, Rule: "org-admin"}
}

func decideBase(in Input) Outcome {
	p := in.Profile

	if in.Operation == OpList {
		personal := allOf(
			Eq{Field: FieldLocation, Value: LocationPersonal},
			Eq{Field: FieldCreatedBy, Value: p.ID},
		)
		shared := sharedTerm(p)

		var scope Predicate
		switch in.LocationFilter {
		case LocationPersonal:
			scope = personal
		case LocationShared:
			scope = shared
		default:
			scope = anyOf(personal, shared)
		}

		return Outcome{
			Effect:    EffectAllow,
			Predicate: allOf(Eq{Field: FieldIsDeleted, Value: false}, scope),
			Rule:      "base-scope",
		}
	}

	t := in.Target
	if t == nil || t.IsDeleted {
		return Outcome{Effect: EffectInaccessible, Rule: "base-scope"}
	}

	switch t.Location {
	case LocationPersonal:
		if t.CreatedBy == p.ID {
			return Outcome{Effect: EffectAllow, Rule: "base-scope"}
		}
	case LocationShared:
		// A null site on either side matches nothing: no shared document has
		// a null site by construction, and a profile without a site has no
		// shared visibility.
		if t.SiteID != nil && p.SiteID != nil && *t.SiteID == *p.SiteID {
			return Outcome{Effect: EffectAllow, Rule: "base-scope"}
		}
	}
	return Outcome{Effect: EffectInaccessible, Rule: "base-scope"}
}

// sharedTerm builds the shared-site clause for a base profile. A profile
// with no site degrades to a match-nothing clause rather than an error.
func sharedTerm(p *profile.Profile) Predicate {
	if p.SiteID == nil {
		return Nothing{}
	}
	return allOf(
		Eq{Field: FieldLocation, Value: LocationShared},
		Eq{Field: FieldSiteID, Value: *p.SiteID},
	)
}

// locationTerm turns a client location filter into an extra conjunct for
// elevated roles, or nil when no filter was requested.
func locationTerm(filter string) Predicate {
	switch filter {
	case LocationPersonal, LocationShared:
		return Eq{Field: FieldLocation, Value: filter}
	}
	return nil
}
