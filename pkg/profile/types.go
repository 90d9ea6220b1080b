// Package profile resolves the stored attributes (role, organization, site)
// associated with an authenticated principal. Profiles are created at user
// onboarding and are read-only to this service.
package profile

import (
	"context"
	"time"
)

// Role is the elevation level of a profile within its organization.
type Role string

const (
	RoleWorker          Role = "worker"
	RoleSiteManager     Role = "site_manager"
	RoleCustomerManager Role = "customer_manager"
	RoleAdmin           Role = "admin"
	RoleSystemAdmin     Role = "system_admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleWorker, RoleSiteManager, RoleCustomerManager, RoleAdmin, RoleSystemAdmin:
		return true
	}
	return false
}

// Elevated reports whether the role can see documents beyond its own
// personal/site scope.
func (r Role) Elevated() bool {
	return r == RoleAdmin || r == RoleSystemAdmin
}

// Status represents profile account status.
type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
)

// Profile holds the scoping attributes consumed by the authorization engine.
// OrganizationID and SiteID are nullable: system_admin profiles have global
// scope, and any profile may lack a site assignment (degrading its shared
// visibility to nothing).
type Profile struct {
	ID             string    `json:"id"`
	Email          string    `json:"email,omitempty"`
	Role           Role      `json:"role"`
	OrganizationID *string   `json:"organization_id,omitempty"`
	SiteID         *string   `json:"site_id,omitempty"`
	Status         Status    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Active reports whether the profile may act at all.
func (p *Profile) Active() bool {
	return p != nil && p.Status == StatusActive
}

// Lookup resolves profiles by principal id. Implementations return (nil, nil)
// when no profile exists for the id.
type Lookup interface {
	GetProfile(ctx context.Context, id string) (*Profile, error)
}
