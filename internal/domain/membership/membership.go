// Package membership relates a user to a tenant under a single role.
package membership

import "time"

// Role is the acting member's permission level within a tenant.
type Role string

const (
	PlatformAdmin Role = "PLATFORM_ADMIN"
	TenantAdmin   Role = "TENANT_ADMIN"
	Installer     Role = "INSTALLER"
	SupportAgent  Role = "SUPPORT_AGENT"
	EndUser       Role = "END_USER"
)

// AdminRoles and similar sets are convenience groupings for role gates
// that appear repeatedly across the HTTP surface.
var (
	AdminRoles         = []Role{PlatformAdmin, TenantAdmin}
	ProvisioningRoles  = []Role{PlatformAdmin, TenantAdmin, Installer}
	CommandIssueRoles  = []Role{PlatformAdmin, TenantAdmin, Installer, SupportAgent, EndUser}
)

// Membership is the ternary (User, Tenant, Role) relation. At most one
// membership may exist per (UserID, TenantID) pair.
type Membership struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	TenantID  string    `json:"tenantId"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// In reports whether role is a member of the given set.
func (r Role) In(set []Role) bool {
	for _, s := range set {
		if s == r {
			return true
		}
	}
	return false
}
