package authz

import "strings"

// Role is the closed enumeration of platform roles. Any value outside this
// set resolves to an empty capability set.
type Role string

const (
	RoleAdmin          Role = "admin"
	RoleManagement     Role = "management"
	RoleProjectManager Role = "project_manager"
	RoleSiteSupervisor Role = "site_supervisor"
	RoleOffice         Role = "office"
	RoleClient         Role = "client"
)

// Seniority refines a role with an approval tier.
type Seniority string

const (
	TierStandard  Seniority = "standard"
	TierSenior    Seniority = "senior"
	TierExecutive Seniority = "executive"
)

// Roles lists every valid role.
func Roles() []Role {
	return []Role{
		RoleAdmin,
		RoleManagement,
		RoleProjectManager,
		RoleSiteSupervisor,
		RoleOffice,
		RoleClient,
	}
}

// ParseRole normalizes raw input into a Role. The second return value is
// false for anything outside the closed set.
func ParseRole(raw string) (Role, bool) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	switch role {
	case RoleAdmin, RoleManagement, RoleProjectManager, RoleSiteSupervisor, RoleOffice, RoleClient:
		return role, true
	}
	return "", false
}

// ParseSeniority normalizes raw input into a Seniority. Empty input maps to
// TierStandard; unknown values are rejected.
func ParseSeniority(raw string) (Seniority, bool) {
	tier := Seniority(strings.ToLower(strings.TrimSpace(raw)))
	if tier == "" {
		return TierStandard, true
	}
	switch tier {
	case TierStandard, TierSenior, TierExecutive:
		return tier, true
	}
	return "", false
}
