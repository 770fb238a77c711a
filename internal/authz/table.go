package authz

// Grant pairs an approval capability with its numeric limit. The two are
// resolved together: a capability never appears without its limit.
type Grant struct {
	Capability string
	Limit      int64
}

// Zero reports whether the grant is absent.
func (g Grant) Zero() bool {
	return g.Capability == "" && g.Limit == 0
}

// Resolution is the atomic outcome of resolving a (role, seniority) pair.
type Resolution struct {
	Capabilities CapabilitySet
	Approval     Grant
}

// RoleTable is the immutable role-to-capability mapping. It is built once at
// startup and never mutated afterwards.
type RoleTable struct {
	version string
	rows    map[Role]map[Seniority]Resolution
}

// Version identifies the loaded table revision.
func (t *RoleTable) Version() string {
	return t.version
}

// Lookup returns the resolution for the pair. The second return value is
// false when the role or tier is outside the table.
func (t *RoleTable) Lookup(role Role, tier Seniority) (Resolution, bool) {
	tiers, ok := t.rows[role]
	if !ok {
		return Resolution{}, false
	}
	res, ok := tiers[tier]
	if !ok {
		return Resolution{}, false
	}
	return res, true
}

// DefaultTable builds the canonical role table.
func DefaultTable() *RoleTable {
	adminCaps := NewCapabilitySet(append(append(append([]string{},
		ProjectScopes()...), MasterDataScopes()...), CommercialScopes()...)...)

	managementCaps := adminCaps

	pmBase := []string{
		CapProjectsView, CapProjectsWrite,
		CapScopeView, CapScopeWrite,
		CapTasksView, CapTasksWrite,
		CapSuppliersView,
		CapPricingView,
	}

	supervisorCaps := NewCapabilitySet(
		CapProjectsView,
		CapScopeView,
		CapTasksView, CapTasksWrite,
	)

	// Office staff maintain the client register itself, so their client
	// visibility is unscoped rather than tied to a client membership.
	officeCaps := NewCapabilitySet(
		CapProjectsView,
		CapTasksView,
		CapClientsView, CapClientsWrite, CapClientsAll,
		CapSuppliersView, CapSuppliersWrite,
	)

	clientCaps := NewCapabilitySet(
		CapProjectsView,
		CapScopeView,
		CapTasksView,
	)

	rows := map[Role]map[Seniority]Resolution{
		RoleAdmin: uniformTiers(adminCaps, Grant{Capability: CapApprovalsGrant, Limit: 1_000_000}),
		RoleManagement: {
			TierStandard:  {Capabilities: managementCaps, Approval: Grant{Capability: CapApprovalsGrant, Limit: 100_000}},
			TierSenior:    {Capabilities: managementCaps, Approval: Grant{Capability: CapApprovalsGrant, Limit: 500_000}},
			TierExecutive: {Capabilities: managementCaps, Approval: Grant{Capability: CapApprovalsGrant, Limit: 1_000_000}},
		},
		RoleProjectManager: {
			TierStandard: {
				Capabilities: NewCapabilitySet(pmBase...),
				Approval:     Grant{Capability: CapApprovalsGrant, Limit: 10_000},
			},
			TierSenior: {
				Capabilities: NewCapabilitySet(append([]string{CapCostView}, pmBase...)...),
				Approval:     Grant{Capability: CapApprovalsGrant, Limit: 50_000},
			},
			TierExecutive: {
				Capabilities: NewCapabilitySet(append([]string{CapCostView, CapMarginView}, pmBase...)...),
				Approval:     Grant{Capability: CapApprovalsGrant, Limit: 250_000},
			},
		},
		RoleSiteSupervisor: uniformTiers(supervisorCaps, Grant{}),
		RoleOffice:         uniformTiers(officeCaps, Grant{}),
		RoleClient:         uniformTiers(clientCaps, Grant{}),
	}

	return &RoleTable{version: "2026-01", rows: rows}
}

func uniformTiers(caps CapabilitySet, approval Grant) map[Seniority]Resolution {
	res := Resolution{Capabilities: caps, Approval: approval}
	return map[Seniority]Resolution{
		TierStandard:  res,
		TierSenior:    res,
		TierExecutive: res,
	}
}
