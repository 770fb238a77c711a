package authz

// Project permissions declared for the kernel.
const (
	CapProjectsView  = "projects.view"
	CapProjectsWrite = "projects.write"
	CapProjectsAll   = "projects.all"

	// Scope item permissions
	CapScopeView  = "scope.view"
	CapScopeWrite = "scope.write"
	CapScopeAll   = "scope.all"

	// Task permissions
	CapTasksView  = "tasks.view"
	CapTasksWrite = "tasks.write"
	CapTasksAll   = "tasks.all"

	// Client permissions
	CapClientsView  = "clients.view"
	CapClientsWrite = "clients.write"
	CapClientsAll   = "clients.all"

	// Supplier permissions
	CapSuppliersView  = "suppliers.view"
	CapSuppliersWrite = "suppliers.write"
	CapSuppliersAll   = "suppliers.all"
)

// Restricted-attribute permissions. These guard pricing and commercial
// fields; the redaction engine removes a guarded attribute when the
// capability is absent.
const (
	CapPricingView = "pricing.view"
	CapCostView    = "cost.view"
	CapMarginView  = "margin.view"
)

// Approval permission, always paired with a numeric limit by the resolver.
const CapApprovalsGrant = "approvals.grant"

// ProjectScopes lists all permissions related to the projects module.
func ProjectScopes() []string {
	return []string{
		CapProjectsView,
		CapProjectsWrite,
		CapProjectsAll,
		CapScopeView,
		CapScopeWrite,
		CapScopeAll,
		CapTasksView,
		CapTasksWrite,
		CapTasksAll,
	}
}

// MasterDataScopes lists all permissions related to clients and suppliers.
func MasterDataScopes() []string {
	return []string{
		CapClientsView,
		CapClientsWrite,
		CapClientsAll,
		CapSuppliersView,
		CapSuppliersWrite,
		CapSuppliersAll,
	}
}

// CommercialScopes lists all permissions guarding restricted attributes.
func CommercialScopes() []string {
	return []string{
		CapPricingView,
		CapCostView,
		CapMarginView,
	}
}
