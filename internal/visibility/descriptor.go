package visibility

import "github.com/armature-app/armature/internal/authz"

// Class identifies a resource class known to the kernel.
type Class string

const (
	ClassProject   Class = "project"
	ClassScopeItem Class = "scope_item"
	ClassTask      Class = "task"
	ClassClient    Class = "client"
	ClassSupplier  Class = "supplier"
)

// Descriptor is the static metadata for a resource class: which table backs
// it, which capability grants class-wide access, which columns establish
// ownership, membership and client linkage, and which attributes are
// restricted behind a guarding capability.
type Descriptor struct {
	Class Class
	Table string

	// Columns lists the selectable attributes in stable order.
	Columns []string

	// ViewCapability gates any access to the class; FullAccessCapability
	// short-circuits row scoping entirely.
	ViewCapability       string
	FullAccessCapability string

	// OwnerColumn compares against the principal id directly;
	// MembershipColumn compares against the principal's project memberships
	// via project_members; ClientColumn ties rows to the principal's client
	// record.
	OwnerColumn      string
	MembershipColumn string
	ClientColumn     string

	// Restricted maps attribute name to the capability guarding it.
	Restricted map[string]string

	// Filterable and Sortable are closed allow-lists for caller parameters.
	Filterable []string
	Sortable   []string

	// ExistenceSensitive classes must not reveal that a hidden record
	// exists: single-record misses read as not found, never forbidden.
	ExistenceSensitive bool
}

var registry = map[Class]Descriptor{
	ClassProject: {
		Class: ClassProject,
		Table: "projects",
		Columns: []string{
			"id", "code", "name", "status", "project_manager_id", "client_id",
			"start_date", "end_date", "contract_value", "budget_cost", "profit_margin",
			"created_at", "updated_at",
		},
		ViewCapability:       authz.CapProjectsView,
		FullAccessCapability: authz.CapProjectsAll,
		OwnerColumn:          "project_manager_id",
		MembershipColumn:     "id",
		ClientColumn:         "client_id",
		Restricted: map[string]string{
			"contract_value": authz.CapPricingView,
			"budget_cost":    authz.CapCostView,
			"profit_margin":  authz.CapMarginView,
		},
		Filterable:         []string{"status", "project_manager_id", "client_id"},
		Sortable:           []string{"code", "name", "status", "start_date", "created_at"},
		ExistenceSensitive: true,
	},
	ClassScopeItem: {
		Class: ClassScopeItem,
		Table: "scope_items",
		Columns: []string{
			"id", "project_id", "client_id", "code", "description", "unit",
			"quantity", "unit_price", "total_price", "unit_cost", "margin_pct",
			"status", "created_at", "updated_at",
		},
		ViewCapability:       authz.CapScopeView,
		FullAccessCapability: authz.CapScopeAll,
		MembershipColumn:     "project_id",
		ClientColumn:         "client_id",
		Restricted: map[string]string{
			"unit_price":  authz.CapPricingView,
			"total_price": authz.CapPricingView,
			"unit_cost":   authz.CapCostView,
			"margin_pct":  authz.CapMarginView,
		},
		Filterable:         []string{"project_id", "status", "unit"},
		Sortable:           []string{"code", "quantity", "status", "created_at"},
		ExistenceSensitive: true,
	},
	ClassTask: {
		Class: ClassTask,
		Table: "tasks",
		Columns: []string{
			"id", "project_id", "client_id", "title", "status", "priority",
			"assignee_id", "due_date", "estimated_cost", "created_at", "updated_at",
		},
		ViewCapability:       authz.CapTasksView,
		FullAccessCapability: authz.CapTasksAll,
		OwnerColumn:          "assignee_id",
		MembershipColumn:     "project_id",
		ClientColumn:         "client_id",
		Restricted: map[string]string{
			"estimated_cost": authz.CapCostView,
		},
		Filterable: []string{"project_id", "status", "priority", "assignee_id"},
		Sortable:   []string{"title", "status", "priority", "due_date", "created_at"},
	},
	ClassClient: {
		Class: ClassClient,
		Table: "clients",
		Columns: []string{
			"id", "code", "name", "email", "phone", "address",
			"credit_limit", "payment_terms", "created_at", "updated_at",
		},
		ViewCapability:       authz.CapClientsView,
		FullAccessCapability: authz.CapClientsAll,
		ClientColumn:         "id",
		Restricted: map[string]string{
			"credit_limit":  authz.CapPricingView,
			"payment_terms": authz.CapPricingView,
		},
		Filterable:         []string{"code", "name"},
		Sortable:           []string{"code", "name", "created_at"},
		ExistenceSensitive: true,
	},
	ClassSupplier: {
		Class: ClassSupplier,
		Table: "suppliers",
		Columns: []string{
			"id", "code", "name", "email", "phone", "address",
			"negotiated_rate", "created_at", "updated_at",
		},
		ViewCapability: authz.CapSuppliersView,
		// Suppliers carry no ownership or client linkage; holding the view
		// capability grants the whole registry.
		FullAccessCapability: authz.CapSuppliersView,
		Restricted: map[string]string{
			"negotiated_rate": authz.CapCostView,
		},
		Filterable: []string{"code", "name"},
		Sortable:   []string{"code", "name", "created_at"},
	},
}

// Classes lists every registered resource class.
func Classes() []Class {
	return []Class{ClassProject, ClassScopeItem, ClassTask, ClassClient, ClassSupplier}
}

// Lookup returns the descriptor for a class.
func Lookup(class Class) (Descriptor, bool) {
	desc, ok := registry[class]
	return desc, ok
}
