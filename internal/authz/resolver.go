package authz

import "fmt"

// Resolver maps a (role, seniority) pair to its capability set. Resolution
// is a pure lookup over the immutable role table: unknown roles and tiers
// yield an empty set, never a partial one.
type Resolver struct {
	table *RoleTable
}

// NewResolver constructs a Resolver over the given table.
func NewResolver(table *RoleTable) *Resolver {
	return &Resolver{table: table}
}

// Resolve returns the resolution for the pair, failing closed on anything
// outside the table.
func (r *Resolver) Resolve(role Role, tier Seniority) Resolution {
	if r == nil || r.table == nil {
		return Resolution{Capabilities: CapabilitySet{}}
	}
	res, ok := r.table.Lookup(role, tier)
	if !ok {
		return Resolution{Capabilities: CapabilitySet{}}
	}
	return res
}

// TableVersion exposes the loaded table revision for diagnostics.
func (r *Resolver) TableVersion() string {
	if r == nil || r.table == nil {
		return ""
	}
	return r.table.Version()
}

// CacheKey derives the by-(role,seniority) cache key for a pair. The table
// version participates so a table reload never serves stale sets.
func (r *Resolver) CacheKey(role Role, tier Seniority) string {
	return fmt.Sprintf("caps:%s:%s:%s", r.TableVersion(), role, tier)
}
