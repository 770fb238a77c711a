package visibility_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/armature-app/armature/internal/authn"
	"github.com/armature-app/armature/internal/authz"
	"github.com/armature-app/armature/internal/visibility"
)

func principalWith(role authz.Role, tier authz.Seniority) *authn.Principal {
	res := authz.NewResolver(authz.DefaultTable()).Resolve(role, tier)
	return &authn.Principal{
		ID:           uuid.New(),
		Role:         role,
		Seniority:    tier,
		Active:       true,
		Capabilities: res.Capabilities,
		Approval:     res.Approval,
	}
}

func clientPrincipal() *authn.Principal {
	p := principalWith(authz.RoleClient, authz.TierStandard)
	p.ClientID = uuid.New()
	return p
}

func TestPredicateStates(t *testing.T) {
	admin := principalWith(authz.RoleAdmin, authz.TierStandard)
	pm := principalWith(authz.RoleProjectManager, authz.TierStandard)
	client := clientPrincipal()

	assert.Equal(t, visibility.KindFullAccess, visibility.For(admin, visibility.ClassProject).Kind)
	assert.Equal(t, visibility.KindOwnerOrMember, visibility.For(pm, visibility.ClassProject).Kind)
	assert.Equal(t, visibility.KindClientScoped, visibility.For(client, visibility.ClassProject).Kind)

	// Clients hold no supplier capability at all.
	assert.Equal(t, visibility.KindDenied, visibility.For(client, visibility.ClassSupplier).Kind)
	// Suppliers are unscoped: the view capability grants the registry.
	assert.Equal(t, visibility.KindFullAccess, visibility.For(pm, visibility.ClassSupplier).Kind)

	// Unknown class and nil principal fail closed.
	assert.Equal(t, visibility.KindDenied, visibility.For(admin, visibility.Class("invoice")).Kind)
	assert.Equal(t, visibility.KindDenied, visibility.For(nil, visibility.ClassProject).Kind)
}

func TestPredicateSQLShapes(t *testing.T) {
	admin := principalWith(authz.RoleAdmin, authz.TierStandard)
	sql, args := visibility.For(admin, visibility.ClassProject).SQL(1)
	assert.Equal(t, "TRUE", sql)
	assert.Empty(t, args)

	pm := principalWith(authz.RoleProjectManager, authz.TierStandard)
	sql, args = visibility.For(pm, visibility.ClassProject).SQL(1)
	assert.Equal(t,
		"(project_manager_id = $1 OR id IN (SELECT project_id FROM project_members WHERE member_id = $1))",
		sql)
	require.Len(t, args, 1)
	assert.Equal(t, pm.ID, args[0])

	client := clientPrincipal()
	sql, args = visibility.For(client, visibility.ClassProject).SQL(3)
	assert.Equal(t, "client_id = $3", sql)
	require.Len(t, args, 1)
	assert.Equal(t, client.ClientID, args[0])

	sql, args = visibility.For(client, visibility.ClassSupplier).SQL(1)
	assert.Equal(t, "FALSE", sql)
	assert.Empty(t, args)
}

func TestPredicateMatchesRows(t *testing.T) {
	pm := principalWith(authz.RoleProjectManager, authz.TierStandard)
	memberProject := uuid.New()
	pm.Memberships = []uuid.UUID{memberProject}
	pred := visibility.For(pm, visibility.ClassProject)

	owned := visibility.Record{"id": uuid.New(), "project_manager_id": pm.ID}
	member := visibility.Record{"id": memberProject, "project_manager_id": uuid.New()}
	foreign := visibility.Record{"id": uuid.New(), "project_manager_id": uuid.New()}

	assert.True(t, pred.Matches(owned))
	assert.True(t, pred.Matches(member))
	assert.False(t, pred.Matches(foreign))

	client := clientPrincipal()
	clientPred := visibility.For(client, visibility.ClassProject)
	assert.True(t, clientPred.Matches(visibility.Record{"client_id": client.ClientID}))
	assert.False(t, clientPred.Matches(visibility.Record{"client_id": uuid.New()}))
	// String-typed ids compare equal too.
	assert.True(t, clientPred.Matches(visibility.Record{"client_id": client.ClientID.String()}))
}

// A capability the role table grants must never be dead: whenever a role
// holds a class's view capability, the predicate for a principal of that role
// has to come out actionable, not denied.
func TestGrantedViewCapabilityNeverDenied(t *testing.T) {
	tiers := []authz.Seniority{authz.TierStandard, authz.TierSenior, authz.TierExecutive}
	for _, role := range authz.Roles() {
		for _, tier := range tiers {
			p := principalWith(role, tier)
			if role == authz.RoleClient {
				p.ClientID = uuid.New()
			}
			for _, class := range visibility.Classes() {
				desc, ok := visibility.Lookup(class)
				require.True(t, ok)
				if !p.Capabilities.Has(desc.ViewCapability) {
					continue
				}
				pred := visibility.For(p, class)
				assert.NotEqual(t, visibility.KindDenied, pred.Kind,
					"%s/%s holds %s but is denied on %s", role, tier, desc.ViewCapability, class)
			}
		}
	}
}

func TestPredicateDeterminism(t *testing.T) {
	shared := uuid.New()
	build := func() *authn.Principal {
		p := principalWith(authz.RoleProjectManager, authz.TierSenior)
		p.ID = shared
		p.Memberships = []uuid.UUID{shared}
		return p
	}
	a := visibility.For(build(), visibility.ClassScopeItem)
	b := visibility.For(build(), visibility.ClassScopeItem)

	sqlA, argsA := a.SQL(1)
	sqlB, argsB := b.SQL(1)
	assert.Equal(t, sqlA, sqlB)
	assert.Equal(t, argsA, argsB)

	record := visibility.Record{"project_id": shared}
	for i := 0; i < 5; i++ {
		assert.Equal(t, a.Matches(record), b.Matches(record))
	}
}
