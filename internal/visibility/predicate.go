package visibility

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/armature-app/armature/internal/authn"
)

// Kind enumerates the access states a predicate can take.
type Kind int

const (
	KindDenied Kind = iota
	KindFullAccess
	KindOwnerOrMember
	KindClientScoped
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindFullAccess:
		return "full_access"
	case KindOwnerOrMember:
		return "owner_or_member"
	case KindClientScoped:
		return "client_scoped"
	default:
		return "denied"
	}
}

// Predicate is a boolean expression over a resource class's attributes,
// parameterized by a principal. It renders to a SQL fragment for the storage
// layer and evaluates in memory over fetched records; the two forms are
// attribute-for-attribute equivalent, which is what the policy auditor
// verifies against the declarative row policies.
type Predicate struct {
	Kind  Kind
	Class Class

	ownerColumn      string
	membershipColumn string
	clientColumn     string

	principalID uuid.UUID
	clientID    uuid.UUID
	memberships []uuid.UUID
}

// For derives the predicate for a principal and resource class. Evaluation
// order is fixed: full-access capability, then ownership/membership, then
// client linkage, then denied.
func For(p *authn.Principal, class Class) Predicate {
	desc, ok := Lookup(class)
	if p == nil || !ok {
		return Predicate{Kind: KindDenied, Class: class}
	}
	if desc.FullAccessCapability != "" && p.Capabilities.Has(desc.FullAccessCapability) {
		return Predicate{Kind: KindFullAccess, Class: class}
	}
	if !p.Capabilities.Has(desc.ViewCapability) {
		return Predicate{Kind: KindDenied, Class: class}
	}
	if p.ClientID == uuid.Nil && (desc.OwnerColumn != "" || desc.MembershipColumn != "") {
		return Predicate{
			Kind:             KindOwnerOrMember,
			Class:            class,
			ownerColumn:      desc.OwnerColumn,
			membershipColumn: desc.MembershipColumn,
			principalID:      p.ID,
			memberships:      p.Memberships,
		}
	}
	if p.ClientID != uuid.Nil && desc.ClientColumn != "" {
		return Predicate{
			Kind:         KindClientScoped,
			Class:        class,
			clientColumn: desc.ClientColumn,
			clientID:     p.ClientID,
		}
	}
	return Predicate{Kind: KindDenied, Class: class}
}

// SQL renders the predicate as a WHERE fragment with placeholders numbered
// from start. The membership arm is expressed as the same subselect shape the
// declarative row policies use, so the auditor can compare the two texts
// structurally.
func (p Predicate) SQL(start int) (string, []any) {
	switch p.Kind {
	case KindFullAccess:
		return "TRUE", nil
	case KindOwnerOrMember:
		var arms []string
		if p.ownerColumn != "" {
			arms = append(arms, fmt.Sprintf("%s = $%d", p.ownerColumn, start))
		}
		if p.membershipColumn != "" {
			arms = append(arms, fmt.Sprintf(
				"%s IN (SELECT project_id FROM project_members WHERE member_id = $%d)",
				p.membershipColumn, start))
		}
		if len(arms) == 0 {
			return "FALSE", nil
		}
		return "(" + strings.Join(arms, " OR ") + ")", []any{p.principalID}
	case KindClientScoped:
		return fmt.Sprintf("%s = $%d", p.clientColumn, start), []any{p.clientID}
	default:
		return "FALSE", nil
	}
}

// Matches evaluates the predicate in memory over a fetched record.
func (p Predicate) Matches(record Record) bool {
	switch p.Kind {
	case KindFullAccess:
		return true
	case KindOwnerOrMember:
		if p.ownerColumn != "" && idEquals(record[p.ownerColumn], p.principalID) {
			return true
		}
		if p.membershipColumn != "" {
			for _, m := range p.memberships {
				if idEquals(record[p.membershipColumn], m) {
					return true
				}
			}
		}
		return false
	case KindClientScoped:
		return idEquals(record[p.clientColumn], p.clientID)
	default:
		return false
	}
}

func idEquals(value any, id uuid.UUID) bool {
	switch v := value.(type) {
	case uuid.UUID:
		return v == id
	case *uuid.UUID:
		return v != nil && *v == id
	case [16]byte:
		return uuid.UUID(v) == id
	case string:
		parsed, err := uuid.Parse(v)
		return err == nil && parsed == id
	default:
		return false
	}
}
