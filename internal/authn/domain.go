package authn

import (
	"time"

	"github.com/google/uuid"

	"github.com/armature-app/armature/internal/authz"
)

// Principal is the authenticated identity making a request, resolved once at
// the boundary and passed explicitly through every subsequent call. It is
// immutable after construction and never persisted by the kernel.
type Principal struct {
	ID           uuid.UUID           `json:"id"`
	Role         authz.Role          `json:"role"`
	Seniority    authz.Seniority     `json:"seniority"`
	Active       bool                `json:"active"`
	ClientID     uuid.UUID           `json:"client_id"`
	Memberships  []uuid.UUID         `json:"memberships"`
	Capabilities authz.CapabilitySet `json:"capabilities"`
	Approval     authz.Grant         `json:"approval"`
	IssuedAt     time.Time           `json:"issued_at"`
	ExpiresAt    time.Time           `json:"expires_at"`
}

// Expired reports whether the resolved session is past its expiry.
func (p *Principal) Expired(now time.Time) bool {
	return !p.ExpiresAt.IsZero() && !now.Before(p.ExpiresAt)
}

// MemberOf reports whether the principal is a member of the given project.
func (p *Principal) MemberOf(projectID uuid.UUID) bool {
	for _, id := range p.Memberships {
		if id == projectID {
			return true
		}
	}
	return false
}
