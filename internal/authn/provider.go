package authn

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrInvalidCredential indicates the provider rejected the credential.
	ErrInvalidCredential = errors.New("authn: invalid credential")
	// ErrExpiredCredential indicates the credential is past its lifetime.
	ErrExpiredCredential = errors.New("authn: credential expired")
)

// Identity is the provider's verified view of a credential.
type Identity struct {
	PrincipalID uuid.UUID
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

// IdentityProvider verifies an opaque bearer credential. The kernel does not
// issue, refresh or store credentials; it only consumes this contract.
type IdentityProvider interface {
	Verify(ctx context.Context, credential string) (Identity, error)
}

// Directory reads role and membership data owned by an external store. The
// kernel caches what it reads and reacts to change notifications by
// invalidating.
type Directory interface {
	Profile(ctx context.Context, principalID uuid.UUID) (Profile, error)
	Memberships(ctx context.Context, principalID uuid.UUID) ([]uuid.UUID, error)
}

// Profile is the directory's record for a principal.
type Profile struct {
	Role      string
	Seniority string
	Active    bool
	ClientID  uuid.UUID
}
