package authn_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/armature-app/armature/internal/authn"
	"github.com/armature-app/armature/internal/authz"
	"github.com/armature-app/armature/internal/shared"
)

type stubProvider struct {
	calls    atomic.Int64
	identity authn.Identity
	err      error
	failures int64
}

func (s *stubProvider) Verify(ctx context.Context, credential string) (authn.Identity, error) {
	n := s.calls.Add(1)
	if s.err != nil && (s.failures == 0 || n <= s.failures) {
		return authn.Identity{}, s.err
	}
	return s.identity, nil
}

type stubDirectory struct {
	profile     authn.Profile
	memberships []uuid.UUID
}

func (s *stubDirectory) Profile(ctx context.Context, id uuid.UUID) (authn.Profile, error) {
	return s.profile, nil
}

func (s *stubDirectory) Memberships(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	return s.memberships, nil
}

func newValidator(t *testing.T, provider authn.IdentityProvider, directory authn.Directory) (*authn.Validator, *authn.Cache) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := authn.NewCache(client, time.Hour)
	validator := authn.NewValidator(authn.ValidatorConfig{
		Provider:        provider,
		Directory:       directory,
		Resolver:        authz.NewResolver(authz.DefaultTable()),
		Cache:           cache,
		ProviderTimeout: time.Second,
		RetryBackoff:    time.Millisecond,
	})
	return validator, cache
}

func activeIdentity() authn.Identity {
	return authn.Identity{
		PrincipalID: uuid.New(),
		IssuedAt:    time.Now(),
		ExpiresAt:   time.Now().Add(time.Hour),
	}
}

func TestValidateRejectsMalformedWithoutProviderCall(t *testing.T) {
	provider := &stubProvider{identity: activeIdentity()}
	validator, _ := newValidator(t, provider, &stubDirectory{profile: authn.Profile{Role: "admin", Active: true}})

	for _, credential := range []string{"", "   ", "short", "has space in it", "tab\tseparated"} {
		if _, err := validator.Validate(context.Background(), credential); !errors.Is(err, shared.ErrUnauthenticated) {
			t.Fatalf("credential %q: expected ErrUnauthenticated, got %v", credential, err)
		}
	}
	if got := provider.calls.Load(); got != 0 {
		t.Fatalf("provider called %d times for malformed input", got)
	}
}

func TestValidateCacheHitShortCircuitsProvider(t *testing.T) {
	provider := &stubProvider{identity: activeIdentity()}
	directory := &stubDirectory{profile: authn.Profile{Role: "project_manager", Seniority: "senior", Active: true}}
	validator, _ := newValidator(t, provider, directory)

	first, err := validator.Validate(context.Background(), "credential-abc123")
	if err != nil {
		t.Fatalf("first validate: %v", err)
	}
	second, err := validator.Validate(context.Background(), "credential-abc123")
	if err != nil {
		t.Fatalf("second validate: %v", err)
	}
	if provider.calls.Load() != 1 {
		t.Fatalf("expected one provider call, got %d", provider.calls.Load())
	}
	if first.ID != second.ID || first.Role != second.Role {
		t.Fatalf("cached principal diverged from resolved principal")
	}
	if !second.Capabilities.Has(authz.CapCostView) {
		t.Fatalf("senior PM should hold cost.view")
	}
}

func TestValidateRetriesProviderOnceThenSurfacesRetryable(t *testing.T) {
	provider := &stubProvider{err: shared.ErrProviderUnavailable}
	validator, _ := newValidator(t, provider, &stubDirectory{profile: authn.Profile{Role: "admin", Active: true}})

	_, err := validator.Validate(context.Background(), "credential-abc123")
	if !errors.Is(err, shared.ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
	if got := provider.calls.Load(); got != 2 {
		t.Fatalf("expected exactly one retry (2 calls), got %d", got)
	}
}

func TestValidateRecoversOnRetry(t *testing.T) {
	provider := &stubProvider{identity: activeIdentity(), err: shared.ErrProviderUnavailable, failures: 1}
	validator, _ := newValidator(t, provider, &stubDirectory{profile: authn.Profile{Role: "office", Active: true}})

	principal, err := validator.Validate(context.Background(), "credential-abc123")
	if err != nil {
		t.Fatalf("validate after transient failure: %v", err)
	}
	if principal.Role != authz.RoleOffice {
		t.Fatalf("expected office role, got %s", principal.Role)
	}
	if provider.calls.Load() != 2 {
		t.Fatalf("expected 2 provider calls, got %d", provider.calls.Load())
	}
}

func TestValidateInvalidCredentialNotRetried(t *testing.T) {
	provider := &stubProvider{err: authn.ErrInvalidCredential}
	validator, _ := newValidator(t, provider, &stubDirectory{})

	_, err := validator.Validate(context.Background(), "credential-abc123")
	if !errors.Is(err, shared.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	if provider.calls.Load() != 1 {
		t.Fatalf("invalid credential should not be retried, got %d calls", provider.calls.Load())
	}
}

func TestValidateInactivePrincipalUnauthenticated(t *testing.T) {
	provider := &stubProvider{identity: activeIdentity()}
	validator, _ := newValidator(t, provider, &stubDirectory{profile: authn.Profile{Role: "admin", Active: false}})

	if _, err := validator.Validate(context.Background(), "credential-abc123"); !errors.Is(err, shared.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated for inactive principal, got %v", err)
	}
}

func TestValidateUnknownRoleFailsClosed(t *testing.T) {
	provider := &stubProvider{identity: activeIdentity()}
	validator, _ := newValidator(t, provider, &stubDirectory{profile: authn.Profile{Role: "legacy_estimator", Active: true}})

	principal, err := validator.Validate(context.Background(), "credential-abc123")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if len(principal.Capabilities) != 0 {
		t.Fatalf("unknown role must resolve to empty capability set, got %v", principal.Capabilities)
	}
}

func TestInvalidationVisibleOnNextValidate(t *testing.T) {
	identity := activeIdentity()
	provider := &stubProvider{identity: identity}
	directory := &stubDirectory{profile: authn.Profile{Role: "project_manager", Active: true}}
	validator, _ := newValidator(t, provider, directory)

	first, err := validator.Validate(context.Background(), "credential-abc123")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if first.Role != authz.RoleProjectManager {
		t.Fatalf("expected project_manager, got %s", first.Role)
	}

	// Role downgraded mid-session; the mutation invalidates before ack.
	directory.profile = authn.Profile{Role: "client", Active: true}
	if err := validator.Invalidate(context.Background(), identity.PrincipalID); err != nil {
		t.Fatalf("invalidate: %v", err)
	}

	second, err := validator.Validate(context.Background(), "credential-abc123")
	if err != nil {
		t.Fatalf("revalidate: %v", err)
	}
	if second.Role != authz.RoleClient {
		t.Fatalf("stale role served after invalidation: %s", second.Role)
	}
	if second.Capabilities.Has(authz.CapPricingView) {
		t.Fatalf("downgraded principal retains pricing.view")
	}
}

type hookedDirectory struct {
	stubDirectory
	onProfile func(ctx context.Context, id uuid.UUID)
}

func (h *hookedDirectory) Profile(ctx context.Context, id uuid.UUID) (authn.Profile, error) {
	if h.onProfile != nil {
		h.onProfile(ctx, id)
	}
	return h.stubDirectory.Profile(ctx, id)
}

func TestInvalidationDuringResolveWinsOverLateCacheWrite(t *testing.T) {
	identity := activeIdentity()
	provider := &stubProvider{identity: identity}
	directory := &hookedDirectory{stubDirectory: stubDirectory{profile: authn.Profile{Role: "project_manager", Active: true}}}
	validator, _ := newValidator(t, provider, directory)

	// The invalidation lands while the first resolve is between the identity
	// verification and the cache write. The resolve still finishes and writes
	// its entry, but the entry is stamped with the pre-invalidation
	// generation and must never be served.
	invalidated := false
	directory.onProfile = func(ctx context.Context, id uuid.UUID) {
		if invalidated {
			return
		}
		invalidated = true
		if err := validator.Invalidate(ctx, id); err != nil {
			t.Fatalf("invalidate: %v", err)
		}
	}

	first, err := validator.Validate(context.Background(), "credential-abc123")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if first.Role != authz.RoleProjectManager {
		t.Fatalf("expected project_manager, got %s", first.Role)
	}

	directory.profile = authn.Profile{Role: "client", Active: true}
	second, err := validator.Validate(context.Background(), "credential-abc123")
	if err != nil {
		t.Fatalf("revalidate: %v", err)
	}
	if second.Role != authz.RoleClient {
		t.Fatalf("stale role %s served after an invalidation that completed before the cache write", second.Role)
	}
}

func TestCacheEntryNeverOutlivesSessionExpiry(t *testing.T) {
	provider := &stubProvider{identity: authn.Identity{
		PrincipalID: uuid.New(),
		IssuedAt:    time.Now().Add(-2 * time.Hour),
		ExpiresAt:   time.Now().Add(50 * time.Millisecond),
	}}
	directory := &stubDirectory{profile: authn.Profile{Role: "office", Active: true}}
	validator, cache := newValidator(t, provider, directory)

	if _, err := validator.Validate(context.Background(), "credential-abc123"); err != nil {
		t.Fatalf("validate: %v", err)
	}

	time.Sleep(60 * time.Millisecond)
	_, ok, err := cache.GetPrincipal(context.Background(), authn.HashCredential("credential-abc123"))
	if err != nil {
		t.Fatalf("cache read: %v", err)
	}
	if ok {
		t.Fatalf("cache served a principal past session expiry")
	}
}
