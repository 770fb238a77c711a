package authn

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/armature-app/armature/internal/authz"
	"github.com/armature-app/armature/internal/observability"
	"github.com/armature-app/armature/internal/shared"
)

// Validator turns an opaque bearer credential into a verified Principal. It
// is the only component that talks to the identity provider; everything else
// receives the resolved Principal explicitly.
type Validator struct {
	provider  IdentityProvider
	directory Directory
	resolver  *authz.Resolver
	cache     *Cache
	logger    *slog.Logger
	metrics   *observability.Metrics

	timeout time.Duration
	backoff time.Duration
	group   singleflight.Group
}

// ValidatorConfig collects Validator dependencies.
type ValidatorConfig struct {
	Provider  IdentityProvider
	Directory Directory
	Resolver  *authz.Resolver
	Cache     *Cache
	Logger    *slog.Logger
	Metrics   *observability.Metrics
	// ProviderTimeout bounds each identity provider call.
	ProviderTimeout time.Duration
	// RetryBackoff is the pause before the single retry on provider failure.
	RetryBackoff time.Duration
}

// NewValidator constructs a Validator.
func NewValidator(cfg ValidatorConfig) *Validator {
	timeout := cfg.ProviderTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	backoff := cfg.RetryBackoff
	if backoff <= 0 {
		backoff = 200 * time.Millisecond
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{
		provider:  cfg.Provider,
		directory: cfg.Directory,
		resolver:  cfg.Resolver,
		cache:     cfg.Cache,
		logger:    logger,
		metrics:   cfg.Metrics,
		timeout:   timeout,
		backoff:   backoff,
	}
}

// Validate resolves a bearer credential into a Principal. Malformed input is
// rejected without touching the provider; cache hits short-circuit it.
func (v *Validator) Validate(ctx context.Context, credential string) (*Principal, error) {
	credential = strings.TrimSpace(credential)
	if !wellFormed(credential) {
		return nil, shared.ErrUnauthenticated
	}

	credHash := HashCredential(credential)
	if v.cache != nil {
		if p, ok, err := v.cache.GetPrincipal(ctx, credHash); err != nil {
			v.logger.Warn("principal cache read", slog.Any("error", err))
		} else if ok {
			v.metrics.CacheLookup(true)
			return p, nil
		}
		v.metrics.CacheLookup(false)
	}

	// Collapse concurrent misses for the same credential into one provider
	// round trip.
	result, err, _ := v.group.Do(credHash, func() (any, error) {
		return v.resolve(ctx, credential, credHash)
	})
	if err != nil {
		return nil, err
	}
	return result.(*Principal), nil
}

// Invalidate removes every cached entry for the principal. It must complete
// before the triggering mutation is acknowledged.
func (v *Validator) Invalidate(ctx context.Context, principalID uuid.UUID) error {
	if v.cache == nil {
		return nil
	}
	return v.cache.Invalidate(ctx, principalID)
}

func (v *Validator) resolve(ctx context.Context, credential, credHash string) (*Principal, error) {
	identity, err := v.verifyWithRetry(ctx, credential)
	if err != nil {
		return nil, err
	}

	// The generation is read before the directory lookups. An invalidation
	// racing this resolve bumps the counter past the stamp, so the entry
	// written below is stillborn rather than served stale.
	var generation int64
	if v.cache != nil {
		generation, err = v.cache.Generation(ctx, identity.PrincipalID)
		if err != nil {
			v.logger.Warn("principal generation read", slog.Any("error", err))
			generation = -1
		}
	}

	profile, err := v.directory.Profile(ctx, identity.PrincipalID)
	if err != nil {
		if errors.Is(err, shared.ErrUnauthenticated) {
			return nil, shared.ErrUnauthenticated
		}
		return nil, err
	}
	if !profile.Active {
		return nil, shared.ErrUnauthenticated
	}

	// Unknown roles stay authenticated but fail closed to an empty
	// capability set.
	role, _ := authz.ParseRole(profile.Role)
	tier, ok := authz.ParseSeniority(profile.Seniority)
	if !ok {
		tier = authz.TierStandard
	}
	resolution := v.resolveCapabilities(ctx, role, tier)

	memberships, err := v.directory.Memberships(ctx, identity.PrincipalID)
	if err != nil {
		return nil, err
	}

	principal := &Principal{
		ID:           identity.PrincipalID,
		Role:         role,
		Seniority:    tier,
		Active:       profile.Active,
		ClientID:     profile.ClientID,
		Memberships:  memberships,
		Capabilities: resolution.Capabilities,
		Approval:     resolution.Approval,
		IssuedAt:     identity.IssuedAt,
		ExpiresAt:    identity.ExpiresAt,
	}

	if v.cache != nil && generation >= 0 {
		if err := v.cache.SetPrincipal(ctx, credHash, principal, generation); err != nil {
			v.logger.Warn("principal cache write", slog.Any("error", err))
		}
	}
	return principal, nil
}

func (v *Validator) resolveCapabilities(ctx context.Context, role authz.Role, tier authz.Seniority) authz.Resolution {
	key := v.resolver.CacheKey(role, tier)
	if v.cache != nil {
		if res, ok, err := v.cache.GetResolution(ctx, key); err == nil && ok {
			return res
		}
	}
	res := v.resolver.Resolve(role, tier)
	if v.cache != nil {
		if err := v.cache.SetResolution(ctx, key, res); err != nil {
			v.logger.Warn("capability cache write", slog.Any("error", err))
		}
	}
	return res
}

func (v *Validator) verifyWithRetry(ctx context.Context, credential string) (Identity, error) {
	identity, err := v.verifyOnce(ctx, credential)
	if err == nil {
		return identity, nil
	}
	switch {
	case errors.Is(err, ErrInvalidCredential), errors.Is(err, ErrExpiredCredential):
		return Identity{}, shared.ErrUnauthenticated
	case errors.Is(err, shared.ErrProviderUnavailable) || errors.Is(err, context.DeadlineExceeded):
		// One retry with a short backoff; unavailability is never treated as
		// unauthenticated.
		select {
		case <-ctx.Done():
			return Identity{}, shared.ErrProviderUnavailable
		case <-time.After(v.backoff):
		}
		v.metrics.ProviderRetry()
		identity, err = v.verifyOnce(ctx, credential)
		if err == nil {
			return identity, nil
		}
		if errors.Is(err, ErrInvalidCredential) || errors.Is(err, ErrExpiredCredential) {
			return Identity{}, shared.ErrUnauthenticated
		}
		v.logger.Error("identity provider unavailable after retry", slog.Any("error", err))
		return Identity{}, shared.ErrProviderUnavailable
	default:
		return Identity{}, err
	}
}

func (v *Validator) verifyOnce(ctx context.Context, credential string) (Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()
	return v.provider.Verify(ctx, credential)
}

// wellFormed rejects credentials that cannot possibly be valid without a
// provider round trip.
func wellFormed(credential string) bool {
	if len(credential) < 8 {
		return false
	}
	for _, r := range credential {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return false
		}
	}
	return true
}
