package authn

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/armature-app/armature/internal/authz"
)

// Cache is the Redis-backed principal cache. It serves two keyspaces: one
// keyed by credential hash holding resolved principals, one keyed by
// (role, seniority) holding capability resolutions.
//
// Invalidation is generation-stamped rather than scan-and-delete: every
// principal has a generation counter, each cached entry records the counter
// value at write time, and bumping the counter makes every entry for that
// principal unreadable at once. The bump is a single atomic INCR, so it
// completes before the triggering mutation is acknowledged and is visible to
// every subsequently dispatched request.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache constructs a Cache with the given default TTL.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

type cachedPrincipal struct {
	Principal  Principal `json:"principal"`
	Generation int64     `json:"generation"`
}

// HashCredential derives the by-credential cache key material. Raw bearer
// strings are never stored.
func HashCredential(credential string) string {
	sum := sha256.Sum256([]byte(credential))
	return hex.EncodeToString(sum[:])
}

// GetPrincipal returns the cached principal for a credential hash, treating
// generation mismatches and expired sessions as misses.
func (c *Cache) GetPrincipal(ctx context.Context, credHash string) (*Principal, bool, error) {
	payload, err := c.client.Get(ctx, credKey(credHash)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var stored cachedPrincipal
	if err := json.Unmarshal(payload, &stored); err != nil {
		return nil, false, err
	}

	current, err := c.generation(ctx, stored.Principal.ID)
	if err != nil {
		return nil, false, err
	}
	if stored.Generation != current {
		// Entry predates an invalidation; drop it eagerly.
		_ = c.client.Del(ctx, credKey(credHash)).Err()
		return nil, false, nil
	}
	if stored.Principal.Expired(time.Now()) {
		return nil, false, nil
	}
	return &stored.Principal, true, nil
}

// Generation returns the principal's current generation counter. Callers
// resolving a principal must read it BEFORE loading the data that goes into
// the entry: stamping the entry with that pre-read value means any
// invalidation racing the resolve bumps the counter past the stamp and the
// entry can never be served.
func (c *Cache) Generation(ctx context.Context, principalID uuid.UUID) (int64, error) {
	return c.generation(ctx, principalID)
}

// SetPrincipal stores the principal under the credential hash, stamped with
// the generation the caller read before resolving. The entry never outlives
// the session expiry.
func (c *Cache) SetPrincipal(ctx context.Context, credHash string, p *Principal, generation int64) error {
	data, err := json.Marshal(cachedPrincipal{Principal: *p, Generation: generation})
	if err != nil {
		return err
	}
	ttl := c.ttl
	if !p.ExpiresAt.IsZero() {
		if until := time.Until(p.ExpiresAt); until < ttl {
			ttl = until
		}
	}
	if ttl <= 0 {
		return nil
	}
	return c.client.Set(ctx, credKey(credHash), data, ttl).Err()
}

// Invalidate removes all by-credential entries for the principal by bumping
// its generation counter. Callers must not acknowledge the triggering
// mutation until this returns.
func (c *Cache) Invalidate(ctx context.Context, principalID uuid.UUID) error {
	return c.client.Incr(ctx, genKey(principalID)).Err()
}

// GetResolution returns the cached capability resolution for a
// (role, seniority) cache key.
func (c *Cache) GetResolution(ctx context.Context, key string) (authz.Resolution, bool, error) {
	payload, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return authz.Resolution{}, false, nil
		}
		return authz.Resolution{}, false, err
	}
	var res authz.Resolution
	if err := json.Unmarshal(payload, &res); err != nil {
		return authz.Resolution{}, false, err
	}
	return res, true, nil
}

// SetResolution stores a capability resolution under the given key.
func (c *Cache) SetResolution(ctx context.Context, key string, res authz.Resolution) error {
	data, err := json.Marshal(res)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, c.ttl).Err()
}

func (c *Cache) generation(ctx context.Context, principalID uuid.UUID) (int64, error) {
	gen, err := c.client.Get(ctx, genKey(principalID)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, err
	}
	return gen, nil
}

func credKey(hash string) string {
	return "principal:cred:" + hash
}

func genKey(id uuid.UUID) string {
	return "principal:gen:" + id.String()
}
