package authn

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/armature-app/armature/internal/shared"
)

// TokenProvider verifies bearer credentials against the api_tokens table.
// Credentials have the form "<token-id>.<secret>"; the secret is stored as a
// bcrypt hash. Used for development and service-to-service tokens; hosted
// deployments swap in the external identity provider behind the same
// interface.
type TokenProvider struct {
	pool *pgxpool.Pool
}

// NewTokenProvider constructs a TokenProvider.
func NewTokenProvider(pool *pgxpool.Pool) *TokenProvider {
	return &TokenProvider{pool: pool}
}

// Verify implements IdentityProvider.
func (p *TokenProvider) Verify(ctx context.Context, credential string) (Identity, error) {
	tokenID, secret, ok := splitCredential(credential)
	if !ok {
		return Identity{}, ErrInvalidCredential
	}

	var (
		principalID uuid.UUID
		secretHash  string
		issuedAt    time.Time
		expiresAt   time.Time
	)
	err := p.pool.QueryRow(ctx, `SELECT principal_id, secret_hash, issued_at, expires_at
FROM api_tokens WHERE id = $1 AND revoked_at IS NULL`, tokenID).
		Scan(&principalID, &secretHash, &issuedAt, &expiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Identity{}, ErrInvalidCredential
		}
		return Identity{}, shared.ErrProviderUnavailable
	}

	if err := bcrypt.CompareHashAndPassword([]byte(secretHash), []byte(secret)); err != nil {
		return Identity{}, ErrInvalidCredential
	}
	if !expiresAt.IsZero() && !time.Now().Before(expiresAt) {
		return Identity{}, ErrExpiredCredential
	}

	return Identity{PrincipalID: principalID, IssuedAt: issuedAt, ExpiresAt: expiresAt}, nil
}

func splitCredential(credential string) (uuid.UUID, string, bool) {
	idPart, secret, found := strings.Cut(credential, ".")
	if !found || secret == "" {
		return uuid.Nil, "", false
	}
	tokenID, err := uuid.Parse(idPart)
	if err != nil {
		return uuid.Nil, "", false
	}
	return tokenID, secret, true
}

// PGDirectory reads principal profiles and project memberships from
// postgres.
type PGDirectory struct {
	pool *pgxpool.Pool
}

// NewPGDirectory constructs a PGDirectory.
func NewPGDirectory(pool *pgxpool.Pool) *PGDirectory {
	return &PGDirectory{pool: pool}
}

// Profile implements Directory.
func (d *PGDirectory) Profile(ctx context.Context, principalID uuid.UUID) (Profile, error) {
	var (
		profile  Profile
		clientID *uuid.UUID
	)
	err := d.pool.QueryRow(ctx, `SELECT role, COALESCE(seniority, ''), is_active, client_id
FROM profiles WHERE id = $1`, principalID).
		Scan(&profile.Role, &profile.Seniority, &profile.Active, &clientID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, shared.ErrUnauthenticated
		}
		return Profile{}, err
	}
	if clientID != nil {
		profile.ClientID = *clientID
	}
	return profile, nil
}

// Memberships implements Directory.
func (d *PGDirectory) Memberships(ctx context.Context, principalID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := d.pool.Query(ctx, `SELECT project_id FROM project_members WHERE member_id = $1 ORDER BY project_id`, principalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var memberships []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		memberships = append(memberships, id)
	}
	return memberships, rows.Err()
}
