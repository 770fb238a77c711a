package shared

import "errors"

var (
	// ErrUnauthenticated indicates a missing, invalid or expired credential.
	// Terminal; never retried.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden indicates an authenticated principal denied by capability
	// or predicate. Terminal; recorded in the denial log.
	ErrForbidden = errors.New("forbidden")
	// ErrProviderUnavailable indicates the identity provider could not be
	// reached. Retryable; distinct from ErrUnauthenticated so callers can
	// tell "not allowed" from "could not check".
	ErrProviderUnavailable = errors.New("identity provider unavailable")
	// ErrNotFound indicates resource not found. Also returned for records an
	// existence-sensitive class hides from the principal.
	ErrNotFound = errors.New("not found")
	// ErrQuery indicates malformed filter, sort or pagination parameters.
	ErrQuery = errors.New("invalid query parameters")
)
