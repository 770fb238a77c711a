// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/armature-app/armature/internal/shared"
)

// Sentinel errors for request handling concerns that have no home in
// the shared taxonomy.
var (
	ErrDuplicate  = errors.New("duplicate entry")
	ErrValidation = errors.New("validation failed")
)

// retryAfterSeconds is how long callers should back off after a provider
// outage before presenting the same credential again.
const retryAfterSeconds = "5"

// RespondError maps domain errors to HTTP responses using RFC7807.
// A bad credential is 401; a provider outage is 503 with Retry-After,
// so callers never discard a credential over a transient backend fault.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrDuplicate):
		Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrQuery):
		Problem(w, http.StatusBadRequest, "Invalid Query", err.Error())
	case errors.Is(err, shared.ErrForbidden):
		Problem(w, http.StatusForbidden, "Forbidden", "")
	case errors.Is(err, shared.ErrProviderUnavailable):
		w.Header().Set("Retry-After", retryAfterSeconds)
		Problem(w, http.StatusServiceUnavailable, "Service Unavailable", "identity provider unavailable, retry later")
	case errors.Is(err, shared.ErrUnauthenticated):
		Problem(w, http.StatusUnauthorized, "Unauthorized", "")
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
