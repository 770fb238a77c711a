package masterdata

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/armature-app/armature/internal/authn"
	"github.com/armature-app/armature/internal/authz"
	"github.com/armature-app/armature/internal/query"
	"github.com/armature-app/armature/internal/visibility"
)

type fakeStore struct {
	records []visibility.Record
	lastSQL string
}

func (s *fakeStore) Count(_ context.Context, sql string, _ []any) (int, error) {
	s.lastSQL = sql
	return len(s.records), nil
}

func (s *fakeStore) Select(_ context.Context, sql string, _ []any) ([]visibility.Record, error) {
	s.lastSQL = sql
	return s.records, nil
}

func newRouter(store query.Store, principal *authn.Principal) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewHandler(logger, query.NewFacade(store, nil, logger))
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := authn.ContextWithPrincipal(req.Context(), principal)
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	r.Route("/masterdata", handler.MountRoutes)
	return r
}

func TestSupplierListingHidesNegotiatedRate(t *testing.T) {
	store := &fakeStore{records: []visibility.Record{{
		"id":              uuid.New(),
		"code":            "SUP-01",
		"name":            "Granite Works",
		"negotiated_rate": 42.5,
	}}}
	principal := &authn.Principal{
		ID:           uuid.New(),
		Role:         authz.RoleOffice,
		Capabilities: authz.NewCapabilitySet(authz.CapSuppliersView),
	}
	router := newRouter(store, principal)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/masterdata/suppliers", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var result query.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Len(t, result.Records, 1)
	assert.Equal(t, "Granite Works", result.Records[0]["name"])
	assert.NotContains(t, result.Records[0], "negotiated_rate")
}

func TestClientRegistryDeniedToClientlessRole(t *testing.T) {
	principal := &authn.Principal{
		ID:           uuid.New(),
		Role:         authz.RoleSiteSupervisor,
		Capabilities: authz.NewCapabilitySet(authz.CapTasksView),
	}
	router := newRouter(&fakeStore{}, principal)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/masterdata/clients", nil))

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestClientSeesOnlyOwnRecord(t *testing.T) {
	clientID := uuid.New()
	store := &fakeStore{records: []visibility.Record{{
		"id":   clientID,
		"code": "CLI-07",
		"name": "Meridian Holdings",
	}}}
	principal := &authn.Principal{
		ID:           uuid.New(),
		Role:         authz.RoleClient,
		ClientID:     clientID,
		Capabilities: authz.NewCapabilitySet(authz.CapClientsView),
	}
	router := newRouter(store, principal)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/masterdata/clients", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, store.lastSQL, "id = $1")
}

// A mistyped filter key must reach the listing facade and be rejected
// against the class allow-list, not be dropped silently at the edge.
func TestUnknownFilterKeyRejected(t *testing.T) {
	principal := &authn.Principal{
		ID:           uuid.New(),
		Role:         authz.RoleOffice,
		Capabilities: authz.NewCapabilitySet(authz.CapSuppliersView),
	}
	store := &fakeStore{}
	router := newRouter(store, principal)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/masterdata/suppliers?stats=active", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, store.lastSQL)
}

func TestShowUnknownSupplierIsNotFound(t *testing.T) {
	principal := &authn.Principal{
		ID:           uuid.New(),
		Role:         authz.RoleOffice,
		Capabilities: authz.NewCapabilitySet(authz.CapSuppliersView),
	}
	router := newRouter(&fakeStore{}, principal)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/masterdata/suppliers/"+uuid.NewString(), nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
