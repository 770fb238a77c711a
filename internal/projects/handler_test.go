package projects

import (
	"bytes"
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
	"github.com/armature-app/armature/internal/shared"
	"github.com/armature-app/armature/internal/visibility"
)

type fakeStore struct {
	records []visibility.Record
}

func (s *fakeStore) Count(_ context.Context, _ string, _ []any) (int, error) {
	return len(s.records), nil
}

func (s *fakeStore) Select(_ context.Context, _ string, _ []any) ([]visibility.Record, error) {
	return s.records, nil
}

type fakeRepo struct {
	inserted   *CreateInput
	updated    *UpdateInput
	raw        visibility.Record
	rawErr     error
	insertedID uuid.UUID
}

func (r *fakeRepo) Insert(_ context.Context, input CreateInput) (uuid.UUID, error) {
	r.inserted = &input
	return r.insertedID, nil
}

func (r *fakeRepo) Update(_ context.Context, _ uuid.UUID, input UpdateInput) error {
	r.updated = &input
	return nil
}

func (r *fakeRepo) Raw(_ context.Context, _ uuid.UUID) (visibility.Record, error) {
	return r.raw, r.rawErr
}

func managerPrincipal(id uuid.UUID) *authn.Principal {
	return &authn.Principal{
		ID:   id,
		Role: authz.RoleProjectManager,
		Capabilities: authz.NewCapabilitySet(
			authz.CapProjectsView, authz.CapProjectsWrite, authz.CapPricingView,
		),
	}
}

func newTestHandler(store query.Store, repo Repository) *Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	facade := query.NewFacade(store, nil, logger)
	return NewHandler(logger, NewService(repo, facade))
}

func newRouter(h *Handler, principal *authn.Principal) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := authn.ContextWithPrincipal(req.Context(), principal)
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	r.Route("/projects", h.MountRoutes)
	return r
}

func TestListReturnsRedactedPage(t *testing.T) {
	pmID := uuid.New()
	store := &fakeStore{records: []visibility.Record{{
		"id":                 uuid.New(),
		"name":               "Harbor Street Office",
		"project_manager_id": pmID,
		"contract_value":     125000.0,
		"budget_cost":        90000.0,
	}}}
	handler := newTestHandler(store, &fakeRepo{})
	router := newRouter(handler, managerPrincipal(pmID))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/projects", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var result query.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Len(t, result.Records, 1)
	assert.Contains(t, result.Records[0], "contract_value")
	// Cost data stays hidden without the cost capability.
	assert.NotContains(t, result.Records[0], "budget_cost")
	assert.Equal(t, 1, result.PageInfo.Total)
}

func TestListForbiddenWithoutViewCapability(t *testing.T) {
	handler := newTestHandler(&fakeStore{}, &fakeRepo{})
	principal := &authn.Principal{
		ID:           uuid.New(),
		Role:         authz.RoleOffice,
		Capabilities: authz.NewCapabilitySet(authz.CapClientsView),
	}
	router := newRouter(handler, principal)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/projects", nil))

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestShowRejectsMalformedID(t *testing.T) {
	handler := newTestHandler(&fakeStore{}, &fakeRepo{})
	router := newRouter(handler, managerPrincipal(uuid.New()))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/projects/not-a-uuid", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateRequiresWriteCapability(t *testing.T) {
	handler := newTestHandler(&fakeStore{}, &fakeRepo{})
	principal := &authn.Principal{
		ID:           uuid.New(),
		Role:         authz.RoleSiteSupervisor,
		Capabilities: authz.NewCapabilitySet(authz.CapProjectsView),
	}
	router := newRouter(handler, principal)

	body := bytes.NewBufferString(`{"code":"PRJ-9","name":"Depot","project_manager_id":"` +
		uuid.NewString() + `","client_id":"` + uuid.NewString() + `"}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/projects", body))

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCreateRejectsInvalidPayload(t *testing.T) {
	handler := newTestHandler(&fakeStore{}, &fakeRepo{})
	router := newRouter(handler, managerPrincipal(uuid.New()))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/projects",
		bytes.NewBufferString(`{"name":"Missing code and parties"}`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreatePersistsAndReturnsRecord(t *testing.T) {
	pmID := uuid.New()
	projectID := uuid.New()
	repo := &fakeRepo{insertedID: projectID}
	store := &fakeStore{records: []visibility.Record{{
		"id":                 projectID,
		"name":               "Depot",
		"project_manager_id": pmID,
	}}}
	handler := newTestHandler(store, repo)
	router := newRouter(handler, managerPrincipal(pmID))

	body := bytes.NewBufferString(`{"code":"PRJ-9","name":"Depot","project_manager_id":"` +
		pmID.String() + `","client_id":"` + uuid.NewString() + `"}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/projects", body))

	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, repo.inserted)
	assert.Equal(t, "PRJ-9", repo.inserted.Code)
}

func TestUpdateHiddenProjectReadsAsNotFound(t *testing.T) {
	otherPM := uuid.New()
	repo := &fakeRepo{raw: visibility.Record{
		"id":                 uuid.New(),
		"project_manager_id": otherPM,
		"client_id":          uuid.New(),
	}}
	handler := newTestHandler(&fakeStore{}, repo)
	router := newRouter(handler, managerPrincipal(uuid.New()))

	body := bytes.NewBufferString(`{"name":"Renamed","status":"active"}`)
	req := httptest.NewRequest(http.MethodPut, "/projects/"+uuid.NewString(), body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Nil(t, repo.updated)
}

func TestUpdateMissingProject(t *testing.T) {
	repo := &fakeRepo{rawErr: shared.ErrNotFound}
	handler := newTestHandler(&fakeStore{}, repo)
	router := newRouter(handler, managerPrincipal(uuid.New()))

	body := bytes.NewBufferString(`{"name":"Renamed","status":"active"}`)
	req := httptest.NewRequest(http.MethodPut, "/projects/"+uuid.NewString(), body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
