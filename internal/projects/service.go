package projects

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/armature-app/armature/internal/authn"
	"github.com/armature-app/armature/internal/authz"
	"github.com/armature-app/armature/internal/platform/httpx"
	"github.com/armature-app/armature/internal/query"
	"github.com/armature-app/armature/internal/shared"
	"github.com/armature-app/armature/internal/visibility"
)

// Service exposes project listing through the visibility facade and a
// write path gated on the write capability.
type Service struct {
	repo     Repository
	facade   *query.Facade
	validate *validator.Validate
}

func NewService(repo Repository, facade *query.Facade) *Service {
	return &Service{repo: repo, facade: facade, validate: validator.New()}
}

func (s *Service) List(ctx context.Context, principal *authn.Principal, params query.Params) (query.Result, error) {
	return s.facade.Fetch(ctx, principal, visibility.ClassProject, params)
}

func (s *Service) Show(ctx context.Context, principal *authn.Principal, id uuid.UUID) (visibility.Record, error) {
	return s.facade.FetchOne(ctx, principal, visibility.ClassProject, id)
}

func (s *Service) Create(ctx context.Context, principal *authn.Principal, input CreateInput) (visibility.Record, error) {
	if principal == nil || !principal.Capabilities.Has(authz.CapProjectsWrite) {
		return nil, shared.ErrForbidden
	}
	if err := s.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	}
	id, err := s.repo.Insert(ctx, input)
	if err != nil {
		return nil, err
	}
	return s.facade.FetchOne(ctx, principal, visibility.ClassProject, id)
}

// Update mutates a project the principal can already see. Projects
// outside the predicate read as not found, the same as on the read path.
func (s *Service) Update(ctx context.Context, principal *authn.Principal, id uuid.UUID, input UpdateInput) (visibility.Record, error) {
	if principal == nil || !principal.Capabilities.Has(authz.CapProjectsWrite) {
		return nil, shared.ErrForbidden
	}
	raw, err := s.repo.Raw(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.facade.Visible(principal, visibility.ClassProject, raw) {
		return nil, shared.ErrNotFound
	}
	if err := s.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	}
	if err := s.repo.Update(ctx, id, input); err != nil {
		return nil, err
	}
	return s.facade.FetchOne(ctx, principal, visibility.ClassProject, id)
}
