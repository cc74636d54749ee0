package apps

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/sakibsarkar/docvia-backend/pkg/db/models"
	pkgerrors "github.com/sakibsarkar/docvia-backend/pkg/errors"
)

const appLimitMessage = "active app limit reached for the current plan"

type planResolver interface {
	ResolvePlan(ctx context.Context, userID uuid.UUID) (*models.Plan, error)
}

// Service defines the app management surface.
type Service interface {
	Create(ctx context.Context, userID uuid.UUID, req CreateAppRequest) (*AppDTO, error)
	List(ctx context.Context, userID uuid.UUID) ([]AppDTO, error)
	Get(ctx context.Context, userID, appID uuid.UUID) (*AppDTO, error)
	Activate(ctx context.Context, userID, appID uuid.UUID) (*AppDTO, error)
	Deactivate(ctx context.Context, userID, appID uuid.UUID) (*AppDTO, error)
	Delete(ctx context.Context, userID, appID uuid.UUID) error
}

// ServiceParams groups dependencies for the app service.
type ServiceParams struct {
	Repo     Repository
	Resolver planResolver
}

type service struct {
	repo     Repository
	resolver planResolver
}

// NewService builds an app service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("app repository is required")
	}
	if params.Resolver == nil {
		return nil, fmt.Errorf("plan resolver is required")
	}
	return &service{repo: params.Repo, resolver: params.Resolver}, nil
}

// Create registers a new app. New apps start active, so the entitlement check
// runs against the count after insertion.
func (s *service) Create(ctx context.Context, userID uuid.UUID, req CreateAppRequest) (*AppDTO, error) {
	if err := s.checkLimit(ctx, userID, 1); err != nil {
		return nil, err
	}

	app := &models.App{
		ID:       uuid.New(),
		UserID:   userID,
		Name:     strings.TrimSpace(req.Name),
		IsActive: true,
	}
	if err := s.repo.Create(ctx, app); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create app")
	}
	return FromModel(app), nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID) ([]AppDTO, error) {
	list, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list apps")
	}
	return FromModels(list), nil
}

func (s *service) Get(ctx context.Context, userID, appID uuid.UUID) (*AppDTO, error) {
	app, err := s.owned(ctx, userID, appID)
	if err != nil {
		return nil, err
	}
	return FromModel(app), nil
}

func (s *service) Activate(ctx context.Context, userID, appID uuid.UUID) (*AppDTO, error) {
	app, err := s.owned(ctx, userID, appID)
	if err != nil {
		return nil, err
	}
	if app.IsActive {
		return FromModel(app), nil
	}

	if err := s.checkLimit(ctx, userID, 1); err != nil {
		return nil, err
	}
	if err := s.repo.SetActive(ctx, appID, true); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "activate app")
	}
	app.IsActive = true
	return FromModel(app), nil
}

func (s *service) Deactivate(ctx context.Context, userID, appID uuid.UUID) (*AppDTO, error) {
	app, err := s.owned(ctx, userID, appID)
	if err != nil {
		return nil, err
	}
	if !app.IsActive {
		return FromModel(app), nil
	}
	if err := s.repo.SetActive(ctx, appID, false); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "deactivate app")
	}
	app.IsActive = false
	return FromModel(app), nil
}

func (s *service) Delete(ctx context.Context, userID, appID uuid.UUID) error {
	if _, err := s.owned(ctx, userID, appID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, appID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete app")
	}
	return nil
}

func (s *service) owned(ctx context.Context, userID, appID uuid.UUID) (*models.App, error) {
	app, err := s.repo.FindByID(ctx, appID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup app")
	}
	if app == nil || app.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "app not found")
	}
	return app, nil
}

// checkLimit verifies the user's plan allows adding more active apps.
func (s *service) checkLimit(ctx context.Context, userID uuid.UUID, adding int) error {
	plan, err := s.resolver.ResolvePlan(ctx, userID)
	if err != nil {
		return err
	}
	if plan.AppLimit == models.UnlimitedApps {
		return nil
	}
	count, err := s.repo.CountActive(ctx, userID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count active apps")
	}
	if count+adding > plan.AppLimit {
		return pkgerrors.New(pkgerrors.CodeStateConflict, appLimitMessage)
	}
	return nil
}
