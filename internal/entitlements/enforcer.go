package entitlements

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/sakibsarkar/docvia-backend/pkg/db/models"
	pkgerrors "github.com/sakibsarkar/docvia-backend/pkg/errors"
	"github.com/sakibsarkar/docvia-backend/pkg/logger"
)

type appRepository interface {
	CountActive(ctx context.Context, userID uuid.UUID) (int, error)
	OldestActiveIDs(ctx context.Context, userID uuid.UUID, limit int) ([]uuid.UUID, error)
	DeactivateByIDs(ctx context.Context, ids []uuid.UUID) (int, error)
}

// Enforcer reconciles a user's active apps against their plan's cap after a
// downgrade. Re-running it is safe: once the count fits the cap it does nothing.
type Enforcer struct {
	apps appRepository
	logg *logger.Logger
}

// NewEnforcer builds an app-limit enforcer.
func NewEnforcer(apps appRepository, logg *logger.Logger) (*Enforcer, error) {
	if apps == nil {
		return nil, fmt.Errorf("app repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Enforcer{apps: apps, logg: logg}, nil
}

// EnforceAppLimit deactivates the oldest active apps until the user fits the
// plan cap. Returns the number of apps deactivated.
func (e *Enforcer) EnforceAppLimit(ctx context.Context, userID uuid.UUID, appLimit int) (int, error) {
	if appLimit == models.UnlimitedApps {
		return 0, nil
	}
	if appLimit < 0 {
		return 0, pkgerrors.New(pkgerrors.CodeInternal, "invalid app limit")
	}

	count, err := e.apps.CountActive(ctx, userID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count active apps")
	}
	excess := count - appLimit
	if excess <= 0 {
		return 0, nil
	}

	ids, err := e.apps.OldestActiveIDs(ctx, userID, excess)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list oldest active apps")
	}
	deactivated, err := e.apps.DeactivateByIDs(ctx, ids)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "deactivate apps")
	}

	ctx = e.logg.WithUserID(ctx, userID.String())
	ctx = e.logg.WithFields(ctx, map[string]any{
		"app_limit":   appLimit,
		"deactivated": deactivated,
	})
	e.logg.Info(ctx, "enforced app limit after plan change")
	return deactivated, nil
}
