package entitlements

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sakibsarkar/docvia-backend/internal/billing"
	"github.com/sakibsarkar/docvia-backend/pkg/db/models"
	"github.com/sakibsarkar/docvia-backend/pkg/enums"
	pkgerrors "github.com/sakibsarkar/docvia-backend/pkg/errors"
	"github.com/sakibsarkar/docvia-backend/pkg/logger"
)

type userRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	SetCurrentSubscriptionIfNull(ctx context.Context, userID, subscriptionID uuid.UUID) (bool, error)
	UpdateCurrentSubscription(ctx context.Context, userID uuid.UUID, from *uuid.UUID, to uuid.UUID) (bool, error)
}

// Service resolves a user's current subscription, lazily provisioning the
// free tier for users who never checked out.
type Service interface {
	ResolveCurrentSubscription(ctx context.Context, userID uuid.UUID) (*models.Subscription, error)
	ResolvePlan(ctx context.Context, userID uuid.UUID) (*models.Plan, error)
}

// ServiceParams groups dependencies for the entitlement resolver.
type ServiceParams struct {
	BillingRepo      billing.Repository
	UserRepo         userRepository
	Logger           *logger.Logger
	FreePlanAppLimit int
}

type service struct {
	billingRepo billing.Repository
	users       userRepository
	logg        *logger.Logger
	freeLimit   int
}

// NewService builds an entitlement resolver with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.BillingRepo == nil {
		return nil, fmt.Errorf("billing repo required")
	}
	if params.UserRepo == nil {
		return nil, fmt.Errorf("user repo required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		billingRepo: params.BillingRepo,
		users:       params.UserRepo,
		logg:        params.Logger,
		freeLimit:   params.FreePlanAppLimit,
	}, nil
}

// ResolveCurrentSubscription follows the user's subscription pointer. When no
// pointer is set, or it references a deleted row, the resolver provisions an
// active free-tier subscription and claims the pointer with a conditional
// write against the observed value. Exactly one concurrent resolver wins the
// claim; losers delete their provisional row and adopt the winner's
// subscription.
func (s *service) ResolveCurrentSubscription(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup user")
	}
	if user == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}

	var stale *uuid.UUID
	if user.CurrentSubscriptionID != nil {
		sub, err := s.billingRepo.FindSubscriptionByID(ctx, *user.CurrentSubscriptionID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup subscription")
		}
		if sub != nil {
			return sub, nil
		}
		// dangling pointer: the row is gone, re-provision below
		stale = user.CurrentSubscriptionID
		s.logg.Warn(s.logg.WithUserID(ctx, userID.String()), "subscription pointer is dangling, reprovisioning free tier")
	}

	plan, err := s.billingRepo.EnsureFreePlan(ctx, s.freeLimit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "ensure free plan")
	}

	sub := &models.Subscription{
		ID:        uuid.New(),
		UserID:    userID,
		PlanID:    plan.ID,
		Price:     plan.Price,
		Status:    enums.SubscriptionStatusActive,
		StartDate: time.Now().UTC(),
	}
	if err := s.billingRepo.CreateSubscription(ctx, sub); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create free subscription")
	}

	// claim the pointer with a CAS keyed on what we observed: NULL for fresh
	// users, the stale id for a dangling pointer
	var won bool
	if stale != nil {
		won, err = s.users.UpdateCurrentSubscription(ctx, userID, stale, sub.ID)
	} else {
		won, err = s.users.SetCurrentSubscriptionIfNull(ctx, userID, sub.ID)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "claim subscription pointer")
	}
	if won {
		return sub, nil
	}

	// another resolver claimed the pointer first; discard our row and adopt theirs
	if err := s.billingRepo.DeleteSubscription(ctx, sub.ID); err != nil {
		s.logg.Error(s.logg.WithSubscriptionID(ctx, sub.ID.String()), "discard losing free subscription", err)
	}

	winner, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reread user")
	}
	if winner == nil || winner.CurrentSubscriptionID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "subscription pointer missing after race")
	}
	adopted, err := s.billingRepo.FindSubscriptionByID(ctx, *winner.CurrentSubscriptionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup winning subscription")
	}
	if adopted == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "winning subscription missing")
	}
	return adopted, nil
}

// ResolvePlan resolves the plan backing the user's current subscription.
func (s *service) ResolvePlan(ctx context.Context, userID uuid.UUID) (*models.Plan, error) {
	sub, err := s.ResolveCurrentSubscription(ctx, userID)
	if err != nil {
		return nil, err
	}
	plan, err := s.billingRepo.FindPlanByID(ctx, sub.PlanID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup plan")
	}
	if plan == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "subscription references missing plan")
	}
	return plan, nil
}
