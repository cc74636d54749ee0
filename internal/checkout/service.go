package checkout

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/sakibsarkar/docvia-backend/internal/billing"
	"github.com/sakibsarkar/docvia-backend/pkg/config"
	"github.com/sakibsarkar/docvia-backend/pkg/confirm"
	"github.com/sakibsarkar/docvia-backend/pkg/db/models"
	"github.com/sakibsarkar/docvia-backend/pkg/enums"
	pkgerrors "github.com/sakibsarkar/docvia-backend/pkg/errors"
	"github.com/sakibsarkar/docvia-backend/pkg/logger"
	"github.com/sakibsarkar/docvia-backend/pkg/stripe"
)

const confirmFailedMessage = "confirmation link is invalid or has expired"

// metadata keys carried on the hosted checkout session so webhook events can
// be correlated back to the local subscription row.
const (
	MetadataSubscriptionID = "subscription_id"
	MetadataUserID         = "user_id"
)

type userRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	SwapCurrentSubscription(ctx context.Context, userID, to uuid.UUID) (*uuid.UUID, error)
	ClearCurrentSubscription(ctx context.Context, userID, subscriptionID uuid.UUID) (bool, error)
	SetStripeCustomerID(ctx context.Context, userID uuid.UUID, customerID string) error
}

// Service starts hosted checkout sessions and finalizes browser redirects.
type Service interface {
	StartCheckout(ctx context.Context, userID uuid.UUID, req StartCheckoutRequest) (*StartCheckoutResponse, error)
	ConfirmFromRedirect(ctx context.Context, token string, canceled bool) (*ConfirmResult, error)
}

// ServiceParams groups dependencies for the checkout service.
type ServiceParams struct {
	BillingRepo billing.Repository
	UserRepo    userRepository
	Stripe      stripe.BillingClient
	Logger      *logger.Logger
	JWTConfig   config.JWTConfig
	Billing     config.BillingConfig
}

type service struct {
	billingRepo billing.Repository
	users       userRepository
	stripe      stripe.BillingClient
	logg        *logger.Logger
	jwtCfg      config.JWTConfig
	billingCfg  config.BillingConfig
}

// NewService builds a checkout service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.BillingRepo == nil {
		return nil, fmt.Errorf("billing repo required")
	}
	if params.UserRepo == nil {
		return nil, fmt.Errorf("user repo required")
	}
	if params.Stripe == nil {
		return nil, fmt.Errorf("stripe client required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Billing.ConfirmBaseURL == "" {
		return nil, fmt.Errorf("confirm base url required")
	}
	return &service{
		billingRepo: params.BillingRepo,
		users:       params.UserRepo,
		stripe:      params.Stripe,
		logg:        params.Logger,
		jwtCfg:      params.JWTConfig,
		billingCfg:  params.Billing,
	}, nil
}

// StartCheckout creates the incomplete subscription row, then asks Stripe for a
// hosted session. The row exists before the URL is handed out so the
// confirmation redirect always has something to finalize; if session creation
// fails the row is rolled back.
func (s *service) StartCheckout(ctx context.Context, userID uuid.UUID, req StartCheckoutRequest) (*StartCheckoutResponse, error) {
	plan, err := s.billingRepo.FindPlanByID(ctx, req.PlanID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup plan")
	}
	if plan == nil || !plan.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "plan not found")
	}
	if plan.IsFree() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "free plan does not require checkout")
	}
	if plan.StripePriceID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "plan is not purchasable yet")
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup user")
	}
	if user == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}

	customerID, err := s.ensureCustomer(ctx, user)
	if err != nil {
		return nil, err
	}

	sub := &models.Subscription{
		ID:               uuid.New(),
		UserID:           userID,
		PlanID:           plan.ID,
		Price:            plan.Price,
		Status:           enums.SubscriptionStatusIncomplete,
		StartDate:        time.Now().UTC(),
		StripeCustomerID: customerID,
	}
	if err := s.billingRepo.CreateSubscription(ctx, sub); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create subscription")
	}

	token, err := confirm.Sign(s.jwtCfg, time.Now().UTC(), s.billingCfg.ConfirmTokenTTL, sub.ID, userID)
	if err != nil {
		s.rollback(ctx, sub.ID)
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "sign confirmation token")
	}

	sessionURL, err := s.stripe.CreateCheckoutSession(ctx, stripe.CheckoutSessionParams{
		CustomerID: customerID,
		PriceID:    plan.StripePriceID,
		SuccessURL: s.confirmURL(token, false),
		CancelURL:  s.confirmURL(token, true),
		TrialDays:  plan.TrialPeriodDays,
		Metadata: map[string]string{
			MetadataSubscriptionID: sub.ID.String(),
			MetadataUserID:         userID.String(),
		},
	})
	if err != nil {
		s.rollback(ctx, sub.ID)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create checkout session")
	}

	ctx = s.logg.WithSubscriptionID(s.logg.WithUserID(ctx, userID.String()), sub.ID.String())
	s.logg.Info(ctx, "checkout session created")

	return &StartCheckoutResponse{CheckoutURL: sessionURL, SubscriptionID: sub.ID}, nil
}

// ConfirmFromRedirect consumes the token carried through the browser redirect.
// On the success path it flips the user's subscription pointer unconditionally;
// the status transition itself belongs to the webhook processor, which is the
// only component that proves payment actually cleared. On the cancel path a
// still-incomplete row is voided.
func (s *service) ConfirmFromRedirect(ctx context.Context, token string, canceled bool) (*ConfirmResult, error) {
	claims, err := confirm.Verify(s.jwtCfg, token)
	if err != nil {
		// one generic failure regardless of which check failed
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, confirmFailedMessage)
	}

	sub, err := s.billingRepo.FindSubscriptionByID(ctx, claims.SubscriptionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup subscription")
	}
	if sub == nil || sub.UserID != claims.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, confirmFailedMessage)
	}

	ctx = s.logg.WithSubscriptionID(s.logg.WithUserID(ctx, claims.UserID.String()), sub.ID.String())

	if canceled && sub.Status == enums.SubscriptionStatusIncomplete {
		// the success redirect may already have installed this row as the
		// pointer; drop that reference before voiding the row
		if _, err := s.users.ClearCurrentSubscription(ctx, claims.UserID, sub.ID); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear subscription pointer")
		}
		if err := s.billingRepo.DeleteSubscription(ctx, sub.ID); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "void abandoned subscription")
		}
		s.logg.Info(ctx, "abandoned checkout voided")
		return &ConfirmResult{Outcome: ConfirmOutcomeCanceled, SubscriptionID: sub.ID}, nil
	}

	prev, err := s.users.SwapCurrentSubscription(ctx, claims.UserID, sub.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "swap subscription pointer")
	}
	if prev != nil && *prev != sub.ID {
		// superseded rows are deleted, not archived
		if err := s.billingRepo.DeleteSubscription(ctx, *prev); err != nil {
			s.logg.Error(ctx, "delete superseded subscription", err)
		}
	}

	result := &ConfirmResult{SubscriptionID: sub.ID, Outcome: ConfirmOutcomePending}
	if sub.Status == enums.SubscriptionStatusActive {
		result.Outcome = ConfirmOutcomeActive
	}
	if plan, err := s.billingRepo.FindPlanByID(ctx, sub.PlanID); err == nil && plan != nil {
		result.PlanName = plan.Name
	}
	s.logg.Info(ctx, "checkout confirmation processed")
	return result, nil
}

func (s *service) ensureCustomer(ctx context.Context, user *models.User) (string, error) {
	if user.StripeCustomerID != nil && *user.StripeCustomerID != "" {
		return *user.StripeCustomerID, nil
	}
	customerID, err := s.stripe.CreateCustomer(ctx, user.Name, user.Email)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create stripe customer")
	}
	if err := s.users.SetStripeCustomerID(ctx, user.ID, customerID); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store stripe customer id")
	}
	return customerID, nil
}

func (s *service) confirmURL(token string, canceled bool) string {
	values := url.Values{"token": {token}}
	if canceled {
		values.Set("outcome", "cancel")
	} else {
		values.Set("outcome", "success")
	}
	return s.billingCfg.ConfirmBaseURL + "?" + values.Encode()
}

func (s *service) rollback(ctx context.Context, subscriptionID uuid.UUID) {
	if err := s.billingRepo.DeleteSubscription(ctx, subscriptionID); err != nil {
		s.logg.Error(s.logg.WithSubscriptionID(ctx, subscriptionID.String()), "rollback provisional subscription", err)
	}
}
