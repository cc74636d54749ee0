package stripewebhook

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v82"
	"gorm.io/gorm"

	"github.com/sakibsarkar/docvia-backend/internal/billing"
	"github.com/sakibsarkar/docvia-backend/internal/checkout"
	"github.com/sakibsarkar/docvia-backend/internal/users"
	"github.com/sakibsarkar/docvia-backend/pkg/db/models"
	"github.com/sakibsarkar/docvia-backend/pkg/enums"
	pkgerrors "github.com/sakibsarkar/docvia-backend/pkg/errors"
	"github.com/sakibsarkar/docvia-backend/pkg/logger"
	"github.com/sakibsarkar/docvia-backend/pkg/metrics"
)

type userRepository interface {
	WithTx(tx *gorm.DB) users.Repository
	SwapCurrentSubscription(ctx context.Context, userID, to uuid.UUID) (*uuid.UUID, error)
	ClearCurrentSubscription(ctx context.Context, userID, subscriptionID uuid.UUID) (bool, error)
}

type appLimitEnforcer interface {
	EnforceAppLimit(ctx context.Context, userID uuid.UUID, appLimit int) (int, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams groups dependencies for the webhook processor.
type ServiceParams struct {
	BillingRepo       billing.Repository
	UserRepo          userRepository
	Enforcer          appLimitEnforcer
	TransactionRunner txRunner
	Logger            *logger.Logger
	Metrics           *metrics.WebhookMetrics
	FreePlanAppLimit  int
}

// Service applies idempotent state transitions driven by Stripe lifecycle
// events. Events for the same subscription are serialized by compare-and-swap
// status updates rather than blind writes, so redeliveries and out-of-order
// deliveries settle on the same final state.
type Service struct {
	billingRepo billing.Repository
	users       userRepository
	enforcer    appLimitEnforcer
	txRunner    txRunner
	logg        *logger.Logger
	metrics     *metrics.WebhookMetrics
	freeLimit   int
}

// NewService builds the webhook processor.
func NewService(params ServiceParams) (*Service, error) {
	if params.BillingRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "billing repo required")
	}
	if params.UserRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "user repo required")
	}
	if params.Enforcer == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "enforcer required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		billingRepo: params.BillingRepo,
		users:       params.UserRepo,
		enforcer:    params.Enforcer,
		txRunner:    params.TransactionRunner,
		logg:        params.Logger,
		metrics:     params.Metrics,
		freeLimit:   params.FreePlanAppLimit,
	}, nil
}

// HandleEvent dispatches a verified Stripe event. Unknown event types and
// events with unusable payloads are acknowledged, not errored: Stripe would
// otherwise retry them forever.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	eventType := string(event.Type)
	ctx = s.logg.WithEventID(ctx, event.ID)

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return s.ackMalformed(ctx, eventType, "decode checkout session", err)
		}
		return s.handleCheckoutCompleted(ctx, eventType, &session)

	case stripe.EventTypeCustomerSubscriptionUpdated:
		// reserved hook: plan changes mid-cycle carry no entitlement change yet
		s.logg.Info(ctx, "subscription updated event acknowledged")
		return nil

	case stripe.EventTypeCustomerSubscriptionDeleted:
		var stripeSub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &stripeSub); err != nil {
			return s.ackMalformed(ctx, eventType, "decode subscription", err)
		}
		return s.handleSubscriptionDeleted(ctx, eventType, &stripeSub)

	default:
		s.logg.Info(ctx, "ignoring unhandled stripe event type "+eventType)
		return nil
	}
}

// handleCheckoutCompleted flips the local row from incomplete to active and
// stores the external identifiers. The status CAS makes redelivery a no-op and
// protects against a stale completion racing a later cancellation.
func (s *Service) handleCheckoutCompleted(ctx context.Context, eventType string, session *stripe.CheckoutSession) error {
	subscriptionID, err := subscriptionIDFromMetadata(session.Metadata)
	if err != nil {
		return s.ackMalformed(ctx, eventType, "checkout session metadata", err)
	}
	ctx = s.logg.WithSubscriptionID(ctx, subscriptionID.String())

	stripeSubID := ""
	if session.Subscription != nil {
		stripeSubID = session.Subscription.ID
	}
	stripeCustomerID := ""
	if session.Customer != nil {
		stripeCustomerID = session.Customer.ID
	}

	var sub *models.Subscription
	var transitioned bool
	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.billingRepo.WithTx(tx)

		stored, err := repo.FindSubscriptionByID(ctx, subscriptionID)
		if err != nil {
			return err
		}
		if stored == nil {
			// voided by a cancel redirect or superseded before the event landed
			return nil
		}
		sub = stored

		transitioned, err = repo.ActivateSubscription(ctx, subscriptionID, stripeSubID, stripeCustomerID)
		return err
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "activate subscription")
	}
	if sub == nil {
		// the row was voided by a cancel redirect or a cancellation event
		// before this delivery landed; treat it as stale, not malformed
		s.metrics.IncDuplicate(eventType)
		s.logg.Info(ctx, "checkout completed for a voided subscription ignored")
		return nil
	}
	if !transitioned {
		s.metrics.IncDuplicate(eventType)
		s.logg.Info(ctx, "checkout completed redelivery ignored")
		return nil
	}

	// re-assert the pointer; the confirmation redirect may never have run
	prev, err := s.users.SwapCurrentSubscription(ctx, sub.UserID, sub.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "swap subscription pointer")
	}
	if prev != nil && *prev != sub.ID {
		if err := s.billingRepo.DeleteSubscription(ctx, *prev); err != nil {
			s.logg.Error(ctx, "delete superseded subscription", err)
		}
	}

	s.metrics.IncProcessed(eventType)
	s.logg.Info(ctx, "subscription activated by checkout completion")
	return nil
}

// handleSubscriptionDeleted tears the paid subscription down and falls the
// user back to the free tier, then runs the entitlement cascade.
func (s *Service) handleSubscriptionDeleted(ctx context.Context, eventType string, stripeSub *stripe.Subscription) error {
	if stripeSub.Status != stripe.SubscriptionStatusCanceled {
		s.logg.Info(ctx, "subscription deleted event with non-canceled status acknowledged")
		return nil
	}

	sub, err := s.billingRepo.FindSubscriptionByStripeID(ctx, stripeSub.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup subscription")
	}
	if sub == nil {
		// the external id is only stored on completion; a cancellation that
		// outruns the completion event is found via the metadata correlation id
		if id, idErr := subscriptionIDFromMetadata(stripeSub.Metadata); idErr == nil {
			sub, err = s.billingRepo.FindSubscriptionByID(ctx, id)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup subscription by metadata")
			}
		}
	}
	if sub == nil {
		// already torn down by an earlier delivery
		s.metrics.IncDuplicate(eventType)
		s.logg.Info(ctx, "cancellation for unknown subscription ignored")
		return nil
	}
	ctx = s.logg.WithSubscriptionID(s.logg.WithUserID(ctx, sub.UserID.String()), sub.ID.String())

	if sub.Status == enums.SubscriptionStatusIncomplete {
		// canceled before checkout ever completed: void the row so the late
		// completion cannot activate a subscription Stripe already tore down
		if _, err := s.users.ClearCurrentSubscription(ctx, sub.UserID, sub.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear subscription pointer")
		}
		if err := s.billingRepo.DeleteSubscription(ctx, sub.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "void pending subscription")
		}
		s.metrics.IncProcessed(eventType)
		s.logg.Info(ctx, "pending checkout voided by cancellation")
		return nil
	}

	var freePlan *models.Plan
	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.billingRepo.WithTx(tx)

		if err := repo.DeleteSubscription(ctx, sub.ID); err != nil {
			return err
		}

		plan, err := repo.EnsureFreePlan(ctx, s.freeLimit)
		if err != nil {
			return err
		}
		freePlan = plan

		fallback, err := repo.FindLatestFreeSubscription(ctx, sub.UserID)
		if err != nil {
			return err
		}
		if fallback == nil {
			fallback = &models.Subscription{
				ID:        uuid.New(),
				UserID:    sub.UserID,
				PlanID:    plan.ID,
				Price:     plan.Price,
				Status:    enums.SubscriptionStatusActive,
				StartDate: time.Now().UTC(),
			}
			if err := repo.CreateSubscription(ctx, fallback); err != nil {
				return err
			}
		}

		// the pointer write must ride the same transaction as the row changes,
		// or a rollback would leave it referencing the discarded fallback row
		prev, err := s.users.WithTx(tx).SwapCurrentSubscription(ctx, sub.UserID, fallback.ID)
		if err != nil {
			return err
		}
		if prev != nil && *prev != fallback.ID && *prev != sub.ID {
			if err := repo.DeleteSubscription(ctx, *prev); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "fall back to free tier")
	}

	// cascade failures are logged, not errored: re-running the enforcer on the
	// next transition converges to the same state
	if _, err := s.enforcer.EnforceAppLimit(ctx, sub.UserID, freePlan.AppLimit); err != nil {
		s.logg.Error(ctx, "enforce app limit after cancellation", err)
	}

	s.metrics.IncProcessed(eventType)
	s.logg.Info(ctx, "subscription canceled, user moved to free tier")
	return nil
}

func (s *Service) ackMalformed(ctx context.Context, eventType, msg string, err error) error {
	s.metrics.IncMalformed(eventType)
	if err != nil {
		s.logg.Error(ctx, "acknowledging malformed webhook: "+msg, err)
	} else {
		s.logg.Warn(ctx, "acknowledging malformed webhook: "+msg)
	}
	return nil
}

func subscriptionIDFromMetadata(metadata map[string]string) (uuid.UUID, error) {
	raw, ok := metadata[checkout.MetadataSubscriptionID]
	if !ok || raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "subscription id missing from metadata")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "subscription id is not a uuid")
	}
	return id, nil
}
