package checkout

import (
	"github.com/google/uuid"
)

// StartCheckoutRequest captures the plan the user wants to subscribe to.
type StartCheckoutRequest struct {
	PlanID uuid.UUID `json:"plan_id" validate:"required"`
}

// StartCheckoutResponse carries the hosted checkout page URL.
type StartCheckoutResponse struct {
	CheckoutURL    string    `json:"checkout_url"`
	SubscriptionID uuid.UUID `json:"subscription_id"`
}

// ConfirmOutcome is the terminal state the confirmation page renders.
type ConfirmOutcome string

const (
	// ConfirmOutcomeActive means the webhook already activated the subscription.
	ConfirmOutcomeActive ConfirmOutcome = "active"
	// ConfirmOutcomePending means payment confirmation has not arrived yet.
	ConfirmOutcomePending ConfirmOutcome = "pending"
	// ConfirmOutcomeCanceled means the user abandoned the checkout.
	ConfirmOutcomeCanceled ConfirmOutcome = "canceled"
)

// ConfirmResult is what the confirmation controller renders after a redirect.
type ConfirmResult struct {
	Outcome        ConfirmOutcome `json:"outcome"`
	SubscriptionID uuid.UUID      `json:"subscription_id"`
	PlanName       string         `json:"plan_name,omitempty"`
}
