package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sakibsarkar/docvia-backend/pkg/enums"
)

// Subscription is the mutable entitlement record for a user. Its id is minted
// locally by the checkout initiator so redirect URLs can reference it before
// Stripe has confirmed anything.
type Subscription struct {
	ID                   uuid.UUID                `gorm:"type:uuid;primaryKey"`
	UserID               uuid.UUID                `gorm:"column:user_id;type:uuid;not null;index"`
	PlanID               uuid.UUID                `gorm:"column:plan_id;type:uuid;not null"`
	Price                decimal.Decimal          `gorm:"column:price;type:numeric(12,2);not null"`
	Status               enums.SubscriptionStatus `gorm:"column:status;not null;default:'incomplete'"`
	StartDate            time.Time                `gorm:"column:start_date;not null"`
	StripeSubscriptionID string                   `gorm:"column:stripe_subscription_id;not null;default:''"`
	StripeCustomerID     string                   `gorm:"column:stripe_customer_id;not null;default:''"`
	CreatedAt            time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}
