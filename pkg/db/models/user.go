package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents the canonical identity entity. CurrentSubscriptionID is the
// single source of truth for which subscription governs the user's entitlements.
type User struct {
	ID                    uuid.UUID  `gorm:"type:uuid;primaryKey"`
	Email                 string     `gorm:"type:text;not null;uniqueIndex"`
	PasswordHash          string     `gorm:"column:password_hash;not null"`
	Name                  string     `gorm:"column:name;not null"`
	CurrentSubscriptionID *uuid.UUID `gorm:"column:current_subscription_id;type:uuid"`
	StripeCustomerID      *string    `gorm:"column:stripe_customer_id"`
	CreatedAt             time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
