package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// FreePlanID is the well-known identifier of the lazily-seeded basic plan.
var FreePlanID = uuid.MustParse("0f1d6a52-7a9e-4c61-9b41-3de5a3f1c001")

// UnlimitedApps marks a plan without an app cap.
const UnlimitedApps = -1

// Plan is an immutable catalog row describing a purchasable subscription tier.
type Plan struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Name            string          `gorm:"column:name;not null"`
	Price           decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	StripePriceID   string          `gorm:"column:stripe_price_id;not null;default:''"`
	AppLimit        int             `gorm:"column:app_limit;not null;default:1"`
	DurationMonths  int             `gorm:"column:duration_months;not null;default:1"`
	TrialPeriodDays int             `gorm:"column:trial_period_days;not null;default:0"`
	Features        pq.StringArray  `gorm:"column:features;type:text[];default:ARRAY[]::text[]"`
	IsActive        bool            `gorm:"column:is_active;not null;default:true"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// IsFree reports whether the plan carries no charge.
func (p *Plan) IsFree() bool {
	return p.Price.IsZero()
}

// AllowsApps reports whether activeCount active apps fit within the plan limit.
func (p *Plan) AllowsApps(activeCount int) bool {
	if p.AppLimit == UnlimitedApps {
		return true
	}
	return activeCount <= p.AppLimit
}
