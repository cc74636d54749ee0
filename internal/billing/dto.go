package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sakibsarkar/docvia-backend/pkg/db/models"
	"github.com/sakibsarkar/docvia-backend/pkg/enums"
)

// PlanDTO is the catalog entry shown to users.
type PlanDTO struct {
	ID              uuid.UUID       `json:"id"`
	Name            string          `json:"name"`
	Price           decimal.Decimal `json:"price"`
	AppLimit        int             `json:"app_limit"`
	DurationMonths  int             `json:"duration_months"`
	TrialPeriodDays int             `json:"trial_period_days"`
	Features        []string        `json:"features"`
	IsFree          bool            `json:"is_free"`
}

// SubscriptionDTO is the transport shape of the user's current subscription.
type SubscriptionDTO struct {
	ID        uuid.UUID                `json:"id"`
	PlanID    uuid.UUID                `json:"plan_id"`
	Price     decimal.Decimal          `json:"price"`
	Status    enums.SubscriptionStatus `json:"status"`
	StartDate time.Time                `json:"start_date"`
}

// PlanFromModel converts a catalog row into its transport shape.
func PlanFromModel(p *models.Plan) *PlanDTO {
	if p == nil {
		return nil
	}
	return &PlanDTO{
		ID:              p.ID,
		Name:            p.Name,
		Price:           p.Price,
		AppLimit:        p.AppLimit,
		DurationMonths:  p.DurationMonths,
		TrialPeriodDays: p.TrialPeriodDays,
		Features:        []string(p.Features),
		IsFree:          p.IsFree(),
	}
}

// PlansFromModels converts a list of catalog rows.
func PlansFromModels(list []models.Plan) []PlanDTO {
	out := make([]PlanDTO, 0, len(list))
	for i := range list {
		out = append(out, *PlanFromModel(&list[i]))
	}
	return out
}

// SubscriptionFromModel converts a subscription row into its transport shape.
// External processor identifiers stay internal.
func SubscriptionFromModel(s *models.Subscription) *SubscriptionDTO {
	if s == nil {
		return nil
	}
	return &SubscriptionDTO{
		ID:        s.ID,
		PlanID:    s.PlanID,
		Price:     s.Price,
		Status:    s.Status,
		StartDate: s.StartDate,
	}
}
