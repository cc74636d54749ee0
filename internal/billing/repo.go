package billing

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sakibsarkar/docvia-backend/pkg/db/models"
	"github.com/sakibsarkar/docvia-backend/pkg/enums"
)

// Repository handles plan and subscription persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	EnsureFreePlan(ctx context.Context, appLimit int) (*models.Plan, error)
	ListActivePlans(ctx context.Context) ([]models.Plan, error)
	FindPlanByID(ctx context.Context, id uuid.UUID) (*models.Plan, error)
	CreateSubscription(ctx context.Context, subscription *models.Subscription) error
	FindSubscriptionByID(ctx context.Context, id uuid.UUID) (*models.Subscription, error)
	FindSubscriptionByStripeID(ctx context.Context, stripeSubscriptionID string) (*models.Subscription, error)
	FindLatestFreeSubscription(ctx context.Context, userID uuid.UUID) (*models.Subscription, error)
	DeleteSubscription(ctx context.Context, id uuid.UUID) error
	ActivateSubscription(ctx context.Context, id uuid.UUID, stripeSubscriptionID, stripeCustomerID string) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a billing repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// EnsureFreePlan creates the free plan row if the migration seed is missing.
func (r *repository) EnsureFreePlan(ctx context.Context, appLimit int) (*models.Plan, error) {
	if appLimit == 0 {
		appLimit = 1
	}
	plan := models.Plan{
		ID:             models.FreePlanID,
		Name:           "Free",
		AppLimit:       appLimit,
		DurationMonths: 1,
		IsActive:       true,
	}
	if err := r.db.WithContext(ctx).
		Where("id = ?", models.FreePlanID).
		FirstOrCreate(&plan).Error; err != nil {
		return nil, err
	}
	return &plan, nil
}

func (r *repository) ListActivePlans(ctx context.Context) ([]models.Plan, error) {
	var plans []models.Plan
	if err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("price ASC").
		Find(&plans).Error; err != nil {
		return nil, err
	}
	return plans, nil
}

func (r *repository) FindPlanByID(ctx context.Context, id uuid.UUID) (*models.Plan, error) {
	var plan models.Plan
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&plan).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &plan, nil
}

func (r *repository) CreateSubscription(ctx context.Context, subscription *models.Subscription) error {
	return r.db.WithContext(ctx).Create(subscription).Error
}

func (r *repository) FindSubscriptionByID(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&sub).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

func (r *repository) FindSubscriptionByStripeID(ctx context.Context, stripeSubscriptionID string) (*models.Subscription, error) {
	if stripeSubscriptionID == "" {
		return nil, nil
	}
	var sub models.Subscription
	if err := r.db.WithContext(ctx).
		Where("stripe_subscription_id = ?", stripeSubscriptionID).
		First(&sub).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

// FindLatestFreeSubscription returns the user's most recent active free-plan subscription.
func (r *repository) FindLatestFreeSubscription(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND plan_id = ? AND status = ?", userID, models.FreePlanID, enums.SubscriptionStatusActive).
		Order("created_at DESC").
		First(&sub).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

func (r *repository) DeleteSubscription(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&models.Subscription{}).Error
}

// ActivateSubscription flips an incomplete subscription to active and stores the
// provider identifiers. Returns false when the row already left the incomplete
// state, which callers treat as a redelivered event.
func (r *repository) ActivateSubscription(ctx context.Context, id uuid.UUID, stripeSubscriptionID, stripeCustomerID string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("id = ? AND status = ?", id, enums.SubscriptionStatusIncomplete).
		Updates(map[string]any{
			"status":                 enums.SubscriptionStatusActive,
			"stripe_subscription_id": stripeSubscriptionID,
			"stripe_customer_id":     stripeCustomerID,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
