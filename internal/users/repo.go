package users

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sakibsarkar/docvia-backend/pkg/db/models"
)

// Repository handles user persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	SetCurrentSubscriptionIfNull(ctx context.Context, userID, subscriptionID uuid.UUID) (bool, error)
	UpdateCurrentSubscription(ctx context.Context, userID uuid.UUID, from *uuid.UUID, to uuid.UUID) (bool, error)
	ClearCurrentSubscription(ctx context.Context, userID, subscriptionID uuid.UUID) (bool, error)
	SwapCurrentSubscription(ctx context.Context, userID, to uuid.UUID) (*uuid.UUID, error)
	SetStripeCustomerID(ctx context.Context, userID uuid.UUID, customerID string) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a user repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, user *models.User) error {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (r *repository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// SetCurrentSubscriptionIfNull points the user at the subscription only when no
// pointer is set yet. Concurrent resolvers race on this write; exactly one wins.
func (r *repository) SetCurrentSubscriptionIfNull(ctx context.Context, userID, subscriptionID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ? AND current_subscription_id IS NULL", userID).
		Update("current_subscription_id", subscriptionID)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// UpdateCurrentSubscription swaps the pointer only while it still holds the
// expected previous value. A nil from means "expect no pointer".
func (r *repository) UpdateCurrentSubscription(ctx context.Context, userID uuid.UUID, from *uuid.UUID, to uuid.UUID) (bool, error) {
	query := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID)
	if from == nil {
		query = query.Where("current_subscription_id IS NULL")
	} else {
		query = query.Where("current_subscription_id = ?", *from)
	}
	result := query.Update("current_subscription_id", to)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ClearCurrentSubscription drops the pointer only while it still references
// the given subscription, so a voided row never leaves a dangling pointer.
func (r *repository) ClearCurrentSubscription(ctx context.Context, userID, subscriptionID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ? AND current_subscription_id = ?", userID, subscriptionID).
		Update("current_subscription_id", nil)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// SwapCurrentSubscription points the user at to, whatever the pointer held
// before, and returns the previous value. The read-then-CAS loop retries when a
// concurrent writer moves the pointer between the read and the write.
func (r *repository) SwapCurrentSubscription(ctx context.Context, userID, to uuid.UUID) (*uuid.UUID, error) {
	const maxAttempts = 5
	for attempt := 0; attempt < maxAttempts; attempt++ {
		user, err := r.FindByID(ctx, userID)
		if err != nil {
			return nil, err
		}
		if user == nil {
			return nil, gorm.ErrRecordNotFound
		}
		prev := user.CurrentSubscriptionID
		if prev != nil && *prev == to {
			return prev, nil
		}
		swapped, err := r.UpdateCurrentSubscription(ctx, userID, prev, to)
		if err != nil {
			return nil, err
		}
		if swapped {
			return prev, nil
		}
	}
	return nil, fmt.Errorf("subscription pointer swap for user %s did not settle", userID)
}

func (r *repository) SetStripeCustomerID(ctx context.Context, userID uuid.UUID, customerID string) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Update("stripe_customer_id", customerID).Error
}
