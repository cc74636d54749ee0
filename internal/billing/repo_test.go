package billing

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/sakibsarkar/docvia-backend/pkg/db/models"
	"github.com/sakibsarkar/docvia-backend/pkg/enums"
)

func setupBillingTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	plans := `
CREATE TABLE IF NOT EXISTS plans (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  price NUMERIC NOT NULL DEFAULT 0,
  stripe_price_id TEXT NOT NULL DEFAULT '',
  app_limit INTEGER NOT NULL DEFAULT 1,
  duration_months INTEGER NOT NULL DEFAULT 1,
  trial_period_days INTEGER NOT NULL DEFAULT 0,
  features TEXT NOT NULL DEFAULT '{}',
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`
	subscriptions := `
CREATE TABLE IF NOT EXISTS subscriptions (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  plan_id TEXT NOT NULL,
  price NUMERIC NOT NULL DEFAULT 0,
  status TEXT NOT NULL DEFAULT 'incomplete',
  start_date DATETIME,
  stripe_subscription_id TEXT NOT NULL DEFAULT '',
  stripe_customer_id TEXT NOT NULL DEFAULT '',
  created_at DATETIME,
  updated_at DATETIME
);`

	require.NoError(t, db.Exec(plans).Error)
	require.NoError(t, db.Exec(subscriptions).Error)
	return db
}

func TestEnsureFreePlanIsIdempotent(t *testing.T) {
	db := setupBillingTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	first, err := repo.EnsureFreePlan(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, models.FreePlanID, first.ID)
	assert.True(t, first.IsFree())

	second, err := repo.EnsureFreePlan(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, db.Model(&models.Plan{}).Where("id = ?", models.FreePlanID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestActivateSubscriptionTransitionsOnce(t *testing.T) {
	db := setupBillingTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	sub := &models.Subscription{
		ID:     uuid.New(),
		UserID: uuid.New(),
		PlanID: uuid.New(),
		Status: enums.SubscriptionStatusIncomplete,
	}
	require.NoError(t, repo.CreateSubscription(ctx, sub))

	stripeSubID := "sub_" + uuid.NewString()
	updated, err := repo.ActivateSubscription(ctx, sub.ID, stripeSubID, "cus_123")
	require.NoError(t, err)
	assert.True(t, updated)

	found, err := repo.FindSubscriptionByID(ctx, sub.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, enums.SubscriptionStatusActive, found.Status)
	assert.Equal(t, stripeSubID, found.StripeSubscriptionID)
	assert.Equal(t, "cus_123", found.StripeCustomerID)

	// redelivery: the row is no longer incomplete
	again, err := repo.ActivateSubscription(ctx, sub.ID, stripeSubID, "cus_123")
	require.NoError(t, err)
	assert.False(t, again)
}

func TestFindSubscriptionByStripeID(t *testing.T) {
	db := setupBillingTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	stripeSubID := "sub_" + uuid.NewString()
	sub := &models.Subscription{
		ID:                   uuid.New(),
		UserID:               uuid.New(),
		PlanID:               uuid.New(),
		Status:               enums.SubscriptionStatusActive,
		StripeSubscriptionID: stripeSubID,
	}
	require.NoError(t, repo.CreateSubscription(ctx, sub))

	found, err := repo.FindSubscriptionByStripeID(ctx, stripeSubID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, sub.ID, found.ID)

	missing, err := repo.FindSubscriptionByStripeID(ctx, "sub_"+uuid.NewString())
	require.NoError(t, err)
	assert.Nil(t, missing)

	blank, err := repo.FindSubscriptionByStripeID(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, blank)
}

func TestFindLatestFreeSubscription(t *testing.T) {
	db := setupBillingTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	userID := uuid.New()

	missing, err := repo.FindLatestFreeSubscription(ctx, userID)
	require.NoError(t, err)
	assert.Nil(t, missing)

	canceledFree := &models.Subscription{
		ID:     uuid.New(),
		UserID: userID,
		PlanID: models.FreePlanID,
		Status: enums.SubscriptionStatusCanceled,
	}
	require.NoError(t, repo.CreateSubscription(ctx, canceledFree))

	activeFree := &models.Subscription{
		ID:     uuid.New(),
		UserID: userID,
		PlanID: models.FreePlanID,
		Status: enums.SubscriptionStatusActive,
	}
	require.NoError(t, repo.CreateSubscription(ctx, activeFree))

	found, err := repo.FindLatestFreeSubscription(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, activeFree.ID, found.ID)
}

func TestDeleteSubscriptionRemovesRow(t *testing.T) {
	db := setupBillingTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	sub := &models.Subscription{
		ID:     uuid.New(),
		UserID: uuid.New(),
		PlanID: uuid.New(),
		Status: enums.SubscriptionStatusActive,
	}
	require.NoError(t, repo.CreateSubscription(ctx, sub))
	require.NoError(t, repo.DeleteSubscription(ctx, sub.ID))

	found, err := repo.FindSubscriptionByID(ctx, sub.ID)
	require.NoError(t, err)
	assert.Nil(t, found)

	// deleting an already-deleted row is a no-op
	require.NoError(t, repo.DeleteSubscription(ctx, sub.ID))
}
