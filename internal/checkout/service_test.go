package checkout

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sakibsarkar/docvia-backend/internal/billing"
	"github.com/sakibsarkar/docvia-backend/pkg/config"
	"github.com/sakibsarkar/docvia-backend/pkg/confirm"
	"github.com/sakibsarkar/docvia-backend/pkg/db/models"
	"github.com/sakibsarkar/docvia-backend/pkg/enums"
	pkgerrors "github.com/sakibsarkar/docvia-backend/pkg/errors"
	"github.com/sakibsarkar/docvia-backend/pkg/logger"
	"github.com/sakibsarkar/docvia-backend/pkg/stripe"
)

type stubBillingRepo struct {
	plans   map[uuid.UUID]*models.Plan
	subs    map[uuid.UUID]*models.Subscription
	deleted []uuid.UUID
}

func newStubBillingRepo() *stubBillingRepo {
	return &stubBillingRepo{
		plans: map[uuid.UUID]*models.Plan{},
		subs:  map[uuid.UUID]*models.Subscription{},
	}
}

func (s *stubBillingRepo) WithTx(tx *gorm.DB) billing.Repository { return s }

func (s *stubBillingRepo) EnsureFreePlan(ctx context.Context, appLimit int) (*models.Plan, error) {
	plan := &models.Plan{ID: models.FreePlanID, Name: "Free", AppLimit: appLimit, IsActive: true}
	s.plans[plan.ID] = plan
	return plan, nil
}

func (s *stubBillingRepo) ListActivePlans(ctx context.Context) ([]models.Plan, error) {
	return nil, nil
}

func (s *stubBillingRepo) FindPlanByID(ctx context.Context, id uuid.UUID) (*models.Plan, error) {
	if p, ok := s.plans[id]; ok {
		return p, nil
	}
	return nil, nil
}

func (s *stubBillingRepo) CreateSubscription(ctx context.Context, sub *models.Subscription) error {
	clone := *sub
	s.subs[sub.ID] = &clone
	return nil
}

func (s *stubBillingRepo) FindSubscriptionByID(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	if sub, ok := s.subs[id]; ok {
		clone := *sub
		return &clone, nil
	}
	return nil, nil
}

func (s *stubBillingRepo) FindSubscriptionByStripeID(ctx context.Context, id string) (*models.Subscription, error) {
	return nil, nil
}

func (s *stubBillingRepo) FindLatestFreeSubscription(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	return nil, nil
}

func (s *stubBillingRepo) DeleteSubscription(ctx context.Context, id uuid.UUID) error {
	delete(s.subs, id)
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *stubBillingRepo) ActivateSubscription(ctx context.Context, id uuid.UUID, stripeSubID, stripeCustomerID string) (bool, error) {
	return false, nil
}

type stubUsers struct {
	users    map[uuid.UUID]*models.User
	customer []string
}

func (s *stubUsers) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if u, ok := s.users[id]; ok {
		clone := *u
		return &clone, nil
	}
	return nil, nil
}

func (s *stubUsers) SwapCurrentSubscription(ctx context.Context, userID, to uuid.UUID) (*uuid.UUID, error) {
	u, ok := s.users[userID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	prev := u.CurrentSubscriptionID
	u.CurrentSubscriptionID = &to
	return prev, nil
}

func (s *stubUsers) ClearCurrentSubscription(ctx context.Context, userID, subscriptionID uuid.UUID) (bool, error) {
	u, ok := s.users[userID]
	if !ok || u.CurrentSubscriptionID == nil || *u.CurrentSubscriptionID != subscriptionID {
		return false, nil
	}
	u.CurrentSubscriptionID = nil
	return true, nil
}

func (s *stubUsers) SetStripeCustomerID(ctx context.Context, userID uuid.UUID, customerID string) error {
	if u, ok := s.users[userID]; ok {
		u.StripeCustomerID = &customerID
	}
	s.customer = append(s.customer, customerID)
	return nil
}

type stubStripe struct {
	sessions   []stripe.CheckoutSessionParams
	customers  int
	sessionErr error
}

func (s *stubStripe) CreateCustomer(ctx context.Context, name, email string) (string, error) {
	s.customers++
	return "cus_stub", nil
}

func (s *stubStripe) CreateCheckoutSession(ctx context.Context, params stripe.CheckoutSessionParams) (string, error) {
	if s.sessionErr != nil {
		return "", s.sessionErr
	}
	s.sessions = append(s.sessions, params)
	return "https://checkout.stripe.com/c/pay/test", nil
}

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{Secret: "secret", Issuer: "docvia", ExpirationMinutes: 30}
}

func testBillingConfig() config.BillingConfig {
	return config.BillingConfig{
		ConfirmBaseURL:  "https://app.docvia.test/billing/confirm",
		ConfirmTokenTTL: 5 * time.Minute,
	}
}

func buildCheckout(t *testing.T, repo billing.Repository, users userRepository, sc stripe.BillingClient) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		BillingRepo: repo,
		UserRepo:    users,
		Stripe:      sc,
		Logger:      logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		JWTConfig:   testJWTConfig(),
		Billing:     testBillingConfig(),
	})
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	return svc
}

func seedPaidPlan(repo *stubBillingRepo) *models.Plan {
	plan := &models.Plan{
		ID:            uuid.New(),
		Name:          "Pro",
		StripePriceID: "price_pro",
		AppLimit:      models.UnlimitedApps,
		IsActive:      true,
	}
	repo.plans[plan.ID] = plan
	return plan
}

func seedUser(users *stubUsers) *models.User {
	u := &models.User{ID: uuid.New(), Email: "buyer@example.com", Name: "Buyer"}
	users.users[u.ID] = u
	return u
}

func TestStartCheckoutPersistsIncompleteRowFirst(t *testing.T) {
	repo := newStubBillingRepo()
	users := &stubUsers{users: map[uuid.UUID]*models.User{}}
	sc := &stubStripe{}
	svc := buildCheckout(t, repo, users, sc)

	plan := seedPaidPlan(repo)
	user := seedUser(users)

	resp, err := svc.StartCheckout(context.Background(), user.ID, StartCheckoutRequest{PlanID: plan.ID})
	if err != nil {
		t.Fatalf("start checkout: %v", err)
	}
	if resp.CheckoutURL == "" {
		t.Fatal("expected checkout url")
	}

	sub := repo.subs[resp.SubscriptionID]
	if sub == nil {
		t.Fatal("expected persisted subscription row")
	}
	if sub.Status != enums.SubscriptionStatusIncomplete {
		t.Fatalf("expected incomplete status, got %s", sub.Status)
	}
	if sub.StripeSubscriptionID != "" {
		t.Fatalf("expected empty external id before webhook, got %q", sub.StripeSubscriptionID)
	}

	if sc.customers != 1 {
		t.Fatalf("expected one customer creation, got %d", sc.customers)
	}
	if len(sc.sessions) != 1 {
		t.Fatalf("expected one session, got %d", len(sc.sessions))
	}
	session := sc.sessions[0]
	if session.Metadata[MetadataSubscriptionID] != resp.SubscriptionID.String() {
		t.Fatalf("session metadata missing subscription id")
	}
	if session.SuccessURL == session.CancelURL {
		t.Fatal("expected distinct success and cancel urls")
	}
}

func TestStartCheckoutRollsBackOnSessionFailure(t *testing.T) {
	repo := newStubBillingRepo()
	users := &stubUsers{users: map[uuid.UUID]*models.User{}}
	sc := &stubStripe{sessionErr: errors.New("stripe down")}
	svc := buildCheckout(t, repo, users, sc)

	plan := seedPaidPlan(repo)
	user := seedUser(users)

	_, err := svc.StartCheckout(context.Background(), user.ID, StartCheckoutRequest{PlanID: plan.ID})
	if coded := pkgerrors.As(err); coded == nil || coded.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
	if len(repo.subs) != 0 {
		t.Fatalf("expected provisional row to be rolled back, %d rows remain", len(repo.subs))
	}
}

func TestStartCheckoutRejectsFreePlan(t *testing.T) {
	repo := newStubBillingRepo()
	users := &stubUsers{users: map[uuid.UUID]*models.User{}}
	svc := buildCheckout(t, repo, users, &stubStripe{})

	free := &models.Plan{ID: models.FreePlanID, Name: "Free", AppLimit: 1, IsActive: true}
	repo.plans[free.ID] = free
	user := seedUser(users)

	_, err := svc.StartCheckout(context.Background(), user.ID, StartCheckoutRequest{PlanID: free.ID})
	if coded := pkgerrors.As(err); coded == nil || coded.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestStartCheckoutReusesStoredCustomer(t *testing.T) {
	repo := newStubBillingRepo()
	users := &stubUsers{users: map[uuid.UUID]*models.User{}}
	sc := &stubStripe{}
	svc := buildCheckout(t, repo, users, sc)

	plan := seedPaidPlan(repo)
	user := seedUser(users)
	existing := "cus_existing"
	users.users[user.ID].StripeCustomerID = &existing

	_, err := svc.StartCheckout(context.Background(), user.ID, StartCheckoutRequest{PlanID: plan.ID})
	if err != nil {
		t.Fatalf("start checkout: %v", err)
	}
	if sc.customers != 0 {
		t.Fatalf("expected no customer creation, got %d", sc.customers)
	}
	if sc.sessions[0].CustomerID != existing {
		t.Fatalf("expected stored customer id, got %q", sc.sessions[0].CustomerID)
	}
}

func TestConfirmFlipsPointerAndDeletesSuperseded(t *testing.T) {
	repo := newStubBillingRepo()
	users := &stubUsers{users: map[uuid.UUID]*models.User{}}
	svc := buildCheckout(t, repo, users, &stubStripe{})

	user := seedUser(users)
	oldSub := &models.Subscription{ID: uuid.New(), UserID: user.ID, PlanID: models.FreePlanID, Status: enums.SubscriptionStatusActive}
	repo.subs[oldSub.ID] = oldSub
	users.users[user.ID].CurrentSubscriptionID = &oldSub.ID

	plan := seedPaidPlan(repo)
	newSub := &models.Subscription{ID: uuid.New(), UserID: user.ID, PlanID: plan.ID, Status: enums.SubscriptionStatusIncomplete}
	repo.subs[newSub.ID] = newSub

	token, err := confirm.Sign(testJWTConfig(), time.Now().UTC(), 5*time.Minute, newSub.ID, user.ID)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	result, err := svc.ConfirmFromRedirect(context.Background(), token, false)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	// pointer flips even though the webhook has not activated the row yet
	if result.Outcome != ConfirmOutcomePending {
		t.Fatalf("expected pending outcome, got %s", result.Outcome)
	}
	if got := users.users[user.ID].CurrentSubscriptionID; got == nil || *got != newSub.ID {
		t.Fatal("expected pointer to flip to the new subscription")
	}
	if _, ok := repo.subs[oldSub.ID]; ok {
		t.Fatal("expected superseded subscription to be deleted")
	}

	// idempotent: a second hit re-sets the same pointer and deletes nothing new
	deleted := len(repo.deleted)
	if _, err := svc.ConfirmFromRedirect(context.Background(), token, false); err != nil {
		t.Fatalf("second confirm: %v", err)
	}
	if len(repo.deleted) != deleted {
		t.Fatalf("expected no additional deletions, got %d", len(repo.deleted)-deleted)
	}
}

func TestConfirmCancelVoidsIncompleteRow(t *testing.T) {
	repo := newStubBillingRepo()
	users := &stubUsers{users: map[uuid.UUID]*models.User{}}
	svc := buildCheckout(t, repo, users, &stubStripe{})

	user := seedUser(users)
	plan := seedPaidPlan(repo)
	sub := &models.Subscription{ID: uuid.New(), UserID: user.ID, PlanID: plan.ID, Status: enums.SubscriptionStatusIncomplete}
	repo.subs[sub.ID] = sub

	token, err := confirm.Sign(testJWTConfig(), time.Now().UTC(), 5*time.Minute, sub.ID, user.ID)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	result, err := svc.ConfirmFromRedirect(context.Background(), token, true)
	if err != nil {
		t.Fatalf("confirm cancel: %v", err)
	}
	if result.Outcome != ConfirmOutcomeCanceled {
		t.Fatalf("expected canceled outcome, got %s", result.Outcome)
	}
	if _, ok := repo.subs[sub.ID]; ok {
		t.Fatal("expected abandoned row to be voided")
	}
	if users.users[user.ID].CurrentSubscriptionID != nil {
		t.Fatal("expected pointer to stay untouched on cancel")
	}
}

func TestConfirmCancelAfterSuccessClearsPointer(t *testing.T) {
	repo := newStubBillingRepo()
	users := &stubUsers{users: map[uuid.UUID]*models.User{}}
	svc := buildCheckout(t, repo, users, &stubStripe{})

	user := seedUser(users)
	plan := seedPaidPlan(repo)
	sub := &models.Subscription{ID: uuid.New(), UserID: user.ID, PlanID: plan.ID, Status: enums.SubscriptionStatusIncomplete}
	repo.subs[sub.ID] = sub

	token, err := confirm.Sign(testJWTConfig(), time.Now().UTC(), 5*time.Minute, sub.ID, user.ID)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	// success redirect installs the incomplete row as the pointer
	if _, err := svc.ConfirmFromRedirect(context.Background(), token, false); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if got := users.users[user.ID].CurrentSubscriptionID; got == nil || *got != sub.ID {
		t.Fatal("expected pointer to reference the pending row")
	}

	// the back button replays the cancel redirect with the same token
	result, err := svc.ConfirmFromRedirect(context.Background(), token, true)
	if err != nil {
		t.Fatalf("confirm cancel: %v", err)
	}
	if result.Outcome != ConfirmOutcomeCanceled {
		t.Fatalf("expected canceled outcome, got %s", result.Outcome)
	}
	if _, ok := repo.subs[sub.ID]; ok {
		t.Fatal("expected abandoned row to be voided")
	}
	if users.users[user.ID].CurrentSubscriptionID != nil {
		t.Fatal("expected voided row to be dropped from the pointer")
	}
}

func TestConfirmGenericFailureOnBadToken(t *testing.T) {
	repo := newStubBillingRepo()
	users := &stubUsers{users: map[uuid.UUID]*models.User{}}
	svc := buildCheckout(t, repo, users, &stubStripe{})

	cases := []string{"", "garbage", "a.b.c"}
	for _, token := range cases {
		_, err := svc.ConfirmFromRedirect(context.Background(), token, false)
		coded := pkgerrors.As(err)
		if coded == nil || coded.Code() != pkgerrors.CodeUnauthorized {
			t.Fatalf("token %q: expected unauthorized, got %v", token, err)
		}
		if coded.Message() != confirmFailedMessage {
			t.Fatalf("token %q: expected generic message, got %q", token, coded.Message())
		}
	}

	// expired token gets the same generic answer
	user := seedUser(users)
	sub := &models.Subscription{ID: uuid.New(), UserID: user.ID, PlanID: uuid.New(), Status: enums.SubscriptionStatusIncomplete}
	repo.subs[sub.ID] = sub
	expired, err := confirm.Sign(testJWTConfig(), time.Now().UTC().Add(-time.Hour), 5*time.Minute, sub.ID, user.ID)
	if err != nil {
		t.Fatalf("sign expired token: %v", err)
	}
	_, err = svc.ConfirmFromRedirect(context.Background(), expired, false)
	coded := pkgerrors.As(err)
	if coded == nil || coded.Message() != confirmFailedMessage {
		t.Fatalf("expected generic failure for expired token, got %v", err)
	}
}
