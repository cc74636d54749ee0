package apps

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sakibsarkar/docvia-backend/pkg/db/models"
	pkgerrors "github.com/sakibsarkar/docvia-backend/pkg/errors"
)

type stubAppRepo struct {
	apps map[uuid.UUID]*models.App
}

func newStubAppRepo() *stubAppRepo {
	return &stubAppRepo{apps: map[uuid.UUID]*models.App{}}
}

func (s *stubAppRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubAppRepo) Create(ctx context.Context, app *models.App) error {
	clone := *app
	s.apps[app.ID] = &clone
	return nil
}

func (s *stubAppRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.App, error) {
	if app, ok := s.apps[id]; ok {
		clone := *app
		return &clone, nil
	}
	return nil, nil
}

func (s *stubAppRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.App, error) {
	var out []models.App
	for _, app := range s.apps {
		if app.UserID == userID {
			out = append(out, *app)
		}
	}
	return out, nil
}

func (s *stubAppRepo) CountActive(ctx context.Context, userID uuid.UUID) (int, error) {
	count := 0
	for _, app := range s.apps {
		if app.UserID == userID && app.IsActive {
			count++
		}
	}
	return count, nil
}

func (s *stubAppRepo) OldestActiveIDs(ctx context.Context, userID uuid.UUID, limit int) ([]uuid.UUID, error) {
	return nil, nil
}

func (s *stubAppRepo) DeactivateByIDs(ctx context.Context, ids []uuid.UUID) (int, error) {
	affected := 0
	for _, id := range ids {
		if app, ok := s.apps[id]; ok && app.IsActive {
			app.IsActive = false
			affected++
		}
	}
	return affected, nil
}

func (s *stubAppRepo) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	if app, ok := s.apps[id]; ok {
		app.IsActive = active
	}
	return nil
}

func (s *stubAppRepo) Delete(ctx context.Context, id uuid.UUID) error {
	delete(s.apps, id)
	return nil
}

type stubResolver struct {
	plan *models.Plan
	err  error
}

func (s *stubResolver) ResolvePlan(ctx context.Context, userID uuid.UUID) (*models.Plan, error) {
	return s.plan, s.err
}

func freePlan() *models.Plan {
	return &models.Plan{ID: models.FreePlanID, Name: "Free", AppLimit: 1, IsActive: true}
}

func proPlan() *models.Plan {
	return &models.Plan{ID: uuid.New(), Name: "Pro", AppLimit: models.UnlimitedApps, IsActive: true}
}

func buildAppService(t *testing.T, repo Repository, resolver planResolver) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{Repo: repo, Resolver: resolver})
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	return svc
}

func TestCreateEnforcesFreePlanLimit(t *testing.T) {
	repo := newStubAppRepo()
	svc := buildAppService(t, repo, &stubResolver{plan: freePlan()})
	userID := uuid.New()

	first, err := svc.Create(context.Background(), userID, CreateAppRequest{Name: "first"})
	if err != nil {
		t.Fatalf("create first app: %v", err)
	}
	if !first.IsActive {
		t.Fatal("expected new app to be active")
	}

	_, err = svc.Create(context.Background(), userID, CreateAppRequest{Name: "second"})
	if coded := pkgerrors.As(err); coded == nil || coded.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestCreateUnlimitedPlanSkipsCount(t *testing.T) {
	repo := newStubAppRepo()
	svc := buildAppService(t, repo, &stubResolver{plan: proPlan()})
	userID := uuid.New()

	for i := 0; i < 5; i++ {
		if _, err := svc.Create(context.Background(), userID, CreateAppRequest{Name: "app"}); err != nil {
			t.Fatalf("create app %d: %v", i, err)
		}
	}
}

func TestActivateRespectsLimit(t *testing.T) {
	repo := newStubAppRepo()
	svc := buildAppService(t, repo, &stubResolver{plan: freePlan()})
	userID := uuid.New()

	active, err := svc.Create(context.Background(), userID, CreateAppRequest{Name: "active"})
	if err != nil {
		t.Fatalf("create active app: %v", err)
	}

	inactive := &models.App{ID: uuid.New(), UserID: userID, Name: "parked", IsActive: false}
	if err := repo.Create(context.Background(), inactive); err != nil {
		t.Fatalf("seed inactive app: %v", err)
	}

	_, err = svc.Activate(context.Background(), userID, inactive.ID)
	if coded := pkgerrors.As(err); coded == nil || coded.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}

	// freeing the slot lets the activation through
	if _, err := svc.Deactivate(context.Background(), userID, active.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	got, err := svc.Activate(context.Background(), userID, inactive.ID)
	if err != nil {
		t.Fatalf("activate after freeing slot: %v", err)
	}
	if !got.IsActive {
		t.Fatal("expected app to be active")
	}

	// activating an already-active app is a no-op
	again, err := svc.Activate(context.Background(), userID, inactive.ID)
	if err != nil {
		t.Fatalf("re-activate: %v", err)
	}
	if !again.IsActive {
		t.Fatal("expected app to stay active")
	}
}

func TestOwnershipScopesAccess(t *testing.T) {
	repo := newStubAppRepo()
	svc := buildAppService(t, repo, &stubResolver{plan: proPlan()})

	owner := uuid.New()
	app, err := svc.Create(context.Background(), owner, CreateAppRequest{Name: "mine"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err = svc.Get(context.Background(), uuid.New(), app.ID)
	if coded := pkgerrors.As(err); coded == nil || coded.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found for foreign user, got %v", err)
	}

	if err := svc.Delete(context.Background(), owner, app.ID); err != nil {
		t.Fatalf("delete own app: %v", err)
	}
	if err := svc.Delete(context.Background(), owner, app.ID); err == nil {
		t.Fatal("expected not found deleting twice")
	}
}
