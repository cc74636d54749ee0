package apps

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sakibsarkar/docvia-backend/pkg/db/models"
)

// Repository handles app persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, app *models.App) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.App, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.App, error)
	CountActive(ctx context.Context, userID uuid.UUID) (int, error)
	OldestActiveIDs(ctx context.Context, userID uuid.UUID, limit int) ([]uuid.UUID, error)
	DeactivateByIDs(ctx context.Context, ids []uuid.UUID) (int, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an app repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, app *models.App) error {
	return r.db.WithContext(ctx).Create(app).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.App, error) {
	var app models.App
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&app).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &app, nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.App, error) {
	var apps []models.App
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC, id ASC").
		Find(&apps).Error; err != nil {
		return nil, err
	}
	return apps, nil
}

func (r *repository) CountActive(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.App{}).
		Where("user_id = ? AND is_active = ?", userID, true).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

// OldestActiveIDs returns up to limit active app ids, oldest first. The id
// tiebreak keeps the order stable across rows created in the same instant.
func (r *repository) OldestActiveIDs(ctx context.Context, userID uuid.UUID, limit int) ([]uuid.UUID, error) {
	if limit <= 0 {
		return nil, nil
	}
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.App{}).
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("created_at ASC, id ASC").
		Limit(limit).
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repository) DeactivateByIDs(ctx context.Context, ids []uuid.UUID) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).
		Model(&models.App{}).
		Where("id IN ?", ids).
		Update("is_active", false)
	if result.Error != nil {
		return 0, result.Error
	}
	return int(result.RowsAffected), nil
}

func (r *repository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	return r.db.WithContext(ctx).
		Model(&models.App{}).
		Where("id = ?", id).
		Update("is_active", active).Error
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&models.App{}).Error
}
