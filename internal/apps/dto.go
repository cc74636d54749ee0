package apps

import (
	"time"

	"github.com/google/uuid"

	"github.com/sakibsarkar/docvia-backend/pkg/db/models"
)

// AppDTO is the transport shape for a registered app.
type AppDTO struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateAppRequest captures the payload for registering an app.
type CreateAppRequest struct {
	Name string `json:"name" validate:"required,min=1,max=120"`
}

// FromModel converts a persisted app into its transport shape.
func FromModel(a *models.App) *AppDTO {
	if a == nil {
		return nil
	}
	return &AppDTO{
		ID:        a.ID,
		Name:      a.Name,
		IsActive:  a.IsActive,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

// FromModels converts a list of persisted apps.
func FromModels(list []models.App) []AppDTO {
	out := make([]AppDTO, 0, len(list))
	for i := range list {
		out = append(out, *FromModel(&list[i]))
	}
	return out
}
