package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/sakibsarkar/docvia-backend/pkg/db/models"
)

// UserDTO is the transport shape that omits sensitive credentials.
type UserDTO struct {
	ID                    uuid.UUID  `json:"id"`
	Email                 string     `json:"email"`
	Name                  string     `json:"name"`
	CurrentSubscriptionID *uuid.UUID `json:"current_subscription_id,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

// RegisterRequest captures the signup form.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Name     string `json:"name" validate:"required,min=1,max=120"`
}

// LoginRequest captures the user credentials sent to the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse contains the token and user produced by register or login.
type AuthResponse struct {
	AccessToken string   `json:"access_token"`
	User        *UserDTO `json:"user"`
}

// FromModel converts a persisted user into its transport shape.
func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}
	return &UserDTO{
		ID:                    u.ID,
		Email:                 u.Email,
		Name:                  u.Name,
		CurrentSubscriptionID: u.CurrentSubscriptionID,
		CreatedAt:             u.CreatedAt,
		UpdatedAt:             u.UpdatedAt,
	}
}
