package auth

import (
	"github.com/google/uuid"
	"github.com/growersmarket/farmdirect-backend/pkg/enums"
)

// RegisterRequest creates a new buyer or farmer account.
type RegisterRequest struct {
	Email    string           `json:"email" validate:"required,email"`
	Password string           `json:"password" validate:"required,min=8"`
	Name     string           `json:"name" validate:"required"`
	Phone    *string          `json:"phone,omitempty"`
	Role     enums.MemberRole `json:"role" validate:"required"`
}

// LoginRequest authenticates an existing account.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest rotates a refresh token.
type RefreshRequest struct {
	AccessToken  string `json:"access_token" validate:"required"`
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// SessionResponse is returned by login, register, and refresh.
type SessionResponse struct {
	UserID       uuid.UUID        `json:"user_id"`
	Name         string           `json:"name"`
	Role         enums.MemberRole `json:"role"`
	AccessToken  string           `json:"access_token"`
	RefreshToken string           `json:"refresh_token"`
}
