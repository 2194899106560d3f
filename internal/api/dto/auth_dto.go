package dto

import (
	"time"

	"github.com/spec-kit/abteilung-service/internal/domain"
)

// TokenRequest payload.
type TokenRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// TokenResponse carries an issued access token.
type TokenResponse struct {
	AccessToken string        `json:"access_token"`
	TokenType   string        `json:"token_type"`
	ExpiresAt   time.Time     `json:"expires_at"`
	Roles       []domain.Role `json:"roles"`
}
