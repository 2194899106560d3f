package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/abteilung-service/internal/api/dto"
	"github.com/spec-kit/abteilung-service/internal/service"
	apperrors "github.com/spec-kit/abteilung-service/pkg/util/errorutil"
)

// AuthHandler issues access tokens.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: authService}
}

// Token handles POST /auth/token.
func (h *AuthHandler) Token(c *fiber.Ctx) error {
	var req dto.TokenRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(req); err != nil {
		return err
	}

	token, exp, roles, err := h.auth.Login(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(dto.TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   exp,
		Roles:       roles,
	})
}
