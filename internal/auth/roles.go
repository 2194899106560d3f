package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/abteilung-service/internal/domain"
	apperrors "github.com/spec-kit/abteilung-service/pkg/util/errorutil"
)

// RequireRole ensures the principal holds one of the allowed roles.
func RequireRole(allowed ...domain.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, _ := PrincipalFromContext(c)
		if err := Authorize(principal, allowed...); err != nil {
			return err
		}
		return c.Next()
	}
}

// Authorize returns UNAUTHORIZED without a principal and FORBIDDEN when
// none of allowed is held.
func Authorize(principal *Principal, allowed ...domain.Role) error {
	if principal == nil {
		return apperrors.NewUnauthorized("authentication required")
	}
	if len(allowed) > 0 && !principal.HasAnyRole(allowed...) {
		return apperrors.NewForbidden("insufficient role")
	}
	return nil
}
