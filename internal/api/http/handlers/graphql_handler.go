package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/abteilung-service/internal/api/graphql"
	apperrors "github.com/spec-kit/abteilung-service/pkg/util/errorutil"
)

// GraphQLHandler serves POST /graphql.
type GraphQLHandler struct {
	server *graphql.Server
}

// NewGraphQLHandler constructs handler.
func NewGraphQLHandler(server *graphql.Server) *GraphQLHandler {
	return &GraphQLHandler{server: server}
}

// Serve executes one request. GraphQL errors are part of a 200 response.
func (h *GraphQLHandler) Serve(c *fiber.Ctx) error {
	var req graphql.Request
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid graphql request", map[string]any{"reason": err.Error()})
	}
	if req.Query == "" {
		return apperrors.NewValidationError("query is required", nil)
	}
	return c.JSON(h.server.Execute(c.UserContext(), req))
}
