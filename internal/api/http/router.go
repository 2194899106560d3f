package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/abteilung-service/internal/api/http/handlers"
	"github.com/spec-kit/abteilung-service/internal/auth"
	"github.com/spec-kit/abteilung-service/internal/domain"
	"github.com/spec-kit/abteilung-service/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Departments    *handlers.DepartmentHandler
	Auth           *handlers.AuthHandler
	GraphQL        *handlers.GraphQLHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", cfg.Metrics.Handler())
	}

	app.Post("/auth/token", cfg.Auth.Token)

	rest := app.Group(handlers.BasePath)
	rest.Get("/", cfg.Departments.Search)
	rest.Get("/:id", cfg.Departments.Get)

	writers := auth.RequireRole(domain.RoleAdmin, domain.RoleUser)
	rest.Post("/", cfg.AuthMiddleware.Handle, writers, cfg.Departments.Create)
	rest.Put("/:id", cfg.AuthMiddleware.Handle, writers, cfg.Departments.Update)
	rest.Delete("/:id", cfg.AuthMiddleware.Handle, auth.RequireRole(domain.RoleAdmin), cfg.Departments.Delete)

	app.Post("/graphql", cfg.AuthMiddleware.Optional, cfg.GraphQL.Serve)
}
