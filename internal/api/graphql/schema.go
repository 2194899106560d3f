// Package graphql serves the department schema through graph-gophers/graphql-go.
package graphql

import (
	"context"
	_ "embed"
	"fmt"

	gqlgo "github.com/graph-gophers/graphql-go"
	gqlerrors "github.com/graph-gophers/graphql-go/errors"
	"go.uber.org/zap"

	"github.com/spec-kit/abteilung-service/internal/service"
	apperrors "github.com/spec-kit/abteilung-service/pkg/util/errorutil"
)

//go:embed schema.graphql
var schemaSDL string

// SchemaSDL returns the schema source served at /graphql.
func SchemaSDL() string {
	return schemaSDL
}

// Request is the GraphQL-over-HTTP request body.
type Request struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName"`
	Variables     map[string]any `json:"variables"`
}

// Server executes requests against the department schema.
type Server struct {
	schema *gqlgo.Schema
}

// NewServer parses the schema and binds the department resolvers to it.
func NewServer(reads *service.DepartmentReadService, writes *service.DepartmentWriteService, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	schema, err := gqlgo.ParseSchema(schemaSDL, NewResolver(reads, writes, logger),
		gqlgo.DisableIntrospection(),
		gqlgo.MaxDepth(8),
		gqlgo.Logger(panicLogger{logger: logger}),
		gqlgo.PanicHandler(panicHandler{}),
	)
	if err != nil {
		return nil, fmt.Errorf("parse graphql schema: %w", err)
	}
	return &Server{schema: schema}, nil
}

// Execute runs req. Failures are reported in the response, never returned.
// Errors raised before any resolver ran (syntax, validation, argument
// coercion) carry VALIDATION_FAILED.
func (s *Server) Execute(ctx context.Context, req Request) *gqlgo.Response {
	resp := s.schema.Exec(ctx, req.Query, req.OperationName, req.Variables)
	for _, err := range resp.Errors {
		if _, ok := err.Extensions["code"]; ok {
			continue
		}
		if err.Extensions == nil {
			err.Extensions = map[string]any{}
		}
		err.Extensions["code"] = apperrors.CodeValidationFailed
	}
	return resp
}

// resolverError exposes a domain error code as response extensions.
type resolverError struct {
	err *apperrors.DomainError
}

func (e resolverError) Error() string {
	return e.err.Message
}

func (e resolverError) Extensions() map[string]any {
	ext := map[string]any{"code": e.err.Code}
	if len(e.err.Details) > 0 {
		ext["details"] = e.err.Details
	}
	return ext
}

type panicLogger struct {
	logger *zap.Logger
}

func (l panicLogger) LogPanic(_ context.Context, value any) {
	l.logger.Error("graphql resolver panic", zap.Any("panic", value), zap.Stack("stack"))
}

type panicHandler struct{}

func (panicHandler) MakePanicError(_ context.Context, _ any) *gqlerrors.QueryError {
	return &gqlerrors.QueryError{
		Message:    "internal server error",
		Extensions: map[string]any{"code": apperrors.CodeInternal},
	}
}
