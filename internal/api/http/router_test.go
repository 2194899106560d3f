package http

import (
	"encoding/json"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/abteilung-service/internal/api/graphql"
	"github.com/spec-kit/abteilung-service/internal/api/http/handlers"
	"github.com/spec-kit/abteilung-service/internal/auth"
	"github.com/spec-kit/abteilung-service/internal/config"
	"github.com/spec-kit/abteilung-service/internal/domain"
	"github.com/spec-kit/abteilung-service/internal/observability"
	"github.com/spec-kit/abteilung-service/internal/persistence"
	"github.com/spec-kit/abteilung-service/internal/query"
	"github.com/spec-kit/abteilung-service/internal/repository"
	"github.com/spec-kit/abteilung-service/internal/service"
)

const departmentBody = `{
  "officeNumber": "1-001",
  "satisfaction": 4,
  "type": "development",
  "budget": "1200.50",
  "absenceRate": 0.125,
  "available": true,
  "foundedOn": "2021-01-31",
  "homepage": "https://acme.example/",
  "tags": ["javascript"],
  "manager": {"surname": "Schneider", "firstName": "Alfred"},
  "employees": [{"name": "Bob", "jobType": "DEV"}]
}`

type testServer struct {
	app    *fiber.App
	tokens *auth.TokenManager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := zap.NewNop()
	metrics := observability.NewMetrics()

	deps := service.DepartmentDependencies{
		DepartmentRepo: repository.NewMemoryDepartmentRepository(),
		Builder:        query.NewBuilder(logger),
		Logger:         logger,
	}
	reads := service.NewDepartmentReadService(deps)
	writes := service.NewDepartmentWriteService(deps)

	accounts, err := auth.NewAccountStore([]config.UserConfig{
		{Username: "admin", Password: "p", Roles: []string{"admin", "user"}},
		{Username: "user", Password: "p", Roles: []string{"user"}},
	}, bcrypt.MinCost)
	require.NoError(t, err)
	tokens := auth.NewTokenManager("test-secret", 5)

	gqlServer, err := graphql.NewServer(reads, writes, logger)
	require.NoError(t, err)

	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, 0)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("abteilung-service", "test", &persistence.Postgres{}, nil),
		Departments:    handlers.NewDepartmentHandler(reads, writes),
		Auth:           handlers.NewAuthHandler(service.NewAuthService(accounts, tokens)),
		GraphQL:        handlers.NewGraphQLHandler(gqlServer),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
		Metrics:        metrics,
	})
	return &testServer{app: app, tokens: tokens}
}

func (s *testServer) token(t *testing.T, roles ...domain.Role) string {
	t.Helper()
	token, _, err := s.tokens.GenerateToken("tester", roles)
	require.NoError(t, err)
	return "Bearer " + token
}

func (s *testServer) do(t *testing.T, req *nethttp.Request) (*nethttp.Response, map[string]any) {
	t.Helper()
	resp, err := s.app.Test(req)
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var body map[string]any
	if len(data) > 0 {
		require.NoError(t, json.Unmarshal(data, &body), string(data))
	}
	return resp, body
}

func jsonRequest(method, target, body, authorization string) *nethttp.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if authorization != "" {
		req.Header.Set(fiber.HeaderAuthorization, authorization)
	}
	return req
}

func errorCode(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func (s *testServer) createDepartment(t *testing.T) {
	t.Helper()
	resp, _ := s.do(t, jsonRequest(fiber.MethodPost, "/rest", departmentBody, s.token(t, domain.RoleUser)))
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
}

func TestCreateDepartment(t *testing.T) {
	s := newTestServer(t)

	resp, body := s.do(t, jsonRequest(fiber.MethodPost, "/rest", departmentBody, ""))
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "UNAUTHORIZED", errorCode(body))

	resp, _ = s.do(t, jsonRequest(fiber.MethodPost, "/rest", departmentBody, s.token(t, domain.RoleUser)))
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.Equal(t, "http://example.com/rest/1", resp.Header.Get(fiber.HeaderLocation))

	resp, body = s.do(t, jsonRequest(fiber.MethodPost, "/rest", departmentBody, s.token(t, domain.RoleUser)))
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "OFFICE_NUMBER_EXISTS", errorCode(body))

	resp, body = s.do(t, jsonRequest(fiber.MethodPost, "/rest", `{"officeNumber": "x", "budget": 1}`, s.token(t, domain.RoleAdmin)))
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))

	resp, body = s.do(t, jsonRequest(fiber.MethodPost, "/rest", departmentBody, s.token(t)))
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "FORBIDDEN", errorCode(body))
}

func TestGetDepartment(t *testing.T) {
	s := newTestServer(t)
	s.createDepartment(t)

	resp, body := s.do(t, httptest.NewRequest(fiber.MethodGet, "/rest/1?employees=true", nil))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, `"0"`, resp.Header.Get(fiber.HeaderETag))
	assert.Contains(t, resp.Header.Get(fiber.HeaderContentType), handlers.MediaTypeHAL)
	assert.Equal(t, "1-001", body["officeNumber"])
	assert.Equal(t, "DEVELOPMENT", body["type"])
	assert.Equal(t, "Schneider", body["managerSurname"])
	assert.Equal(t, "2021-01-31", body["foundedOn"])
	assert.Len(t, body["employees"], 1)
	links := body["_links"].(map[string]any)
	for _, rel := range []string{"self", "list", "add", "update", "remove"} {
		assert.Contains(t, links, rel)
	}
	assert.Equal(t, map[string]any{"href": "http://example.com/rest/1"}, links["self"])

	req := httptest.NewRequest(fiber.MethodGet, "/rest/1", nil)
	req.Header.Set(fiber.HeaderIfNoneMatch, `"0"`)
	resp, _ = s.do(t, req)
	assert.Equal(t, fiber.StatusNotModified, resp.StatusCode)

	req = httptest.NewRequest(fiber.MethodGet, "/rest/1", nil)
	req.Header.Set(fiber.HeaderAccept, "text/plain")
	resp, body = s.do(t, req)
	assert.Equal(t, fiber.StatusNotAcceptable, resp.StatusCode)
	assert.Equal(t, "NOT_ACCEPTABLE", errorCode(body))

	resp, body = s.do(t, httptest.NewRequest(fiber.MethodGet, "/rest/abc", nil))
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", errorCode(body))

	resp, body = s.do(t, httptest.NewRequest(fiber.MethodGet, "/rest/42", nil))
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", errorCode(body))
}

func TestSearchDepartments(t *testing.T) {
	s := newTestServer(t)
	s.createDepartment(t)

	resp, body := s.do(t, httptest.NewRequest(fiber.MethodGet, "/rest?manager=schn&javascript=true", nil))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	embedded := body["_embedded"].(map[string]any)["departments"].([]any)
	require.Len(t, embedded, 1)
	links := embedded[0].(map[string]any)["_links"].(map[string]any)
	assert.Equal(t, []string{"self"}, keys(links))

	resp, body = s.do(t, httptest.NewRequest(fiber.MethodGet, "/rest?color=red", nil))
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "INVALID_CRITERIA", errorCode(body))

	resp, body = s.do(t, httptest.NewRequest(fiber.MethodGet, "/rest?manager=zzz", nil))
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NO_MATCHES", errorCode(body))
}

func TestUpdateDepartment(t *testing.T) {
	s := newTestServer(t)
	s.createDepartment(t)
	user := s.token(t, domain.RoleUser)

	resp, body := s.do(t, jsonRequest(fiber.MethodPut, "/rest/1", `{"satisfaction": 5}`, user))
	assert.Equal(t, fiber.StatusPreconditionRequired, resp.StatusCode)
	assert.Equal(t, "PRECONDITION_REQUIRED", errorCode(body))

	update := func(ifMatch string) (*nethttp.Response, map[string]any) {
		req := jsonRequest(fiber.MethodPut, "/rest/1", `{"satisfaction": 5}`, user)
		req.Header.Set(fiber.HeaderIfMatch, ifMatch)
		return s.do(t, req)
	}

	resp, body = update(`7`)
	assert.Equal(t, fiber.StatusPreconditionFailed, resp.StatusCode)
	assert.Equal(t, "VERSION_INVALID", errorCode(body))

	// A version ahead of the stored one is accepted by default.
	resp, _ = update(`"7"`)
	require.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	assert.Equal(t, `"1"`, resp.Header.Get(fiber.HeaderETag))

	resp, body = update(`"0"`)
	assert.Equal(t, fiber.StatusPreconditionFailed, resp.StatusCode)
	assert.Equal(t, "VERSION_OUTDATED", errorCode(body))

	_, body = s.do(t, httptest.NewRequest(fiber.MethodGet, "/rest/1", nil))
	assert.Equal(t, float64(5), body["satisfaction"])
	assert.Equal(t, float64(1), body["version"])
}

func TestDeleteDepartment(t *testing.T) {
	s := newTestServer(t)
	s.createDepartment(t)

	resp, body := s.do(t, jsonRequest(fiber.MethodDelete, "/rest/1", "", s.token(t, domain.RoleUser)))
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "FORBIDDEN", errorCode(body))

	admin := s.token(t, domain.RoleAdmin)
	for i := 0; i < 2; i++ {
		resp, _ = s.do(t, jsonRequest(fiber.MethodDelete, "/rest/1", "", admin))
		assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	}

	resp, _ = s.do(t, httptest.NewRequest(fiber.MethodGet, "/rest/1", nil))
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestTokenEndpoint(t *testing.T) {
	s := newTestServer(t)

	resp, body := s.do(t, jsonRequest(fiber.MethodPost, "/auth/token", `{"username": "user", "password": "p"}`, ""))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "Bearer", body["token_type"])
	assert.Equal(t, []any{"user"}, body["roles"])

	token := body["access_token"].(string)
	resp, _ = s.do(t, jsonRequest(fiber.MethodPost, "/rest", departmentBody, "Bearer "+token))
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp, body = s.do(t, jsonRequest(fiber.MethodPost, "/auth/token", `{"username": "user", "password": "wrong"}`, ""))
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "UNAUTHORIZED", errorCode(body))
}

func TestGraphQLEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.createDepartment(t)

	payload := `{"query": "query($id: ID!) { department(id: $id) { officeNumber absenceRate(short: true) } }", "variables": {"id": 1}}`
	resp, body := s.do(t, jsonRequest(fiber.MethodPost, "/graphql", payload, ""))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]any{
		"department": map[string]any{"officeNumber": "1-001", "absenceRate": "12.50 %"},
	}, body["data"])

	mutation := `{"query": "mutation { delete(id: 1) }"}`
	_, body = s.do(t, jsonRequest(fiber.MethodPost, "/graphql", mutation, s.token(t, domain.RoleUser)))
	errs := body["errors"].([]any)
	require.Len(t, errs, 1)
	assert.Equal(t, "FORBIDDEN", errs[0].(map[string]any)["extensions"].(map[string]any)["code"])

	_, body = s.do(t, jsonRequest(fiber.MethodPost, "/graphql", mutation, s.token(t, domain.RoleAdmin)))
	assert.Equal(t, map[string]any{"delete": true}, body["data"])

	resp, body = s.do(t, jsonRequest(fiber.MethodPost, "/graphql", mutation, "Bearer garbage"))
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "UNAUTHORIZED", errorCode(body))
}

func TestOperationalEndpoints(t *testing.T) {
	s := newTestServer(t)

	resp, body := s.do(t, httptest.NewRequest(fiber.MethodGet, "/health/ready", nil))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]any{"postgres": "in-memory", "redis": "disabled"}, body["dependencies"])

	resp, err := s.app.Test(httptest.NewRequest(fiber.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, body = s.do(t, httptest.NewRequest(fiber.MethodGet, "/nowhere", nil))
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", errorCode(body))
	assert.NotEmpty(t, resp.Header.Get(observability.HeaderRequestID))
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
