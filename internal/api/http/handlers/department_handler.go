package handlers

import (
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/abteilung-service/internal/api/dto"
	"github.com/spec-kit/abteilung-service/internal/query"
	"github.com/spec-kit/abteilung-service/internal/service"
	apperrors "github.com/spec-kit/abteilung-service/pkg/util/errorutil"
)

// MediaTypeHAL is the content type of department representations.
const MediaTypeHAL = "application/hal+json"

// BasePath is the mount point of the department resource.
const BasePath = "/rest"

// DepartmentHandler exposes the department REST resource.
type DepartmentHandler struct {
	reads  *service.DepartmentReadService
	writes *service.DepartmentWriteService
}

// NewDepartmentHandler constructs handler.
func NewDepartmentHandler(reads *service.DepartmentReadService, writes *service.DepartmentWriteService) *DepartmentHandler {
	return &DepartmentHandler{reads: reads, writes: writes}
}

// Get handles GET /rest/:id.
func (h *DepartmentHandler) Get(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if c.Accepts(MediaTypeHAL, fiber.MIMEApplicationJSON, fiber.MIMETextHTML) == "" {
		return fiber.NewError(fiber.StatusNotAcceptable, "supported media types: "+MediaTypeHAL+", "+fiber.MIMEApplicationJSON)
	}

	dept, err := h.reads.GetByID(c.UserContext(), id, c.Query("employees") == "true")
	if err != nil {
		return err
	}

	etag := service.FormatVersionToken(dept.Version)
	if c.Get(fiber.HeaderIfNoneMatch) == etag {
		return c.SendStatus(fiber.StatusNotModified)
	}
	c.Set(fiber.HeaderETag, etag)

	resp := dto.NewDepartmentResponse(dept)
	self := h.resourceURL(c, id)
	resp.Links = map[string]dto.HALLink{
		"self":   {Href: self},
		"list":   {Href: h.collectionURL(c)},
		"add":    {Href: h.collectionURL(c)},
		"update": {Href: self},
		"remove": {Href: self},
	}
	return c.JSON(resp, MediaTypeHAL)
}

// Search handles GET /rest?<criteria>. Every query parameter is a
// criterion.
func (h *DepartmentHandler) Search(c *fiber.Ctx) error {
	criteria := query.Criteria{}
	c.Context().QueryArgs().VisitAll(func(key, value []byte) {
		criteria[string(key)] = string(value)
	})

	depts, err := h.reads.Search(c.UserContext(), criteria)
	if err != nil {
		return err
	}

	var body dto.DepartmentCollectionResponse
	body.Embedded.Departments = make([]dto.DepartmentResponse, 0, len(depts))
	for i := range depts {
		resp := dto.NewDepartmentResponse(&depts[i])
		resp.Links = map[string]dto.HALLink{"self": {Href: h.resourceURL(c, depts[i].ID)}}
		body.Embedded.Departments = append(body.Embedded.Departments, resp)
	}
	body.Links = map[string]dto.HALLink{"self": {Href: h.collectionURL(c)}}
	return c.JSON(body, MediaTypeHAL)
}

// Create handles POST /rest.
func (h *DepartmentHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateDepartmentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", map[string]any{"reason": err.Error()})
	}
	dept, err := req.ToDomain()
	if err != nil {
		return err
	}

	id, err := h.writes.Create(c.UserContext(), dept)
	if err != nil {
		return err
	}
	c.Location(h.resourceURL(c, id))
	return c.SendStatus(fiber.StatusCreated)
}

// Update handles PUT /rest/:id. The If-Match header carries the version
// the client last read.
func (h *DepartmentHandler) Update(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	token := c.Get(fiber.HeaderIfMatch)
	if token == "" {
		return apperrors.NewPreconditionRequired("If-Match header is required")
	}

	var req dto.UpdateDepartmentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", map[string]any{"reason": err.Error()})
	}
	patch, err := req.ToPatch()
	if err != nil {
		return err
	}

	version, err := h.writes.Update(c.UserContext(), id, token, patch)
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderETag, service.FormatVersionToken(version))
	return c.SendStatus(fiber.StatusNoContent)
}

// Delete handles DELETE /rest/:id. Unknown ids are not an error.
func (h *DepartmentHandler) Delete(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if _, err := h.writes.Delete(c.UserContext(), id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *DepartmentHandler) collectionURL(c *fiber.Ctx) string {
	return c.BaseURL() + BasePath
}

func (h *DepartmentHandler) resourceURL(c *fiber.Ctx, id int64) string {
	return fmt.Sprintf("%s%s/%d", c.BaseURL(), BasePath, id)
}

// pathID parses :id. A non-integer id names no department.
func pathID(c *fiber.Ctx) (int64, error) {
	raw := c.Params("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, apperrors.NewNotFound("department", map[string]any{"id": raw})
	}
	return id, nil
}
