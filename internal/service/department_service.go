package service

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/spec-kit/abteilung-service/internal/auth"
	"github.com/spec-kit/abteilung-service/internal/domain"
	"github.com/spec-kit/abteilung-service/internal/events"
	"github.com/spec-kit/abteilung-service/internal/query"
	"github.com/spec-kit/abteilung-service/internal/repository"
	apperrors "github.com/spec-kit/abteilung-service/pkg/util/errorutil"
)

// DepartmentCache is the optional read-through cache for single lookups.
//
// Invalidate drops the cached entries and records minVersion as a floor:
// a later Set with an older version is ignored, so a lookup that read the
// row before a concurrent write cannot repopulate the cache with it.
type DepartmentCache interface {
	Get(ctx context.Context, id int64, withEmployees bool) (*domain.Department, bool, error)
	Set(ctx context.Context, dept *domain.Department, withEmployees bool) error
	Invalidate(ctx context.Context, id int64, minVersion int) error
}

// deletedFloor rejects every cache write for a removed department.
const deletedFloor = math.MaxInt32

// DepartmentDependencies bundles collaborators for the department services.
type DepartmentDependencies struct {
	DepartmentRepo repository.DepartmentRepository
	Builder        *query.Builder
	Cache          DepartmentCache
	Dispatcher     events.Dispatcher
	VersionPolicy  VersionPolicy
	Logger         *zap.Logger
}

func (d DepartmentDependencies) logger() *zap.Logger {
	if d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger
}

// DepartmentReadService answers searches and lookups.
type DepartmentReadService struct {
	departments repository.DepartmentRepository
	builder     *query.Builder
	cache       DepartmentCache
	logger      *zap.Logger
}

// NewDepartmentReadService constructs the service.
func NewDepartmentReadService(deps DepartmentDependencies) *DepartmentReadService {
	return &DepartmentReadService{
		departments: deps.DepartmentRepo,
		builder:     deps.Builder,
		cache:       deps.Cache,
		logger:      deps.logger(),
	}
}

// AllowedCriteria lists the accepted search keys.
func (s *DepartmentReadService) AllowedCriteria() []string {
	return s.builder.AllowedKeys()
}

// Search returns departments matching all criteria. Empty criteria list
// everything; non-empty criteria without a hit fail with NO_MATCHES.
func (s *DepartmentReadService) Search(ctx context.Context, criteria query.Criteria) ([]domain.Department, error) {
	q, err := s.builder.Build(criteria)
	if err != nil {
		return nil, err
	}
	depts, err := s.departments.FindMatching(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("find departments: %w", err)
	}
	if len(depts) == 0 {
		if len(criteria) > 0 {
			return nil, apperrors.NewNoMatches(criteria)
		}
		return []domain.Department{}, nil
	}
	return depts, nil
}

// Count returns the number of departments matching criteria.
func (s *DepartmentReadService) Count(ctx context.Context, criteria query.Criteria) (int64, error) {
	q, err := s.builder.Build(criteria)
	if err != nil {
		return 0, err
	}
	count, err := s.departments.CountMatching(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("count departments: %w", err)
	}
	return count, nil
}

// GetByID loads one department, consulting the cache first.
func (s *DepartmentReadService) GetByID(ctx context.Context, id int64, withEmployees bool) (*domain.Department, error) {
	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, id, withEmployees)
		if err != nil {
			s.logger.Warn("department cache read failed", zap.Int64("department_id", id), zap.Error(err))
		} else if ok {
			return cached, nil
		}
	}

	dept, err := s.departments.FindOne(ctx, s.builder.BuildID(id, withEmployees))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewDepartmentNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("find department %d: %w", id, err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, dept, withEmployees); err != nil {
			s.logger.Warn("department cache write failed", zap.Int64("department_id", id), zap.Error(err))
		}
	}
	return dept, nil
}

// DepartmentWriteService creates, updates and deletes departments.
type DepartmentWriteService struct {
	departments repository.DepartmentRepository
	builder     *query.Builder
	validator   *UpdateValidator
	cache       DepartmentCache
	dispatcher  events.Dispatcher
	logger      *zap.Logger
}

// NewDepartmentWriteService constructs the service.
func NewDepartmentWriteService(deps DepartmentDependencies) *DepartmentWriteService {
	return &DepartmentWriteService{
		departments: deps.DepartmentRepo,
		builder:     deps.Builder,
		validator:   NewUpdateValidator(deps.DepartmentRepo, deps.Builder, deps.VersionPolicy),
		cache:       deps.Cache,
		dispatcher:  deps.Dispatcher,
		logger:      deps.logger(),
	}
}

// Create persists a new aggregate built by domain.DepartmentBuilder and
// returns its id.
func (s *DepartmentWriteService) Create(ctx context.Context, dept *domain.Department) (int64, error) {
	exists, err := s.departments.ExistsByOfficeNumber(ctx, dept.OfficeNumber)
	if err != nil {
		return 0, fmt.Errorf("check office number: %w", err)
	}
	if exists {
		return 0, apperrors.NewOfficeNumberExists(dept.OfficeNumber)
	}

	if err := s.departments.Create(ctx, dept); err != nil {
		if errors.Is(err, repository.ErrOfficeNumberTaken) {
			return 0, apperrors.NewOfficeNumberExists(dept.OfficeNumber)
		}
		return 0, fmt.Errorf("create department: %w", err)
	}

	s.logger.Info("department created", zap.Int64("department_id", dept.ID), zap.String("office_number", dept.OfficeNumber))
	s.publishEvent(ctx, events.EventDepartmentCreated, dept.ID, events.DepartmentCreatedPayload{
		OfficeNumber:   dept.OfficeNumber,
		ManagerSurname: dept.ManagerSurname(""),
	})
	return dept.ID, nil
}

// Update merges patch onto the stored department if token names the
// current version and returns the new version.
func (s *DepartmentWriteService) Update(ctx context.Context, id int64, token string, patch domain.DepartmentPatch) (int, error) {
	stored, _, err := s.validator.Validate(ctx, id, token)
	if err != nil {
		return 0, err
	}

	expected := stored.Version
	patch.ApplyTo(stored)
	if !stored.Type.Valid() {
		return 0, apperrors.NewValidationError("invalid department type", map[string]any{"type": stored.Type})
	}

	if err := s.departments.Update(ctx, stored, expected); err != nil {
		switch {
		case errors.Is(err, repository.ErrVersionConflict):
			return 0, apperrors.NewVersionOutdated(expected)
		case errors.Is(err, repository.ErrOfficeNumberTaken):
			return 0, apperrors.NewOfficeNumberExists(stored.OfficeNumber)
		}
		return 0, fmt.Errorf("update department %d: %w", id, err)
	}

	s.invalidate(ctx, id, stored.Version)
	s.publishEvent(ctx, events.EventDepartmentUpdated, id, events.DepartmentUpdatedPayload{
		OldVersion: expected,
		NewVersion: stored.Version,
	})
	return stored.Version, nil
}

// Delete removes the manager, every employee and the department in one
// transaction. It reports whether a department was removed.
func (s *DepartmentWriteService) Delete(ctx context.Context, id int64) (bool, error) {
	var (
		deleted   bool
		employees int
	)
	err := s.departments.RunInTransaction(ctx, func(ctx context.Context, tx repository.DepartmentTx) error {
		dept, err := tx.FindDepartment(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("find department: %w", err)
		}
		if dept.Manager != nil {
			if err := tx.DeleteManager(ctx, dept.Manager.ID); err != nil {
				return fmt.Errorf("delete manager: %w", err)
			}
		}
		for _, emp := range dept.Employees {
			if err := tx.DeleteEmployee(ctx, emp.ID); err != nil {
				return fmt.Errorf("delete employee %d: %w", emp.ID, err)
			}
		}
		employees = len(dept.Employees)
		deleted, err = tx.DeleteDepartment(ctx, id)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("delete department %d: %w", id, err)
	}
	if !deleted {
		return false, nil
	}

	s.invalidate(ctx, id, deletedFloor)
	s.logger.Info("department deleted", zap.Int64("department_id", id))
	s.publishEvent(ctx, events.EventDepartmentDeleted, id, events.DepartmentDeletedPayload{
		EmployeeCount: employees,
	})
	return true, nil
}

func (s *DepartmentWriteService) invalidate(ctx context.Context, id int64, minVersion int) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, id, minVersion); err != nil {
		s.logger.Warn("department cache invalidation failed", zap.Int64("department_id", id), zap.Error(err))
	}
}

func (s *DepartmentWriteService) publishEvent(ctx context.Context, eventType events.EventType, id int64, payload interface{}) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.NewEvent(eventType, id, actorFrom(ctx), payload))
}

func actorFrom(ctx context.Context) events.Actor {
	principal, ok := auth.PrincipalFrom(ctx)
	if !ok {
		return events.Actor{}
	}
	roles := make([]string, 0, len(principal.Roles))
	for _, r := range principal.Roles {
		roles = append(roles, string(r))
	}
	return events.Actor{Username: principal.Username, Roles: roles}
}
