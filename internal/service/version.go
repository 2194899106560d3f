package service

import (
	"context"
	"errors"
	"regexp"
	"strconv"

	"github.com/spec-kit/abteilung-service/internal/domain"
	"github.com/spec-kit/abteilung-service/internal/query"
	"github.com/spec-kit/abteilung-service/internal/repository"
	apperrors "github.com/spec-kit/abteilung-service/pkg/util/errorutil"
)

// VersionPolicy decides how a supplied version newer than the stored one
// is treated.
type VersionPolicy int

const (
	// VersionPolicyAcceptNewer lets newer versions through. It is the default.
	VersionPolicyAcceptNewer VersionPolicy = iota
	// VersionPolicyStrict rejects newer versions as VERSION_INVALID.
	VersionPolicyStrict
)

var versionTokenPattern = regexp.MustCompile(`^"\d{1,3}"$`)

// ParseVersionToken parses a quoted version such as "12".
func ParseVersionToken(token string) (int, error) {
	if !versionTokenPattern.MatchString(token) {
		return 0, apperrors.NewVersionInvalid(token)
	}
	version, err := strconv.Atoi(token[1 : len(token)-1])
	if err != nil {
		return 0, apperrors.NewVersionInvalid(token)
	}
	return version, nil
}

// FormatVersionToken renders version the way ParseVersionToken expects it.
func FormatVersionToken(version int) string {
	return `"` + strconv.Itoa(version) + `"`
}

// UpdateValidator checks a version token against the stored department.
type UpdateValidator struct {
	departments repository.DepartmentRepository
	builder     *query.Builder
	policy      VersionPolicy
}

// NewUpdateValidator builds a validator.
func NewUpdateValidator(departments repository.DepartmentRepository, builder *query.Builder, policy VersionPolicy) *UpdateValidator {
	return &UpdateValidator{departments: departments, builder: builder, policy: policy}
}

// Validate returns the stored department as merge base and the supplied
// version. The read always hits the repository.
func (v *UpdateValidator) Validate(ctx context.Context, id int64, token string) (*domain.Department, int, error) {
	supplied, err := ParseVersionToken(token)
	if err != nil {
		return nil, 0, err
	}

	stored, err := v.departments.FindOne(ctx, v.builder.BuildID(id, false))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, 0, apperrors.NewDepartmentNotFound(id)
	}
	if err != nil {
		return nil, 0, err
	}

	switch {
	case supplied < stored.Version:
		return nil, 0, apperrors.NewVersionOutdated(supplied)
	case supplied > stored.Version && v.policy == VersionPolicyStrict:
		return nil, 0, apperrors.NewVersionInvalid(token)
	}
	return stored, supplied, nil
}
