package errorutil

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5"
)

// Error codes surfaced to API clients.
const (
	CodeValidationFailed     = "VALIDATION_FAILED"
	CodeNotFound             = "NOT_FOUND"
	CodeInvalidCriteria      = "INVALID_CRITERIA"
	CodeNoMatches            = "NO_MATCHES"
	CodeVersionInvalid       = "VERSION_INVALID"
	CodeVersionOutdated      = "VERSION_OUTDATED"
	CodeOfficeNumberExists   = "OFFICE_NUMBER_EXISTS"
	CodePreconditionRequired = "PRECONDITION_REQUIRED"
	CodeUnauthorized         = "UNAUTHORIZED"
	CodeForbidden            = "FORBIDDEN"
	CodeConflict             = "CONFLICT"
	CodeNotAcceptable        = "NOT_ACCEPTABLE"
	CodeBadRequest           = "BAD_REQUEST"
	CodeInternal             = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidationFailed, message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

// NewDepartmentNotFound reports a lookup or update against an unknown id.
func NewDepartmentNotFound(id int64) error {
	return NewDomainError(CodeNotFound,
		fmt.Sprintf("there is no department with id %d", id),
		http.StatusNotFound,
		map[string]any{"id": id})
}

// NewInvalidCriteria reports search keys that name no searchable field.
func NewInvalidCriteria(keys []string) error {
	return NewDomainError(CodeInvalidCriteria,
		fmt.Sprintf("invalid search criteria: %s", strings.Join(keys, ", ")),
		http.StatusNotFound,
		map[string]any{"keys": keys})
}

// NewNoMatches reports a valid, non-empty search without results.
func NewNoMatches(criteria map[string]string) error {
	return NewDomainError(CodeNoMatches,
		"no departments found",
		http.StatusNotFound,
		map[string]any{"criteria": criteria})
}

func NewVersionInvalid(token string) error {
	return NewDomainError(CodeVersionInvalid,
		fmt.Sprintf("invalid version %s", token),
		http.StatusPreconditionFailed,
		map[string]any{"version": token})
}

func NewVersionOutdated(version int) error {
	return NewDomainError(CodeVersionOutdated,
		fmt.Sprintf("version %d is outdated", version),
		http.StatusPreconditionFailed,
		map[string]any{"version": version})
}

func NewOfficeNumberExists(officeNumber string) error {
	return NewDomainError(CodeOfficeNumberExists,
		fmt.Sprintf("office number %s already exists", officeNumber),
		http.StatusUnprocessableEntity,
		map[string]any{"officeNumber": officeNumber})
}

func NewPreconditionRequired(message string) error {
	return NewDomainError(CodePreconditionRequired, message, http.StatusPreconditionRequired, nil)
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError(CodeConflict, message, http.StatusConflict, details)
}

// FromHTTPStatus converts a transport-level failure, such as an unknown
// route or an unparsable body, into a DomainError.
func FromHTTPStatus(status int, message string) *DomainError {
	code := CodeBadRequest
	switch {
	case status == http.StatusUnauthorized:
		code = CodeUnauthorized
	case status == http.StatusForbidden:
		code = CodeForbidden
	case status == http.StatusNotFound:
		code = CodeNotFound
	case status == http.StatusNotAcceptable:
		code = CodeNotAcceptable
	case status == http.StatusConflict:
		code = CodeConflict
	case status >= http.StatusInternalServerError:
		code = CodeInternal
	}
	return &DomainError{Code: code, Message: message, HTTPStatus: status}
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// HasCode reports whether err is a DomainError carrying code.
func HasCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if errors.Is(err, sql.ErrNoRows) || errors.Is(err, pgx.ErrNoRows) {
		if de, ok := NewNotFound("resource", nil).(*DomainError); ok {
			return de
		}
	}
	if de, ok := NewInternalError(err).(*DomainError); ok {
		return de
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func MapError(err error) error {
	return ToDomainError(err)
}
