package dto

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/spec-kit/abteilung-service/internal/domain"
	apperrors "github.com/spec-kit/abteilung-service/pkg/util/errorutil"
)

var officeNumberPattern = regexp.MustCompile(`^\d{1,2}-\d{3}$`)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// FieldError is one failed constraint in a request body.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func engine() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
			if d, ok := field.Interface().(decimal.Decimal); ok {
				f, _ := d.Float64()
				return f
			}
			return nil
		}, decimal.Decimal{})
		_ = v.RegisterValidation("officenumber", func(fl validator.FieldLevel) bool {
			return officeNumberPattern.MatchString(fl.Field().String())
		})
		_ = v.RegisterValidation("departmenttype", func(fl validator.FieldLevel) bool {
			return domain.DepartmentType(strings.ToUpper(fl.Field().String())).Valid()
		})
		validate = v
	})
	return validate
}

// Validate checks s against its validate tags and returns a
// VALIDATION_FAILED error listing every failing field.
func Validate(s interface{}) error {
	err := engine().Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.NewValidationError(err.Error(), nil)
	}
	fields := make([]FieldError, 0, len(verrs))
	for _, e := range verrs {
		fields = append(fields, FieldError{Field: fieldPath(e), Message: validationMessage(e)})
	}
	return apperrors.NewValidationError("request validation failed", map[string]any{"fields": fields})
}

// fieldPath drops the root struct name from the namespace.
func fieldPath(e validator.FieldError) string {
	ns := e.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return e.Field()
}

func validationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "officenumber":
		return "Must look like 4-202"
	case "departmenttype":
		return "Must be one of: DEVELOPMENT SALES"
	case "max":
		if e.Kind() == reflect.String {
			return "Must be at most " + e.Param() + " characters"
		}
		return "Must be at most " + e.Param()
	case "gte":
		return "Must be greater than or equal to " + e.Param()
	case "lte":
		return "Must be less than or equal to " + e.Param()
	case "lt":
		return "Must be less than " + e.Param()
	case "url":
		return "Invalid URL format"
	case "datetime":
		return "Must be a date formatted as " + e.Param()
	default:
		return "Invalid value"
	}
}
