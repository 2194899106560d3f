package dto

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/spec-kit/abteilung-service/internal/domain"
	"github.com/spec-kit/abteilung-service/internal/query"
	apperrors "github.com/spec-kit/abteilung-service/pkg/util/errorutil"
)

// NotAvailable replaces missing manager attributes in responses.
const NotAvailable = "N/A"

// ManagerRequest payload.
type ManagerRequest struct {
	Surname   string `json:"surname" validate:"required,max=64"`
	FirstName string `json:"firstName" validate:"max=64"`
}

// EmployeeRequest payload.
type EmployeeRequest struct {
	Name    string `json:"name" validate:"required,max=64"`
	JobType string `json:"jobType" validate:"max=32"`
}

// CreateDepartmentRequest payload.
type CreateDepartmentRequest struct {
	OfficeNumber string            `json:"officeNumber" validate:"required,officenumber"`
	Satisfaction int               `json:"satisfaction" validate:"gte=0,lte=5"`
	Type         string            `json:"type" validate:"omitempty,departmenttype"`
	Budget       decimal.Decimal   `json:"budget" validate:"gte=0,lt=1000000"`
	AbsenceRate  *decimal.Decimal  `json:"absenceRate" validate:"omitnil,gte=0,lte=1"`
	Available    bool              `json:"available"`
	FoundedOn    string            `json:"foundedOn" validate:"omitempty,datetime=2006-01-02"`
	Homepage     string            `json:"homepage" validate:"omitempty,url"`
	Tags         []string          `json:"tags" validate:"omitempty,dive,required,max=32"`
	Manager      *ManagerRequest   `json:"manager" validate:"required"`
	Employees    []EmployeeRequest `json:"employees" validate:"omitempty,dive"`
}

// ToDomain validates the payload and builds the aggregate.
func (r CreateDepartmentRequest) ToDomain() (*domain.Department, error) {
	if err := Validate(r); err != nil {
		return nil, err
	}
	founded, err := parseDate(r.FoundedOn)
	if err != nil {
		return nil, err
	}

	b := domain.NewDepartmentBuilder(r.OfficeNumber, r.Budget).
		Satisfaction(r.Satisfaction).
		Type(domain.DepartmentType(strings.ToUpper(r.Type))).
		AbsenceRate(r.AbsenceRate).
		Available(r.Available).
		FoundedOn(founded).
		Homepage(r.Homepage).
		Tags(r.Tags...).
		Manager(r.Manager.Surname, r.Manager.FirstName)
	for _, e := range r.Employees {
		b.Employee(e.Name, e.JobType)
	}
	dept, err := b.Build()
	if err != nil {
		return nil, apperrors.NewValidationError(err.Error(), nil)
	}
	return dept, nil
}

// UpdateDepartmentRequest payload. Omitted fields keep their stored value;
// manager and employees cannot be changed here.
type UpdateDepartmentRequest struct {
	OfficeNumber *string          `json:"officeNumber" validate:"omitnil,officenumber"`
	Satisfaction *int             `json:"satisfaction" validate:"omitnil,gte=0,lte=5"`
	Type         *string          `json:"type" validate:"omitnil,departmenttype"`
	Budget       *decimal.Decimal `json:"budget" validate:"omitnil,gte=0,lt=1000000"`
	AbsenceRate  *decimal.Decimal `json:"absenceRate" validate:"omitnil,gte=0,lte=1"`
	Available    *bool            `json:"available"`
	FoundedOn    *string          `json:"foundedOn" validate:"omitnil,datetime=2006-01-02"`
	Homepage     *string          `json:"homepage" validate:"omitempty,url"`
	Tags         []string         `json:"tags" validate:"omitempty,dive,required,max=32"`
}

// ToPatch validates the payload and converts it.
func (r UpdateDepartmentRequest) ToPatch() (domain.DepartmentPatch, error) {
	if err := Validate(r); err != nil {
		return domain.DepartmentPatch{}, err
	}
	patch := domain.DepartmentPatch{
		OfficeNumber: r.OfficeNumber,
		Satisfaction: r.Satisfaction,
		Budget:       r.Budget,
		AbsenceRate:  r.AbsenceRate,
		Available:    r.Available,
		Homepage:     r.Homepage,
		Tags:         r.Tags,
	}
	if r.Type != nil {
		t := domain.DepartmentType(strings.ToUpper(*r.Type))
		patch.Type = &t
	}
	if r.FoundedOn != nil {
		founded, err := parseDate(*r.FoundedOn)
		if err != nil {
			return domain.DepartmentPatch{}, err
		}
		patch.FoundedOn = founded
	}
	return patch, nil
}

func parseDate(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(query.DateLayout, raw)
	if err != nil {
		return nil, apperrors.NewValidationError("foundedOn must be a date", map[string]any{"foundedOn": raw})
	}
	return &t, nil
}

// HALLink is a hypermedia link.
type HALLink struct {
	Href string `json:"href"`
}

// EmployeeResponse represents an employee.
type EmployeeResponse struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	JobType string `json:"jobType"`
}

// DepartmentResponse is the HAL representation of a department.
type DepartmentResponse struct {
	ID               int64              `json:"id"`
	Version          int                `json:"version"`
	OfficeNumber     string             `json:"officeNumber"`
	Satisfaction     int                `json:"satisfaction"`
	Type             string             `json:"type"`
	Budget           decimal.Decimal    `json:"budget"`
	AbsenceRate      *decimal.Decimal   `json:"absenceRate"`
	Available        bool               `json:"available"`
	FoundedOn        *string            `json:"foundedOn"`
	Homepage         string             `json:"homepage"`
	Tags             []string           `json:"tags"`
	ManagerSurname   string             `json:"managerSurname"`
	ManagerFirstName string             `json:"managerFirstName"`
	Employees        []EmployeeResponse `json:"employees,omitempty"`
	Links            map[string]HALLink `json:"_links"`
}

// NewDepartmentResponse converts d. Links are added by the caller.
func NewDepartmentResponse(d *domain.Department) DepartmentResponse {
	resp := DepartmentResponse{
		ID:               d.ID,
		Version:          d.Version,
		OfficeNumber:     d.OfficeNumber,
		Satisfaction:     d.Satisfaction,
		Type:             string(d.Type),
		Budget:           d.Budget,
		AbsenceRate:      d.AbsenceRate,
		Available:        d.Available,
		Homepage:         d.Homepage,
		Tags:             d.Tags,
		ManagerSurname:   d.ManagerSurname(NotAvailable),
		ManagerFirstName: NotAvailable,
		Links:            map[string]HALLink{},
	}
	if resp.Tags == nil {
		resp.Tags = []string{}
	}
	if d.Manager != nil && d.Manager.FirstName != "" {
		resp.ManagerFirstName = d.Manager.FirstName
	}
	if d.FoundedOn != nil {
		s := d.FoundedOn.Format(query.DateLayout)
		resp.FoundedOn = &s
	}
	for _, e := range d.Employees {
		resp.Employees = append(resp.Employees, EmployeeResponse{ID: e.ID, Name: e.Name, JobType: e.JobType})
	}
	return resp
}

// DepartmentCollectionResponse is the HAL search result.
type DepartmentCollectionResponse struct {
	Embedded struct {
		Departments []DepartmentResponse `json:"departments"`
	} `json:"_embedded"`
	Links map[string]HALLink `json:"_links"`
}
