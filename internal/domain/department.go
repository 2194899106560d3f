package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DepartmentType enumerates the kinds of department.
type DepartmentType string

const (
	DepartmentTypeDevelopment DepartmentType = "DEVELOPMENT"
	DepartmentTypeSales       DepartmentType = "SALES"
)

// Valid reports whether t is empty or one of the known types.
func (t DepartmentType) Valid() bool {
	switch t {
	case "", DepartmentTypeDevelopment, DepartmentTypeSales:
		return true
	}
	return false
}

// Department is the aggregate root for a departmental unit.
type Department struct {
	ID           int64
	Version      int
	OfficeNumber string
	Satisfaction int
	Type         DepartmentType
	Budget       decimal.Decimal
	AbsenceRate  *decimal.Decimal
	Available    bool
	FoundedOn    *time.Time
	Homepage     string
	Tags         []string
	Manager      *Manager
	Employees    []Employee
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Manager is owned 1:1 by a department.
type Manager struct {
	ID           int64
	DepartmentID int64
	Surname      string
	FirstName    string
}

// Employee is owned 1:N by a department.
type Employee struct {
	ID           int64
	DepartmentID int64
	Name         string
	JobType      string
}

// HasTag reports whether the department carries tag (case-insensitive).
func (d *Department) HasTag(tag string) bool {
	for _, t := range d.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// ManagerSurname returns the manager's surname or fallback when absent.
func (d *Department) ManagerSurname(fallback string) string {
	if d.Manager == nil || d.Manager.Surname == "" {
		return fallback
	}
	return d.Manager.Surname
}

// AssignID stamps the persisted id on the department and its children.
func (d *Department) AssignID(id int64) {
	d.ID = id
	if d.Manager != nil {
		d.Manager.DepartmentID = id
	}
	for i := range d.Employees {
		d.Employees[i].DepartmentID = id
	}
}

// NormalizeTags uppercases, trims and de-duplicates tags. A nil slice
// becomes empty.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// Clone returns a deep copy.
func (d *Department) Clone() *Department {
	if d == nil {
		return nil
	}
	c := *d
	if d.AbsenceRate != nil {
		rate := *d.AbsenceRate
		c.AbsenceRate = &rate
	}
	if d.FoundedOn != nil {
		founded := *d.FoundedOn
		c.FoundedOn = &founded
	}
	c.Tags = append([]string{}, d.Tags...)
	if d.Manager != nil {
		m := *d.Manager
		c.Manager = &m
	}
	if d.Employees != nil {
		c.Employees = append([]Employee{}, d.Employees...)
	}
	return &c
}

// DepartmentPatch carries the scalar attributes of an update. Nil fields
// keep the stored value.
type DepartmentPatch struct {
	OfficeNumber *string
	Satisfaction *int
	Type         *DepartmentType
	Budget       *decimal.Decimal
	AbsenceRate  *decimal.Decimal
	Available    *bool
	FoundedOn    *time.Time
	Homepage     *string
	Tags         []string
}

// ApplyTo merges the patch onto base. Manager and employees are never
// touched.
func (p DepartmentPatch) ApplyTo(base *Department) {
	if p.OfficeNumber != nil {
		base.OfficeNumber = *p.OfficeNumber
	}
	if p.Satisfaction != nil {
		base.Satisfaction = *p.Satisfaction
	}
	if p.Type != nil {
		base.Type = *p.Type
	}
	if p.Budget != nil {
		base.Budget = *p.Budget
	}
	if p.AbsenceRate != nil {
		rate := *p.AbsenceRate
		base.AbsenceRate = &rate
	}
	if p.Available != nil {
		base.Available = *p.Available
	}
	if p.FoundedOn != nil {
		founded := *p.FoundedOn
		base.FoundedOn = &founded
	}
	if p.Homepage != nil {
		base.Homepage = *p.Homepage
	}
	if p.Tags != nil {
		base.Tags = NormalizeTags(p.Tags)
	}
}

var (
	ErrManagerRequired = errors.New("manager surname is required")
	ErrInvalidType     = errors.New("invalid department type")
)

// DepartmentBuilder assembles a new department aggregate. Children carry a
// zero DepartmentID until AssignID runs after the parent insert.
type DepartmentBuilder struct {
	dept Department
}

// NewDepartmentBuilder starts an aggregate with the required scalars.
func NewDepartmentBuilder(officeNumber string, budget decimal.Decimal) *DepartmentBuilder {
	return &DepartmentBuilder{dept: Department{
		OfficeNumber: strings.TrimSpace(officeNumber),
		Budget:       budget,
	}}
}

func (b *DepartmentBuilder) Satisfaction(v int) *DepartmentBuilder {
	b.dept.Satisfaction = v
	return b
}

func (b *DepartmentBuilder) Type(t DepartmentType) *DepartmentBuilder {
	b.dept.Type = t
	return b
}

func (b *DepartmentBuilder) AbsenceRate(rate *decimal.Decimal) *DepartmentBuilder {
	b.dept.AbsenceRate = rate
	return b
}

func (b *DepartmentBuilder) Available(v bool) *DepartmentBuilder {
	b.dept.Available = v
	return b
}

func (b *DepartmentBuilder) FoundedOn(date *time.Time) *DepartmentBuilder {
	b.dept.FoundedOn = date
	return b
}

func (b *DepartmentBuilder) Homepage(url string) *DepartmentBuilder {
	b.dept.Homepage = strings.TrimSpace(url)
	return b
}

func (b *DepartmentBuilder) Tags(tags ...string) *DepartmentBuilder {
	b.dept.Tags = append(b.dept.Tags, tags...)
	return b
}

func (b *DepartmentBuilder) Manager(surname, firstName string) *DepartmentBuilder {
	b.dept.Manager = &Manager{
		Surname:   strings.TrimSpace(surname),
		FirstName: strings.TrimSpace(firstName),
	}
	return b
}

func (b *DepartmentBuilder) Employee(name, jobType string) *DepartmentBuilder {
	b.dept.Employees = append(b.dept.Employees, Employee{
		Name:    strings.TrimSpace(name),
		JobType: strings.TrimSpace(jobType),
	})
	return b
}

// Build validates and returns the aggregate.
func (b *DepartmentBuilder) Build() (*Department, error) {
	if b.dept.Manager == nil || b.dept.Manager.Surname == "" {
		return nil, ErrManagerRequired
	}
	if !b.dept.Type.Valid() {
		return nil, ErrInvalidType
	}
	d := b.dept.Clone()
	d.Tags = NormalizeTags(d.Tags)
	if d.Employees == nil {
		d.Employees = []Employee{}
	}
	return d, nil
}
