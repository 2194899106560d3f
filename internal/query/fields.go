package query

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/spec-kit/abteilung-service/internal/domain"
)

// Kind is the semantic type of a searchable field.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindDecimal
	KindBool
	KindDate
	KindDepartmentType
)

// DateLayout is the textual form of date criteria.
const DateLayout = "2006-01-02"

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "integer"
	case KindDecimal:
		return "decimal"
	case KindBool:
		return "boolean"
	case KindDate:
		return "date"
	case KindDepartmentType:
		return "department type"
	default:
		return "string"
	}
}

// Parse converts a textual criteria value to the kind's Go type.
func (k Kind) Parse(raw string) (any, error) {
	switch k {
	case KindInt:
		return strconv.Atoi(strings.TrimSpace(raw))
	case KindDecimal:
		return decimal.NewFromString(strings.TrimSpace(raw))
	case KindBool:
		return strconv.ParseBool(strings.TrimSpace(raw))
	case KindDate:
		return time.Parse(DateLayout, strings.TrimSpace(raw))
	case KindDepartmentType:
		return domain.DepartmentType(strings.ToUpper(strings.TrimSpace(raw))), nil
	default:
		return raw, nil
	}
}

// Field describes one exact-match searchable attribute of a department.
type Field struct {
	Name   string
	Column string
	Kind   Kind
	get    func(*domain.Department) (any, bool)
}

// Fields lists the scalar department attributes accepted as search keys,
// in the order their predicates are emitted.
var Fields = []Field{
	{Name: "id", Column: "d.id", Kind: KindInt,
		get: func(d *domain.Department) (any, bool) { return int(d.ID), true }},
	{Name: "version", Column: "d.version", Kind: KindInt,
		get: func(d *domain.Department) (any, bool) { return d.Version, true }},
	{Name: "officeNumber", Column: "d.office_number", Kind: KindString,
		get: func(d *domain.Department) (any, bool) { return d.OfficeNumber, true }},
	{Name: "satisfaction", Column: "d.satisfaction", Kind: KindInt,
		get: func(d *domain.Department) (any, bool) { return d.Satisfaction, true }},
	{Name: "type", Column: "d.type", Kind: KindDepartmentType,
		get: func(d *domain.Department) (any, bool) { return d.Type, true }},
	{Name: "budget", Column: "d.budget", Kind: KindDecimal,
		get: func(d *domain.Department) (any, bool) { return d.Budget, true }},
	{Name: "absenceRate", Column: "d.absence_rate", Kind: KindDecimal,
		get: func(d *domain.Department) (any, bool) {
			if d.AbsenceRate == nil {
				return nil, false
			}
			return *d.AbsenceRate, true
		}},
	{Name: "available", Column: "d.available", Kind: KindBool,
		get: func(d *domain.Department) (any, bool) { return d.Available, true }},
	{Name: "foundedOn", Column: "d.founded_on", Kind: KindDate,
		get: func(d *domain.Department) (any, bool) {
			if d.FoundedOn == nil {
				return nil, false
			}
			return *d.FoundedOn, true
		}},
	{Name: "homepage", Column: "d.homepage", Kind: KindString,
		get: func(d *domain.Department) (any, bool) { return d.Homepage, true }},
}

// ManagerKey is the criteria key matched against the manager surname.
const ManagerKey = "manager"

const managerColumn = "m.surname"

// KeywordFlag maps a boolean-ish criteria key to a well-known tag.
type KeywordFlag struct {
	Name string
	Tag  string
}

// DefaultKeywordFlags are the flags recognized when none are configured.
var DefaultKeywordFlags = []KeywordFlag{
	{Name: "javascript", Tag: "JAVASCRIPT"},
	{Name: "typescript", Tag: "TYPESCRIPT"},
}

func equalValues(kind Kind, got, want any) bool {
	switch kind {
	case KindDecimal:
		g, ok1 := got.(decimal.Decimal)
		w, ok2 := want.(decimal.Decimal)
		return ok1 && ok2 && g.Equal(w)
	case KindDate:
		g, ok1 := got.(time.Time)
		w, ok2 := want.(time.Time)
		if !ok1 || !ok2 {
			return false
		}
		gy, gm, gd := g.Date()
		wy, wm, wd := w.Date()
		return gy == wy && gm == wm && gd == wd
	default:
		return got == want
	}
}
