package graphql

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/spec-kit/abteilung-service/internal/query"
)

// Decimal maps the Decimal scalar. Values travel as strings; numeric
// literals are accepted on input.
type Decimal struct {
	decimal.Decimal
}

func (Decimal) ImplementsGraphQLType(name string) bool {
	return name == "Decimal"
}

func (d *Decimal) UnmarshalGraphQL(input any) error {
	switch v := input.(type) {
	case string:
		parsed, err := decimal.NewFromString(v)
		if err != nil {
			return fmt.Errorf("invalid decimal %q", v)
		}
		d.Decimal = parsed
	case int32:
		d.Decimal = decimal.NewFromInt32(v)
	case int:
		d.Decimal = decimal.NewFromInt(int64(v))
	case float64:
		d.Decimal = decimal.NewFromFloat(v)
	default:
		return fmt.Errorf("wrong type for Decimal: %T", input)
	}
	return nil
}

func (d Decimal) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Decimal.String())
}

// Date maps the Date scalar, rendered as yyyy-mm-dd.
type Date struct {
	time.Time
}

func (Date) ImplementsGraphQLType(name string) bool {
	return name == "Date"
}

func (d *Date) UnmarshalGraphQL(input any) error {
	s, ok := input.(string)
	if !ok {
		return fmt.Errorf("wrong type for Date: %T", input)
	}
	t, err := time.Parse(query.DateLayout, s)
	if err != nil {
		return fmt.Errorf("invalid date %q", s)
	}
	d.Time = t
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Format(query.DateLayout))
}

// departmentID accepts an ID given as a string or, through JSON variables,
// as a number. Whether it names a department is decided by the resolver.
type departmentID string

func (departmentID) ImplementsGraphQLType(name string) bool {
	return name == "ID"
}

func (id *departmentID) UnmarshalGraphQL(input any) error {
	switch v := input.(type) {
	case string:
		*id = departmentID(v)
	case int32:
		*id = departmentID(strconv.FormatInt(int64(v), 10))
	case int:
		*id = departmentID(strconv.Itoa(v))
	case float64:
		*id = departmentID(strconv.FormatFloat(v, 'f', -1, 64))
	default:
		return fmt.Errorf("wrong type for ID: %T", input)
	}
	return nil
}

func (id departmentID) int64() (int64, bool) {
	n, err := strconv.ParseInt(string(id), 10, 64)
	return n, err == nil
}
