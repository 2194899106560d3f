// Package query turns loosely typed search criteria into a predicate set
// over departments. The same predicates render to SQL for Postgres and
// evaluate in memory for the in-process repository.
package query

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/abteilung-service/internal/domain"
	apperrors "github.com/spec-kit/abteilung-service/pkg/util/errorutil"
)

// Criteria maps search keys to textual values.
type Criteria map[string]string

// Operator selects how a predicate compares.
type Operator int

const (
	OpEqual Operator = iota
	OpContainsFold
	OpHasTag
	OpIDEqual
)

// Predicate is one ANDed condition of a query.
type Predicate struct {
	Key    string
	Column string
	Op     Operator
	Kind   Kind
	Value  any
	get    func(*domain.Department) (any, bool)
}

// Query is an immutable predicate set plus fetch options.
type Query struct {
	predicates    []Predicate
	withEmployees bool
}

// Predicates returns a copy of the predicate list.
func (q *Query) Predicates() []Predicate {
	return append([]Predicate(nil), q.predicates...)
}

// WithEmployees reports whether employees are eagerly loaded.
func (q *Query) WithEmployees() bool {
	return q.withEmployees
}

// IsUnrestricted reports whether the query matches every department.
func (q *Query) IsUnrestricted() bool {
	return len(q.predicates) == 0
}

// SQL renders the predicates as a Postgres WHERE expression with $n
// placeholders. It returns an empty string for an unrestricted query.
func (q *Query) SQL() (string, []any) {
	if len(q.predicates) == 0 {
		return "", nil
	}
	clauses := make([]string, 0, len(q.predicates))
	args := make([]any, 0, len(q.predicates))
	for _, p := range q.predicates {
		switch p.Op {
		case OpContainsFold:
			args = append(args, "%"+escapeLike(p.Value.(string))+"%")
			clauses = append(clauses, fmt.Sprintf("%s ILIKE $%d", p.Column, len(args)))
		case OpHasTag:
			args = append(args, p.Value)
			clauses = append(clauses, fmt.Sprintf("$%d = ANY(%s)", len(args), p.Column))
		default:
			args = append(args, sqlArg(p.Kind, p.Value))
			clauses = append(clauses, fmt.Sprintf("%s = $%d%s", p.Column, len(args), sqlCast(p.Kind)))
		}
	}
	return strings.Join(clauses, " AND "), args
}

// Matches evaluates the predicates against d.
func (q *Query) Matches(d *domain.Department) bool {
	for _, p := range q.predicates {
		if !p.matches(d) {
			return false
		}
	}
	return true
}

func (p Predicate) matches(d *domain.Department) bool {
	switch p.Op {
	case OpIDEqual:
		return d.ID == p.Value.(int64)
	case OpContainsFold:
		if d.Manager == nil {
			return false
		}
		return strings.Contains(strings.ToLower(d.Manager.Surname), strings.ToLower(p.Value.(string)))
	case OpHasTag:
		return d.HasTag(p.Value.(string))
	default:
		got, ok := p.get(d)
		if !ok {
			return false
		}
		return equalValues(p.Kind, got, p.Value)
	}
}

// Builder builds department queries from criteria.
type Builder struct {
	flags   []KeywordFlag
	allowed map[string]struct{}
	logger  *zap.Logger
}

// NewBuilder returns a builder recognizing the scalar fields, the manager
// key and flags (DefaultKeywordFlags when none are given).
func NewBuilder(logger *zap.Logger, flags ...KeywordFlag) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(flags) == 0 {
		flags = DefaultKeywordFlags
	}
	allowed := make(map[string]struct{}, len(Fields)+len(flags)+1)
	for _, f := range Fields {
		allowed[f.Name] = struct{}{}
	}
	allowed[ManagerKey] = struct{}{}

	kept := make([]KeywordFlag, 0, len(flags))
	for _, flag := range flags {
		if _, taken := allowed[flag.Name]; taken || flag.Name == "" {
			logger.Warn("ignoring keyword flag that shadows a field", zap.String("flag", flag.Name))
			continue
		}
		flag.Tag = strings.ToUpper(flag.Tag)
		allowed[flag.Name] = struct{}{}
		kept = append(kept, flag)
	}
	return &Builder{flags: kept, allowed: allowed, logger: logger}
}

// AllowedKeys lists every accepted criteria key, sorted.
func (b *Builder) AllowedKeys() []string {
	keys := make([]string, 0, len(b.allowed))
	for k := range b.allowed {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Build validates criteria keys and returns the ANDed query. Unknown keys
// fail with INVALID_CRITERIA; uncoercible values with VALIDATION_FAILED.
func (b *Builder) Build(criteria Criteria) (*Query, error) {
	var unknown []string
	for key := range criteria {
		if _, ok := b.allowed[key]; !ok {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		b.logger.Debug("invalid search criteria", zap.Strings("keys", unknown))
		return nil, apperrors.NewInvalidCriteria(unknown)
	}

	q := &Query{}
	if surname, ok := criteria[ManagerKey]; ok {
		q.predicates = append(q.predicates, Predicate{
			Key:    ManagerKey,
			Column: managerColumn,
			Op:     OpContainsFold,
			Kind:   KindString,
			Value:  surname,
		})
	}
	for _, flag := range b.flags {
		if criteria[flag.Name] != "true" {
			continue
		}
		q.predicates = append(q.predicates, Predicate{
			Key:    flag.Name,
			Column: "d.tags",
			Op:     OpHasTag,
			Kind:   KindString,
			Value:  flag.Tag,
		})
	}
	for _, field := range Fields {
		raw, ok := criteria[field.Name]
		if !ok {
			continue
		}
		value, err := field.Kind.Parse(raw)
		if err != nil {
			return nil, apperrors.NewValidationError(
				fmt.Sprintf("%s must be a %s", field.Name, field.Kind),
				map[string]any{"field": field.Name, "value": raw})
		}
		q.predicates = append(q.predicates, Predicate{
			Key:    field.Name,
			Column: field.Column,
			Op:     OpEqual,
			Kind:   field.Kind,
			Value:  value,
			get:    field.get,
		})
	}

	if ce := b.logger.Check(zap.DebugLevel, "built query"); ce != nil {
		where, _ := q.SQL()
		ce.Write(zap.Any("criteria", criteria), zap.String("where", where))
	}
	return q, nil
}

// BuildID returns the single-record lookup query.
func (b *Builder) BuildID(id int64, withEmployees bool) *Query {
	return &Query{
		predicates: []Predicate{{
			Key:    "id",
			Column: "d.id",
			Op:     OpIDEqual,
			Kind:   KindInt,
			Value:  id,
		}},
		withEmployees: withEmployees,
	}
}

// All returns the unrestricted query.
func (b *Builder) All() *Query {
	return &Query{}
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func sqlArg(kind Kind, value any) any {
	switch kind {
	case KindDecimal:
		return value.(interface{ String() string }).String()
	case KindDepartmentType:
		return string(value.(domain.DepartmentType))
	default:
		return value
	}
}

func sqlCast(kind Kind) string {
	switch kind {
	case KindDecimal:
		return "::numeric"
	case KindDate:
		return "::date"
	default:
		return ""
	}
}
