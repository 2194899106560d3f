package graphql

import (
	"context"
	"strconv"

	gqlgo "github.com/graph-gophers/graphql-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/spec-kit/abteilung-service/internal/api/dto"
	"github.com/spec-kit/abteilung-service/internal/auth"
	"github.com/spec-kit/abteilung-service/internal/domain"
	"github.com/spec-kit/abteilung-service/internal/query"
	"github.com/spec-kit/abteilung-service/internal/service"
	apperrors "github.com/spec-kit/abteilung-service/pkg/util/errorutil"
)

var hundred = decimal.NewFromInt(100)

// Resolver is the root resolver for queries and mutations.
type Resolver struct {
	reads  *service.DepartmentReadService
	writes *service.DepartmentWriteService
	logger *zap.Logger
}

// NewResolver builds a resolver.
func NewResolver(reads *service.DepartmentReadService, writes *service.DepartmentWriteService, logger *zap.Logger) *Resolver {
	return &Resolver{reads: reads, writes: writes, logger: logger}
}

type criterionInput struct {
	Key   string
	Value string
}

type criteriaArgs struct {
	Criteria *[]criterionInput
}

func (a criteriaArgs) toCriteria() query.Criteria {
	criteria := query.Criteria{}
	if a.Criteria == nil {
		return criteria
	}
	for _, c := range *a.Criteria {
		criteria[c.Key] = c.Value
	}
	return criteria
}

type idArgs struct {
	ID departmentID
}

func (r *Resolver) Department(ctx context.Context, args idArgs) (*departmentResolver, error) {
	id, err := parseID(args.ID)
	if err != nil {
		return nil, r.fail(ctx, err)
	}
	dept, err := r.reads.GetByID(ctx, id, false)
	if err != nil {
		return nil, r.fail(ctx, err)
	}
	return &departmentResolver{root: r, d: dept}, nil
}

func (r *Resolver) Departments(ctx context.Context, args criteriaArgs) (*[]*departmentResolver, error) {
	depts, err := r.reads.Search(ctx, args.toCriteria())
	if err != nil {
		return nil, r.fail(ctx, err)
	}
	out := make([]*departmentResolver, len(depts))
	for i := range depts {
		out[i] = &departmentResolver{root: r, d: &depts[i]}
	}
	return &out, nil
}

func (r *Resolver) DepartmentCount(ctx context.Context, args criteriaArgs) (*int32, error) {
	n, err := r.reads.Count(ctx, args.toCriteria())
	if err != nil {
		return nil, r.fail(ctx, err)
	}
	count := int32(n)
	return &count, nil
}

type managerInput struct {
	Surname   string
	FirstName *string
}

type employeeInput struct {
	Name    string
	JobType *string
}

type departmentInput struct {
	OfficeNumber string
	Satisfaction *int32
	Type         *string
	Budget       Decimal
	AbsenceRate  *Decimal
	Available    *bool
	FoundedOn    *Date
	Homepage     *string
	Tags         *[]string
	Manager      managerInput
	Employees    *[]employeeInput
}

func (in departmentInput) toRequest() dto.CreateDepartmentRequest {
	req := dto.CreateDepartmentRequest{
		OfficeNumber: in.OfficeNumber,
		Satisfaction: int(deref(in.Satisfaction)),
		Type:         deref(in.Type),
		Budget:       in.Budget.Decimal,
		AbsenceRate:  decimalPtr(in.AbsenceRate),
		Available:    deref(in.Available),
		FoundedOn:    dateString(in.FoundedOn),
		Homepage:     deref(in.Homepage),
		Manager:      &dto.ManagerRequest{Surname: in.Manager.Surname, FirstName: deref(in.Manager.FirstName)},
	}
	if in.Tags != nil {
		req.Tags = *in.Tags
	}
	if in.Employees != nil {
		for _, e := range *in.Employees {
			req.Employees = append(req.Employees, dto.EmployeeRequest{Name: e.Name, JobType: deref(e.JobType)})
		}
	}
	return req
}

type departmentUpdateInput struct {
	ID           departmentID
	Version      int32
	OfficeNumber *string
	Satisfaction *int32
	Type         *string
	Budget       *Decimal
	AbsenceRate  *Decimal
	Available    *bool
	FoundedOn    *Date
	Homepage     *string
	Tags         *[]string
}

func (in departmentUpdateInput) toRequest() dto.UpdateDepartmentRequest {
	req := dto.UpdateDepartmentRequest{
		OfficeNumber: in.OfficeNumber,
		Type:         in.Type,
		Budget:       decimalPtr(in.Budget),
		AbsenceRate:  decimalPtr(in.AbsenceRate),
		Available:    in.Available,
		Homepage:     in.Homepage,
	}
	if in.Satisfaction != nil {
		s := int(*in.Satisfaction)
		req.Satisfaction = &s
	}
	if in.FoundedOn != nil {
		s := dateString(in.FoundedOn)
		req.FoundedOn = &s
	}
	if in.Tags != nil {
		req.Tags = *in.Tags
	}
	return req
}

type createPayload struct {
	id int64
}

func (p *createPayload) ID() gqlgo.ID {
	return gqlgo.ID(strconv.FormatInt(p.id, 10))
}

type updatePayload struct {
	version int
}

func (p *updatePayload) Version() int32 {
	return int32(p.version)
}

func (r *Resolver) Create(ctx context.Context, args struct{ Input departmentInput }) (*createPayload, error) {
	principal, _ := auth.PrincipalFrom(ctx)
	if err := auth.Authorize(principal, domain.RoleAdmin, domain.RoleUser); err != nil {
		return nil, r.fail(ctx, err)
	}
	dept, err := args.Input.toRequest().ToDomain()
	if err != nil {
		return nil, r.fail(ctx, err)
	}
	id, err := r.writes.Create(ctx, dept)
	if err != nil {
		return nil, r.fail(ctx, err)
	}
	return &createPayload{id: id}, nil
}

func (r *Resolver) Update(ctx context.Context, args struct{ Input departmentUpdateInput }) (*updatePayload, error) {
	principal, _ := auth.PrincipalFrom(ctx)
	if err := auth.Authorize(principal, domain.RoleAdmin, domain.RoleUser); err != nil {
		return nil, r.fail(ctx, err)
	}
	id, err := parseID(args.Input.ID)
	if err != nil {
		return nil, r.fail(ctx, err)
	}
	patch, err := args.Input.toRequest().ToPatch()
	if err != nil {
		return nil, r.fail(ctx, err)
	}
	version, err := r.writes.Update(ctx, id, service.FormatVersionToken(int(args.Input.Version)), patch)
	if err != nil {
		return nil, r.fail(ctx, err)
	}
	return &updatePayload{version: version}, nil
}

func (r *Resolver) Delete(ctx context.Context, args idArgs) (*bool, error) {
	principal, _ := auth.PrincipalFrom(ctx)
	if err := auth.Authorize(principal, domain.RoleAdmin); err != nil {
		return nil, r.fail(ctx, err)
	}
	id, err := parseID(args.ID)
	if err != nil {
		return nil, r.fail(ctx, err)
	}
	deleted, err := r.writes.Delete(ctx, id)
	if err != nil {
		return nil, r.fail(ctx, err)
	}
	return &deleted, nil
}

// fail converts err for the response. Internal errors are logged and
// reported without their cause.
func (r *Resolver) fail(ctx context.Context, err error) error {
	de := apperrors.ToDomainError(err)
	if de.Code == apperrors.CodeInternal {
		r.logger.Error("graphql resolver failed", zap.Error(err), zap.Bool("cancelled", ctx.Err() != nil))
		de = &apperrors.DomainError{Code: apperrors.CodeInternal, Message: "internal server error"}
	}
	return resolverError{err: de}
}

type departmentResolver struct {
	root *Resolver
	d    *domain.Department
}

func (d *departmentResolver) ID() gqlgo.ID {
	return gqlgo.ID(strconv.FormatInt(d.d.ID, 10))
}

func (d *departmentResolver) Version() int32 {
	return int32(d.d.Version)
}

func (d *departmentResolver) OfficeNumber() string {
	return d.d.OfficeNumber
}

func (d *departmentResolver) Satisfaction() int32 {
	return int32(d.d.Satisfaction)
}

func (d *departmentResolver) Type() *string {
	return optionalString(string(d.d.Type))
}

func (d *departmentResolver) Budget() Decimal {
	return Decimal{d.d.Budget}
}

func (d *departmentResolver) AbsenceRate(args struct{ Short bool }) string {
	return FormatAbsenceRate(d.d.AbsenceRate, args.Short)
}

func (d *departmentResolver) Available() bool {
	return d.d.Available
}

func (d *departmentResolver) FoundedOn() *Date {
	if d.d.FoundedOn == nil {
		return nil
	}
	return &Date{*d.d.FoundedOn}
}

func (d *departmentResolver) Homepage() *string {
	return optionalString(d.d.Homepage)
}

func (d *departmentResolver) Tags() []string {
	if d.d.Tags == nil {
		return []string{}
	}
	return d.d.Tags
}

func (d *departmentResolver) Manager() *managerResolver {
	if d.d.Manager == nil {
		return nil
	}
	return &managerResolver{m: d.d.Manager}
}

// Employees are loaded on demand when the department was fetched without them.
func (d *departmentResolver) Employees(ctx context.Context) (*[]*employeeResolver, error) {
	employees := d.d.Employees
	if employees == nil {
		loaded, err := d.root.reads.GetByID(ctx, d.d.ID, true)
		if err != nil {
			return nil, d.root.fail(ctx, err)
		}
		employees = loaded.Employees
	}
	out := make([]*employeeResolver, len(employees))
	for i := range employees {
		out[i] = &employeeResolver{e: &employees[i]}
	}
	return &out, nil
}

type managerResolver struct {
	m *domain.Manager
}

func (m *managerResolver) ID() gqlgo.ID {
	return gqlgo.ID(strconv.FormatInt(m.m.ID, 10))
}

func (m *managerResolver) Surname() string {
	return m.m.Surname
}

func (m *managerResolver) FirstName() *string {
	return optionalString(m.m.FirstName)
}

type employeeResolver struct {
	e *domain.Employee
}

func (e *employeeResolver) ID() gqlgo.ID {
	return gqlgo.ID(strconv.FormatInt(e.e.ID, 10))
}

func (e *employeeResolver) Name() string {
	return e.e.Name
}

func (e *employeeResolver) JobType() *string {
	return optionalString(e.e.JobType)
}

// FormatAbsenceRate renders rate as a percentage with two decimals, e.g.
// "12.50 %" (short) or "12.50 percent". A missing rate counts as zero.
func FormatAbsenceRate(rate *decimal.Decimal, short bool) string {
	value := decimal.Zero
	if rate != nil {
		value = *rate
	}
	unit := " percent"
	if short {
		unit = " %"
	}
	return value.Mul(hundred).StringFixed(2) + unit
}

// parseID rejects IDs that are not integers; they name no department.
func parseID(id departmentID) (int64, error) {
	n, ok := id.int64()
	if !ok {
		return 0, apperrors.NewNotFound("department", map[string]any{"id": string(id)})
	}
	return n, nil
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

func decimalPtr(d *Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	v := d.Decimal
	return &v
}

func dateString(d *Date) string {
	if d == nil {
		return ""
	}
	return d.Format(query.DateLayout)
}
