package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/spec-kit/abteilung-service/internal/domain"
	"github.com/spec-kit/abteilung-service/internal/query"
)

var (
	ErrNotFound          = errors.New("department not found")
	ErrVersionConflict   = errors.New("department version conflict")
	ErrOfficeNumberTaken = errors.New("office number already taken")
)

// DepartmentRepository manages department persistence.
type DepartmentRepository interface {
	FindMatching(ctx context.Context, q *query.Query) ([]domain.Department, error)
	// FindOne returns ErrNotFound when nothing matches.
	FindOne(ctx context.Context, q *query.Query) (*domain.Department, error)
	CountMatching(ctx context.Context, q *query.Query) (int64, error)
	ExistsByOfficeNumber(ctx context.Context, officeNumber string) (bool, error)
	// Create inserts the department, its manager and employees atomically
	// and assigns ids.
	Create(ctx context.Context, dept *domain.Department) error
	// Update writes the scalar attributes if the stored version still equals
	// expectedVersion, and bumps dept.Version by one. ErrVersionConflict
	// otherwise.
	Update(ctx context.Context, dept *domain.Department, expectedVersion int) error
	RunInTransaction(ctx context.Context, fn func(ctx context.Context, tx DepartmentTx) error) error
}

// DepartmentTx exposes the reads and deletions that must run inside one
// transaction.
type DepartmentTx interface {
	// FindDepartment loads the department with its manager and employees and
	// locks it until the transaction ends. ErrNotFound when it is absent.
	FindDepartment(ctx context.Context, id int64) (*domain.Department, error)
	DeleteManager(ctx context.Context, id int64) error
	DeleteEmployee(ctx context.Context, id int64) error
	DeleteDepartment(ctx context.Context, id int64) (bool, error)
}

const departmentSelect = `
        SELECT d.id, d.version, d.office_number, d.satisfaction, d.type, d.budget::text,
               d.absence_rate::text, d.available, d.founded_on, d.homepage, d.tags,
               d.created_at, d.updated_at, m.id, m.surname, m.first_name
        FROM departments d LEFT JOIN managers m ON m.department_id = d.id`

type departmentRepository struct {
	pool *pgxpool.Pool
}

// NewDepartmentRepository builds the Postgres repository.
func NewDepartmentRepository(pool *pgxpool.Pool) DepartmentRepository {
	return &departmentRepository{pool: pool}
}

func (r *departmentRepository) FindMatching(ctx context.Context, q *query.Query) ([]domain.Department, error) {
	sql, args := selectSQL(q)
	rows, err := r.pool.Query(ctx, sql+" ORDER BY d.id", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result, err := scanDepartments(rows)
	if err != nil {
		return nil, err
	}
	if q.WithEmployees() && len(result) > 0 {
		if err := attachEmployees(ctx, r.pool, result); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (r *departmentRepository) FindOne(ctx context.Context, q *query.Query) (*domain.Department, error) {
	depts, err := r.FindMatching(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(depts) == 0 {
		return nil, ErrNotFound
	}
	return &depts[0], nil
}

func (r *departmentRepository) CountMatching(ctx context.Context, q *query.Query) (int64, error) {
	sql := `SELECT COUNT(*) FROM departments d LEFT JOIN managers m ON m.department_id = d.id`
	where, args := q.SQL()
	if where != "" {
		sql += " WHERE " + where
	}
	var count int64
	if err := r.pool.QueryRow(ctx, sql, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *departmentRepository) ExistsByOfficeNumber(ctx context.Context, officeNumber string) (bool, error) {
	const sql = `SELECT EXISTS(SELECT 1 FROM departments WHERE office_number=$1)`
	var exists bool
	if err := r.pool.QueryRow(ctx, sql, officeNumber).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *departmentRepository) Create(ctx context.Context, dept *domain.Department) error {
	const insertDepartment = `
        INSERT INTO departments (office_number, satisfaction, type, budget, absence_rate, available, founded_on, homepage, tags)
        VALUES ($1,$2,$3,$4::numeric,$5::numeric,$6,$7,$8,$9)
        RETURNING id, version, created_at, updated_at`
	const insertManager = `
        INSERT INTO managers (department_id, surname, first_name)
        VALUES ($1,$2,$3)
        RETURNING id`
	const insertEmployee = `
        INSERT INTO employees (department_id, name, job_type)
        VALUES ($1,$2,$3)
        RETURNING id`

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var id int64
		if err := tx.QueryRow(ctx, insertDepartment,
			dept.OfficeNumber,
			dept.Satisfaction,
			string(dept.Type),
			dept.Budget.String(),
			decimalArg(dept.AbsenceRate),
			dept.Available,
			dept.FoundedOn,
			dept.Homepage,
			domain.NormalizeTags(dept.Tags),
		).Scan(&id, &dept.Version, &dept.CreatedAt, &dept.UpdatedAt); err != nil {
			return err
		}
		dept.AssignID(id)

		if dept.Manager != nil {
			if err := tx.QueryRow(ctx, insertManager,
				dept.Manager.DepartmentID,
				dept.Manager.Surname,
				dept.Manager.FirstName,
			).Scan(&dept.Manager.ID); err != nil {
				return err
			}
		}
		for i := range dept.Employees {
			emp := &dept.Employees[i]
			if err := tx.QueryRow(ctx, insertEmployee, emp.DepartmentID, emp.Name, emp.JobType).Scan(&emp.ID); err != nil {
				return err
			}
		}
		return nil
	})
	return mapWriteError(err)
}

func (r *departmentRepository) Update(ctx context.Context, dept *domain.Department, expectedVersion int) error {
	const sql = `
        UPDATE departments
        SET office_number=$1, satisfaction=$2, type=$3, budget=$4::numeric, absence_rate=$5::numeric,
            available=$6, founded_on=$7, homepage=$8, tags=$9, version=version+1, updated_at=NOW()
        WHERE id=$10 AND version=$11
        RETURNING version, updated_at`
	err := r.pool.QueryRow(ctx, sql,
		dept.OfficeNumber,
		dept.Satisfaction,
		string(dept.Type),
		dept.Budget.String(),
		decimalArg(dept.AbsenceRate),
		dept.Available,
		dept.FoundedOn,
		dept.Homepage,
		domain.NormalizeTags(dept.Tags),
		dept.ID,
		expectedVersion,
	).Scan(&dept.Version, &dept.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrVersionConflict
	}
	return mapWriteError(err)
}

func (r *departmentRepository) RunInTransaction(ctx context.Context, fn func(ctx context.Context, tx DepartmentTx) error) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &departmentTx{tx: tx})
	})
}

// querier is satisfied by both the pool and an open transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func attachEmployees(ctx context.Context, db querier, depts []domain.Department) error {
	const sql = `
        SELECT id, department_id, name, job_type
        FROM employees WHERE department_id = ANY($1) ORDER BY id`
	ids := make([]int64, len(depts))
	index := make(map[int64]int, len(depts))
	for i := range depts {
		ids[i] = depts[i].ID
		index[depts[i].ID] = i
		depts[i].Employees = []domain.Employee{}
	}

	rows, err := db.Query(ctx, sql, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var emp domain.Employee
		if err := rows.Scan(&emp.ID, &emp.DepartmentID, &emp.Name, &emp.JobType); err != nil {
			return err
		}
		if i, ok := index[emp.DepartmentID]; ok {
			depts[i].Employees = append(depts[i].Employees, emp)
		}
	}
	return rows.Err()
}

type departmentTx struct {
	tx pgx.Tx
}

func (t *departmentTx) FindDepartment(ctx context.Context, id int64) (*domain.Department, error) {
	rows, err := t.tx.Query(ctx, departmentSelect+" WHERE d.id = $1 FOR UPDATE OF d", id)
	if err != nil {
		return nil, err
	}
	depts, err := scanDepartments(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}
	if len(depts) == 0 {
		return nil, ErrNotFound
	}
	if err := attachEmployees(ctx, t.tx, depts); err != nil {
		return nil, err
	}
	return &depts[0], nil
}

func (t *departmentTx) DeleteManager(ctx context.Context, id int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM managers WHERE id=$1`, id)
	return err
}

func (t *departmentTx) DeleteEmployee(ctx context.Context, id int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM employees WHERE id=$1`, id)
	return err
}

func (t *departmentTx) DeleteDepartment(ctx context.Context, id int64) (bool, error) {
	cmd, err := t.tx.Exec(ctx, `DELETE FROM departments WHERE id=$1`, id)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func selectSQL(q *query.Query) (string, []any) {
	where, args := q.SQL()
	if where == "" {
		return departmentSelect, nil
	}
	return departmentSelect + " WHERE " + where, args
}

func scanDepartments(rows pgx.Rows) ([]domain.Department, error) {
	var result []domain.Department
	for rows.Next() {
		var (
			dept        domain.Department
			deptType    string
			budget      string
			absenceRate *string
			managerID   *int64
			surname     *string
			firstName   *string
		)
		if err := rows.Scan(
			&dept.ID,
			&dept.Version,
			&dept.OfficeNumber,
			&dept.Satisfaction,
			&deptType,
			&budget,
			&absenceRate,
			&dept.Available,
			&dept.FoundedOn,
			&dept.Homepage,
			&dept.Tags,
			&dept.CreatedAt,
			&dept.UpdatedAt,
			&managerID,
			&surname,
			&firstName,
		); err != nil {
			return nil, err
		}
		dept.Type = domain.DepartmentType(deptType)
		var err error
		if dept.Budget, err = decimal.NewFromString(budget); err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		if absenceRate != nil {
			rate, err := decimal.NewFromString(*absenceRate)
			if err != nil {
				return nil, fmt.Errorf("scan absence rate: %w", err)
			}
			dept.AbsenceRate = &rate
		}
		if dept.Tags == nil {
			dept.Tags = []string{}
		}
		if managerID != nil {
			dept.Manager = &domain.Manager{ID: *managerID, DepartmentID: dept.ID}
			if surname != nil {
				dept.Manager.Surname = *surname
			}
			if firstName != nil {
				dept.Manager.FirstName = *firstName
			}
		}
		result = append(result, dept)
	}
	return result, rows.Err()
}

func decimalArg(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "departments_office_number_key" {
		return ErrOfficeNumberTaken
	}
	return err
}
