package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/spec-kit/abteilung-service/internal/domain"
	"github.com/spec-kit/abteilung-service/internal/query"
)

// MemoryDepartmentRepository keeps departments in process memory. It backs
// the service when no Postgres DSN is configured and in tests.
type MemoryDepartmentRepository struct {
	mu           sync.Mutex
	departments  map[int64]*domain.Department
	nextDept     int64
	nextManager  int64
	nextEmployee int64
}

// NewMemoryDepartmentRepository returns an empty repository.
func NewMemoryDepartmentRepository() *MemoryDepartmentRepository {
	return &MemoryDepartmentRepository{departments: make(map[int64]*domain.Department)}
}

func (r *MemoryDepartmentRepository) FindMatching(_ context.Context, q *query.Query) ([]domain.Department, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]int64, 0, len(r.departments))
	for id := range r.departments {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var result []domain.Department
	for _, id := range ids {
		d := r.departments[id]
		if !q.Matches(d) {
			continue
		}
		c := d.Clone()
		if !q.WithEmployees() {
			c.Employees = nil
		}
		result = append(result, *c)
	}
	return result, nil
}

func (r *MemoryDepartmentRepository) FindOne(ctx context.Context, q *query.Query) (*domain.Department, error) {
	depts, err := r.FindMatching(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(depts) == 0 {
		return nil, ErrNotFound
	}
	return &depts[0], nil
}

func (r *MemoryDepartmentRepository) CountMatching(_ context.Context, q *query.Query) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var count int64
	for _, d := range r.departments {
		if q.Matches(d) {
			count++
		}
	}
	return count, nil
}

func (r *MemoryDepartmentRepository) ExistsByOfficeNumber(_ context.Context, officeNumber string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.officeNumberTaken(officeNumber, 0), nil
}

func (r *MemoryDepartmentRepository) Create(_ context.Context, dept *domain.Department) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.officeNumberTaken(dept.OfficeNumber, 0) {
		return ErrOfficeNumberTaken
	}
	r.nextDept++
	now := time.Now().UTC()
	dept.Version = 0
	dept.Tags = domain.NormalizeTags(dept.Tags)
	dept.CreatedAt = now
	dept.UpdatedAt = now
	dept.AssignID(r.nextDept)
	if dept.Manager != nil {
		r.nextManager++
		dept.Manager.ID = r.nextManager
	}
	if dept.Employees == nil {
		dept.Employees = []domain.Employee{}
	}
	for i := range dept.Employees {
		r.nextEmployee++
		dept.Employees[i].ID = r.nextEmployee
	}
	r.departments[dept.ID] = dept.Clone()
	return nil
}

func (r *MemoryDepartmentRepository) Update(_ context.Context, dept *domain.Department, expectedVersion int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.departments[dept.ID]
	if !ok || stored.Version != expectedVersion {
		return ErrVersionConflict
	}
	if r.officeNumberTaken(dept.OfficeNumber, dept.ID) {
		return ErrOfficeNumberTaken
	}

	updated := stored.Clone()
	updated.OfficeNumber = dept.OfficeNumber
	updated.Satisfaction = dept.Satisfaction
	updated.Type = dept.Type
	updated.Budget = dept.Budget
	updated.AbsenceRate = dept.Clone().AbsenceRate
	updated.Available = dept.Available
	updated.FoundedOn = dept.Clone().FoundedOn
	updated.Homepage = dept.Homepage
	updated.Tags = domain.NormalizeTags(dept.Tags)
	updated.Version = expectedVersion + 1
	updated.UpdatedAt = time.Now().UTC()
	r.departments[dept.ID] = updated

	dept.Version = updated.Version
	dept.UpdatedAt = updated.UpdatedAt
	return nil
}

// RunInTransaction holds the repository lock for the duration of fn and
// restores the previous state when fn fails.
func (r *MemoryDepartmentRepository) RunInTransaction(ctx context.Context, fn func(ctx context.Context, tx DepartmentTx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := make(map[int64]*domain.Department, len(r.departments))
	for id, d := range r.departments {
		snapshot[id] = d.Clone()
	}
	if err := fn(ctx, &memoryDepartmentTx{repo: r}); err != nil {
		r.departments = snapshot
		return err
	}
	return nil
}

func (r *MemoryDepartmentRepository) officeNumberTaken(officeNumber string, exceptID int64) bool {
	for id, d := range r.departments {
		if id != exceptID && d.OfficeNumber == officeNumber {
			return true
		}
	}
	return false
}

type memoryDepartmentTx struct {
	repo *MemoryDepartmentRepository
}

func (t *memoryDepartmentTx) FindDepartment(_ context.Context, id int64) (*domain.Department, error) {
	d, ok := t.repo.departments[id]
	if !ok {
		return nil, ErrNotFound
	}
	return d.Clone(), nil
}

func (t *memoryDepartmentTx) DeleteManager(_ context.Context, id int64) error {
	for _, d := range t.repo.departments {
		if d.Manager != nil && d.Manager.ID == id {
			d.Manager = nil
		}
	}
	return nil
}

func (t *memoryDepartmentTx) DeleteEmployee(_ context.Context, id int64) error {
	for _, d := range t.repo.departments {
		kept := d.Employees[:0]
		for _, e := range d.Employees {
			if e.ID != id {
				kept = append(kept, e)
			}
		}
		d.Employees = kept
	}
	return nil
}

func (t *memoryDepartmentTx) DeleteDepartment(_ context.Context, id int64) (bool, error) {
	if _, ok := t.repo.departments[id]; !ok {
		return false, nil
	}
	delete(t.repo.departments, id)
	return true, nil
}
