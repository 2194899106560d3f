package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/abteilung-service/internal/domain"
	"github.com/spec-kit/abteilung-service/internal/query"
)

func newDepartment(t *testing.T, office, surname string, employees ...string) *domain.Department {
	t.Helper()
	b := domain.NewDepartmentBuilder(office, decimal.NewFromInt(1000)).
		Type(domain.DepartmentTypeDevelopment).
		Tags("javascript").
		Manager(surname, "")
	for _, name := range employees {
		b.Employee(name, "DEV")
	}
	dept, err := b.Build()
	require.NoError(t, err)
	return dept
}

func TestMemoryCreateAssignsIDs(t *testing.T) {
	repo := NewMemoryDepartmentRepository()
	ctx := context.Background()

	dept := newDepartment(t, "1-001", "Alpha", "Bob", "Eve")
	require.NoError(t, repo.Create(ctx, dept))
	assert.Equal(t, int64(1), dept.ID)
	assert.Equal(t, 0, dept.Version)
	assert.Equal(t, int64(1), dept.Manager.DepartmentID)
	assert.NotZero(t, dept.Manager.ID)
	for _, e := range dept.Employees {
		assert.Equal(t, int64(1), e.DepartmentID)
		assert.NotZero(t, e.ID)
	}

	err := repo.Create(ctx, newDepartment(t, "1-001", "Beta"))
	assert.ErrorIs(t, err, ErrOfficeNumberTaken)

	exists, err := repo.ExistsByOfficeNumber(ctx, "1-001")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestMemoryFindMatching(t *testing.T) {
	repo := NewMemoryDepartmentRepository()
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, newDepartment(t, "1-001", "Schneider", "Bob")))
	require.NoError(t, repo.Create(ctx, newDepartment(t, "1-002", "Meier")))

	b := query.NewBuilder(nil)
	q, err := b.Build(query.Criteria{"manager": "schn"})
	require.NoError(t, err)
	found, err := repo.FindMatching(ctx, q)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "1-001", found[0].OfficeNumber)
	assert.Nil(t, found[0].Employees)

	all, err := repo.FindMatching(ctx, b.All())
	require.NoError(t, err)
	assert.Len(t, all, 2)
	count, err := repo.CountMatching(ctx, b.All())
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	one, err := repo.FindOne(ctx, b.BuildID(1, true))
	require.NoError(t, err)
	assert.Len(t, one.Employees, 1)

	_, err = repo.FindOne(ctx, b.BuildID(99, false))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryResultsAreCopies(t *testing.T) {
	repo := NewMemoryDepartmentRepository()
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, newDepartment(t, "1-001", "Alpha")))

	q := query.NewBuilder(nil).BuildID(1, false)
	first, err := repo.FindOne(ctx, q)
	require.NoError(t, err)
	first.OfficeNumber = "9-999"
	first.Manager.Surname = "Changed"

	again, err := repo.FindOne(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, "1-001", again.OfficeNumber)
	assert.Equal(t, "Alpha", again.Manager.Surname)
}

func TestMemoryUpdateComparesVersion(t *testing.T) {
	repo := NewMemoryDepartmentRepository()
	ctx := context.Background()
	dept := newDepartment(t, "1-001", "Alpha")
	require.NoError(t, repo.Create(ctx, dept))

	dept.Satisfaction = 5
	require.NoError(t, repo.Update(ctx, dept, 0))
	assert.Equal(t, 1, dept.Version)

	dept.Satisfaction = 1
	assert.ErrorIs(t, repo.Update(ctx, dept, 0), ErrVersionConflict)

	stored, err := repo.FindOne(ctx, query.NewBuilder(nil).BuildID(dept.ID, false))
	require.NoError(t, err)
	assert.Equal(t, 5, stored.Satisfaction)
	assert.Equal(t, 1, stored.Version)
}

func TestMemoryTransactionRollsBack(t *testing.T) {
	repo := NewMemoryDepartmentRepository()
	ctx := context.Background()
	dept := newDepartment(t, "1-001", "Alpha", "Bob", "Eve")
	require.NoError(t, repo.Create(ctx, dept))

	boom := errors.New("boom")
	err := repo.RunInTransaction(ctx, func(ctx context.Context, tx DepartmentTx) error {
		require.NoError(t, tx.DeleteManager(ctx, dept.Manager.ID))
		require.NoError(t, tx.DeleteEmployee(ctx, dept.Employees[0].ID))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	stored, err := repo.FindOne(ctx, query.NewBuilder(nil).BuildID(dept.ID, true))
	require.NoError(t, err)
	assert.NotNil(t, stored.Manager)
	assert.Len(t, stored.Employees, 2)

	var deleted bool
	err = repo.RunInTransaction(ctx, func(ctx context.Context, tx DepartmentTx) error {
		var err error
		deleted, err = tx.DeleteDepartment(ctx, dept.ID)
		return err
	})
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = repo.FindOne(ctx, query.NewBuilder(nil).BuildID(dept.ID, false))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryTransactionFindDepartment(t *testing.T) {
	repo := NewMemoryDepartmentRepository()
	ctx := context.Background()
	dept := newDepartment(t, "1-001", "Alpha", "Bob", "Eve")
	require.NoError(t, repo.Create(ctx, dept))

	err := repo.RunInTransaction(ctx, func(ctx context.Context, tx DepartmentTx) error {
		found, err := tx.FindDepartment(ctx, dept.ID)
		require.NoError(t, err)
		assert.Equal(t, "Alpha", found.Manager.Surname)
		assert.Len(t, found.Employees, 2)

		// The result is a copy; deletions do not alter it.
		require.NoError(t, tx.DeleteEmployee(ctx, found.Employees[0].ID))
		assert.Len(t, found.Employees, 2)

		_, err = tx.FindDepartment(ctx, dept.ID+1)
		assert.ErrorIs(t, err, ErrNotFound)
		return nil
	})
	require.NoError(t, err)
}
