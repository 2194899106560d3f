package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDepartmentBuilder(t *testing.T) {
	t.Run("builds aggregate with placeholder foreign keys", func(t *testing.T) {
		dept, err := NewDepartmentBuilder(" 4-202 ", decimal.RequireFromString("1000.50")).
			Satisfaction(4).
			Type(DepartmentTypeSales).
			Tags("javascript", "JavaScript", " typescript ").
			Manager("Meier", "Anna").
			Employee("Bob", "DEV").
			Employee("Eve", "OPS").
			Build()
		require.NoError(t, err)

		assert.Equal(t, "4-202", dept.OfficeNumber)
		assert.Equal(t, []string{"JAVASCRIPT", "TYPESCRIPT"}, dept.Tags)
		require.NotNil(t, dept.Manager)
		assert.Zero(t, dept.Manager.DepartmentID)
		require.Len(t, dept.Employees, 2)
		for _, e := range dept.Employees {
			assert.Zero(t, e.DepartmentID)
		}

		dept.AssignID(42)
		assert.Equal(t, int64(42), dept.ID)
		assert.Equal(t, int64(42), dept.Manager.DepartmentID)
		for _, e := range dept.Employees {
			assert.Equal(t, int64(42), e.DepartmentID)
		}
	})

	t.Run("requires manager surname", func(t *testing.T) {
		_, err := NewDepartmentBuilder("1-001", decimal.NewFromInt(1)).Build()
		assert.ErrorIs(t, err, ErrManagerRequired)
	})

	t.Run("rejects unknown type", func(t *testing.T) {
		_, err := NewDepartmentBuilder("1-001", decimal.NewFromInt(1)).
			Manager("Meier", "").
			Type("MARKETING").
			Build()
		assert.ErrorIs(t, err, ErrInvalidType)
	})
}

func TestDepartmentPatchApplyTo(t *testing.T) {
	founded := time.Date(2021, 1, 31, 0, 0, 0, 0, time.UTC)
	base := &Department{
		ID:           7,
		Version:      3,
		OfficeNumber: "1-001",
		Satisfaction: 2,
		Budget:       decimal.NewFromInt(10),
		Tags:         []string{"JAVASCRIPT"},
		Manager:      &Manager{ID: 1, DepartmentID: 7, Surname: "Alpha"},
		Employees:    []Employee{{ID: 2, DepartmentID: 7, Name: "E"}},
	}

	satisfaction := 5
	homepage := "https://example.com/"
	DepartmentPatch{
		Satisfaction: &satisfaction,
		Homepage:     &homepage,
		FoundedOn:    &founded,
		Tags:         []string{"go"},
	}.ApplyTo(base)

	assert.Equal(t, "1-001", base.OfficeNumber)
	assert.Equal(t, 5, base.Satisfaction)
	assert.Equal(t, homepage, base.Homepage)
	assert.Equal(t, []string{"GO"}, base.Tags)
	assert.True(t, base.FoundedOn.Equal(founded))
	assert.Equal(t, 3, base.Version)
	assert.Equal(t, "Alpha", base.Manager.Surname)
	assert.Len(t, base.Employees, 1)
}

func TestCloneIsDeep(t *testing.T) {
	rate := decimal.RequireFromString("0.1")
	d := &Department{Tags: []string{"A"}, AbsenceRate: &rate, Manager: &Manager{Surname: "X"}}
	c := d.Clone()
	c.Tags[0] = "B"
	c.Manager.Surname = "Y"
	assert.Equal(t, "A", d.Tags[0])
	assert.Equal(t, "X", d.Manager.Surname)
}

func TestManagerSurname(t *testing.T) {
	assert.Equal(t, "N/A", (&Department{}).ManagerSurname("N/A"))
	assert.Equal(t, "Meier", (&Department{Manager: &Manager{Surname: "Meier"}}).ManagerSurname("N/A"))
}
