package service

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/abteilung-service/internal/domain"
	"github.com/spec-kit/abteilung-service/internal/events"
	"github.com/spec-kit/abteilung-service/internal/mail"
	"github.com/spec-kit/abteilung-service/internal/query"
	"github.com/spec-kit/abteilung-service/internal/repository"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []mail.Message
}

func (s *fakeSender) Send(_ context.Context, msg mail.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return nil
}

// spyRepository counts calls reaching the wrapped repository.
type spyRepository struct {
	repository.DepartmentRepository
	calls int
	// afterFindOne runs once, after the next FindOne has read its row.
	afterFindOne func()
	// conflict fails the next Update with ErrVersionConflict.
	conflict bool
	// txOps records the operations issued through the transaction handle.
	txOps []string
}

func (s *spyRepository) FindMatching(ctx context.Context, q *query.Query) ([]domain.Department, error) {
	s.calls++
	return s.DepartmentRepository.FindMatching(ctx, q)
}

func (s *spyRepository) CountMatching(ctx context.Context, q *query.Query) (int64, error) {
	s.calls++
	return s.DepartmentRepository.CountMatching(ctx, q)
}

func (s *spyRepository) FindOne(ctx context.Context, q *query.Query) (*domain.Department, error) {
	s.calls++
	dept, err := s.DepartmentRepository.FindOne(ctx, q)
	if hook := s.afterFindOne; hook != nil {
		s.afterFindOne = nil
		hook()
	}
	return dept, err
}

func (s *spyRepository) Update(ctx context.Context, dept *domain.Department, expectedVersion int) error {
	if s.conflict {
		s.conflict = false
		return repository.ErrVersionConflict
	}
	return s.DepartmentRepository.Update(ctx, dept, expectedVersion)
}

func (s *spyRepository) RunInTransaction(ctx context.Context, fn func(ctx context.Context, tx repository.DepartmentTx) error) error {
	return s.DepartmentRepository.RunInTransaction(ctx, func(ctx context.Context, tx repository.DepartmentTx) error {
		return fn(ctx, &recordingTx{DepartmentTx: tx, spy: s})
	})
}

type recordingTx struct {
	repository.DepartmentTx
	spy *spyRepository
}

func (t *recordingTx) FindDepartment(ctx context.Context, id int64) (*domain.Department, error) {
	t.spy.txOps = append(t.spy.txOps, "find")
	return t.DepartmentTx.FindDepartment(ctx, id)
}

func (t *recordingTx) DeleteManager(ctx context.Context, id int64) error {
	t.spy.txOps = append(t.spy.txOps, "manager")
	return t.DepartmentTx.DeleteManager(ctx, id)
}

func (t *recordingTx) DeleteEmployee(ctx context.Context, id int64) error {
	t.spy.txOps = append(t.spy.txOps, "employee")
	return t.DepartmentTx.DeleteEmployee(ctx, id)
}

func (t *recordingTx) DeleteDepartment(ctx context.Context, id int64) (bool, error) {
	t.spy.txOps = append(t.spy.txOps, "department")
	return t.DepartmentTx.DeleteDepartment(ctx, id)
}

// mapCache is an in-process DepartmentCache.
type mapCache struct {
	mu      sync.Mutex
	entries map[int64]map[bool]*domain.Department
	floors  map[int64]int
}

func newMapCache() *mapCache {
	return &mapCache{entries: map[int64]map[bool]*domain.Department{}, floors: map[int64]int{}}
}

func (c *mapCache) Get(_ context.Context, id int64, withEmployees bool) (*domain.Department, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.entries[id][withEmployees]
	return d.Clone(), ok, nil
}

func (c *mapCache) Set(_ context.Context, dept *domain.Department, withEmployees bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if floor, ok := c.floors[dept.ID]; ok && dept.Version < floor {
		return nil
	}
	if c.entries[dept.ID] == nil {
		c.entries[dept.ID] = map[bool]*domain.Department{}
	}
	c.entries[dept.ID][withEmployees] = dept.Clone()
	return nil
}

func (c *mapCache) Invalidate(_ context.Context, id int64, minVersion int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
	if minVersion > c.floors[id] {
		c.floors[id] = minVersion
	}
	return nil
}

type fixture struct {
	repo       *spyRepository
	cache      *mapCache
	dispatcher events.Dispatcher
	published  []events.Event
	read       *DepartmentReadService
	write      *DepartmentWriteService
}

func newFixture(t *testing.T, policy VersionPolicy) *fixture {
	t.Helper()
	f := &fixture{
		repo:       &spyRepository{DepartmentRepository: repository.NewMemoryDepartmentRepository()},
		cache:      newMapCache(),
		dispatcher: events.NewInMemoryDispatcher(zap.NewNop()),
	}
	for _, et := range events.AllEventTypes {
		f.dispatcher.Subscribe(et, func(_ context.Context, e events.Event) error {
			f.published = append(f.published, e)
			return nil
		})
	}
	deps := DepartmentDependencies{
		DepartmentRepo: f.repo,
		Builder:        query.NewBuilder(zap.NewNop()),
		Cache:          f.cache,
		Dispatcher:     f.dispatcher,
		VersionPolicy:  policy,
		Logger:         zap.NewNop(),
	}
	f.read = NewDepartmentReadService(deps)
	f.write = NewDepartmentWriteService(deps)
	return f
}

func (f *fixture) create(t *testing.T, office, surname string, tags []string, employees ...string) int64 {
	t.Helper()
	b := domain.NewDepartmentBuilder(office, decimal.RequireFromString("1000.00")).
		Satisfaction(3).
		Type(domain.DepartmentTypeDevelopment).
		Tags(tags...).
		Manager(surname, "First")
	for _, e := range employees {
		b.Employee(e, "DEV")
	}
	dept, err := b.Build()
	require.NoError(t, err)
	id, err := f.write.Create(context.Background(), dept)
	require.NoError(t, err)
	return id
}
