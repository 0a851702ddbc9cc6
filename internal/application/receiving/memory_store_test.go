package receiving

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/erp/reconciliation/internal/domain/receiving"
	"github.com/erp/reconciliation/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// memoryStore is a transactional in-memory store. Execute holds a single
// mutex for the whole unit of work, which serializes transactions the way
// the order row lock does, and restores a snapshot when fn fails.
type memoryStore struct {
	mu         sync.Mutex
	orders     map[uuid.UUID]*receiving.Order
	receptions map[uuid.UUID]*receiving.Reception
	counters   map[string]int64
	failures   map[string][]error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		orders:     make(map[uuid.UUID]*receiving.Order),
		receptions: make(map[uuid.UUID]*receiving.Reception),
		counters:   make(map[string]int64),
		failures:   make(map[string][]error),
	}
}

// failNext makes the next calls of op return the given errors, in order
func (s *memoryStore) failNext(op string, errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = append(s.failures[op], errs...)
}

func (s *memoryStore) injected(op string) error {
	queue := s.failures[op]
	if len(queue) == 0 {
		return nil
	}
	s.failures[op] = queue[1:]
	return queue[0]
}

func (s *memoryStore) Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	orders, receptions, counters := s.snapshot()
	if err := fn(memoryRepos{s: s}); err != nil {
		s.orders, s.receptions, s.counters = orders, receptions, counters
		return err
	}
	return nil
}

func (s *memoryStore) snapshot() (map[uuid.UUID]*receiving.Order, map[uuid.UUID]*receiving.Reception, map[string]int64) {
	orders := make(map[uuid.UUID]*receiving.Order, len(s.orders))
	for k, v := range s.orders {
		orders[k] = cloneOrder(v)
	}
	receptions := make(map[uuid.UUID]*receiving.Reception, len(s.receptions))
	for k, v := range s.receptions {
		receptions[k] = cloneReception(v)
	}
	counters := make(map[string]int64, len(s.counters))
	for k, v := range s.counters {
		counters[k] = v
	}
	return orders, receptions, counters
}

// seedOrder stores an order outside any transaction
func (s *memoryStore) seedOrder(o *receiving.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.ID] = cloneOrder(o)
}

func (s *memoryStore) order(id uuid.UUID) *receiving.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneOrder(s.orders[id])
}

func (s *memoryStore) reception(id uuid.UUID) *receiving.Reception {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneReception(s.receptions[id])
}

func (s *memoryStore) receptionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.receptions)
}

func cloneOrder(o *receiving.Order) *receiving.Order {
	if o == nil {
		return nil
	}
	c := *o
	c.Lines = append([]receiving.OrderLine(nil), o.Lines...)
	c.ClearDomainEvents()
	return &c
}

func cloneReception(r *receiving.Reception) *receiving.Reception {
	if r == nil {
		return nil
	}
	c := *r
	c.Lines = append([]receiving.ReceptionLine(nil), r.Lines...)
	c.Documents = append([]string(nil), r.Documents...)
	c.ClearDomainEvents()
	return &c
}

type memoryRepos struct{ s *memoryStore }

func (r memoryRepos) OrderRepo() receiving.OrderRepository         { return memoryOrderRepo{s: r.s, locked: true} }
func (r memoryRepos) ReceptionRepo() receiving.ReceptionRepository { return memoryReceptionRepo{s: r.s, locked: true} }
func (r memoryRepos) SequenceRepo() receiving.SequenceGenerator    { return memorySequence{s: r.s} }

// memoryOrderRepo reads without taking the store mutex when used inside
// Execute (locked) and takes it for plain reads.
type memoryOrderRepo struct {
	s      *memoryStore
	locked bool
}

func (r memoryOrderRepo) guard() func() {
	if r.locked {
		return func() {}
	}
	r.s.mu.Lock()
	return r.s.mu.Unlock
}

func (r memoryOrderRepo) FindByID(ctx context.Context, id uuid.UUID) (*receiving.Order, error) {
	defer r.guard()()
	o, ok := r.s.orders[id]
	if !ok {
		return nil, receiving.NewOrderNotFound(id)
	}
	return cloneOrder(o), nil
}

func (r memoryOrderRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*receiving.Order, error) {
	return r.FindByID(ctx, id)
}

func (r memoryOrderRepo) Save(ctx context.Context, order *receiving.Order) error {
	defer r.guard()()
	r.s.orders[order.ID] = cloneOrder(order)
	return nil
}

func (r memoryOrderRepo) UpdateStatus(ctx context.Context, order *receiving.Order) error {
	defer r.guard()()
	if err := r.s.injected("UpdateStatus"); err != nil {
		return err
	}
	r.s.orders[order.ID] = cloneOrder(order)
	return nil
}

type memoryReceptionRepo struct {
	s      *memoryStore
	locked bool
}

func (r memoryReceptionRepo) guard() func() {
	if r.locked {
		return func() {}
	}
	r.s.mu.Lock()
	return r.s.mu.Unlock
}

func (r memoryReceptionRepo) FindByID(ctx context.Context, id uuid.UUID) (*receiving.Reception, error) {
	defer r.guard()()
	rec, ok := r.s.receptions[id]
	if !ok {
		return nil, receiving.NewReceptionNotFound(id)
	}
	return cloneReception(rec), nil
}

func (r memoryReceptionRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*receiving.Reception, error) {
	return r.FindByID(ctx, id)
}

func (r memoryReceptionRepo) byOrder(orderID uuid.UUID) []*receiving.Reception {
	var out []*receiving.Reception
	for _, rec := range r.s.receptions {
		if rec.OrderID == orderID {
			out = append(out, cloneReception(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SequenceNumber < out[j].SequenceNumber })
	return out
}

func (r memoryReceptionRepo) FindByOrderID(ctx context.Context, orderID uuid.UUID) ([]*receiving.Reception, error) {
	defer r.guard()()
	return r.byOrder(orderID), nil
}

func (r memoryReceptionRepo) ListByOrderID(ctx context.Context, orderID uuid.UUID, filter shared.Filter) ([]*receiving.Reception, int64, error) {
	defer r.guard()()
	all := r.byOrder(orderID)
	sort.Slice(all, func(i, j int) bool { return all[i].SequenceNumber > all[j].SequenceNumber })
	start := filter.Offset()
	if start > len(all) {
		start = len(all)
	}
	end := start + filter.PageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], int64(len(all)), nil
}

func (r memoryReceptionRepo) Create(ctx context.Context, rec *receiving.Reception) error {
	defer r.guard()()
	if err := r.s.injected("Create"); err != nil {
		return err
	}
	for _, existing := range r.s.receptions {
		if existing.SequenceNumber == rec.SequenceNumber {
			return receiving.NewConcurrencyConflict("reception sequence", nil)
		}
	}
	r.s.receptions[rec.ID] = cloneReception(rec)
	return nil
}

func (r memoryReceptionRepo) SaveInspection(ctx context.Context, rec *receiving.Reception, loadedVersion int) error {
	defer r.guard()()
	if err := r.s.injected("SaveInspection"); err != nil {
		return err
	}
	stored, ok := r.s.receptions[rec.ID]
	if !ok {
		return receiving.NewReceptionNotFound(rec.ID)
	}
	if stored.Version != loadedVersion {
		return receiving.NewConcurrencyConflict("reception", nil)
	}
	rec.Version = loadedVersion + 1
	r.s.receptions[rec.ID] = cloneReception(rec)
	return nil
}

type memorySequence struct{ s *memoryStore }

func (q memorySequence) Next(ctx context.Context, name string) (int64, error) {
	q.s.counters[name]++
	return q.s.counters[name], nil
}

// readOnly returns repositories for use outside transactions
func (s *memoryStore) readOnly() (receiving.OrderRepository, receiving.ReceptionRepository) {
	return memoryOrderRepo{s: s}, memoryReceptionRepo{s: s}
}

// MockEventPublisher is a mock implementation of shared.EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	args := m.Called(ctx, events)
	return args.Error(0)
}

// MockDocumentStorage is a mock implementation of DocumentStorage
type MockDocumentStorage struct {
	mock.Mock
}

func (m *MockDocumentStorage) GenerateUploadURL(ctx context.Context, key, contentType string, expiresIn time.Duration) (string, time.Time, error) {
	args := m.Called(ctx, key, contentType, expiresIn)
	return args.String(0), args.Get(1).(time.Time), args.Error(2)
}

func (m *MockDocumentStorage) GenerateDownloadURL(ctx context.Context, key string, expiresIn time.Duration) (string, time.Time, error) {
	args := m.Called(ctx, key, expiresIn)
	return args.String(0), args.Get(1).(time.Time), args.Error(2)
}

// MockMetricsReader is a mock implementation of receiving.MetricsReader
type MockMetricsReader struct {
	mock.Mock
}

func (m *MockMetricsReader) FindFacts(ctx context.Context, window receiving.MetricsWindow) ([]receiving.ReceptionFact, error) {
	args := m.Called(ctx, window)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]receiving.ReceptionFact), args.Error(1)
}
