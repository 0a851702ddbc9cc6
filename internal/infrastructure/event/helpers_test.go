package event

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/erp/reconciliation/internal/domain/receiving"
	"github.com/erp/reconciliation/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func receptionCreated(t *testing.T) *receiving.ReceptionCreatedEvent {
	t.Helper()
	line, err := receiving.NewOrderLine(1, "SKU-1", decimal.NewFromInt(10), decimal.NewFromInt(3))
	require.NoError(t, err)
	order, err := receiving.NewOrder("PO-1", "supplier-1", []receiving.OrderLine{line})
	require.NoError(t, err)
	r, err := receiving.NewReception(order.ID, receiving.ReceptionTypePartial, "RCP-000007", "clerk-1",
		[]receiving.ValidatedLine{{
			ProposedLine: receiving.ProposedLine{
				OrderLineID:      line.ID,
				ReceivedQuantity: decimal.NewFromInt(4),
				AcceptedQuantity: decimal.NewFromInt(4),
				RejectedQuantity: decimal.Zero,
			},
			LineIndex: 1,
		}}, nil, "")
	require.NoError(t, err)
	return receiving.NewReceptionCreatedEvent(r, order)
}

// recordingHandler collects what it is given
type recordingHandler struct {
	mu      sync.Mutex
	types   []string
	handled []shared.DomainEvent
	err     error
}

func (h *recordingHandler) Handle(_ context.Context, e shared.DomainEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handled = append(h.handled, e)
	return h.err
}

func (h *recordingHandler) EventTypes() []string { return h.types }

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.handled)
}

type panickingHandler struct{}

func (panickingHandler) Handle(context.Context, shared.DomainEvent) error { panic("boom") }
func (panickingHandler) EventTypes() []string                            { return nil }

// MockPublisher is a testify mock of shared.EventPublisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	args := m.Called(ctx, events)
	return args.Error(0)
}

// MockIdempotencyStore is a testify mock of shared.IdempotencyStore
type MockIdempotencyStore struct {
	mock.Mock
}

func (m *MockIdempotencyStore) MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) IsProcessed(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) Release(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func (m *MockIdempotencyStore) Close() error { return m.Called().Error(0) }

func newOtherEvent(eventType string) *shared.BaseDomainEvent {
	e := shared.NewBaseDomainEvent(eventType, "Other", uuid.New())
	return &e
}
