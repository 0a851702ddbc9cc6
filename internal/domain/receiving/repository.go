package receiving

import (
	"context"

	"github.com/erp/reconciliation/internal/domain/shared"
	"github.com/google/uuid"
)

// OrderRepository gives access to orders owned by the upstream purchasing flow
type OrderRepository interface {
	// FindByID loads an order with its lines
	FindByID(ctx context.Context, id uuid.UUID) (*Order, error)

	// FindByIDForUpdate loads an order with its lines and holds a row lock on
	// it until the surrounding transaction ends
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Order, error)

	// Save creates or replaces an order with its lines
	Save(ctx context.Context, order *Order) error

	// UpdateStatus persists a status change using the version as a guard
	UpdateStatus(ctx context.Context, order *Order) error
}

// ReceptionRepository persists receptions and their lines
type ReceptionRepository interface {
	// FindByID loads a reception with its lines
	FindByID(ctx context.Context, id uuid.UUID) (*Reception, error)

	// FindByIDForUpdate loads a reception and locks its row
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Reception, error)

	// FindByOrderID loads the full reception history of an order
	FindByOrderID(ctx context.Context, orderID uuid.UUID) ([]*Reception, error)

	// ListByOrderID pages through an order's receptions, newest first
	ListByOrderID(ctx context.Context, orderID uuid.UUID, filter shared.Filter) ([]*Reception, int64, error)

	// Create inserts a reception and all its lines
	Create(ctx context.Context, reception *Reception) error

	// SaveInspection persists status, inspection fields and line verdicts.
	// The stored version must match the one the reception was loaded with.
	SaveInspection(ctx context.Context, reception *Reception, loadedVersion int) error
}

// SequenceGenerator issues strictly increasing numbers per counter name inside
// the caller's transaction
type SequenceGenerator interface {
	Next(ctx context.Context, name string) (int64, error)
}

// MetricsReader is the read model behind reconciliation metrics
type MetricsReader interface {
	// FindFacts loads receptions created inside the window with their lines and unit prices
	FindFacts(ctx context.Context, window MetricsWindow) ([]ReceptionFact, error)
}
