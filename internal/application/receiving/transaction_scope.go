package receiving

import (
	"context"

	"github.com/erp/reconciliation/internal/domain/receiving"
)

// TransactionScope runs a unit of work atomically.
// If fn returns an error the transaction is rolled back, otherwise committed.
// Cancelling ctx rolls the transaction back.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories are bound to one transaction.
//
// Lock order inside a transaction: reception row, then order row. Submission
// only locks the order row, so the two write paths cannot deadlock.
type TransactionalRepositories interface {
	// OrderRepo returns the order repository scoped to the current transaction
	OrderRepo() receiving.OrderRepository
	// ReceptionRepo returns the reception repository scoped to the current transaction
	ReceptionRepo() receiving.ReceptionRepository
	// SequenceRepo returns the counter used for reception numbers
	SequenceRepo() receiving.SequenceGenerator
}
