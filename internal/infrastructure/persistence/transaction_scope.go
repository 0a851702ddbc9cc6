package persistence

import (
	"context"

	appreceiving "github.com/erp/reconciliation/internal/application/receiving"
	"github.com/erp/reconciliation/internal/domain/receiving"
	"gorm.io/gorm"
)

// GormTransactionScope implements TransactionScope using GORM transactions.
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a new GormTransactionScope.
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// Execute runs fn within a database transaction. An error from fn, or a
// cancelled ctx, rolls the transaction back; otherwise it is committed.
// Commit-time conflicts are reported as concurrency conflicts.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos appreceiving.TransactionalRepositories) error) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(&gormTransactionalRepositories{tx: tx}); err != nil {
			return err
		}
		return ctx.Err()
	})
	if err != nil && !receiving.IsRetryable(err) && isConflict(err) {
		return receiving.NewConcurrencyConflict("transaction", err)
	}
	return err
}

type gormTransactionalRepositories struct {
	tx *gorm.DB
}

func (r *gormTransactionalRepositories) OrderRepo() receiving.OrderRepository {
	return NewGormOrderRepository(r.tx)
}

func (r *gormTransactionalRepositories) ReceptionRepo() receiving.ReceptionRepository {
	return NewGormReceptionRepository(r.tx)
}

func (r *gormTransactionalRepositories) SequenceRepo() receiving.SequenceGenerator {
	return NewGormSequenceRepository(r.tx)
}

var (
	_ appreceiving.TransactionScope          = (*GormTransactionScope)(nil)
	_ appreceiving.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
)
