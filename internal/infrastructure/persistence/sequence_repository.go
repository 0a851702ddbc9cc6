package persistence

import (
	"context"

	"github.com/erp/reconciliation/internal/domain/receiving"
	"github.com/erp/reconciliation/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormSequenceRepository issues numbers for a named counter.
//
// On postgres each counter is a database sequence called <name>_seq. nextval
// takes no lock that outlives the statement, so transactions for different
// orders never wait on each other; a rolled-back attempt leaves a gap.
//
// Other databases use the sequence_counters table: a single upsert increments
// the named row and returns the new value. The row stays locked until the
// surrounding transaction ends and a rolled-back attempt gives its number back.
type GormSequenceRepository struct {
	db *gorm.DB
}

// NewGormSequenceRepository creates a new GormSequenceRepository
func NewGormSequenceRepository(db *gorm.DB) *GormSequenceRepository {
	return &GormSequenceRepository{db: db}
}

// Next increments and returns the counter called name, starting at 1
func (r *GormSequenceRepository) Next(ctx context.Context, name string) (int64, error) {
	if r.db.Dialector.Name() == "postgres" {
		return r.nextval(ctx, name)
	}
	return r.upsert(ctx, name)
}

func (r *GormSequenceRepository) nextval(ctx context.Context, name string) (int64, error) {
	var value int64
	err := r.db.WithContext(ctx).
		Raw("SELECT nextval(?::regclass)", name+"_seq").
		Scan(&value).Error
	if err != nil {
		return 0, translateError(err, "sequence", nil)
	}
	return value, nil
}

func (r *GormSequenceRepository) upsert(ctx context.Context, name string) (int64, error) {
	counter := models.SequenceCounterModel{Name: name, Value: 1}
	err := r.db.WithContext(ctx).
		Clauses(
			clause.OnConflict{
				Columns: []clause.Column{{Name: "name"}},
				DoUpdates: clause.Assignments(map[string]interface{}{
					"value": gorm.Expr("sequence_counters.value + 1"),
				}),
			},
			clause.Returning{Columns: []clause.Column{{Name: "value"}}},
		).
		Create(&counter).Error
	if err != nil {
		return 0, translateError(err, "sequence", nil)
	}
	return counter.Value, nil
}

var _ receiving.SequenceGenerator = (*GormSequenceRepository)(nil)
