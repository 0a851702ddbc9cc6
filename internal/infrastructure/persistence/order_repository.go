package persistence

import (
	"context"

	"github.com/erp/reconciliation/internal/domain/receiving"
	"github.com/erp/reconciliation/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormOrderRepository implements receiving.OrderRepository using GORM
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new GormOrderRepository
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

func orderedLines(db *gorm.DB) *gorm.DB {
	return db.Order("line_no ASC")
}

// FindByID loads an order with its lines
func (r *GormOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*receiving.Order, error) {
	return r.find(r.db.WithContext(ctx), id)
}

// FindByIDForUpdate loads an order and takes a row lock (SELECT ... FOR UPDATE)
// held until the surrounding transaction ends. Concurrent submissions against
// the same order serialize here.
func (r *GormOrderRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*receiving.Order, error) {
	return r.find(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *GormOrderRepository) find(db *gorm.DB, id uuid.UUID) (*receiving.Order, error) {
	var model models.OrderModel
	if err := db.Preload("Lines", orderedLines).First(&model, "id = ?", id).Error; err != nil {
		return nil, translateError(err, "order", func() error { return receiving.NewOrderNotFound(id) })
	}
	return model.ToDomain()
}

// Save creates or replaces an order with its lines
func (r *GormOrderRepository) Save(ctx context.Context, order *receiving.Order) error {
	model := models.OrderModelFromDomain(order)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Lines").Save(model).Error; err != nil {
			return translateError(err, "order", nil)
		}
		for i := range model.Lines {
			if err := tx.Save(&model.Lines[i]).Error; err != nil {
				return translateError(err, "order line", nil)
			}
		}
		return nil
	})
}

// UpdateStatus writes the status and version of an order whose version was
// bumped once since it was loaded. A lost race surfaces as a concurrency conflict.
func (r *GormOrderRepository) UpdateStatus(ctx context.Context, order *receiving.Order) error {
	result := r.db.WithContext(ctx).
		Model(&models.OrderModel{}).
		Where("id = ? AND version = ?", order.ID, order.Version-1).
		Updates(map[string]interface{}{
			"status":     order.Status.String(),
			"version":    order.Version,
			"updated_at": order.UpdatedAt,
		})
	if result.Error != nil {
		return translateError(result.Error, "order", nil)
	}
	if result.RowsAffected == 0 {
		return receiving.NewConcurrencyConflict("order", nil)
	}
	return nil
}

var _ receiving.OrderRepository = (*GormOrderRepository)(nil)
