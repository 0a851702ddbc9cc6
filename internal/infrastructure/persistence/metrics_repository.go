package persistence

import (
	"context"

	"github.com/erp/reconciliation/internal/domain/receiving"
	"github.com/erp/reconciliation/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormMetricsRepository is the read model behind reconciliation metrics
type GormMetricsRepository struct {
	db *gorm.DB
}

// NewGormMetricsRepository creates a new GormMetricsRepository
func NewGormMetricsRepository(db *gorm.DB) *GormMetricsRepository {
	return &GormMetricsRepository{db: db}
}

// FindFacts loads receptions created inside window with their lines, plus the
// unit prices of every order line they reference
func (r *GormMetricsRepository) FindFacts(ctx context.Context, window receiving.MetricsWindow) ([]receiving.ReceptionFact, error) {
	query := r.db.WithContext(ctx).Model(&models.ReceptionModel{})
	if window.From != nil {
		query = query.Where("created_at >= ?", window.From.UTC())
	}
	if window.To != nil {
		query = query.Where("created_at <= ?", window.To.UTC())
	}

	var rows []models.ReceptionModel
	if err := query.Preload("Lines").Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, translateError(err, "metrics", nil)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	prices, err := r.unitPrices(ctx, rows)
	if err != nil {
		return nil, err
	}

	facts := make([]receiving.ReceptionFact, 0, len(rows))
	for i := range rows {
		reception, err := rows[i].ToDomain()
		if err != nil {
			return nil, err
		}
		facts = append(facts, receiving.ReceptionFact{Reception: reception, UnitPrices: prices})
	}
	return facts, nil
}

func (r *GormMetricsRepository) unitPrices(ctx context.Context, rows []models.ReceptionModel) (map[uuid.UUID]decimal.Decimal, error) {
	seen := make(map[uuid.UUID]struct{})
	ids := make([]uuid.UUID, 0)
	for _, row := range rows {
		for _, line := range row.Lines {
			if _, ok := seen[line.OrderLineID]; !ok {
				seen[line.OrderLineID] = struct{}{}
				ids = append(ids, line.OrderLineID)
			}
		}
	}

	prices := make(map[uuid.UUID]decimal.Decimal, len(ids))
	if len(ids) == 0 {
		return prices, nil
	}

	var lines []models.OrderLineModel
	if err := r.db.WithContext(ctx).
		Select("id", "unit_price").
		Where("id IN ?", ids).
		Find(&lines).Error; err != nil {
		return nil, translateError(err, "metrics", nil)
	}
	for _, l := range lines {
		prices[l.ID] = l.UnitPrice
	}
	return prices, nil
}

var _ receiving.MetricsReader = (*GormMetricsRepository)(nil)
