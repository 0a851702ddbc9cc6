package persistence

import (
	"context"

	"github.com/erp/reconciliation/internal/domain/receiving"
	"github.com/erp/reconciliation/internal/domain/shared"
	"github.com/erp/reconciliation/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormReceptionRepository implements receiving.ReceptionRepository using GORM
type GormReceptionRepository struct {
	db *gorm.DB
}

// NewGormReceptionRepository creates a new GormReceptionRepository
func NewGormReceptionRepository(db *gorm.DB) *GormReceptionRepository {
	return &GormReceptionRepository{db: db}
}

func linesByIndex(db *gorm.DB) *gorm.DB {
	return db.Order("line_index ASC")
}

// FindByID loads a reception with its lines
func (r *GormReceptionRepository) FindByID(ctx context.Context, id uuid.UUID) (*receiving.Reception, error) {
	return r.find(r.db.WithContext(ctx), id)
}

// FindByIDForUpdate loads a reception and locks its row
func (r *GormReceptionRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*receiving.Reception, error) {
	return r.find(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *GormReceptionRepository) find(db *gorm.DB, id uuid.UUID) (*receiving.Reception, error) {
	var model models.ReceptionModel
	if err := db.Preload("Lines", linesByIndex).First(&model, "id = ?", id).Error; err != nil {
		return nil, translateError(err, "reception", func() error { return receiving.NewReceptionNotFound(id) })
	}
	return model.ToDomain()
}

// FindByOrderID loads the full reception history of an order, oldest first
func (r *GormReceptionRepository) FindByOrderID(ctx context.Context, orderID uuid.UUID) ([]*receiving.Reception, error) {
	var rows []models.ReceptionModel
	if err := r.db.WithContext(ctx).
		Preload("Lines", linesByIndex).
		Where("order_id = ?", orderID).
		Order("created_at ASC, sequence_number ASC").
		Find(&rows).Error; err != nil {
		return nil, translateError(err, "reception", nil)
	}
	return toReceptions(rows)
}

// ListByOrderID pages through an order's receptions, newest first
func (r *GormReceptionRepository) ListByOrderID(ctx context.Context, orderID uuid.UUID, filter shared.Filter) ([]*receiving.Reception, int64, error) {
	filter = filter.Normalize()
	byOrder := func() *gorm.DB {
		return r.db.WithContext(ctx).Model(&models.ReceptionModel{}).Where("order_id = ?", orderID)
	}

	var total int64
	if err := byOrder().Count(&total).Error; err != nil {
		return nil, 0, translateError(err, "reception", nil)
	}

	var rows []models.ReceptionModel
	if err := byOrder().
		Preload("Lines", linesByIndex).
		Order("created_at DESC, sequence_number DESC").
		Offset(filter.Offset()).
		Limit(filter.PageSize).
		Find(&rows).Error; err != nil {
		return nil, 0, translateError(err, "reception", nil)
	}
	receptions, err := toReceptions(rows)
	if err != nil {
		return nil, 0, err
	}
	return receptions, total, nil
}

// Create inserts a reception and all its lines. A duplicate sequence number
// means another transaction won the counter and is reported as a conflict.
func (r *GormReceptionRepository) Create(ctx context.Context, reception *receiving.Reception) error {
	model := models.ReceptionModelFromDomain(reception)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return translateError(err, "reception", nil)
	}
	return nil
}

// SaveInspection writes the inspection state of a reception guarded by the
// version it was loaded with, then the per-line verdicts. On success the
// domain object carries the new version.
func (r *GormReceptionRepository) SaveInspection(ctx context.Context, reception *receiving.Reception, loadedVersion int) error {
	next := loadedVersion + 1
	db := r.db.WithContext(ctx)

	result := db.Model(&models.ReceptionModel{}).
		Where("id = ? AND version = ?", reception.ID, loadedVersion).
		Updates(map[string]interface{}{
			"status":                  reception.Status.String(),
			"inspection_actor_id":     reception.InspectionActorID,
			"inspection_started_at":   reception.InspectionStartedAt,
			"inspection_completed_at": reception.InspectionCompletedAt,
			"version":                 next,
			"updated_at":              reception.UpdatedAt,
		})
	if result.Error != nil {
		return translateError(result.Error, "reception", nil)
	}
	if result.RowsAffected == 0 {
		return receiving.NewConcurrencyConflict("reception", nil)
	}

	for _, line := range reception.Lines {
		if err := db.Model(&models.ReceptionLineModel{}).
			Where("id = ? AND reception_id = ?", line.ID, reception.ID).
			Updates(map[string]interface{}{
				"inspection_status": line.InspectionStatus.String(),
				"notes":             line.Notes,
			}).Error; err != nil {
			return translateError(err, "reception line", nil)
		}
	}

	reception.Version = next
	return nil
}

func toReceptions(rows []models.ReceptionModel) ([]*receiving.Reception, error) {
	out := make([]*receiving.Reception, 0, len(rows))
	for i := range rows {
		r, err := rows[i].ToDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

var _ receiving.ReceptionRepository = (*GormReceptionRepository)(nil)
