package evaluations

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/revo-backend/pkg/db/models"
)

// Repository stores the single current evaluation of each pickup.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Upsert(ctx context.Context, evaluation *models.Evaluation) (*models.Evaluation, error)
	FindByPickupID(ctx context.Context, pickupID uuid.UUID) (*models.Evaluation, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Upsert replaces every evaluator-owned column of an existing row in place,
// keeping its id and created_at, and returns the stored row.
func (r *repository) Upsert(ctx context.Context, evaluation *models.Evaluation) (*models.Evaluation, error) {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "pickup_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"evaluator_id",
				"diagnostics",
				"parts_replaced",
				"evaluation_cost_cents",
				"final_offer_cents",
				"notes",
				"updated_at",
			}),
		}).
		Create(evaluation).Error
	if err != nil {
		return nil, err
	}
	return r.FindByPickupID(ctx, evaluation.PickupID)
}

func (r *repository) FindByPickupID(ctx context.Context, pickupID uuid.UUID) (*models.Evaluation, error) {
	var evaluation models.Evaluation
	if err := r.db.WithContext(ctx).Where("pickup_id = ?", pickupID).First(&evaluation).Error; err != nil {
		return nil, err
	}
	return &evaluation, nil
}
