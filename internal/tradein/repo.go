package tradein

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/revo-backend/pkg/db/models"
	"github.com/angelmondragon/revo-backend/pkg/enums"
	"github.com/angelmondragon/revo-backend/pkg/pagination"
)

// Repository persists pickup requests. The evaluation is loaded alongside
// every read so callers see the current offer.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, pickup *models.PickupRequest) (*models.PickupRequest, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.PickupRequest, error)
	LockByID(ctx context.Context, id uuid.UUID) (*models.PickupRequest, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.PickupRequest, error)
	List(ctx context.Context, filter ListFilter, cursor *pagination.Cursor, limit int) ([]models.PickupRequest, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.PickupStatus) error
}

// ListFilter narrows the evaluator pickup listing.
type ListFilter struct {
	Status *enums.PickupStatus
	UserID *uuid.UUID
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

func (r *repository) Create(ctx context.Context, pickup *models.PickupRequest) (*models.PickupRequest, error) {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(pickup).Error; err != nil {
		return nil, err
	}
	return pickup, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.PickupRequest, error) {
	var pickup models.PickupRequest
	if err := r.db.WithContext(ctx).Preload("Evaluation").Where("id = ?", id).First(&pickup).Error; err != nil {
		return nil, err
	}
	return &pickup, nil
}

// LockByID serializes evaluation writes and offer responses on one pickup.
func (r *repository) LockByID(ctx context.Context, id uuid.UUID) (*models.PickupRequest, error) {
	var pickup models.PickupRequest
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&pickup).Error
	if err != nil {
		return nil, err
	}
	return &pickup, nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.PickupRequest, error) {
	var rows []models.PickupRequest
	err := r.db.WithContext(ctx).
		Preload("Evaluation").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// List returns pickups with their evaluation when one exists; pickups still
// waiting for an evaluator are included.
func (r *repository) List(ctx context.Context, filter ListFilter, cursor *pagination.Cursor, limit int) ([]models.PickupRequest, error) {
	query := r.db.WithContext(ctx).Model(&models.PickupRequest{}).Preload("Evaluation")
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}

	var rows []models.PickupRequest
	if err := query.Scopes(pagination.Scope("", cursor, limit)).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.PickupStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.PickupRequest{}).
		Where("id = ?", id).
		Update("status", status).Error
}
