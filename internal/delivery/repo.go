package delivery

import (
	"context"

	"github.com/google/uuid"
	"github.com/growersmarket/farmdirect-backend/pkg/db/models"
	"gorm.io/gorm"
)

// Repository defines persistence operations for delivery areas.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, area *models.DeliveryArea) (*models.DeliveryArea, error)
	Update(ctx context.Context, areaID uuid.UUID, updates map[string]any) error
	FindByID(ctx context.Context, areaID uuid.UUID) (*models.DeliveryArea, error)
	List(ctx context.Context) ([]models.DeliveryArea, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a delivery area repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, area *models.DeliveryArea) (*models.DeliveryArea, error) {
	if err := r.db.WithContext(ctx).Create(area).Error; err != nil {
		return nil, err
	}
	return area, nil
}

func (r *repository) Update(ctx context.Context, areaID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.DeliveryArea{}).
		Where("id = ?", areaID).
		Updates(updates).Error
}

func (r *repository) FindByID(ctx context.Context, areaID uuid.UUID) (*models.DeliveryArea, error) {
	var area models.DeliveryArea
	err := r.db.WithContext(ctx).
		Where("id = ?", areaID).
		First(&area).Error
	if err != nil {
		return nil, err
	}
	return &area, nil
}

func (r *repository) List(ctx context.Context) ([]models.DeliveryArea, error) {
	var areas []models.DeliveryArea
	err := r.db.WithContext(ctx).
		Order("province ASC").
		Order("city ASC").
		Order("district ASC").
		Find(&areas).Error
	if err != nil {
		return nil, err
	}
	return areas, nil
}
