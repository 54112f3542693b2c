package checkout

import (
	"context"

	"github.com/google/uuid"
	"github.com/growersmarket/farmdirect-backend/pkg/db/models"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an order group repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateGroup(ctx context.Context, group *models.OrderGroup) (*models.OrderGroup, error) {
	if err := r.db.WithContext(ctx).Create(group).Error; err != nil {
		return nil, err
	}
	return group, nil
}

func (r *repository) FindGroupByID(ctx context.Context, groupID uuid.UUID) (*models.OrderGroup, error) {
	var group models.OrderGroup
	err := r.db.WithContext(ctx).
		Preload("Orders").
		Preload("Orders.Product").
		Where("id = ?", groupID).
		First(&group).Error
	if err != nil {
		return nil, err
	}
	return &group, nil
}

func (r *repository) FindGroupByNumber(ctx context.Context, groupNumber string) (*models.OrderGroup, error) {
	var group models.OrderGroup
	err := r.db.WithContext(ctx).
		Preload("Orders").
		Where("group_number = ?", groupNumber).
		First(&group).Error
	if err != nil {
		return nil, err
	}
	return &group, nil
}

func (r *repository) ListGroupsByUser(ctx context.Context, userID uuid.UUID) ([]models.OrderGroup, error) {
	var groups []models.OrderGroup
	err := r.db.WithContext(ctx).
		Preload("Orders").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&groups).Error
	if err != nil {
		return nil, err
	}
	return groups, nil
}
