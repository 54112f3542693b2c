package shippingfee

import (
	"context"

	"github.com/google/uuid"
	"github.com/growersmarket/farmdirect-backend/pkg/db/models"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a shipping fee rule repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, rule *models.ShippingFeeRule) (*models.ShippingFeeRule, error) {
	if err := r.db.WithContext(ctx).Create(rule).Error; err != nil {
		return nil, err
	}
	return rule, nil
}

func (r *repository) Update(ctx context.Context, ruleID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.ShippingFeeRule{}).
		Where("id = ?", ruleID).
		Updates(updates).Error
}

func (r *repository) Delete(ctx context.Context, ruleID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("id = ?", ruleID).
		Delete(&models.ShippingFeeRule{}).Error
}

func (r *repository) FindByID(ctx context.Context, ruleID uuid.UUID) (*models.ShippingFeeRule, error) {
	var rule models.ShippingFeeRule
	err := r.db.WithContext(ctx).
		Where("id = ?", ruleID).
		First(&rule).Error
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

func (r *repository) FindBestForArea(ctx context.Context, deliveryAreaID *uuid.UUID) (*models.ShippingFeeRule, error) {
	query := r.db.WithContext(ctx).Where("enabled = ?", true)
	if deliveryAreaID == nil {
		query = query.Where("delivery_area_id IS NULL")
	} else {
		query = query.Where("delivery_area_id = ?", *deliveryAreaID)
	}

	var rule models.ShippingFeeRule
	err := query.
		Order("priority DESC").
		Order("id ASC").
		First(&rule).Error
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

func (r *repository) FindEnabledConflict(ctx context.Context, deliveryAreaID *uuid.UUID, priority int, excludeID *uuid.UUID) (*models.ShippingFeeRule, error) {
	query := r.db.WithContext(ctx).
		Where("enabled = ?", true).
		Where("priority = ?", priority)
	if deliveryAreaID == nil {
		query = query.Where("delivery_area_id IS NULL")
	} else {
		query = query.Where("delivery_area_id = ?", *deliveryAreaID)
	}
	if excludeID != nil {
		query = query.Where("id <> ?", *excludeID)
	}

	var rule models.ShippingFeeRule
	err := query.First(&rule).Error
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

func (r *repository) List(ctx context.Context) ([]models.ShippingFeeRule, error) {
	var rules []models.ShippingFeeRule
	err := r.db.WithContext(ctx).
		Order("priority DESC").
		Order("id ASC").
		Find(&rules).Error
	if err != nil {
		return nil, err
	}
	return rules, nil
}
