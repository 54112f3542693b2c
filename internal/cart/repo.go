package cart

import (
	"context"

	"github.com/google/uuid"
	"github.com/growersmarket/farmdirect-backend/pkg/db/models"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a cart repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, line *models.CartLine) (*models.CartLine, error) {
	if err := r.db.WithContext(ctx).Create(line).Error; err != nil {
		return nil, err
	}
	return line, nil
}

func (r *repository) UpdateQuantity(ctx context.Context, lineID uuid.UUID, quantity int) error {
	return r.db.WithContext(ctx).
		Model(&models.CartLine{}).
		Where("id = ?", lineID).
		Update("quantity", quantity).Error
}

func (r *repository) Delete(ctx context.Context, lineID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("id = ?", lineID).
		Delete(&models.CartLine{}).Error
}

func (r *repository) DeleteByIDs(ctx context.Context, lineIDs []uuid.UUID) error {
	if len(lineIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Where("id IN ?", lineIDs).
		Delete(&models.CartLine{}).Error
}

func (r *repository) FindByID(ctx context.Context, lineID uuid.UUID) (*models.CartLine, error) {
	var line models.CartLine
	err := r.db.WithContext(ctx).
		Where("id = ?", lineID).
		First(&line).Error
	if err != nil {
		return nil, err
	}
	return &line, nil
}

func (r *repository) FindByUserAndProduct(ctx context.Context, userID, productID uuid.UUID) (*models.CartLine, error) {
	var line models.CartLine
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND product_id = ?", userID, productID).
		First(&line).Error
	if err != nil {
		return nil, err
	}
	return &line, nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.CartLine, error) {
	var lines []models.CartLine
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&lines).Error
	if err != nil {
		return nil, err
	}
	return lines, nil
}

func (r *repository) ListByIDsForUser(ctx context.Context, userID uuid.UUID, lineIDs []uuid.UUID) ([]models.CartLine, error) {
	if len(lineIDs) == 0 {
		return nil, nil
	}
	var lines []models.CartLine
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND id IN ?", userID, lineIDs).
		Order("created_at ASC").
		Find(&lines).Error
	if err != nil {
		return nil, err
	}
	return lines, nil
}
