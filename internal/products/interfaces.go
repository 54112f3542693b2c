package products

import (
	"context"

	"github.com/google/uuid"
	"github.com/growersmarket/farmdirect-backend/pkg/db/models"
	"gorm.io/gorm"
)

// Repository defines persistence operations for products and their inventory rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, product *models.Product) (*models.Product, error)
	Update(ctx context.Context, productID uuid.UUID, updates map[string]any) error
	FindByID(ctx context.Context, productID uuid.UUID) (*models.Product, error)
	FindByIDs(ctx context.Context, productIDs []uuid.UUID) ([]models.Product, error)
	ListByFarmer(ctx context.Context, farmerID uuid.UUID) ([]models.Product, error)
}
