package cart

import (
	"context"

	"github.com/google/uuid"
	"github.com/growersmarket/farmdirect-backend/pkg/db/models"
	"gorm.io/gorm"
)

// Repository defines persistence operations for cart lines.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, line *models.CartLine) (*models.CartLine, error)
	UpdateQuantity(ctx context.Context, lineID uuid.UUID, quantity int) error
	Delete(ctx context.Context, lineID uuid.UUID) error
	DeleteByIDs(ctx context.Context, lineIDs []uuid.UUID) error
	FindByID(ctx context.Context, lineID uuid.UUID) (*models.CartLine, error)
	FindByUserAndProduct(ctx context.Context, userID, productID uuid.UUID) (*models.CartLine, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.CartLine, error)
	ListByIDsForUser(ctx context.Context, userID uuid.UUID, lineIDs []uuid.UUID) ([]models.CartLine, error)
}
