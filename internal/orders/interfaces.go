package orders

import (
	"context"

	"github.com/google/uuid"
	"github.com/growersmarket/farmdirect-backend/pkg/db/models"
	"gorm.io/gorm"
)

// Repository defines persistence operations for orders.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	// FindForUpdate takes a row lock so concurrent transitions on the same
	// order serialize; the loser re-reads the new state and fails its guard.
	FindForUpdate(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	FindByIDsForUpdate(ctx context.Context, orderIDs []uuid.UUID) ([]models.Order, error)
	Update(ctx context.Context, orderID uuid.UUID, updates map[string]any) error
	UpdateAll(ctx context.Context, orderIDs []uuid.UUID, updates map[string]any) error
	HardDelete(ctx context.Context, orderID uuid.UUID) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Order, error)
	ListByFarmer(ctx context.Context, farmerID uuid.UUID) ([]models.Order, error)
}
