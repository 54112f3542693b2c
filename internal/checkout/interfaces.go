package checkout

import (
	"context"

	"github.com/google/uuid"
	"github.com/growersmarket/farmdirect-backend/pkg/db/models"
	"gorm.io/gorm"
)

// Repository defines persistence operations for order groups and their orders.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateGroup(ctx context.Context, group *models.OrderGroup) (*models.OrderGroup, error)
	FindGroupByID(ctx context.Context, groupID uuid.UUID) (*models.OrderGroup, error)
	FindGroupByNumber(ctx context.Context, groupNumber string) (*models.OrderGroup, error)
	ListGroupsByUser(ctx context.Context, userID uuid.UUID) ([]models.OrderGroup, error)
}
