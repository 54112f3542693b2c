package shippingfee

import (
	"context"

	"github.com/google/uuid"
	"github.com/growersmarket/farmdirect-backend/pkg/db/models"
	"gorm.io/gorm"
)

// Repository defines persistence operations for shipping fee rules.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, rule *models.ShippingFeeRule) (*models.ShippingFeeRule, error)
	Update(ctx context.Context, ruleID uuid.UUID, updates map[string]any) error
	Delete(ctx context.Context, ruleID uuid.UUID) error
	FindByID(ctx context.Context, ruleID uuid.UUID) (*models.ShippingFeeRule, error)
	// FindBestForArea returns the enabled rule with the highest priority for
	// the given area scope (nil means the global scope). Ties resolve to the
	// lowest rule id. gorm.ErrRecordNotFound when the scope has no rule.
	FindBestForArea(ctx context.Context, deliveryAreaID *uuid.UUID) (*models.ShippingFeeRule, error)
	// FindEnabledConflict reports whether another enabled rule already holds
	// the same scope and priority.
	FindEnabledConflict(ctx context.Context, deliveryAreaID *uuid.UUID, priority int, excludeID *uuid.UUID) (*models.ShippingFeeRule, error)
	List(ctx context.Context) ([]models.ShippingFeeRule, error)
}
