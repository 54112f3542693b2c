package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// Product is a farmer's listing. Stock lives on the InventoryItem row and
// is mutated only through the inventory ledger.
type Product struct {
	ID           uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	FarmerID     uuid.UUID        `gorm:"column:farmer_id;type:uuid;not null"`
	Name         string           `gorm:"column:name;not null"`
	Description  *string          `gorm:"column:description"`
	PriceCents   int              `gorm:"column:price_cents;not null"`
	UnitWeightKg *decimal.Decimal `gorm:"column:unit_weight_kg;type:numeric(8,3)"`
	Tags         pq.StringArray   `gorm:"column:tags;type:text[];not null;default:ARRAY[]::text[]"`
	IsActive     bool             `gorm:"column:is_active;not null;default:true"`
	Inventory    *InventoryItem   `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt    time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
