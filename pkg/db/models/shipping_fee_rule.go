package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ShippingFeeRule prices delivery for one area (or globally when
// DeliveryAreaID is nil). Higher priority wins; equal priority resolves
// to the lowest rule id.
type ShippingFeeRule struct {
	ID                         uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name                       string           `gorm:"column:name;not null"`
	DeliveryAreaID             *uuid.UUID       `gorm:"column:delivery_area_id;type:uuid;index"`
	BaseFeeCents               int              `gorm:"column:base_fee_cents;not null"`
	FreeShippingThresholdCents int              `gorm:"column:free_shipping_threshold_cents;not null;default:0"`
	ExtraFeePerKgCents         *decimal.Decimal `gorm:"column:extra_fee_per_kg_cents;type:numeric(10,2)"`
	Enabled                    bool             `gorm:"column:enabled;not null;default:true"`
	Priority                   int              `gorm:"column:priority;not null;default:0"`
	CreatedAt                  time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt                  time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
