package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderGroup is the atomic checkout unit: one or more per-product orders
// sharing one address and one shipping fee.
type OrderGroup struct {
	ID                uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID            uuid.UUID  `gorm:"column:user_id;type:uuid;not null;index"`
	GroupNumber       string     `gorm:"column:group_number;not null;uniqueIndex"`
	OrderCount        int        `gorm:"column:order_count;not null"`
	TotalProductCents int        `gorm:"column:total_product_cents;not null"`
	ShippingFeeCents  int        `gorm:"column:shipping_fee_cents;not null;default:0"`
	TotalCents        int        `gorm:"column:total_cents;not null"`
	ShippingAddress   string     `gorm:"column:shipping_address;not null"`
	ContactPhone      string     `gorm:"column:contact_phone;not null"`
	ReceiverName      string     `gorm:"column:receiver_name;not null"`
	DeliveryAreaID    *uuid.UUID `gorm:"column:delivery_area_id;type:uuid"`
	ShippingFeeRuleID *uuid.UUID `gorm:"column:shipping_fee_rule_id;type:uuid"`
	Orders            []Order    `gorm:"foreignKey:OrderGroupID;constraint:OnDelete:CASCADE"`
	CreatedAt         time.Time  `gorm:"column:created_at;autoCreateTime"`
}
