package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/growersmarket/farmdirect-backend/pkg/enums"
)

// Order is a single-product purchase row. Orders created through checkout
// reference their OrderGroup; legacy standalone orders may not.
type Order struct {
	ID             uuid.UUID   `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID         uuid.UUID   `gorm:"column:user_id;type:uuid;not null;index"`
	ProductID      uuid.UUID   `gorm:"column:product_id;type:uuid;not null"`
	OrderGroupID   *uuid.UUID  `gorm:"column:order_group_id;type:uuid;index"`
	Quantity       int         `gorm:"column:quantity;not null"`
	UnitPriceCents int         `gorm:"column:unit_price_cents;not null"`
	TotalCents     int         `gorm:"column:total_cents;not null"`
	// Always 0 on rows created through checkout; the group carries the fee.
	ShippingFeeCents int `gorm:"column:shipping_fee_cents;not null;default:0"`

	Status            enums.OrderStatus    `gorm:"column:status;type:order_status;not null;default:'ready_to_ship'"`
	PaymentStatus     enums.PaymentStatus  `gorm:"column:payment_status;type:payment_status;not null;default:'unpaid'"`
	RefundPriorStatus *enums.OrderStatus   `gorm:"column:refund_prior_status;type:order_status"`
	RefundReason      *string              `gorm:"column:refund_reason"`
	RefundNote        *string              `gorm:"column:refund_note"`

	CancelActorID   *uuid.UUID             `gorm:"column:cancel_actor_id;type:uuid"`
	CancelActorType *enums.CancelActorType `gorm:"column:cancel_actor_type;type:cancel_actor_type"`
	CancelReason    *string                `gorm:"column:cancel_reason"`

	DeliveryInfo    *string    `gorm:"column:delivery_info"`
	DeliveryContact *string    `gorm:"column:delivery_contact"`
	DeliveryPhone   *string    `gorm:"column:delivery_phone"`
	DeliveryETA     *time.Time `gorm:"column:delivery_eta"`

	Deleted   bool       `gorm:"column:deleted;not null;default:false"`
	DeletedAt *time.Time `gorm:"column:deleted_at"`

	CreatedAt         time.Time  `gorm:"column:created_at;autoCreateTime"`
	PaidAt            *time.Time `gorm:"column:paid_at"`
	ShippedAt         *time.Time `gorm:"column:shipped_at"`
	CompletedAt       *time.Time `gorm:"column:completed_at"`
	CancelledAt       *time.Time `gorm:"column:cancelled_at"`
	RefundRequestedAt *time.Time `gorm:"column:refund_requested_at"`
	UpdatedAt         time.Time  `gorm:"column:updated_at;autoUpdateTime"`

	Product *Product `gorm:"foreignKey:ProductID"`
}
