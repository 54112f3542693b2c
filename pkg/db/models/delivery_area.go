package models

import (
	"time"

	"github.com/google/uuid"
)

// DeliveryArea is a serviced region; shipping fee rules may scope to one.
type DeliveryArea struct {
	ID              uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Province        string    `gorm:"column:province;not null"`
	City            string    `gorm:"column:city;not null"`
	District        string    `gorm:"column:district;not null"`
	SupportsSameDay bool      `gorm:"column:supports_same_day;not null;default:false"`
	BaseFeeCents    int       `gorm:"column:base_fee_cents;not null;default:0"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
