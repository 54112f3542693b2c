package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/growersmarket/farmdirect-backend/pkg/enums"
)

// User is the authenticated account behind buyers, farmers, and admins.
type User struct {
	ID           uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Email        string           `gorm:"column:email;not null;uniqueIndex"`
	PasswordHash string           `gorm:"column:password_hash;not null"`
	Name         string           `gorm:"column:name;not null"`
	Phone        *string          `gorm:"column:phone"`
	Role         enums.MemberRole `gorm:"column:role;type:member_role;not null;default:'buyer'"`
	CreatedAt    time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
