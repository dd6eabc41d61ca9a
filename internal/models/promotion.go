package models

import (
	"time"

	"gorm.io/gorm"
)

type DiscountType string

const (
	DiscountPercent DiscountType = "percent"
	DiscountFixed   DiscountType = "fixed"
)

type Promotion struct {
	ID             uint         `gorm:"primaryKey"`
	Code           string       `gorm:"size:50;index;not null"`
	Name           string       `gorm:"size:150;not null"`
	Description    string       `gorm:"size:500"`
	DiscountType   DiscountType `gorm:"size:20;not null"`
	DiscountValue  int64        `gorm:"not null"`
	MaxDiscount    int64        `gorm:"not null;default:0"` // 0 = no cap
	MinOrderAmount int64        `gorm:"not null;default:0"`
	UsageLimit     int          `gorm:"not null;default:0"` // 0 = unlimited
	UsedCount      int          `gorm:"not null;default:0"`
	StartDate      time.Time    `gorm:"index;not null"`
	EndDate        time.Time    `gorm:"index;not null"`
	IsActive       bool         `gorm:"not null"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DeletedAt      gorm.DeletedAt `gorm:"index"`

	Products []Product `gorm:"many2many:promotion_products;"`
}
