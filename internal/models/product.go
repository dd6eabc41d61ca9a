package models

import (
	"time"

	"gorm.io/gorm"
)

type Brand struct {
	ID          uint   `gorm:"primaryKey"`
	Name        string `gorm:"size:100;index;not null"`
	Description string `gorm:"size:500"`
	LogoURL     string `gorm:"size:255"`
	IsActive    bool   `gorm:"not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   gorm.DeletedAt `gorm:"index"`
}

// PhoneModel is a model line of a brand, e.g. "iPhone 15" or "Galaxy S24".
type PhoneModel struct {
	ID          uint   `gorm:"primaryKey"`
	BrandID     uint   `gorm:"index;not null"`
	Brand       Brand  `gorm:"foreignKey:BrandID"`
	Name        string `gorm:"size:100;index;not null"`
	Description string `gorm:"size:500"`
	IsActive    bool   `gorm:"not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   gorm.DeletedAt `gorm:"index"`
}

type Product struct {
	ID             uint       `gorm:"primaryKey"`
	ModelID        uint       `gorm:"index;not null"`
	Model          PhoneModel `gorm:"foreignKey:ModelID"`
	Name           string     `gorm:"size:150;index;not null"`
	Color          string     `gorm:"size:50"`
	Storage        string     `gorm:"size:20"` // 128GB, 256GB, 1TB
	RAM            string     `gorm:"size:20"`
	Price          int64      `gorm:"not null;index"`
	Description    string     `gorm:"type:text"`
	ImageURL       string     `gorm:"size:255"`
	WarrantyMonths int        `gorm:"not null;default:12"`
	IsActive       bool       `gorm:"not null"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DeletedAt      gorm.DeletedAt `gorm:"index"`
}

type IdentityStatus string

const (
	IdentityInStock   IdentityStatus = "in_stock"
	IdentitySold      IdentityStatus = "sold"
	IdentityReturned  IdentityStatus = "returned"
	IdentityDefective IdentityStatus = "defective"
)

// ProductIdentity is one physical unit identified by its IMEI.
type ProductIdentity struct {
	ID                    uint           `gorm:"primaryKey"`
	ProductID             uint           `gorm:"index;not null"`
	Product               Product        `gorm:"foreignKey:ProductID"`
	IMEI                  string         `gorm:"column:imei;size:20;uniqueIndex;not null"`
	Color                 string         `gorm:"size:50"`
	ImportPrice           int64          `gorm:"not null"`
	Status                IdentityStatus `gorm:"size:20;index;not null"`
	PurchaseOrderDetailID *uint          `gorm:"index"`
	OrderItemID           *uint          `gorm:"index"`
	CreatedAt             time.Time
	UpdatedAt             time.Time
}
