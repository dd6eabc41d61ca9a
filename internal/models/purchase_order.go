package models

import (
	"time"

	"gorm.io/gorm"
)

type Supplier struct {
	ID          uint   `gorm:"primaryKey"`
	Name        string `gorm:"size:200;index;not null"`
	ContactName string `gorm:"size:100"`
	Phone       string `gorm:"size:20"`
	Email       string `gorm:"size:100"`
	Address     string `gorm:"size:255"`
	Note        string `gorm:"size:500"`
	IsActive    bool   `gorm:"not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   gorm.DeletedAt `gorm:"index"`
}

type PurchaseOrderStatus string

const (
	PurchaseOrderPending   PurchaseOrderStatus = "pending"
	PurchaseOrderCompleted PurchaseOrderStatus = "completed"
	PurchaseOrderCancelled PurchaseOrderStatus = "cancelled"
)

type PurchaseOrder struct {
	ID          uint                `gorm:"primaryKey"`
	Code        string              `gorm:"size:32;uniqueIndex;not null"`
	SupplierID  uint                `gorm:"index;not null"`
	Supplier    Supplier            `gorm:"foreignKey:SupplierID"`
	Status      PurchaseOrderStatus `gorm:"size:20;index;not null"`
	Note        string              `gorm:"size:500"`
	ImportDate  time.Time           `gorm:"index;not null"`
	TotalAmount int64               `gorm:"not null"`
	CreatedBy   uint                `gorm:"index"`
	CompletedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Details []PurchaseOrderDetail `gorm:"foreignKey:PurchaseOrderID;constraint:OnDelete:CASCADE"`
}

type PurchaseOrderDetail struct {
	ID                uint    `gorm:"primaryKey"`
	PurchaseOrderID   uint    `gorm:"index;not null"`
	ProductID         uint    `gorm:"index;not null"`
	Product           Product `gorm:"foreignKey:ProductID"`
	Color             string  `gorm:"size:50"`
	IMEI              string  `gorm:"column:imei;size:20;index;not null"`
	ImportPrice       int64   `gorm:"not null"`
	ProductIdentityID *uint   `gorm:"index"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
