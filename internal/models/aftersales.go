package models

import "time"

type WarrantyStatus string

const (
	WarrantyActive  WarrantyStatus = "active"
	WarrantyClaimed WarrantyStatus = "claimed"
	WarrantyExpired WarrantyStatus = "expired"
	WarrantyVoid    WarrantyStatus = "void"
)

type Warranty struct {
	ID                uint            `gorm:"primaryKey"`
	ProductIdentityID uint            `gorm:"index;not null"`
	ProductIdentity   ProductIdentity `gorm:"foreignKey:ProductIdentityID"`
	OrderID           uint            `gorm:"index;not null"`
	UserID            uint            `gorm:"index;not null"`
	StartDate         time.Time       `gorm:"not null"`
	EndDate           time.Time       `gorm:"index;not null"`
	Status            WarrantyStatus  `gorm:"size:20;index;not null"`
	Note              string          `gorm:"size:500"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type ReturnStatus string

const (
	ReturnPending   ReturnStatus = "pending"
	ReturnApproved  ReturnStatus = "approved"
	ReturnRejected  ReturnStatus = "rejected"
	ReturnCompleted ReturnStatus = "completed"
)

type ReturnRequest struct {
	ID                uint            `gorm:"primaryKey"`
	OrderID           uint            `gorm:"index;not null"`
	OrderItemID       uint            `gorm:"index;not null"`
	ProductIdentityID uint            `gorm:"index;not null"`
	ProductIdentity   ProductIdentity `gorm:"foreignKey:ProductIdentityID"`
	UserID            uint            `gorm:"index;not null"`
	Reason            string          `gorm:"size:500;not null"`
	Status            ReturnStatus    `gorm:"size:20;index;not null"`
	AdminNote         string          `gorm:"size:500"`
	RefundAmount      int64           `gorm:"not null;default:0"`
	ResolvedBy        *uint
	ResolvedAt        *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
