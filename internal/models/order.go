package models

import "time"

type CartItem struct {
	ID        uint    `gorm:"primaryKey"`
	UserID    uint    `gorm:"uniqueIndex:idx_cart_user_product;not null"`
	ProductID uint    `gorm:"uniqueIndex:idx_cart_user_product;not null"`
	Product   Product `gorm:"foreignKey:ProductID"`
	Quantity  int     `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderConfirmed OrderStatus = "confirmed"
	OrderShipping  OrderStatus = "shipping"
	OrderDelivered OrderStatus = "delivered"
	OrderCancelled OrderStatus = "cancelled"
)

type PaymentMethod string

const (
	PaymentCOD          PaymentMethod = "cod"
	PaymentBankTransfer PaymentMethod = "bank_transfer"
)

type Order struct {
	ID              uint          `gorm:"primaryKey"`
	Code            string        `gorm:"size:32;uniqueIndex;not null"`
	UserID          uint          `gorm:"index;not null"`
	User            User          `gorm:"foreignKey:UserID"`
	Status          OrderStatus   `gorm:"size:20;index;not null"`
	ShippingName    string        `gorm:"size:100;not null"`
	ShippingPhone   string        `gorm:"size:20;not null"`
	ShippingAddress string        `gorm:"size:255;not null"`
	PaymentMethod   PaymentMethod `gorm:"size:20;not null"`
	Note            string        `gorm:"size:500"`
	PromotionID     *uint         `gorm:"index"`
	PromotionCode   string        `gorm:"size:50"`
	Subtotal        int64         `gorm:"not null"`
	DiscountAmount  int64         `gorm:"not null;default:0"`
	Total           int64         `gorm:"not null"`
	CancelReason    string        `gorm:"size:255"`
	ConfirmedAt     *time.Time
	DeliveredAt     *time.Time
	CancelledAt     *time.Time
	CreatedAt       time.Time `gorm:"index"`
	UpdatedAt       time.Time

	Items []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
}

type OrderItem struct {
	ID          uint   `gorm:"primaryKey"`
	OrderID     uint   `gorm:"index;not null"`
	ProductID   uint   `gorm:"index;not null"`
	ProductName string `gorm:"size:150;not null"` // snapshot at purchase time
	UnitPrice   int64  `gorm:"not null"`
	Quantity    int    `gorm:"not null"`
	LineTotal   int64  `gorm:"not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Identities []ProductIdentity `gorm:"foreignKey:OrderItemID"`
}
