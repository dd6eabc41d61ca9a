package models

import "time"

type AuditAction string

const (
	AuditActionCreate AuditAction = "create"
	AuditActionUpdate AuditAction = "update"
	AuditActionDelete AuditAction = "delete"
	AuditActionStatus AuditAction = "status"
)

type AuditLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`

	UserID   uint   `gorm:"index" json:"user_id"`
	Username string `gorm:"size:50" json:"username"` // denormalized

	// e.g. "product", "purchase_order", "order"
	EntityType string `gorm:"size:50;index" json:"entity_type"`
	EntityID   uint   `gorm:"index" json:"entity_id"`

	Action      AuditAction `gorm:"size:20" json:"action"`
	Description string      `gorm:"size:255" json:"description"`

	// JSON snapshots; "null" when absent.
	BeforeData string `gorm:"type:text" json:"before_data"`
	AfterData  string `gorm:"type:text" json:"after_data"`
}

// All lists every model in migration order.
func All() []any {
	return []any{
		&User{},
		&BlacklistedToken{},
		&Brand{},
		&PhoneModel{},
		&Product{},
		&Supplier{},
		&PurchaseOrder{},
		&PurchaseOrderDetail{},
		&ProductIdentity{},
		&Promotion{},
		&CartItem{},
		&Order{},
		&OrderItem{},
		&Warranty{},
		&ReturnRequest{},
		&AuditLog{},
	}
}
