// Package dashboard aggregates sales and stock figures for staff.
package dashboard

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"phonestore-backend/internal/apperr"
	"phonestore-backend/internal/models"
)

const topProductsLimit = 5

type Service struct {
	db  *gorm.DB
	log *zap.Logger
	Now func() time.Time
}

func NewService(db *gorm.DB, log *zap.Logger) *Service {
	return &Service{db: db, log: log, Now: time.Now}
}

type TopProduct struct {
	ProductID   uint   `json:"product_id"`
	ProductName string `json:"product_name"`
	Units       int64  `json:"units"`
	Revenue     int64  `json:"revenue"`
}

type Summary struct {
	From                  string                       `json:"from"`
	To                    string                       `json:"to"`
	OrdersByStatus        map[models.OrderStatus]int64 `json:"orders_by_status"`
	TotalOrders           int64                        `json:"total_orders"`
	Revenue               int64                        `json:"revenue"`
	UnitsSold             int64                        `json:"units_sold"`
	TopProducts           []TopProduct                 `json:"top_products"`
	InStockUnits          int64                        `json:"in_stock_units"`
	PendingPurchaseOrders int64                        `json:"pending_purchase_orders"`
}

// Summary covers orders created in [from, to). Revenue counts delivered
// orders by delivery time; units and top products count every order that
// was not cancelled.
func (s *Service) Summary(ctx context.Context, from, to time.Time) (*Summary, error) {
	if !from.Before(to) {
		return nil, apperr.Invalid("from must be before to")
	}
	out := &Summary{
		From:           from.Format("2006-01-02"),
		To:             to.AddDate(0, 0, -1).Format("2006-01-02"),
		OrdersByStatus: map[models.OrderStatus]int64{},
		TopProducts:    []TopProduct{},
	}
	g, gctx := errgroup.WithContext(ctx)
	db := s.db.WithContext(gctx)

	var byStatus []struct {
		Status models.OrderStatus
		N      int64
	}
	g.Go(func() error {
		return db.Model(&models.Order{}).
			Select("status, COUNT(*) AS n").
			Where("created_at >= ? AND created_at < ?", from, to).
			Group("status").
			Scan(&byStatus).Error
	})
	g.Go(func() error {
		return db.Model(&models.Order{}).
			Select("COALESCE(SUM(total), 0)").
			Where("status = ? AND delivered_at >= ? AND delivered_at < ?", models.OrderDelivered, from, to).
			Scan(&out.Revenue).Error
	})
	g.Go(func() error {
		return db.Table("order_items").
			Select("COALESCE(SUM(order_items.quantity), 0)").
			Joins("JOIN orders ON orders.id = order_items.order_id").
			Where("orders.status <> ? AND orders.created_at >= ? AND orders.created_at < ?", models.OrderCancelled, from, to).
			Scan(&out.UnitsSold).Error
	})
	g.Go(func() error {
		return db.Table("order_items").
			Select(`order_items.product_id, MAX(order_items.product_name) AS product_name,
				SUM(order_items.quantity) AS units, SUM(order_items.line_total) AS revenue`).
			Joins("JOIN orders ON orders.id = order_items.order_id").
			Where("orders.status <> ? AND orders.created_at >= ? AND orders.created_at < ?", models.OrderCancelled, from, to).
			Group("order_items.product_id").
			Order("units DESC").Order("order_items.product_id").
			Limit(topProductsLimit).
			Scan(&out.TopProducts).Error
	})
	g.Go(func() error {
		return db.Model(&models.ProductIdentity{}).
			Where("status = ?", models.IdentityInStock).
			Count(&out.InStockUnits).Error
	})
	g.Go(func() error {
		return db.Model(&models.PurchaseOrder{}).
			Where("status = ?", models.PurchaseOrderPending).
			Count(&out.PendingPurchaseOrders).Error
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, r := range byStatus {
		out.OrdersByStatus[r.Status] = r.N
		out.TotalOrders += r.N
	}
	return out, nil
}
