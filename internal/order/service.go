// Package order turns carts into orders and drives fulfilment. Each order
// line reserves concrete units (by IMEI) at checkout.
package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"phonestore-backend/internal/apperr"
	"phonestore-backend/internal/auth"
	"phonestore-backend/internal/cart"
	"phonestore-backend/internal/catalog"
	"phonestore-backend/internal/database"
	"phonestore-backend/internal/httpx"
	"phonestore-backend/internal/metrics"
	"phonestore-backend/internal/models"
	"phonestore-backend/internal/promotion"
)

type Service struct {
	db             *gorm.DB
	log            *zap.Logger
	metrics        *metrics.Metrics
	warrantyMonths int
	Now            func() time.Time
}

func NewService(db *gorm.DB, m *metrics.Metrics, defaultWarrantyMonths int, log *zap.Logger) *Service {
	return &Service{db: db, log: log, metrics: m, warrantyMonths: defaultWarrantyMonths, Now: time.Now}
}

var transitions = map[models.OrderStatus][]models.OrderStatus{
	models.OrderPending:   {models.OrderConfirmed, models.OrderCancelled},
	models.OrderConfirmed: {models.OrderShipping, models.OrderCancelled},
	models.OrderShipping:  {models.OrderDelivered},
}

func CanTransition(from, to models.OrderStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type CheckoutInput struct {
	// Items empty means check out the whole cart.
	Items           []promotion.ItemInput
	ShippingName    string
	ShippingPhone   string
	ShippingAddress string
	PaymentMethod   models.PaymentMethod
	Note            string
	PromotionCode   string
}

type Filter struct {
	UserID   *uint
	Status   models.OrderStatus
	From, To *time.Time
}

func (s *Service) newCode() string {
	return fmt.Sprintf("OD-%s-%s", s.Now().Format("20060102"), strings.ToUpper(uuid.NewString()[:6]))
}

func mergeItems(items []promotion.ItemInput) ([]promotion.ItemInput, error) {
	idx := map[uint]int{}
	var out []promotion.ItemInput
	for _, it := range items {
		if i, ok := idx[it.ProductID]; ok {
			out[i].Quantity += it.Quantity
			continue
		}
		idx[it.ProductID] = len(out)
		out = append(out, it)
	}
	for _, it := range out {
		if it.Quantity < 1 || it.Quantity > cart.MaxQuantity {
			return nil, apperr.Invalid("quantity of product %d must be between 1 and %d", it.ProductID, cart.MaxQuantity)
		}
	}
	return out, nil
}

func (s *Service) shipping(tx *gorm.DB, userID uint, in *CheckoutInput) error {
	var u models.User
	if err := tx.First(&u, userID).Error; err != nil {
		return err
	}
	in.ShippingName = firstNonEmpty(in.ShippingName, u.FullName)
	in.ShippingPhone = firstNonEmpty(in.ShippingPhone, u.Phone)
	in.ShippingAddress = firstNonEmpty(in.ShippingAddress, u.Address)
	fields := map[string]string{}
	if in.ShippingPhone == "" {
		fields["shipping_phone"] = "is required"
	}
	if in.ShippingAddress == "" {
		fields["shipping_address"] = "is required"
	}
	if len(fields) > 0 {
		return &apperr.ValidationError{Fields: fields}
	}
	if in.PaymentMethod == "" {
		in.PaymentMethod = models.PaymentCOD
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// Checkout places an order in one transaction: in-stock units are locked
// and marked sold, the promotion is redeemed and the cart is emptied when
// it was the source of the items.
func (s *Service) Checkout(ctx context.Context, userID uint, in CheckoutInput) (*models.Order, error) {
	fromCart := len(in.Items) == 0
	now := s.Now()
	o := models.Order{
		Code:   s.newCode(),
		UserID: userID,
		Status: models.OrderPending,
		Note:   strings.TrimSpace(in.Note),
	}

	err := database.WithTx(ctx, s.db, func(tx *gorm.DB) error {
		if err := s.shipping(tx, userID, &in); err != nil {
			return err
		}
		o.ShippingName, o.ShippingPhone, o.ShippingAddress = in.ShippingName, in.ShippingPhone, in.ShippingAddress
		o.PaymentMethod = in.PaymentMethod

		items := in.Items
		if fromCart {
			var rows []models.CartItem
			if err := tx.Where("user_id = ?", userID).Order("id").Find(&rows).Error; err != nil {
				return err
			}
			if len(rows) == 0 {
				return apperr.Invalid("cart is empty")
			}
			for _, r := range rows {
				items = append(items, promotion.ItemInput{ProductID: r.ProductID, Quantity: r.Quantity})
			}
		}
		items, err := mergeItems(items)
		if err != nil {
			return err
		}

		var lines []promotion.Line
		units := make([][]models.ProductIdentity, len(items))
		for i, it := range items {
			p, err := catalog.SellableProduct(tx, it.ProductID)
			if err != nil {
				return err
			}
			err = database.ForUpdate(tx).
				Where("product_id = ? AND status = ?", p.ID, models.IdentityInStock).
				Order("id").Limit(it.Quantity).
				Find(&units[i]).Error
			if err != nil {
				return err
			}
			if len(units[i]) < it.Quantity {
				return apperr.Conflict("insufficient stock for %s: %d available", p.Name, len(units[i]))
			}
			lineTotal := p.Price * int64(it.Quantity)
			o.Items = append(o.Items, models.OrderItem{
				ProductID:   p.ID,
				ProductName: p.Name,
				UnitPrice:   p.Price,
				Quantity:    it.Quantity,
				LineTotal:   lineTotal,
			})
			o.Subtotal += lineTotal
			lines = append(lines, promotion.Line{ProductID: p.ID, Quantity: it.Quantity, UnitPrice: p.Price})
		}

		if code := strings.TrimSpace(in.PromotionCode); code != "" {
			q, err := promotion.Redeem(tx, code, lines, now)
			if err != nil {
				return err
			}
			o.PromotionID = &q.Promotion.ID
			o.PromotionCode = q.Promotion.Code
			o.DiscountAmount = q.Discount
		}
		o.Total = o.Subtotal - o.DiscountAmount

		if err := tx.Create(&o).Error; err != nil {
			return err
		}
		for i, item := range o.Items {
			ids := make([]uint, 0, len(units[i]))
			for _, u := range units[i] {
				ids = append(ids, u.ID)
			}
			err := tx.Model(&models.ProductIdentity{}).Where("id IN ?", ids).Updates(map[string]any{
				"status":        models.IdentitySold,
				"order_item_id": item.ID,
			}).Error
			if err != nil {
				return err
			}
		}
		if fromCart {
			return cart.ClearTx(tx, userID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.OrderPlaced()
	s.log.Info("order placed",
		zap.String("code", o.Code), zap.Uint("user_id", userID), zap.Int64("total", o.Total))
	return s.get(s.db.WithContext(ctx), o.ID)
}

func (s *Service) get(db *gorm.DB, id uint) (*models.Order, error) {
	var o models.Order
	err := db.Preload("User", func(db *gorm.DB) *gorm.DB { return db.Unscoped() }).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Items.Identities", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		First(&o, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("order %d not found", id)
	}
	return &o, err
}

// Get returns an order; customers only see their own.
func (s *Service) Get(ctx context.Context, id uint, actor auth.Actor) (*models.Order, error) {
	o, err := s.get(s.db.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	if !actor.IsStaff() && o.UserID != actor.ID {
		return nil, apperr.NotFound("order %d not found", id)
	}
	return o, nil
}

func (s *Service) List(ctx context.Context, f Filter, page httpx.ListFilters) ([]models.Order, int64, error) {
	q := s.filtered(ctx, f)
	if page.Search != "" {
		clause, args := httpx.SearchClause(page.Search, "code", "shipping_name", "shipping_phone")
		q = q.Where(clause, args...)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	order := page.OrderClause(map[string]string{
		"created_at": "created_at",
		"total":      "total",
		"status":     "status",
	}, "created_at DESC")
	var out []models.Order
	err := q.Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Order(order).Order("id DESC").Offset(page.Offset()).Limit(page.Limit).Find(&out).Error
	return out, total, err
}

func (s *Service) filtered(ctx context.Context, f Filter) *gorm.DB {
	q := s.db.WithContext(ctx).Model(&models.Order{})
	if f.UserID != nil {
		q = q.Where("user_id = ?", *f.UserID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("created_at < ?", *f.To)
	}
	return q
}

// Cancel lets a customer cancel their own order while it is still pending.
func (s *Service) Cancel(ctx context.Context, userID, id uint, reason string) (*models.Order, error) {
	var o models.Order
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&o, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("order %d not found", id)
		}
		return nil, err
	}
	if o.Status != models.OrderPending {
		return nil, apperr.InvalidState(string(o.Status), string(models.OrderCancelled))
	}
	if strings.TrimSpace(reason) == "" {
		reason = "cancelled by customer"
	}
	_, after, err := s.UpdateStatus(ctx, id, models.OrderCancelled, reason)
	return after, err
}

// UpdateStatus applies a fulfilment transition. Cancelling returns the
// units to stock and gives back the promotion use; delivery starts one
// warranty per unit.
func (s *Service) UpdateStatus(ctx context.Context, id uint, to models.OrderStatus, reason string) (before, after *models.Order, err error) {
	now := s.Now()
	err = database.WithTx(ctx, s.db, func(tx *gorm.DB) error {
		var o models.Order
		if err := database.ForUpdate(tx).First(&o, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("order %d not found", id)
			}
			return err
		}
		if !CanTransition(o.Status, to) {
			return apperr.InvalidState(string(o.Status), string(to))
		}
		prev := o
		before = &prev

		updates := map[string]any{"status": to}
		switch to {
		case models.OrderConfirmed:
			updates["confirmed_at"] = now
		case models.OrderCancelled:
			updates["cancelled_at"] = now
			updates["cancel_reason"] = strings.TrimSpace(reason)
			if err := releaseUnits(tx, o.ID); err != nil {
				return err
			}
			if o.PromotionID != nil {
				if err := promotion.Release(tx, *o.PromotionID); err != nil {
					return err
				}
			}
		case models.OrderDelivered:
			updates["delivered_at"] = now
			if err := s.startWarranties(tx, &o, now); err != nil {
				return err
			}
		}
		return tx.Model(&o).Updates(updates).Error
	})
	if err != nil {
		return nil, nil, err
	}
	s.log.Info("order status changed", zap.Uint("id", id), zap.String("from", string(before.Status)), zap.String("to", string(to)))
	after, err = s.get(s.db.WithContext(ctx), id)
	return before, after, err
}

func itemIDs(tx *gorm.DB, orderID uint) ([]uint, error) {
	var ids []uint
	err := tx.Model(&models.OrderItem{}).Where("order_id = ?", orderID).Pluck("id", &ids).Error
	return ids, err
}

func releaseUnits(tx *gorm.DB, orderID uint) error {
	ids, err := itemIDs(tx, orderID)
	if err != nil || len(ids) == 0 {
		return err
	}
	return tx.Model(&models.ProductIdentity{}).
		Where("order_item_id IN ? AND status = ?", ids, models.IdentitySold).
		Updates(map[string]any{"status": models.IdentityInStock, "order_item_id": nil}).Error
}

func (s *Service) startWarranties(tx *gorm.DB, o *models.Order, now time.Time) error {
	ids, err := itemIDs(tx, o.ID)
	if err != nil || len(ids) == 0 {
		return err
	}
	var units []models.ProductIdentity
	if err := tx.Preload("Product", func(db *gorm.DB) *gorm.DB { return db.Unscoped() }).
		Where("order_item_id IN ?", ids).Order("id").Find(&units).Error; err != nil {
		return err
	}
	start := promotion.Day(now)
	for _, u := range units {
		months := u.Product.WarrantyMonths
		if months <= 0 {
			months = s.warrantyMonths
		}
		w := models.Warranty{
			ProductIdentityID: u.ID,
			OrderID:           o.ID,
			UserID:            o.UserID,
			StartDate:         start,
			EndDate:           start.AddDate(0, months, 0),
			Status:            models.WarrantyActive,
		}
		if err := tx.Create(&w).Error; err != nil {
			return err
		}
	}
	return nil
}
