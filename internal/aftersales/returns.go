package aftersales

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"phonestore-backend/internal/apperr"
	"phonestore-backend/internal/database"
	"phonestore-backend/internal/httpx"
	"phonestore-backend/internal/models"
)

var returnTransitions = map[models.ReturnStatus][]models.ReturnStatus{
	models.ReturnPending:  {models.ReturnApproved, models.ReturnRejected},
	models.ReturnApproved: {models.ReturnCompleted},
}

func CanTransitionReturn(from, to models.ReturnStatus) bool {
	for _, s := range returnTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type ReturnInput struct {
	OrderID uint
	IMEI    string
	Reason  string
}

type ReturnFilter struct {
	UserID *uint
	Status models.ReturnStatus
}

type ReturnDecision struct {
	Status    models.ReturnStatus
	AdminNote *string
	// RefundAmount overrides the computed refund on approval.
	RefundAmount *int64
	ResolvedBy   uint
}

// RefundFor is the unit price less the unit's proportional share of the
// order discount, rounded half up.
func RefundFor(o *models.Order, item *models.OrderItem) int64 {
	if o.DiscountAmount == 0 || o.Subtotal == 0 {
		return item.UnitPrice
	}
	share := decimal.NewFromInt(o.DiscountAmount).
		Mul(decimal.NewFromInt(item.UnitPrice)).
		Div(decimal.NewFromInt(o.Subtotal)).
		Round(0).
		IntPart()
	return item.UnitPrice - share
}

func (s *Service) getReturn(db *gorm.DB, id uint) (*models.ReturnRequest, error) {
	var r models.ReturnRequest
	if err := db.Preload("ProductIdentity").First(&r, id).Error; err != nil {
		return nil, notFound(err, "return request %d not found", id)
	}
	return &r, nil
}

// CreateReturn opens a return request for one delivered unit of the
// customer's order.
func (s *Service) CreateReturn(ctx context.Context, userID uint, in ReturnInput) (*models.ReturnRequest, error) {
	imei := strings.TrimSpace(in.IMEI)
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return nil, apperr.Invalid("reason is required")
	}
	var req models.ReturnRequest
	err := database.WithTx(ctx, s.db, func(tx *gorm.DB) error {
		var o models.Order
		if err := tx.Where("user_id = ?", userID).First(&o, in.OrderID).Error; err != nil {
			return notFound(err, "order %d not found", in.OrderID)
		}
		if o.Status != models.OrderDelivered || o.DeliveredAt == nil {
			return apperr.Invalid("only delivered orders can be returned")
		}
		deadline := o.DeliveredAt.AddDate(0, 0, s.returnWindow)
		if s.Now().After(deadline) {
			return apperr.Invalid("the %d day return window closed on %s", s.returnWindow, deadline.Format(httpx.DateLayout))
		}

		var unit models.ProductIdentity
		err := tx.Joins("JOIN order_items ON order_items.id = product_identities.order_item_id").
			Where("order_items.order_id = ? AND product_identities.imei = ?", o.ID, imei).
			First(&unit).Error
		if err != nil {
			return notFound(err, "imei %s is not part of order %s", imei, o.Code)
		}

		var open int64
		err = tx.Model(&models.ReturnRequest{}).
			Where("order_id = ? AND product_identity_id = ? AND status IN ?", o.ID, unit.ID,
				[]models.ReturnStatus{models.ReturnPending, models.ReturnApproved, models.ReturnCompleted}).
			Count(&open).Error
		if err != nil {
			return err
		}
		if open > 0 {
			return apperr.Conflict("a return for imei %s already exists", imei)
		}

		req = models.ReturnRequest{
			OrderID:           o.ID,
			OrderItemID:       *unit.OrderItemID,
			ProductIdentityID: unit.ID,
			UserID:            userID,
			Reason:            reason,
			Status:            models.ReturnPending,
		}
		return tx.Create(&req).Error
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("return requested", zap.Uint("order_id", in.OrderID), zap.String("imei", imei))
	return s.getReturn(s.db.WithContext(ctx), req.ID)
}

func (s *Service) ListReturns(ctx context.Context, f ReturnFilter, page httpx.ListFilters) ([]models.ReturnRequest, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.ReturnRequest{})
	if f.UserID != nil {
		q = q.Where("return_requests.user_id = ?", *f.UserID)
	}
	if f.Status != "" {
		q = q.Where("return_requests.status = ?", f.Status)
	}
	if page.Search != "" {
		clause, args := httpx.SearchClause(page.Search, "product_identities.imei", "return_requests.reason")
		q = q.Joins("JOIN product_identities ON product_identities.id = return_requests.product_identity_id").
			Where(clause, args...)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	order := page.OrderClause(map[string]string{"created_at": "return_requests.created_at"}, "return_requests.created_at DESC")
	var out []models.ReturnRequest
	err := q.Preload("ProductIdentity").Order(order).Order("return_requests.id DESC").
		Offset(page.Offset()).Limit(page.Limit).Find(&out).Error
	return out, total, err
}

// ResolveReturn applies a staff decision. Approval marks the unit returned,
// voids its warranty and fixes the refund amount.
func (s *Service) ResolveReturn(ctx context.Context, id uint, d ReturnDecision) (before, after *models.ReturnRequest, err error) {
	now := s.Now()
	err = database.WithTx(ctx, s.db, func(tx *gorm.DB) error {
		var r models.ReturnRequest
		if err := database.ForUpdate(tx).First(&r, id).Error; err != nil {
			return notFound(err, "return request %d not found", id)
		}
		if !CanTransitionReturn(r.Status, d.Status) {
			return apperr.InvalidState(string(r.Status), string(d.Status))
		}
		prev := r
		before = &prev

		updates := map[string]any{"status": d.Status}
		if d.AdminNote != nil {
			updates["admin_note"] = strings.TrimSpace(*d.AdminNote)
		}
		switch d.Status {
		case models.ReturnApproved:
			refund, err := s.approve(tx, &r)
			if err != nil {
				return err
			}
			if d.RefundAmount != nil {
				if *d.RefundAmount < 0 {
					return apperr.Invalid("refund_amount must not be negative")
				}
				refund = *d.RefundAmount
			}
			updates["refund_amount"] = refund
			updates["resolved_by"] = d.ResolvedBy
			updates["resolved_at"] = now
		case models.ReturnRejected:
			updates["resolved_by"] = d.ResolvedBy
			updates["resolved_at"] = now
		}
		return tx.Model(&r).Updates(updates).Error
	})
	if err != nil {
		return nil, nil, err
	}
	s.log.Info("return resolved", zap.Uint("id", id), zap.String("status", string(d.Status)))
	after, err = s.getReturn(s.db.WithContext(ctx), id)
	return before, after, err
}

func (s *Service) approve(tx *gorm.DB, r *models.ReturnRequest) (int64, error) {
	var o models.Order
	if err := tx.First(&o, r.OrderID).Error; err != nil {
		return 0, err
	}
	var item models.OrderItem
	if err := tx.First(&item, r.OrderItemID).Error; err != nil {
		return 0, err
	}
	res := tx.Model(&models.ProductIdentity{}).
		Where("id = ? AND status = ?", r.ProductIdentityID, models.IdentitySold).
		Update("status", models.IdentityReturned)
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, apperr.Conflict("unit %d is no longer marked sold", r.ProductIdentityID)
	}
	err := tx.Model(&models.Warranty{}).
		Where("product_identity_id = ? AND order_id = ? AND status IN ?", r.ProductIdentityID, r.OrderID,
			[]models.WarrantyStatus{models.WarrantyActive, models.WarrantyClaimed}).
		Update("status", models.WarrantyVoid).Error
	if err != nil {
		return 0, err
	}
	return RefundFor(&o, &item), nil
}

