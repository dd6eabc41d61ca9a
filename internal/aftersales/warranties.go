package aftersales

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"phonestore-backend/internal/apperr"
	"phonestore-backend/internal/auth"
	"phonestore-backend/internal/database"
	"phonestore-backend/internal/httpx"
	"phonestore-backend/internal/models"
)

// WarrantyView is a warranty joined with its unit, product and order.
type WarrantyView struct {
	ID                uint      `json:"id"`
	ProductIdentityID uint      `json:"product_identity_id"`
	IMEI              string    `json:"imei"`
	ProductID         uint      `json:"product_id"`
	ProductName       string    `json:"product_name"`
	OrderID           uint      `json:"order_id"`
	OrderCode         string    `json:"order_code"`
	UserID            uint      `json:"user_id"`
	StartDate         time.Time `json:"start_date"`
	EndDate           time.Time `json:"end_date"`
	Status            string    `json:"status"`
	Note              string    `json:"note"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

var warrantyTransitions = map[models.WarrantyStatus][]models.WarrantyStatus{
	models.WarrantyActive:  {models.WarrantyClaimed, models.WarrantyVoid},
	models.WarrantyClaimed: {models.WarrantyActive, models.WarrantyVoid},
}

func CanTransitionWarranty(from, to models.WarrantyStatus) bool {
	for _, s := range warrantyTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type WarrantyFilter struct {
	UserID *uint
	Status models.WarrantyStatus
}

func (s *Service) warrantyQuery(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Table("warranties").
		Joins("JOIN product_identities ON product_identities.id = warranties.product_identity_id").
		Joins("JOIN products ON products.id = product_identities.product_id").
		Joins("JOIN orders ON orders.id = warranties.order_id")
}

// selectWarranty is applied after Count, which cannot wrap a multi-column select.
func selectWarranty(q *gorm.DB) *gorm.DB {
	return q.Select(`warranties.id, warranties.product_identity_id, product_identities.imei,
			products.id AS product_id, products.name AS product_name,
			warranties.order_id, orders.code AS order_code, warranties.user_id,
			warranties.start_date, warranties.end_date, warranties.status, warranties.note,
			warranties.created_at, warranties.updated_at`)
}

func (s *Service) ListWarranties(ctx context.Context, f WarrantyFilter, page httpx.ListFilters) ([]WarrantyView, int64, error) {
	q := s.warrantyQuery(ctx)
	if f.UserID != nil {
		q = q.Where("warranties.user_id = ?", *f.UserID)
	}
	if f.Status != "" {
		q = q.Where("warranties.status = ?", f.Status)
	}
	if page.Search != "" {
		clause, args := httpx.SearchClause(page.Search, "product_identities.imei", "products.name", "orders.code")
		q = q.Where(clause, args...)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	order := page.OrderClause(map[string]string{
		"end_date":   "warranties.end_date",
		"start_date": "warranties.start_date",
		"created_at": "warranties.created_at",
	}, "warranties.created_at DESC")
	out := []WarrantyView{}
	err := selectWarranty(q).Order(order).Order("warranties.id DESC").Offset(page.Offset()).Limit(page.Limit).Scan(&out).Error
	return out, total, err
}

func (s *Service) getWarranty(ctx context.Context, id uint) (*WarrantyView, error) {
	var out []WarrantyView
	if err := selectWarranty(s.warrantyQuery(ctx)).Where("warranties.id = ?", id).Limit(1).Scan(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, apperr.NotFound("warranty %d not found", id)
	}
	return &out[0], nil
}

// LookupByIMEI returns the most recent warranty of a unit. Customers only
// see their own.
func (s *Service) LookupByIMEI(ctx context.Context, imei string, actor auth.Actor) (*WarrantyView, error) {
	imei = strings.TrimSpace(imei)
	q := s.warrantyQuery(ctx).Where("product_identities.imei = ?", imei)
	if !actor.IsStaff() {
		q = q.Where("warranties.user_id = ?", actor.ID)
	}
	var out []WarrantyView
	if err := selectWarranty(q).Order("warranties.id DESC").Limit(1).Scan(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, apperr.NotFound("no warranty found for imei %s", imei)
	}
	return &out[0], nil
}

type WarrantyUpdate struct {
	Status *models.WarrantyStatus
	Note   *string
}

func (s *Service) UpdateWarranty(ctx context.Context, id uint, in WarrantyUpdate) (before, after *WarrantyView, err error) {
	before, err = s.getWarranty(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	err = database.WithTx(ctx, s.db, func(tx *gorm.DB) error {
		var w models.Warranty
		if err := database.ForUpdate(tx).First(&w, id).Error; err != nil {
			return notFound(err, "warranty %d not found", id)
		}
		updates := map[string]any{}
		if in.Status != nil && *in.Status != w.Status {
			if !CanTransitionWarranty(w.Status, *in.Status) {
				return apperr.InvalidState(string(w.Status), string(*in.Status))
			}
			updates["status"] = *in.Status
		}
		if in.Note != nil {
			updates["note"] = strings.TrimSpace(*in.Note)
		}
		if len(updates) == 0 {
			return nil
		}
		return tx.Model(&w).Updates(updates).Error
	})
	if err != nil {
		return nil, nil, err
	}
	after, err = s.getWarranty(ctx, id)
	return before, after, err
}

// ExpireWarranties marks active warranties whose end date has passed as
// expired and reports how many changed.
func (s *Service) ExpireWarranties(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.Warranty{}).
		Where("status = ? AND end_date < ?", models.WarrantyActive, today(s.Now())).
		Update("status", models.WarrantyExpired)
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		s.log.Info("warranties expired", zap.Int64("count", res.RowsAffected))
	}
	return res.RowsAffected, nil
}
