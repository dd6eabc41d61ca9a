package catalog

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"phonestore-backend/internal/apperr"
	"phonestore-backend/internal/database"
	"phonestore-backend/internal/httpx"
	"phonestore-backend/internal/models"
)

type IdentityView struct {
	ID                    uint                  `json:"id"`
	ProductID             uint                  `json:"product_id"`
	ProductName           string                `json:"product_name"`
	IMEI                  string                `json:"imei"`
	Color                 string                `json:"color"`
	ImportPrice           int64                 `json:"import_price"`
	Status                models.IdentityStatus `json:"status"`
	PurchaseOrderDetailID *uint                 `json:"purchase_order_detail_id"`
	OrderItemID           *uint                 `json:"order_item_id"`
}

func NewIdentityView(pi *models.ProductIdentity) IdentityView {
	return IdentityView{
		ID:                    pi.ID,
		ProductID:             pi.ProductID,
		ProductName:           pi.Product.Name,
		IMEI:                  pi.IMEI,
		Color:                 pi.Color,
		ImportPrice:           pi.ImportPrice,
		Status:                pi.Status,
		PurchaseOrderDetailID: pi.PurchaseOrderDetailID,
		OrderItemID:           pi.OrderItemID,
	}
}

// identityTransitions lists the manual status changes staff may make. sold is
// owned by the order and return flows.
var identityTransitions = map[models.IdentityStatus][]models.IdentityStatus{
	models.IdentityInStock:   {models.IdentityDefective},
	models.IdentityDefective: {models.IdentityInStock},
	models.IdentityReturned:  {models.IdentityInStock, models.IdentityDefective},
}

func CanTransitionIdentity(from, to models.IdentityStatus) bool {
	for _, s := range identityTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type IdentityFilter struct {
	ProductID *uint
	Status    models.IdentityStatus
}

func (s *Service) ListIdentities(ctx context.Context, f IdentityFilter, page httpx.ListFilters) ([]IdentityView, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.ProductIdentity{})
	if f.ProductID != nil {
		q = q.Where("product_id = ?", *f.ProductID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if page.Search != "" {
		clause, args := httpx.SearchClause(page.Search, "imei")
		q = q.Where(clause, args...)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []models.ProductIdentity
	err := q.Preload("Product", func(db *gorm.DB) *gorm.DB { return db.Unscoped() }).
		Order("id DESC").Offset(page.Offset()).Limit(page.Limit).Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	out := make([]IdentityView, 0, len(rows))
	for i := range rows {
		out = append(out, NewIdentityView(&rows[i]))
	}
	return out, total, nil
}

func (s *Service) GetIdentityByIMEI(ctx context.Context, imei string) (*IdentityView, error) {
	var pi models.ProductIdentity
	err := s.db.WithContext(ctx).
		Preload("Product", func(db *gorm.DB) *gorm.DB { return db.Unscoped() }).
		Where("imei = ?", strings.TrimSpace(imei)).First(&pi).Error
	if err != nil {
		return nil, notFound(err, "imei %s not found", imei)
	}
	v := NewIdentityView(&pi)
	return &v, nil
}

func (s *Service) UpdateIdentityStatus(ctx context.Context, id uint, to models.IdentityStatus) (before, after *IdentityView, err error) {
	err = database.WithTx(ctx, s.db, func(tx *gorm.DB) error {
		var pi models.ProductIdentity
		if err := database.ForUpdate(tx).First(&pi, id).Error; err != nil {
			return notFound(err, "identity %d not found", id)
		}
		prev := NewIdentityView(&pi)
		before = &prev
		if !CanTransitionIdentity(pi.Status, to) {
			return apperr.InvalidState(string(pi.Status), string(to))
		}
		if err := tx.Model(&pi).Update("status", to).Error; err != nil {
			return err
		}
		next := prev
		next.Status = to
		after = &next
		return nil
	})
	return before, after, err
}
