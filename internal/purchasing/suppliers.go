// Package purchasing covers suppliers and purchase orders, the path by which
// physical units enter stock.
package purchasing

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"phonestore-backend/internal/apperr"
	"phonestore-backend/internal/database"
	"phonestore-backend/internal/httpx"
	"phonestore-backend/internal/models"
)

type Service struct {
	db  *gorm.DB
	log *zap.Logger
	Now func() time.Time
}

func NewService(db *gorm.DB, log *zap.Logger) *Service {
	return &Service{db: db, log: log, Now: time.Now}
}

func notFound(err error, format string, args ...any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound(format, args...)
	}
	return err
}

type SupplierInput struct {
	Name        *string
	ContactName *string
	Phone       *string
	Email       *string
	Address     *string
	Note        *string
	IsActive    *bool
}

func (in SupplierInput) columns() map[string]any {
	out := map[string]any{}
	for col, v := range map[string]*string{
		"name": in.Name, "contact_name": in.ContactName, "phone": in.Phone,
		"email": in.Email, "address": in.Address, "note": in.Note,
	} {
		if v != nil {
			out[col] = strings.TrimSpace(*v)
		}
	}
	if in.IsActive != nil {
		out["is_active"] = *in.IsActive
	}
	return out
}

func supplierNameTaken(tx *gorm.DB, name string, exceptID uint) error {
	q := tx.Model(&models.Supplier{}).Where("LOWER(name) = ?", strings.ToLower(name))
	if exceptID != 0 {
		q = q.Where("id <> ?", exceptID)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return apperr.Conflict("supplier %q already exists", name)
	}
	return nil
}

func (s *Service) ListSuppliers(ctx context.Context, activeOnly bool, page httpx.ListFilters) ([]models.Supplier, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.Supplier{})
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	if page.Search != "" {
		clause, args := httpx.SearchClause(page.Search, "name", "contact_name", "phone", "email")
		q = q.Where(clause, args...)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var out []models.Supplier
	order := page.OrderClause(map[string]string{"name": "name", "created_at": "created_at"}, "name ASC")
	err := q.Order(order).Offset(page.Offset()).Limit(page.Limit).Find(&out).Error
	return out, total, err
}

func (s *Service) GetSupplier(ctx context.Context, id uint) (*models.Supplier, error) {
	var sup models.Supplier
	if err := s.db.WithContext(ctx).First(&sup, id).Error; err != nil {
		return nil, notFound(err, "supplier %d not found", id)
	}
	return &sup, nil
}

func (s *Service) CreateSupplier(ctx context.Context, in SupplierInput) (*models.Supplier, error) {
	if in.Name == nil || strings.TrimSpace(*in.Name) == "" {
		return nil, apperr.Invalid("name is required")
	}
	sup := models.Supplier{Name: strings.TrimSpace(*in.Name), IsActive: true}
	if in.ContactName != nil {
		sup.ContactName = strings.TrimSpace(*in.ContactName)
	}
	if in.Phone != nil {
		sup.Phone = strings.TrimSpace(*in.Phone)
	}
	if in.Email != nil {
		sup.Email = strings.TrimSpace(*in.Email)
	}
	if in.Address != nil {
		sup.Address = strings.TrimSpace(*in.Address)
	}
	if in.Note != nil {
		sup.Note = strings.TrimSpace(*in.Note)
	}
	if in.IsActive != nil {
		sup.IsActive = *in.IsActive
	}
	err := database.WithTx(ctx, s.db, func(tx *gorm.DB) error {
		if err := supplierNameTaken(tx, sup.Name, 0); err != nil {
			return err
		}
		return tx.Create(&sup).Error
	})
	if err != nil {
		return nil, err
	}
	return &sup, nil
}

func (s *Service) UpdateSupplier(ctx context.Context, id uint, in SupplierInput) (before, after *models.Supplier, err error) {
	err = database.WithTx(ctx, s.db, func(tx *gorm.DB) error {
		var sup models.Supplier
		if err := tx.First(&sup, id).Error; err != nil {
			return notFound(err, "supplier %d not found", id)
		}
		prev := sup
		before = &prev
		cols := in.columns()
		if name, ok := cols["name"]; ok {
			if name == "" {
				return apperr.Invalid("name must not be empty")
			}
			if err := supplierNameTaken(tx, name.(string), id); err != nil {
				return err
			}
		}
		if len(cols) > 0 {
			if err := tx.Model(&sup).Updates(cols).Error; err != nil {
				return err
			}
		}
		var fresh models.Supplier
		if err := tx.First(&fresh, id).Error; err != nil {
			return err
		}
		after = &fresh
		return nil
	})
	return before, after, err
}

// DeleteSupplier soft-deletes a supplier without pending purchase orders.
func (s *Service) DeleteSupplier(ctx context.Context, id uint) (*models.Supplier, error) {
	var sup models.Supplier
	err := database.WithTx(ctx, s.db, func(tx *gorm.DB) error {
		if err := tx.First(&sup, id).Error; err != nil {
			return notFound(err, "supplier %d not found", id)
		}
		var n int64
		err := tx.Model(&models.PurchaseOrder{}).
			Where("supplier_id = ? AND status = ?", id, models.PurchaseOrderPending).
			Count(&n).Error
		if err != nil {
			return err
		}
		if n > 0 {
			return apperr.Conflict("supplier %q has %d pending purchase orders", sup.Name, n)
		}
		if err := tx.Model(&sup).Update("is_active", false).Error; err != nil {
			return err
		}
		return tx.Delete(&sup).Error
	})
	if err != nil {
		return nil, err
	}
	return &sup, nil
}
