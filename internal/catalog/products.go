package catalog

import (
	"context"
	"errors"
	"mime/multipart"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"phonestore-backend/internal/apperr"
	"phonestore-backend/internal/database"
	"phonestore-backend/internal/httpx"
	"phonestore-backend/internal/models"
)

// ProductView is a product row joined with its model, brand and live stock.
type ProductView struct {
	ID             uint      `json:"id"`
	ModelID        uint      `json:"model_id"`
	ModelName      string    `json:"model_name"`
	BrandID        uint      `json:"brand_id"`
	BrandName      string    `json:"brand_name"`
	Name           string    `json:"name"`
	Color          string    `json:"color"`
	Storage        string    `json:"storage"`
	RAM            string    `json:"ram"`
	Price          int64     `json:"price"`
	Description    string    `json:"description"`
	ImageURL       string    `json:"image_url"`
	WarrantyMonths int       `json:"warranty_months"`
	IsActive       bool      `json:"is_active"`
	Stock          int64     `json:"stock"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type ProductFilter struct {
	BrandID         *uint
	ModelID         *uint
	MinPrice        *int64
	MaxPrice        *int64
	InStock         *bool
	IncludeInactive bool
}

type ProductInput struct {
	ModelID        *uint
	Name           *string
	Color          *string
	Storage        *string
	RAM            *string
	Price          *int64
	Description    *string
	ImageURL       *string
	WarrantyMonths *int
	IsActive       *bool
}

const stockSubquery = "(SELECT COUNT(*) FROM product_identities pi WHERE pi.product_id = products.id AND pi.status = 'in_stock')"

func (s *Service) productQuery(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).
		Table("products").
		Joins("JOIN phone_models ON phone_models.id = products.model_id").
		Joins("JOIN brands ON brands.id = phone_models.brand_id").
		Where("products.deleted_at IS NULL")
}

func selectProductView(q *gorm.DB) *gorm.DB {
	return q.Select(`products.id, products.model_id, phone_models.name AS model_name,
		brands.id AS brand_id, brands.name AS brand_name, products.name, products.color,
		products.storage, products.ram, products.price, products.description, products.image_url,
		products.warranty_months, products.is_active, products.created_at, products.updated_at, ` +
		stockSubquery + ` AS stock`)
}

func visibleToPublic(q *gorm.DB) *gorm.DB {
	return q.Where("products.is_active = ? AND phone_models.is_active = ? AND brands.is_active = ?", true, true, true).
		Where("phone_models.deleted_at IS NULL AND brands.deleted_at IS NULL")
}

// SellableProduct loads a product the storefront shows: active, under a live
// active model and brand. Anything else is reported as not found.
func SellableProduct(tx *gorm.DB, id uint) (*models.Product, error) {
	var p models.Product
	q := tx.Model(&models.Product{}).
		Select("products.*").
		Joins("JOIN phone_models ON phone_models.id = products.model_id").
		Joins("JOIN brands ON brands.id = phone_models.brand_id").
		Where("products.id = ?", id)
	if err := visibleToPublic(q).Take(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("product %d not found", id)
		}
		return nil, err
	}
	return &p, nil
}

func (s *Service) ListProducts(ctx context.Context, f ProductFilter, page httpx.ListFilters) ([]ProductView, int64, error) {
	q := s.productQuery(ctx)
	if !f.IncludeInactive {
		q = visibleToPublic(q)
	}
	if f.BrandID != nil {
		q = q.Where("brands.id = ?", *f.BrandID)
	}
	if f.ModelID != nil {
		q = q.Where("products.model_id = ?", *f.ModelID)
	}
	if f.MinPrice != nil {
		q = q.Where("products.price >= ?", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		q = q.Where("products.price <= ?", *f.MaxPrice)
	}
	if f.InStock != nil {
		if *f.InStock {
			q = q.Where(stockSubquery + " > 0")
		} else {
			q = q.Where(stockSubquery + " = 0")
		}
	}
	if page.Search != "" {
		clause, args := httpx.SearchClause(page.Search, "products.name", "phone_models.name", "brands.name")
		q = q.Where(clause, args...)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	order := page.OrderClause(map[string]string{
		"price":      "products.price",
		"name":       "products.name",
		"created_at": "products.created_at",
	}, "products.created_at DESC")

	var out []ProductView
	err := selectProductView(q).Order(order).Order("products.id").
		Offset(page.Offset()).Limit(page.Limit).Scan(&out).Error
	if out == nil {
		out = []ProductView{}
	}
	return out, total, err
}

func (s *Service) GetProduct(ctx context.Context, id uint, activeOnly bool) (*ProductView, error) {
	q := s.productQuery(ctx).Where("products.id = ?", id)
	if activeOnly {
		q = visibleToPublic(q)
	}
	var out []ProductView
	if err := selectProductView(q).Limit(1).Scan(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, apperr.NotFound("product %d not found", id)
	}
	return &out[0], nil
}

func activeModel(tx *gorm.DB, id uint) error {
	var m models.PhoneModel
	if err := tx.First(&m, id).Error; err != nil {
		return notFound(err, "model %d not found", id)
	}
	if !m.IsActive {
		return apperr.Invalid("model %q is inactive", m.Name)
	}
	return nil
}

func (s *Service) CreateProduct(ctx context.Context, in ProductInput) (*ProductView, error) {
	if in.ModelID == nil || in.Name == nil || in.Price == nil {
		return nil, apperr.Invalid("model_id, name and price are required")
	}
	if *in.Price <= 0 {
		return nil, apperr.Invalid("price must be greater than 0")
	}
	months := 0
	if in.WarrantyMonths != nil {
		months = *in.WarrantyMonths
	}
	months, err := s.warrantyMonths(months)
	if err != nil {
		return nil, err
	}
	p := models.Product{
		ModelID:        *in.ModelID,
		Name:           strings.TrimSpace(*in.Name),
		Price:          *in.Price,
		WarrantyMonths: months,
		IsActive:       true,
	}
	if in.Color != nil {
		p.Color = strings.TrimSpace(*in.Color)
	}
	if in.Storage != nil {
		p.Storage = strings.TrimSpace(*in.Storage)
	}
	if in.RAM != nil {
		p.RAM = strings.TrimSpace(*in.RAM)
	}
	if in.Description != nil {
		p.Description = *in.Description
	}
	if in.ImageURL != nil {
		p.ImageURL = strings.TrimSpace(*in.ImageURL)
	}
	if in.IsActive != nil {
		p.IsActive = *in.IsActive
	}
	if p.Name == "" {
		return nil, apperr.Invalid("name must not be empty")
	}

	err = database.WithTx(ctx, s.db, func(tx *gorm.DB) error {
		if err := activeModel(tx, p.ModelID); err != nil {
			return err
		}
		return tx.Create(&p).Error
	})
	if err != nil {
		return nil, err
	}
	return s.GetProduct(ctx, p.ID, false)
}

func (s *Service) UpdateProduct(ctx context.Context, id uint, in ProductInput) (before, after *ProductView, err error) {
	before, err = s.GetProduct(ctx, id, false)
	if err != nil {
		return nil, nil, err
	}
	err = database.WithTx(ctx, s.db, func(tx *gorm.DB) error {
		updates := map[string]any{}
		if in.ModelID != nil && *in.ModelID != before.ModelID {
			if err := activeModel(tx, *in.ModelID); err != nil {
				return err
			}
			updates["model_id"] = *in.ModelID
		}
		if in.Name != nil {
			name := strings.TrimSpace(*in.Name)
			if name == "" {
				return apperr.Invalid("name must not be empty")
			}
			updates["name"] = name
		}
		if in.Price != nil {
			if *in.Price <= 0 {
				return apperr.Invalid("price must be greater than 0")
			}
			updates["price"] = *in.Price
		}
		if in.WarrantyMonths != nil {
			months, err := s.warrantyMonths(*in.WarrantyMonths)
			if err != nil {
				return err
			}
			updates["warranty_months"] = months
		}
		for col, v := range map[string]*string{
			"color": in.Color, "storage": in.Storage, "ram": in.RAM, "image_url": in.ImageURL,
		} {
			if v != nil {
				updates[col] = strings.TrimSpace(*v)
			}
		}
		if in.Description != nil {
			updates["description"] = *in.Description
		}
		if in.IsActive != nil {
			updates["is_active"] = *in.IsActive
		}
		if len(updates) == 0 {
			return nil
		}
		return tx.Model(&models.Product{}).Where("id = ?", id).Updates(updates).Error
	})
	if err != nil {
		return nil, nil, err
	}
	after, err = s.GetProduct(ctx, id, false)
	return before, after, err
}

// DeleteProduct soft-deletes the product and drops it from every cart.
func (s *Service) DeleteProduct(ctx context.Context, id uint) (*ProductView, error) {
	view, err := s.GetProduct(ctx, id, false)
	if err != nil {
		return nil, err
	}
	err = database.WithTx(ctx, s.db, func(tx *gorm.DB) error {
		if err := tx.Model(&models.Product{}).Where("id = ?", id).Update("is_active", false).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.Product{}, id).Error; err != nil {
			return err
		}
		return tx.Where("product_id = ?", id).Delete(&models.CartItem{}).Error
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// SetProductImage stores an uploaded image and points the product at it.
func (s *Service) SetProductImage(ctx context.Context, id uint, fh *multipart.FileHeader) (*ProductView, error) {
	current, err := s.GetProduct(ctx, id, false)
	if err != nil {
		return nil, err
	}
	url, err := s.images.Save(id, fh)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).Update("image_url", url).Error; err != nil {
		_ = s.images.Remove(url)
		return nil, err
	}
	if current.ImageURL != "" && current.ImageURL != url {
		if err := s.images.Remove(current.ImageURL); err != nil {
			s.log.Warn("old product image not removed", zap.Uint("product_id", id), zap.Error(err))
		}
	}
	return s.GetProduct(ctx, id, false)
}
