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

type ModelInput struct {
	BrandID     *uint
	Name        *string
	Description *string
	IsActive    *bool
}

type ModelFilter struct {
	BrandID    *uint
	ActiveOnly bool
}

func (s *Service) ListModels(ctx context.Context, f ModelFilter, page httpx.ListFilters) ([]models.PhoneModel, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.PhoneModel{})
	if f.BrandID != nil {
		q = q.Where("brand_id = ?", *f.BrandID)
	}
	if f.ActiveOnly {
		q = q.Where("is_active = ?", true).
			Where("brand_id IN (?)", s.db.Model(&models.Brand{}).Select("id").Where("is_active = ?", true))
	}
	if page.Search != "" {
		clause, args := httpx.SearchClause(page.Search, "name")
		q = q.Where(clause, args...)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var out []models.PhoneModel
	order := page.OrderClause(map[string]string{"name": "name", "created_at": "created_at"}, "name ASC")
	err := q.Preload("Brand").Order(order).Offset(page.Offset()).Limit(page.Limit).Find(&out).Error
	return out, total, err
}

func (s *Service) GetModel(ctx context.Context, id uint, activeOnly bool) (*models.PhoneModel, error) {
	q := s.db.WithContext(ctx).Preload("Brand")
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	var m models.PhoneModel
	if err := q.First(&m, id).Error; err != nil {
		return nil, notFound(err, "model %d not found", id)
	}
	if activeOnly && !m.Brand.IsActive {
		return nil, apperr.NotFound("model %d not found", id)
	}
	return &m, nil
}

func activeBrand(tx *gorm.DB, id uint) (*models.Brand, error) {
	var b models.Brand
	if err := tx.First(&b, id).Error; err != nil {
		return nil, notFound(err, "brand %d not found", id)
	}
	if !b.IsActive {
		return nil, apperr.Invalid("brand %q is inactive", b.Name)
	}
	return &b, nil
}

func sameBrand(brandID uint) func(*gorm.DB) *gorm.DB {
	return func(q *gorm.DB) *gorm.DB { return q.Where("brand_id = ?", brandID) }
}

func (s *Service) CreateModel(ctx context.Context, in ModelInput) (*models.PhoneModel, error) {
	if in.BrandID == nil {
		return nil, apperr.Invalid("brand_id is required")
	}
	if in.Name == nil || strings.TrimSpace(*in.Name) == "" {
		return nil, apperr.Invalid("name is required")
	}
	m := models.PhoneModel{BrandID: *in.BrandID, Name: strings.TrimSpace(*in.Name), IsActive: true}
	if in.Description != nil {
		m.Description = strings.TrimSpace(*in.Description)
	}
	if in.IsActive != nil {
		m.IsActive = *in.IsActive
	}
	err := database.WithTx(ctx, s.db, func(tx *gorm.DB) error {
		brand, err := activeBrand(tx, m.BrandID)
		if err != nil {
			return err
		}
		taken, err := nameTaken(tx, &models.PhoneModel{}, m.Name, 0, sameBrand(m.BrandID))
		if err != nil {
			return err
		}
		if taken {
			return apperr.Conflict("model %q already exists for brand %q", m.Name, brand.Name)
		}
		if err := tx.Create(&m).Error; err != nil {
			return err
		}
		m.Brand = *brand
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Service) UpdateModel(ctx context.Context, id uint, in ModelInput) (before, after *models.PhoneModel, err error) {
	err = database.WithTx(ctx, s.db, func(tx *gorm.DB) error {
		var m models.PhoneModel
		if err := tx.First(&m, id).Error; err != nil {
			return notFound(err, "model %d not found", id)
		}
		prev := m
		before = &prev

		brandID := m.BrandID
		updates := map[string]any{}
		if in.BrandID != nil && *in.BrandID != m.BrandID {
			if _, err := activeBrand(tx, *in.BrandID); err != nil {
				return err
			}
			brandID = *in.BrandID
			updates["brand_id"] = brandID
		}
		name := m.Name
		if in.Name != nil {
			name = strings.TrimSpace(*in.Name)
			if name == "" {
				return apperr.Invalid("name must not be empty")
			}
			updates["name"] = name
		}
		if in.Name != nil || in.BrandID != nil {
			taken, err := nameTaken(tx, &models.PhoneModel{}, name, id, sameBrand(brandID))
			if err != nil {
				return err
			}
			if taken {
				return apperr.Conflict("model %q already exists for this brand", name)
			}
		}
		if in.Description != nil {
			updates["description"] = strings.TrimSpace(*in.Description)
		}
		if in.IsActive != nil {
			updates["is_active"] = *in.IsActive
		}
		if len(updates) > 0 {
			if err := tx.Model(&m).Updates(updates).Error; err != nil {
				return err
			}
		}
		var fresh models.PhoneModel
		if err := tx.Preload("Brand").First(&fresh, id).Error; err != nil {
			return err
		}
		after = &fresh
		return nil
	})
	return before, after, err
}

// DeleteModel soft-deletes a model that has no active products left.
func (s *Service) DeleteModel(ctx context.Context, id uint) (*models.PhoneModel, error) {
	var m models.PhoneModel
	err := database.WithTx(ctx, s.db, func(tx *gorm.DB) error {
		if err := tx.First(&m, id).Error; err != nil {
			return notFound(err, "model %d not found", id)
		}
		var n int64
		if err := tx.Model(&models.Product{}).Where("model_id = ? AND is_active = ?", id, true).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return apperr.Conflict("model %q still has %d active products", m.Name, n)
		}
		if err := tx.Model(&m).Update("is_active", false).Error; err != nil {
			return err
		}
		return tx.Delete(&m).Error
	})
	if err != nil {
		return nil, err
	}
	return &m, nil
}
