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

type BrandInput struct {
	Name        *string
	Description *string
	LogoURL     *string
	IsActive    *bool
}

func (s *Service) ListBrands(ctx context.Context, activeOnly bool, page httpx.ListFilters) ([]models.Brand, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.Brand{})
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	if page.Search != "" {
		clause, args := httpx.SearchClause(page.Search, "name")
		q = q.Where(clause, args...)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var out []models.Brand
	order := page.OrderClause(map[string]string{"name": "name", "created_at": "created_at"}, "name ASC")
	err := q.Order(order).Offset(page.Offset()).Limit(page.Limit).Find(&out).Error
	return out, total, err
}

func (s *Service) GetBrand(ctx context.Context, id uint, activeOnly bool) (*models.Brand, error) {
	q := s.db.WithContext(ctx)
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	var b models.Brand
	if err := q.First(&b, id).Error; err != nil {
		return nil, notFound(err, "brand %d not found", id)
	}
	return &b, nil
}

func (s *Service) CreateBrand(ctx context.Context, in BrandInput) (*models.Brand, error) {
	if in.Name == nil || strings.TrimSpace(*in.Name) == "" {
		return nil, apperr.Invalid("name is required")
	}
	b := models.Brand{Name: strings.TrimSpace(*in.Name), IsActive: true}
	if in.Description != nil {
		b.Description = strings.TrimSpace(*in.Description)
	}
	if in.LogoURL != nil {
		b.LogoURL = strings.TrimSpace(*in.LogoURL)
	}
	if in.IsActive != nil {
		b.IsActive = *in.IsActive
	}
	err := database.WithTx(ctx, s.db, func(tx *gorm.DB) error {
		taken, err := nameTaken(tx, &models.Brand{}, b.Name, 0, nil)
		if err != nil {
			return err
		}
		if taken {
			return apperr.Conflict("brand %q already exists", b.Name)
		}
		return tx.Create(&b).Error
	})
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *Service) UpdateBrand(ctx context.Context, id uint, in BrandInput) (before, after *models.Brand, err error) {
	err = database.WithTx(ctx, s.db, func(tx *gorm.DB) error {
		var b models.Brand
		if err := tx.First(&b, id).Error; err != nil {
			return notFound(err, "brand %d not found", id)
		}
		prev := b
		before = &prev

		updates := map[string]any{}
		if in.Name != nil {
			name := strings.TrimSpace(*in.Name)
			if name == "" {
				return apperr.Invalid("name must not be empty")
			}
			taken, err := nameTaken(tx, &models.Brand{}, name, id, nil)
			if err != nil {
				return err
			}
			if taken {
				return apperr.Conflict("brand %q already exists", name)
			}
			updates["name"] = name
		}
		if in.Description != nil {
			updates["description"] = strings.TrimSpace(*in.Description)
		}
		if in.LogoURL != nil {
			updates["logo_url"] = strings.TrimSpace(*in.LogoURL)
		}
		if in.IsActive != nil {
			updates["is_active"] = *in.IsActive
		}
		if len(updates) > 0 {
			if err := tx.Model(&b).Updates(updates).Error; err != nil {
				return err
			}
		}
		var fresh models.Brand
		if err := tx.First(&fresh, id).Error; err != nil {
			return err
		}
		after = &fresh
		return nil
	})
	return before, after, err
}

// DeleteBrand soft-deletes a brand that has no active models left.
func (s *Service) DeleteBrand(ctx context.Context, id uint) (*models.Brand, error) {
	var b models.Brand
	err := database.WithTx(ctx, s.db, func(tx *gorm.DB) error {
		if err := tx.First(&b, id).Error; err != nil {
			return notFound(err, "brand %d not found", id)
		}
		var n int64
		if err := tx.Model(&models.PhoneModel{}).Where("brand_id = ? AND is_active = ?", id, true).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return apperr.Conflict("brand %q still has %d active models", b.Name, n)
		}
		if err := tx.Model(&b).Update("is_active", false).Error; err != nil {
			return err
		}
		return tx.Delete(&b).Error
	})
	if err != nil {
		return nil, err
	}
	return &b, nil
}
