// Package catalog manages brands, phone models, products and the physical
// units (identities) behind each product.
package catalog

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"phonestore-backend/internal/apperr"
)

const maxWarrantyMonths = 60

type Service struct {
	db              *gorm.DB
	log             *zap.Logger
	images          *ImageStore
	defaultWarranty int
}

func NewService(db *gorm.DB, images *ImageStore, defaultWarrantyMonths int, log *zap.Logger) *Service {
	return &Service{db: db, log: log, images: images, defaultWarranty: defaultWarrantyMonths}
}

func notFound(err error, format string, args ...any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound(format, args...)
	}
	return err
}

// nameTaken reports whether another non-deleted row in table has the name,
// compared case-insensitively. scope adds extra conditions.
func nameTaken(tx *gorm.DB, model any, name string, exceptID uint, scope func(*gorm.DB) *gorm.DB) (bool, error) {
	q := tx.Model(model).Where("LOWER(name) = ?", strings.ToLower(name))
	if exceptID != 0 {
		q = q.Where("id <> ?", exceptID)
	}
	if scope != nil {
		q = scope(q)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return false, fmt.Errorf("check name: %w", err)
	}
	return n > 0, nil
}

func (s *Service) warrantyMonths(v int) (int, error) {
	if v < 0 || v > maxWarrantyMonths {
		return 0, apperr.Invalid("warranty_months must be between 0 and %d", maxWarrantyMonths)
	}
	if v == 0 {
		return s.defaultWarranty, nil
	}
	return v, nil
}
