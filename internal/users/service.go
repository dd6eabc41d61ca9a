// Package users is the admin user management surface.
package users

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"phonestore-backend/internal/apperr"
	"phonestore-backend/internal/auth"
	"phonestore-backend/internal/database"
	"phonestore-backend/internal/httpx"
	"phonestore-backend/internal/models"
)

type Service struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewService(db *gorm.DB, log *zap.Logger) *Service {
	return &Service{db: db, log: log}
}

type Filter struct {
	Role     models.UserRole
	IsActive *bool
}

func (s *Service) List(ctx context.Context, f Filter, page httpx.ListFilters) ([]models.User, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.User{})
	if page.Search != "" {
		clause, args := httpx.SearchClause(page.Search, "username", "full_name", "email")
		q = q.Where(clause, args...)
	}
	if f.Role != "" {
		q = q.Where("role = ?", f.Role)
	}
	if f.IsActive != nil {
		q = q.Where("is_active = ?", *f.IsActive)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	order := page.OrderClause(map[string]string{
		"username":   "username",
		"full_name":  "full_name",
		"created_at": "created_at",
	}, "created_at DESC")
	var out []models.User
	err := q.Order(order).Order("id").Offset(page.Offset()).Limit(page.Limit).Find(&out).Error
	return out, total, err
}

func (s *Service) Get(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).First(&u, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("user %d not found", id)
		}
		return nil, err
	}
	return &u, nil
}

func (s *Service) Create(ctx context.Context, in auth.NewUser) (*models.User, error) {
	return auth.CreateUser(ctx, s.db, in)
}

type Update struct {
	FullName *string
	Email    *string
	Phone    *string
	Address  *string
	Role     *models.UserRole
	IsActive *bool
	Password *string
}

// ensureOtherAdmin fails when target is the last active admin.
func ensureOtherAdmin(tx *gorm.DB, target uint) error {
	var n int64
	err := tx.Model(&models.User{}).
		Where("role = ? AND is_active = ? AND id <> ?", models.RoleAdmin, true, target).
		Count(&n).Error
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.Conflict("the last active admin cannot be removed or demoted")
	}
	return nil
}

func (s *Service) Update(ctx context.Context, id uint, in Update) (before, after *models.User, err error) {
	err = database.WithTx(ctx, s.db, func(tx *gorm.DB) error {
		var u models.User
		if err := database.ForUpdate(tx).First(&u, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("user %d not found", id)
			}
			return err
		}
		prev := u
		before = &prev

		updates := map[string]any{}
		if in.FullName != nil {
			updates["full_name"] = strings.TrimSpace(*in.FullName)
		}
		if in.Email != nil {
			email := auth.NormalizeEmail(*in.Email)
			if err := auth.EnsureEmailFree(tx, email, id); err != nil {
				return err
			}
			updates["email"] = email
		}
		if in.Phone != nil {
			updates["phone"] = strings.TrimSpace(*in.Phone)
		}
		if in.Address != nil {
			updates["address"] = strings.TrimSpace(*in.Address)
		}
		if in.Role != nil {
			if !in.Role.Valid() {
				return apperr.Invalid("unknown role %q", *in.Role)
			}
			if u.Role == models.RoleAdmin && u.IsActive && *in.Role != models.RoleAdmin {
				if err := ensureOtherAdmin(tx, id); err != nil {
					return err
				}
			}
			updates["role"] = *in.Role
		}
		if in.IsActive != nil {
			if !*in.IsActive && u.Role == models.RoleAdmin && u.IsActive {
				if err := ensureOtherAdmin(tx, id); err != nil {
					return err
				}
			}
			updates["is_active"] = *in.IsActive
		}
		if in.Password != nil {
			hash, err := auth.HashPassword(*in.Password)
			if err != nil {
				return err
			}
			updates["password_hash"] = hash
		}
		if len(updates) > 0 {
			if err := tx.Model(&u).Updates(updates).Error; err != nil {
				return err
			}
		}
		var fresh models.User
		if err := tx.First(&fresh, id).Error; err != nil {
			return err
		}
		after = &fresh
		return nil
	})
	return before, after, err
}

// Delete soft-deletes the user: is_active=false plus deleted_at.
func (s *Service) Delete(ctx context.Context, id, actorID uint) (*models.User, error) {
	if id == actorID {
		return nil, apperr.Invalid("you cannot delete your own account")
	}
	var deleted models.User
	err := database.WithTx(ctx, s.db, func(tx *gorm.DB) error {
		if err := database.ForUpdate(tx).First(&deleted, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("user %d not found", id)
			}
			return err
		}
		if deleted.Role == models.RoleAdmin && deleted.IsActive {
			if err := ensureOtherAdmin(tx, id); err != nil {
				return err
			}
		}
		if err := tx.Model(&deleted).Update("is_active", false).Error; err != nil {
			return err
		}
		if err := tx.Delete(&deleted).Error; err != nil {
			return err
		}
		return tx.Where("user_id = ?", id).Delete(&models.CartItem{}).Error
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("user deleted", zap.Uint("user_id", id), zap.Uint("by", actorID))
	return &deleted, nil
}
