package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"phonestore-backend/internal/apperr"
	"phonestore-backend/internal/database"
	"phonestore-backend/internal/metrics"
	"phonestore-backend/internal/models"
)

var (
	ErrInvalidCredentials = fmt.Errorf("%w: invalid username or password", apperr.ErrUnauthorized)
	ErrTokenRevoked       = fmt.Errorf("%w: token has been revoked", apperr.ErrUnauthorized)
	ErrInvalidToken       = fmt.Errorf("%w: invalid or expired token", apperr.ErrUnauthorized)
	ErrAdminExists        = fmt.Errorf("%w: an admin account already exists", apperr.ErrForbidden)
)

// PasswordCost is the bcrypt cost used for new hashes.
var PasswordCost = bcrypt.DefaultCost

func HashPassword(pw string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(pw), PasswordCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

func CheckPassword(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

// NormalizeUsername lower-cases and trims; usernames compare case-insensitively.
func NormalizeUsername(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

type Service struct {
	db        *gorm.DB
	tokens    *Tokens
	blacklist Store
	metrics   *metrics.Metrics
	log       *zap.Logger
}

func NewService(db *gorm.DB, tokens *Tokens, blacklist Store, m *metrics.Metrics, log *zap.Logger) *Service {
	return &Service{db: db, tokens: tokens, blacklist: blacklist, metrics: m, log: log}
}

type NewUser struct {
	Username string
	Password string
	Email    string
	FullName string
	Phone    string
	Address  string
	Role     models.UserRole
	IsActive bool
}

// CreateUser inserts a user after checking username and email uniqueness.
func CreateUser(ctx context.Context, db *gorm.DB, in NewUser) (*models.User, error) {
	username := NormalizeUsername(in.Username)
	email := NormalizeEmail(in.Email)
	if !in.Role.Valid() {
		return nil, apperr.Invalid("unknown role %q", in.Role)
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		Username:     username,
		Email:        email,
		FullName:     strings.TrimSpace(in.FullName),
		Phone:        strings.TrimSpace(in.Phone),
		Address:      strings.TrimSpace(in.Address),
		PasswordHash: hash,
		Role:         in.Role,
		IsActive:     in.IsActive,
	}

	err = database.WithTx(ctx, db, func(tx *gorm.DB) error {
		var n int64
		if err := tx.Unscoped().Model(&models.User{}).Where("username = ?", username).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return apperr.Conflict("username %q is already taken", username)
		}
		if err := EnsureEmailFree(tx, email, 0); err != nil {
			return err
		}
		return tx.Create(user).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, apperr.Conflict("username %q is already taken", username)
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// EnsureEmailFree fails when another non-deleted user holds the email.
func EnsureEmailFree(tx *gorm.DB, email string, exceptID uint) error {
	var n int64
	q := tx.Model(&models.User{}).Where("email = ?", email)
	if exceptID != 0 {
		q = q.Where("id <> ?", exceptID)
	}
	if err := q.Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return apperr.Conflict("email %q is already registered", email)
	}
	return nil
}

func (s *Service) Register(ctx context.Context, in NewUser) (*models.User, error) {
	in.Role = models.RoleCustomer
	in.IsActive = true
	return CreateUser(ctx, s.db, in)
}

// RegisterAdmin creates the first admin. It is refused once any admin exists.
func (s *Service) RegisterAdmin(ctx context.Context, in NewUser) (*models.User, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&n).Error; err != nil {
		return nil, err
	}
	if n > 0 {
		return nil, ErrAdminExists
	}
	in.Role = models.RoleAdmin
	in.IsActive = true
	user, err := CreateUser(ctx, s.db, in)
	if err != nil {
		return nil, err
	}
	s.log.Info("bootstrap admin created", zap.Uint("user_id", user.ID), zap.String("username", user.Username))
	return user, nil
}

type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      *models.User
}

func (s *Service) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("username = ?", NormalizeUsername(username)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !user.IsActive || !CheckPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	token, claims, err := s.tokens.Issue(&user)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, ExpiresAt: claims.ExpiresAt.Time, User: &user}, nil
}

// Logout revokes the token until it would have expired.
func (s *Service) Logout(ctx context.Context, claims *Claims) error {
	if err := s.blacklist.Revoke(ctx, claims.ID, claims.UserID, claims.ExpiresAt.Time); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	s.metrics.TokenRevoked()
	return nil
}

// Authenticate verifies a raw bearer token and returns its claims together
// with the current user row.
func (s *Service) Authenticate(ctx context.Context, raw string) (*Claims, *models.User, error) {
	claims, err := s.tokens.Parse(raw)
	if err != nil {
		return nil, nil, ErrInvalidToken
	}
	revoked, err := s.blacklist.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("check blacklist: %w", err)
	}
	if revoked {
		return nil, nil, ErrTokenRevoked
	}

	var user models.User
	err = s.db.WithContext(ctx).First(&user, claims.UserID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, ErrInvalidToken
	}
	if err != nil {
		return nil, nil, err
	}
	if !user.IsActive {
		return nil, nil, fmt.Errorf("%w: account is disabled", apperr.ErrUnauthorized)
	}
	return claims, &user, nil
}

func (s *Service) Me(ctx context.Context, userID uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("user %d", userID)
		}
		return nil, err
	}
	return &user, nil
}

type ProfileUpdate struct {
	FullName *string
	Email    *string
	Phone    *string
	Address  *string
}

func (s *Service) UpdateProfile(ctx context.Context, userID uint, in ProfileUpdate) (*models.User, error) {
	var user models.User
	err := database.WithTx(ctx, s.db, func(tx *gorm.DB) error {
		if err := tx.First(&user, userID).Error; err != nil {
			return err
		}
		updates := map[string]any{}
		if in.FullName != nil {
			updates["full_name"] = strings.TrimSpace(*in.FullName)
		}
		if in.Email != nil {
			email := NormalizeEmail(*in.Email)
			if err := EnsureEmailFree(tx, email, userID); err != nil {
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
		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(&user).Updates(updates).Error; err != nil {
			return err
		}
		return tx.First(&user, userID).Error
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Service) ChangePassword(ctx context.Context, userID uint, current, next string) error {
	return database.WithTx(ctx, s.db, func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, userID).Error; err != nil {
			return err
		}
		if !CheckPassword(user.PasswordHash, current) {
			return apperr.Invalid("current password is incorrect")
		}
		hash, err := HashPassword(next)
		if err != nil {
			return err
		}
		return tx.Model(&user).Update("password_hash", hash).Error
	})
}
