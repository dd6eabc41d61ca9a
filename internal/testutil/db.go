// Package testutil provides database fixtures for package tests.
package testutil

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"phonestore-backend/internal/config"
	"phonestore-backend/internal/database"
	"phonestore-backend/internal/models"
)

const JWTSecret = "test-secret-test-secret-test-secret-0123"

// NewDB opens a private in-memory SQLite database named after the test and
// migrates every model.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_", "#", "_").Replace(t.Name())
	cfg := &config.Config{
		DBDriver:    "sqlite",
		DatabaseDSN: fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", name),
	}
	db, err := database.Open(cfg, nil)
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

// Config returns a configuration suitable for handler and service tests.
func Config() *config.Config {
	return &config.Config{
		AppEnv:                "test",
		DBDriver:              "sqlite",
		JWTSecret:             JWTSecret,
		JWTTTL:                time.Hour,
		ReturnWindowDays:      7,
		DefaultWarrantyMonths: 12,
		LoginRateLimit:        1000,
	}
}

// CreateUser inserts an active user whose password is "password123".
func CreateUser(t *testing.T, db *gorm.DB, username string, role models.UserRole) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)
	u := &models.User{
		Username:     username,
		Email:        username + "@example.com",
		FullName:     strings.ToUpper(username[:1]) + username[1:],
		PasswordHash: string(hash),
		Role:         role,
		IsActive:     true,
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

// Catalog is a brand, a model and one active product.
type Catalog struct {
	Brand   models.Brand
	Model   models.PhoneModel
	Product models.Product
}

func CreateCatalog(t *testing.T, db *gorm.DB, price int64) *Catalog {
	t.Helper()
	c := &Catalog{}
	c.Brand = models.Brand{Name: "Apple", IsActive: true}
	require.NoError(t, db.Create(&c.Brand).Error)
	c.Model = models.PhoneModel{BrandID: c.Brand.ID, Name: "iPhone 15", IsActive: true}
	require.NoError(t, db.Create(&c.Model).Error)
	c.Product = models.Product{
		ModelID:        c.Model.ID,
		Name:           "iPhone 15 128GB Black",
		Color:          "Black",
		Storage:        "128GB",
		Price:          price,
		WarrantyMonths: 12,
		IsActive:       true,
	}
	require.NoError(t, db.Create(&c.Product).Error)
	return c
}

// AddStock creates n in-stock identities for the product with sequential IMEIs
// starting at base.
func AddStock(t *testing.T, db *gorm.DB, productID uint, base int64, n int) []models.ProductIdentity {
	t.Helper()
	out := make([]models.ProductIdentity, 0, n)
	for i := 0; i < n; i++ {
		id := models.ProductIdentity{
			ProductID:   productID,
			IMEI:        fmt.Sprintf("%015d", base+int64(i)),
			ImportPrice: 1000,
			Status:      models.IdentityInStock,
		}
		require.NoError(t, db.Create(&id).Error)
		out = append(out, id)
	}
	return out
}
