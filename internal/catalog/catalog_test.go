package catalog

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"phonestore-backend/internal/apperr"
	"phonestore-backend/internal/httpx"
	"phonestore-backend/internal/models"
	"phonestore-backend/internal/testutil"
)

func ptr[T any](v T) *T { return &v }

func newService(t *testing.T) *Service {
	t.Helper()
	return NewService(testutil.NewDB(t), NewImageStore(t.TempDir()), 12, zap.NewNop())
}

var firstPage = httpx.ListFilters{Page: 1, Limit: 20, SortDir: "asc"}

func TestBrandNameUniqueAmongLiveRows(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	b, err := svc.CreateBrand(ctx, BrandInput{Name: ptr("Samsung")})
	require.NoError(t, err)
	_, err = svc.CreateBrand(ctx, BrandInput{Name: ptr("samsung")})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	_, err = svc.DeleteBrand(ctx, b.ID)
	require.NoError(t, err)
	_, err = svc.CreateBrand(ctx, BrandInput{Name: ptr("Samsung")})
	assert.NoError(t, err, "a deleted brand frees its name")
}

func TestDeleteBrandWithActiveModels(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	b, err := svc.CreateBrand(ctx, BrandInput{Name: ptr("Xiaomi")})
	require.NoError(t, err)
	m, err := svc.CreateModel(ctx, ModelInput{BrandID: &b.ID, Name: ptr("Redmi Note 13")})
	require.NoError(t, err)
	assert.Equal(t, "Xiaomi", m.Brand.Name)

	_, err = svc.DeleteBrand(ctx, b.ID)
	assert.ErrorIs(t, err, apperr.ErrConflict)

	_, err = svc.DeleteModel(ctx, m.ID)
	require.NoError(t, err)
	deleted, err := svc.DeleteBrand(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "Xiaomi", deleted.Name)

	var row models.Brand
	require.NoError(t, svc.db.Unscoped().First(&row, b.ID).Error)
	assert.False(t, row.IsActive)
	assert.True(t, row.DeletedAt.Valid)

	_, err = svc.GetBrand(ctx, b.ID, false)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestModelRules(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	apple, err := svc.CreateBrand(ctx, BrandInput{Name: ptr("Apple")})
	require.NoError(t, err)
	oppo, err := svc.CreateBrand(ctx, BrandInput{Name: ptr("Oppo"), IsActive: ptr(false)})
	require.NoError(t, err)

	_, err = svc.CreateModel(ctx, ModelInput{BrandID: &oppo.ID, Name: ptr("Reno 11")})
	assert.ErrorIs(t, err, apperr.ErrValidation, "inactive brand")
	_, err = svc.CreateModel(ctx, ModelInput{BrandID: ptr(uint(99)), Name: ptr("X")})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = svc.CreateModel(ctx, ModelInput{BrandID: &apple.ID, Name: ptr("iPhone 15")})
	require.NoError(t, err)
	_, err = svc.CreateModel(ctx, ModelInput{BrandID: &apple.ID, Name: ptr("IPHONE 15")})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	list, total, err := svc.ListModels(ctx, ModelFilter{BrandID: &apple.ID, ActiveOnly: true}, firstPage)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "Apple", list[0].Brand.Name)
}

func TestProductListingAndStock(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	cat := testutil.CreateCatalog(t, svc.db, 20_000_000)

	cheap, err := svc.CreateProduct(ctx, ProductInput{
		ModelID: &cat.Model.ID, Name: ptr("iPhone 15 128GB Blue"), Price: ptr(int64(18_000_000)),
	})
	require.NoError(t, err)
	assert.Equal(t, 12, cheap.WarrantyMonths, "0 falls back to the default")
	assert.Equal(t, "Apple", cheap.BrandName)

	hidden, err := svc.CreateProduct(ctx, ProductInput{
		ModelID: &cat.Model.ID, Name: ptr("Hidden"), Price: ptr(int64(1)), IsActive: ptr(false),
	})
	require.NoError(t, err)

	testutil.AddStock(t, svc.db, cat.Product.ID, 350000000000001, 3)
	sold := testutil.AddStock(t, svc.db, cheap.ID, 350000000000101, 1)
	require.NoError(t, svc.db.Model(&sold[0]).Update("status", models.IdentitySold).Error)

	list, total, err := svc.ListProducts(ctx, ProductFilter{}, httpx.ListFilters{Page: 1, Limit: 10, SortBy: "price", SortDir: "asc"})
	require.NoError(t, err)
	require.Equal(t, int64(2), total)
	assert.Equal(t, cheap.ID, list[0].ID)
	assert.Equal(t, int64(0), list[0].Stock)
	assert.Equal(t, int64(3), list[1].Stock)

	list, _, err = svc.ListProducts(ctx, ProductFilter{InStock: ptr(true)}, firstPage)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, cat.Product.ID, list[0].ID)

	list, _, err = svc.ListProducts(ctx, ProductFilter{MinPrice: ptr(int64(19_000_000)), BrandID: &cat.Brand.ID}, firstPage)
	require.NoError(t, err)
	require.Len(t, list, 1)

	list, _, err = svc.ListProducts(ctx, ProductFilter{}, httpx.ListFilters{Page: 1, Limit: 10, Search: "blue"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, cheap.ID, list[0].ID)

	_, err = svc.GetProduct(ctx, hidden.ID, true)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	all, total, err := svc.ListProducts(ctx, ProductFilter{IncludeInactive: true}, firstPage)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, all, 3)
}

func TestProductValidation(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	cat := testutil.CreateCatalog(t, svc.db, 100)

	_, err := svc.CreateProduct(ctx, ProductInput{ModelID: &cat.Model.ID, Name: ptr("x"), Price: ptr(int64(0))})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = svc.CreateProduct(ctx, ProductInput{ModelID: &cat.Model.ID, Name: ptr("x"), Price: ptr(int64(5)), WarrantyMonths: ptr(61)})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	before, after, err := svc.UpdateProduct(ctx, cat.Product.ID, ProductInput{Price: ptr(int64(150)), WarrantyMonths: ptr(24)})
	require.NoError(t, err)
	assert.Equal(t, int64(100), before.Price)
	assert.Equal(t, int64(150), after.Price)
	assert.Equal(t, 24, after.WarrantyMonths)
}

func TestDeleteProductClearsCarts(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	cat := testutil.CreateCatalog(t, svc.db, 100)
	u := testutil.CreateUser(t, svc.db, "buyer", models.RoleCustomer)
	require.NoError(t, svc.db.Create(&models.CartItem{UserID: u.ID, ProductID: cat.Product.ID, Quantity: 1}).Error)

	_, err := svc.DeleteProduct(ctx, cat.Product.ID)
	require.NoError(t, err)

	var n int64
	svc.db.Model(&models.CartItem{}).Count(&n)
	assert.Zero(t, n)
	_, err = svc.GetProduct(ctx, cat.Product.ID, false)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestIdentityTransitions(t *testing.T) {
	assert.True(t, CanTransitionIdentity(models.IdentityInStock, models.IdentityDefective))
	assert.True(t, CanTransitionIdentity(models.IdentityReturned, models.IdentityInStock))
	assert.False(t, CanTransitionIdentity(models.IdentityInStock, models.IdentitySold))
	assert.False(t, CanTransitionIdentity(models.IdentitySold, models.IdentityInStock))

	svc := newService(t)
	ctx := context.Background()
	cat := testutil.CreateCatalog(t, svc.db, 100)
	ids := testutil.AddStock(t, svc.db, cat.Product.ID, 490154203237518, 1)

	before, after, err := svc.UpdateIdentityStatus(ctx, ids[0].ID, models.IdentityDefective)
	require.NoError(t, err)
	assert.Equal(t, models.IdentityInStock, before.Status)
	assert.Equal(t, models.IdentityDefective, after.Status)

	_, _, err = svc.UpdateIdentityStatus(ctx, ids[0].ID, models.IdentitySold)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	v, err := svc.GetIdentityByIMEI(ctx, "490154203237518")
	require.NoError(t, err)
	assert.Equal(t, cat.Product.Name, v.ProductName)
	assert.Equal(t, models.IdentityDefective, v.Status)
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00\x1f\x15\xc4\x89")

func fileHeader(t *testing.T, name string, content []byte) *multipart.FileHeader {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("image", name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest("POST", "/", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(10<<20))
	return req.MultipartForm.File["image"][0]
}

func TestImageUploadReplacesOldFile(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	cat := testutil.CreateCatalog(t, svc.db, 100)

	first, err := svc.SetProductImage(ctx, cat.Product.ID, fileHeader(t, "a.png", pngHeader))
	require.NoError(t, err)
	assert.Regexp(t, `^/images/product-\d+-[0-9a-f]{8}\.png$`, first.ImageURL)
	firstPath := filepath.Join(svc.images.Dir(), filepath.Base(first.ImageURL))
	assert.FileExists(t, firstPath)

	second, err := svc.SetProductImage(ctx, cat.Product.ID, fileHeader(t, "b.png", pngHeader))
	require.NoError(t, err)
	assert.NotEqual(t, first.ImageURL, second.ImageURL)
	_, statErr := os.Stat(firstPath)
	assert.True(t, os.IsNotExist(statErr))

	_, err = svc.SetProductImage(ctx, cat.Product.ID, fileHeader(t, "evil.png", []byte("#!/bin/sh\necho hi\n")))
	assert.ErrorIs(t, err, apperr.ErrValidation)
}
