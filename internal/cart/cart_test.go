package cart

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"phonestore-backend/internal/apperr"
	"phonestore-backend/internal/models"
	"phonestore-backend/internal/testutil"
)

func TestCartLifecycle(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewService(db, zap.NewNop())
	ctx := context.Background()
	cat := testutil.CreateCatalog(t, db, 1_500_000)
	testutil.AddStock(t, db, cat.Product.ID, 100000000000000, 3)
	user := testutil.CreateUser(t, db, "buyer", models.RoleCustomer)

	v, err := svc.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, v.Items)

	_, err = svc.Add(ctx, user.ID, cat.Product.ID, 1)
	require.NoError(t, err)
	v, err = svc.Add(ctx, user.ID, cat.Product.ID, 1)
	require.NoError(t, err)
	require.Len(t, v.Items, 1)
	line := v.Items[0]
	assert.Equal(t, 2, line.Quantity)
	assert.EqualValues(t, 3_000_000, line.LineTotal)
	assert.EqualValues(t, 3, line.Stock)
	assert.True(t, line.IsActive)
	assert.Equal(t, "iPhone 15 128GB Black", line.ProductName)
	assert.EqualValues(t, 3_000_000, v.Subtotal)

	_, err = svc.Add(ctx, user.ID, cat.Product.ID, 2)
	assert.ErrorIs(t, err, apperr.ErrConflict, "4 exceeds the 3 units in stock")

	v, err = svc.SetQuantity(ctx, user.ID, cat.Product.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, v.ItemCount)

	v, err = svc.SetQuantity(ctx, user.ID, cat.Product.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, v.Items)

	_, err = svc.Remove(ctx, user.ID, cat.Product.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCartQuantityBounds(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewService(db, zap.NewNop())
	ctx := context.Background()
	cat := testutil.CreateCatalog(t, db, 1000)
	testutil.AddStock(t, db, cat.Product.ID, 100000000000000, 12)
	user := testutil.CreateUser(t, db, "buyer", models.RoleCustomer)

	_, err := svc.Add(ctx, user.ID, cat.Product.ID, 11)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = svc.Add(ctx, user.ID, cat.Product.ID, 10)
	require.NoError(t, err)
	_, err = svc.Add(ctx, user.ID, cat.Product.ID, 1)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.Add(ctx, user.ID, 9999, 1)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	require.NoError(t, db.Model(&cat.Product).Update("is_active", false).Error)
	_, err = svc.SetQuantity(ctx, user.ID, cat.Product.ID, 2)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	v, err := svc.Get(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, v.Items, 1)
	assert.False(t, v.Items[0].IsActive)

	require.NoError(t, svc.Clear(ctx, user.ID))
	v, err = svc.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, v.Items)
}

func TestCartRejectsHiddenProducts(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewService(db, zap.NewNop())
	ctx := context.Background()
	cat := testutil.CreateCatalog(t, db, 1000)
	testutil.AddStock(t, db, cat.Product.ID, 100000000000100, 2)
	user := testutil.CreateUser(t, db, "buyer", models.RoleCustomer)

	require.NoError(t, db.Model(&cat.Model).Update("is_active", false).Error)
	_, err := svc.Add(ctx, user.ID, cat.Product.ID, 1)
	assert.ErrorIs(t, err, apperr.ErrNotFound, "inactive model")

	require.NoError(t, db.Model(&cat.Model).Update("is_active", true).Error)
	require.NoError(t, db.Delete(&cat.Brand).Error)
	_, err = svc.Add(ctx, user.ID, cat.Product.ID, 1)
	assert.ErrorIs(t, err, apperr.ErrNotFound, "deleted brand")
}
