package promotion

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"phonestore-backend/internal/apperr"
	"phonestore-backend/internal/database"
	"phonestore-backend/internal/httpx"
	"phonestore-backend/internal/models"
	"phonestore-backend/internal/testutil"
)

func ptr[T any](v T) *T { return &v }

var today = time.Date(2024, 6, 15, 9, 30, 0, 0, time.UTC)

func date(s string) *time.Time {
	t, err := httpx.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return &t
}

func newService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db := testutil.NewDB(t)
	svc := NewService(db, zap.NewNop())
	svc.Now = func() time.Time { return today }
	return svc, db
}

func percentInput(code string, value int64) Input {
	return Input{
		Code:          ptr(code),
		Name:          ptr("Summer sale"),
		DiscountType:  ptr(models.DiscountPercent),
		DiscountValue: ptr(value),
		StartDate:     date("2024-06-01"),
		EndDate:       date("2024-06-30"),
	}
}

func TestDiscountMath(t *testing.T) {
	cases := []struct {
		name     string
		promo    models.Promotion
		eligible int64
		want     int64
	}{
		{"percent", models.Promotion{DiscountType: models.DiscountPercent, DiscountValue: 10}, 1_000_000, 100_000},
		{"percent rounds half up", models.Promotion{DiscountType: models.DiscountPercent, DiscountValue: 5}, 10, 1},
		{"percent rounds down below half", models.Promotion{DiscountType: models.DiscountPercent, DiscountValue: 3}, 10, 0},
		{"percent capped", models.Promotion{DiscountType: models.DiscountPercent, DiscountValue: 50, MaxDiscount: 200_000}, 1_000_000, 200_000},
		{"fixed", models.Promotion{DiscountType: models.DiscountFixed, DiscountValue: 300_000}, 1_000_000, 300_000},
		{"fixed exceeds eligible", models.Promotion{DiscountType: models.DiscountFixed, DiscountValue: 300_000}, 120_000, 120_000},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, discount(&tc.promo, tc.eligible))
		})
	}
}

func TestEvaluateValidity(t *testing.T) {
	base := models.Promotion{
		Code: "JUNE", IsActive: true,
		DiscountType: models.DiscountFixed, DiscountValue: 100,
		StartDate: *date("2024-06-15"), EndDate: *date("2024-06-15"),
	}
	lines := []Line{{ProductID: 1, Quantity: 2, UnitPrice: 500}}

	q, err := Evaluate(&base, lines, today)
	require.NoError(t, err, "start and end dates are inclusive")
	assert.EqualValues(t, 1000, q.Subtotal)
	assert.EqualValues(t, 100, q.Discount)

	inactive := base
	inactive.IsActive = false
	_, err = Evaluate(&inactive, lines, today)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = Evaluate(&base, lines, today.AddDate(0, 0, 1))
	assert.ErrorContains(t, err, "expired")
	_, err = Evaluate(&base, lines, today.AddDate(0, 0, -1))
	assert.ErrorContains(t, err, "starts on")

	used := base
	used.UsageLimit, used.UsedCount = 3, 3
	_, err = Evaluate(&used, lines, today)
	assert.ErrorContains(t, err, "usage limit")

	minimum := base
	minimum.MinOrderAmount = 5000
	_, err = Evaluate(&minimum, lines, today)
	assert.ErrorContains(t, err, "minimum")
}

func TestEvaluateEligibleProducts(t *testing.T) {
	p := models.Promotion{
		Code: "PHONES", IsActive: true,
		DiscountType: models.DiscountPercent, DiscountValue: 10,
		StartDate: *date("2024-06-01"), EndDate: *date("2024-06-30"),
		Products: []models.Product{{ID: 7}},
	}
	q, err := Evaluate(&p, []Line{
		{ProductID: 7, Quantity: 1, UnitPrice: 1000},
		{ProductID: 8, Quantity: 3, UnitPrice: 500},
	}, today)
	require.NoError(t, err)
	assert.EqualValues(t, 2500, q.Subtotal)
	assert.EqualValues(t, 1000, q.EligibleSubtotal)
	assert.EqualValues(t, 100, q.Discount)

	_, err = Evaluate(&p, []Line{{ProductID: 8, Quantity: 1, UnitPrice: 500}}, today)
	assert.ErrorContains(t, err, "does not apply")
}

func TestCreateRules(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	p, err := svc.Create(ctx, percentInput(" summer10 ", 10))
	require.NoError(t, err)
	assert.Equal(t, "SUMMER10", p.Code)
	assert.True(t, p.IsActive)

	_, err = svc.Create(ctx, percentInput("Summer10", 10))
	assert.ErrorIs(t, err, apperr.ErrConflict)

	_, err = svc.Create(ctx, percentInput("TOOBIG", 101))
	assert.ErrorIs(t, err, apperr.ErrValidation)

	backwards := percentInput("BACKWARDS", 10)
	backwards.StartDate, backwards.EndDate = date("2024-07-01"), date("2024-06-01")
	_, err = svc.Create(ctx, backwards)
	var ve *apperr.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields, "end_date")

	_, err = svc.Delete(ctx, p.ID)
	require.NoError(t, err)
	_, err = svc.Create(ctx, percentInput("SUMMER10", 15))
	assert.NoError(t, err, "a deleted promotion frees its code")
}

func TestUpdateProductSet(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()
	cat := testutil.CreateCatalog(t, db, 1000)

	in := percentInput("ONLYONE", 10)
	in.ProductIDs = &[]uint{cat.Product.ID}
	p, err := svc.Create(ctx, in)
	require.NoError(t, err)
	require.Len(t, p.Products, 1)

	_, after, err := svc.Update(ctx, p.ID, Input{Name: ptr("Renamed")})
	require.NoError(t, err)
	assert.Len(t, after.Products, 1, "omitted product_ids keeps the set")
	assert.Equal(t, "Renamed", after.Name)

	_, after, err = svc.Update(ctx, p.ID, Input{ProductIDs: &[]uint{}})
	require.NoError(t, err)
	assert.Empty(t, after.Products)

	_, _, err = svc.Update(ctx, p.ID, Input{ProductIDs: &[]uint{9999}})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestListByStatus(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, percentInput("NOW", 10))
	require.NoError(t, err)
	later := percentInput("LATER", 10)
	later.StartDate, later.EndDate = date("2024-07-01"), date("2024-07-31")
	_, err = svc.Create(ctx, later)
	require.NoError(t, err)
	past := percentInput("PAST", 10)
	past.StartDate, past.EndDate = date("2024-05-01"), date("2024-05-31")
	_, err = svc.Create(ctx, past)
	require.NoError(t, err)

	page := httpx.ListFilters{Page: 1, Limit: 20}
	for status, code := range map[string]string{StatusActive: "NOW", StatusUpcoming: "LATER", StatusExpired: "PAST"} {
		list, total, err := svc.List(ctx, status, page)
		require.NoError(t, err)
		require.EqualValues(t, 1, total, status)
		assert.Equal(t, code, list[0].Code)
	}
	_, _, err = svc.List(ctx, "someday", page)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	active, err := svc.Active(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "NOW", active[0].Code)
}

func TestRedeemAndRelease(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()
	in := percentInput("ONCE", 10)
	in.UsageLimit = ptr(1)
	p, err := svc.Create(ctx, in)
	require.NoError(t, err)
	lines := []Line{{ProductID: 1, Quantity: 1, UnitPrice: 1000}}

	err = database.WithTx(ctx, db, func(tx *gorm.DB) error {
		q, err := Redeem(tx, "once", lines, today)
		if err != nil {
			return err
		}
		assert.EqualValues(t, 100, q.Discount)
		return nil
	})
	require.NoError(t, err)

	err = database.WithTx(ctx, db, func(tx *gorm.DB) error {
		_, err := Redeem(tx, "ONCE", lines, today)
		return err
	})
	assert.ErrorContains(t, err, "usage limit")

	require.NoError(t, database.WithTx(ctx, db, func(tx *gorm.DB) error { return Release(tx, p.ID) }))
	got, err := svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Zero(t, got.UsedCount)

	require.NoError(t, database.WithTx(ctx, db, func(tx *gorm.DB) error { return Release(tx, p.ID) }))
	got, err = svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Zero(t, got.UsedCount, "used_count never drops below zero")
}

func TestPreviewUsesCart(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()
	cat := testutil.CreateCatalog(t, db, 2_000_000)
	user := testutil.CreateUser(t, db, "buyer", models.RoleCustomer)
	require.NoError(t, db.Create(&models.CartItem{UserID: user.ID, ProductID: cat.Product.ID, Quantity: 2}).Error)
	_, err := svc.Create(ctx, percentInput("TEN", 10))
	require.NoError(t, err)

	lines, err := svc.PriceLines(ctx, user.ID, nil)
	require.NoError(t, err)
	q, err := svc.Preview(ctx, "ten", lines)
	require.NoError(t, err)
	assert.EqualValues(t, 4_000_000, q.Subtotal)
	assert.EqualValues(t, 400_000, q.Discount)

	_, err = svc.Preview(ctx, "NOPE", lines)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = svc.PriceLines(ctx, 999, nil)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestDeletedProductsKeepPromotionRestricted(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()
	cat := testutil.CreateCatalog(t, db, 2_000_000)
	other := models.Product{ModelID: cat.Model.ID, Name: "iPhone 15 256GB Blue", Price: 2_500_000, WarrantyMonths: 12, IsActive: true}
	require.NoError(t, db.Create(&other).Error)

	in := percentInput("ONLYA", 10)
	in.ProductIDs = &[]uint{cat.Product.ID}
	_, err := svc.Create(ctx, in)
	require.NoError(t, err)

	lines := []Line{{ProductID: other.ID, Quantity: 1, UnitPrice: other.Price}}
	_, err = svc.Preview(ctx, "ONLYA", lines)
	require.ErrorContains(t, err, "does not apply to any item")

	require.NoError(t, db.Delete(&models.Product{}, cat.Product.ID).Error)

	_, err = svc.Preview(ctx, "ONLYA", lines)
	assert.ErrorContains(t, err, "does not apply to any item")

	err = database.WithTx(ctx, db, func(tx *gorm.DB) error {
		_, err := Redeem(tx, "ONLYA", lines, today)
		return err
	})
	assert.ErrorContains(t, err, "does not apply to any item")
}
