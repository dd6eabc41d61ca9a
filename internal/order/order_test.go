package order

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"phonestore-backend/internal/apperr"
	"phonestore-backend/internal/auth"
	"phonestore-backend/internal/httpx"
	"phonestore-backend/internal/metrics"
	"phonestore-backend/internal/models"
	"phonestore-backend/internal/promotion"
	"phonestore-backend/internal/testutil"
)

var now = time.Date(2024, 6, 15, 14, 0, 0, 0, time.UTC)

type fixture struct {
	svc     *Service
	db      *gorm.DB
	metrics *metrics.Metrics
	product models.Product
	buyer   *models.User
	units   []models.ProductIdentity
}

func setup(t *testing.T, stock int) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	m := metrics.New()
	svc := NewService(db, m, 12, zap.NewNop())
	svc.Now = func() time.Time { return now }
	cat := testutil.CreateCatalog(t, db, 1_000_000)
	buyer := testutil.CreateUser(t, db, "buyer", models.RoleCustomer)
	require.NoError(t, db.Model(buyer).Updates(map[string]any{"phone": "0901234567", "address": "12 Le Loi, District 1"}).Error)
	return &fixture{
		svc:     svc,
		db:      db,
		metrics: m,
		product: cat.Product,
		buyer:   buyer,
		units:   testutil.AddStock(t, db, cat.Product.ID, 350000000000000, stock),
	}
}

func (f *fixture) customer() auth.Actor {
	return auth.Actor{ID: f.buyer.ID, Username: f.buyer.Username, Role: models.RoleCustomer}
}

func (f *fixture) checkout(t *testing.T, qty int, code string) *models.Order {
	t.Helper()
	o, err := f.svc.Checkout(context.Background(), f.buyer.ID, CheckoutInput{
		Items:         []promotion.ItemInput{{ProductID: f.product.ID, Quantity: qty}},
		PromotionCode: code,
	})
	require.NoError(t, err)
	return o
}

func (f *fixture) countStatus(t *testing.T, status models.IdentityStatus) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&models.ProductIdentity{}).Where("status = ?", status).Count(&n).Error)
	return n
}

func (f *fixture) promo(t *testing.T, code string, limit int) *models.Promotion {
	t.Helper()
	p := &models.Promotion{
		Code: code, Name: code, IsActive: true,
		DiscountType: models.DiscountPercent, DiscountValue: 10, UsageLimit: limit,
		StartDate: promotion.Day(now), EndDate: promotion.Day(now).AddDate(0, 0, 7),
	}
	require.NoError(t, f.db.Create(p).Error)
	return p
}

func ordersPlaced(t *testing.T, m *metrics.Metrics) float64 {
	t.Helper()
	families, err := m.Registerer().(prometheus.Gatherer).Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == "orders_placed_total" {
			return mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	t.Fatal("orders_placed_total not registered")
	return 0
}

func TestTransitions(t *testing.T) {
	assert.True(t, CanTransition(models.OrderPending, models.OrderConfirmed))
	assert.True(t, CanTransition(models.OrderConfirmed, models.OrderCancelled))
	assert.True(t, CanTransition(models.OrderShipping, models.OrderDelivered))
	assert.False(t, CanTransition(models.OrderShipping, models.OrderCancelled))
	assert.False(t, CanTransition(models.OrderPending, models.OrderDelivered))
	assert.False(t, CanTransition(models.OrderDelivered, models.OrderCancelled))
}

func TestCheckoutAllocatesUnits(t *testing.T) {
	f := setup(t, 3)
	o := f.checkout(t, 2, "")

	assert.Equal(t, models.OrderPending, o.Status)
	assert.Equal(t, "OD-20240615-", o.Code[:12])
	assert.EqualValues(t, 2_000_000, o.Subtotal)
	assert.EqualValues(t, 2_000_000, o.Total)
	assert.Equal(t, models.PaymentCOD, o.PaymentMethod)
	assert.Equal(t, "Buyer", o.ShippingName, "shipping defaults to the profile")
	assert.Equal(t, "12 Le Loi, District 1", o.ShippingAddress)
	require.Len(t, o.Items, 1)
	assert.Equal(t, "iPhone 15 128GB Black", o.Items[0].ProductName)
	require.Len(t, o.Items[0].Identities, 2)
	assert.Equal(t, f.units[0].IMEI, o.Items[0].Identities[0].IMEI)

	assert.EqualValues(t, 2, f.countStatus(t, models.IdentitySold))
	assert.EqualValues(t, 1, f.countStatus(t, models.IdentityInStock))
	assert.Equal(t, 1.0, ordersPlaced(t, f.metrics))
}

func TestCheckoutInsufficientStock(t *testing.T) {
	f := setup(t, 1)
	_, err := f.svc.Checkout(context.Background(), f.buyer.ID, CheckoutInput{
		Items: []promotion.ItemInput{{ProductID: f.product.ID, Quantity: 1}, {ProductID: f.product.ID, Quantity: 1}},
	})
	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.EqualValues(t, 1, f.countStatus(t, models.IdentityInStock), "nothing is allocated on failure")

	var n int64
	f.db.Model(&models.Order{}).Count(&n)
	assert.Zero(t, n)
}

func TestCheckoutFromCartClearsCart(t *testing.T) {
	f := setup(t, 2)
	ctx := context.Background()
	require.NoError(t, f.db.Create(&models.CartItem{UserID: f.buyer.ID, ProductID: f.product.ID, Quantity: 2}).Error)

	o, err := f.svc.Checkout(ctx, f.buyer.ID, CheckoutInput{ShippingPhone: "0911111111"})
	require.NoError(t, err)
	assert.Equal(t, 2, o.Items[0].Quantity)
	assert.Equal(t, "0911111111", o.ShippingPhone)

	var n int64
	f.db.Model(&models.CartItem{}).Where("user_id = ?", f.buyer.ID).Count(&n)
	assert.Zero(t, n)

	_, err = f.svc.Checkout(ctx, f.buyer.ID, CheckoutInput{})
	assert.ErrorIs(t, err, apperr.ErrValidation, "empty cart")
}

func TestCheckoutWithPromotion(t *testing.T) {
	f := setup(t, 3)
	p := f.promo(t, "TEN", 1)

	o := f.checkout(t, 2, "ten")
	assert.EqualValues(t, 200_000, o.DiscountAmount)
	assert.EqualValues(t, 1_800_000, o.Total)
	assert.Equal(t, "TEN", o.PromotionCode)

	_, err := f.svc.Checkout(context.Background(), f.buyer.ID, CheckoutInput{
		Items:         []promotion.ItemInput{{ProductID: f.product.ID, Quantity: 1}},
		PromotionCode: "TEN",
	})
	assert.ErrorContains(t, err, "usage limit")
	assert.EqualValues(t, 1, f.countStatus(t, models.IdentityInStock), "the failed checkout rolled back")

	_, _, err = f.svc.UpdateStatus(context.Background(), o.ID, models.OrderCancelled, "out of budget")
	require.NoError(t, err)
	var got models.Promotion
	require.NoError(t, f.db.First(&got, p.ID).Error)
	assert.Zero(t, got.UsedCount)
}

func TestCancelReleasesUnits(t *testing.T) {
	f := setup(t, 2)
	ctx := context.Background()
	o := f.checkout(t, 2, "")

	cancelled, err := f.svc.Cancel(ctx, f.buyer.ID, o.ID, "")
	require.NoError(t, err)
	assert.Equal(t, models.OrderCancelled, cancelled.Status)
	assert.Equal(t, "cancelled by customer", cancelled.CancelReason)
	require.NotNil(t, cancelled.CancelledAt)
	assert.EqualValues(t, 2, f.countStatus(t, models.IdentityInStock))

	var unit models.ProductIdentity
	require.NoError(t, f.db.First(&unit, f.units[0].ID).Error)
	assert.Nil(t, unit.OrderItemID)

	_, err = f.svc.Cancel(ctx, f.buyer.ID, o.ID, "")
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
}

func TestCustomerCannotCancelConfirmedOrder(t *testing.T) {
	f := setup(t, 1)
	ctx := context.Background()
	o := f.checkout(t, 1, "")
	_, _, err := f.svc.UpdateStatus(ctx, o.ID, models.OrderConfirmed, "")
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, f.buyer.ID, o.ID, "")
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	other := testutil.CreateUser(t, f.db, "other", models.RoleCustomer)
	_, err = f.svc.Cancel(ctx, other.ID, o.ID, "")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestDeliveryStartsWarranties(t *testing.T) {
	f := setup(t, 2)
	ctx := context.Background()
	require.NoError(t, f.db.Model(&f.product).Update("warranty_months", 24).Error)
	o := f.checkout(t, 2, "")

	for _, to := range []models.OrderStatus{models.OrderConfirmed, models.OrderShipping, models.OrderDelivered} {
		_, _, err := f.svc.UpdateStatus(ctx, o.ID, to, "")
		require.NoError(t, err, to)
	}
	var warranties []models.Warranty
	require.NoError(t, f.db.Order("id").Find(&warranties).Error)
	require.Len(t, warranties, 2)
	w := warranties[0]
	assert.Equal(t, models.WarrantyActive, w.Status)
	assert.Equal(t, f.buyer.ID, w.UserID)
	assert.Equal(t, "2024-06-15", w.StartDate.UTC().Format(httpx.DateLayout))
	assert.Equal(t, "2026-06-15", w.EndDate.UTC().Format(httpx.DateLayout))

	_, _, err := f.svc.UpdateStatus(ctx, o.ID, models.OrderCancelled, "")
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
}

func TestGetHidesOtherCustomersOrders(t *testing.T) {
	f := setup(t, 1)
	ctx := context.Background()
	o := f.checkout(t, 1, "")

	_, err := f.svc.Get(ctx, o.ID, f.customer())
	require.NoError(t, err)
	_, err = f.svc.Get(ctx, o.ID, auth.Actor{ID: 999, Role: models.RoleCustomer})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = f.svc.Get(ctx, o.ID, auth.Actor{ID: 999, Role: models.RoleStaff})
	assert.NoError(t, err)
}

func TestListAndExport(t *testing.T) {
	f := setup(t, 3)
	ctx := context.Background()
	a := f.checkout(t, 1, "")
	f.checkout(t, 2, "")
	_, _, err := f.svc.UpdateStatus(ctx, a.ID, models.OrderConfirmed, "")
	require.NoError(t, err)

	page := httpx.ListFilters{Page: 1, Limit: 20}
	list, total, err := f.svc.List(ctx, Filter{Status: models.OrderPending}, page)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Len(t, list[0].Items, 1)

	page.Search = a.Code
	_, total, err = f.svc.List(ctx, Filter{UserID: &f.buyer.ID}, page)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)

	buf, err := f.svc.Export(ctx, Filter{})
	require.NoError(t, err)
	wb, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	defer wb.Close()
	rows, err := wb.GetRows(exportSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Code", rows[0][0])
	assert.Equal(t, a.Code, rows[1][0])
	assert.Equal(t, "confirmed", rows[1][2])
}

func TestCheckoutRejectsProductsUnderHiddenModel(t *testing.T) {
	f := setup(t, 2)
	require.NoError(t, f.db.Model(&models.PhoneModel{}).Where("id = ?", f.product.ModelID).
		Update("is_active", false).Error)

	_, err := f.svc.Checkout(context.Background(), f.buyer.ID, CheckoutInput{
		Items: []promotion.ItemInput{{ProductID: f.product.ID, Quantity: 1}},
	})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.EqualValues(t, 2, f.countStatus(t, models.IdentityInStock))
}
