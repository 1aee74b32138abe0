package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "scholarship-workers/internal/common/errors"
	"scholarship-workers/internal/common/logger"
	"scholarship-workers/internal/models"
	"scholarship-workers/internal/scholarship"
	"scholarship-workers/internal/store"
)

var now = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

// ==========================
// Discount arithmetic
// ==========================

func TestApplyDiscount(t *testing.T) {
	tests := []struct {
		name   string
		price  float64
		coupon models.Coupon
		want   float64
	}{
		{"percentage 20 on 500", 500, models.Coupon{DiscountType: models.DiscountPercentage, DiscountValue: 20}, 400.00},
		{"fixed 600 on 500 floors at zero", 500, models.Coupon{DiscountType: models.DiscountFixed, DiscountValue: 600}, 0},
		{"fixed 99.5 on 499", 499, models.Coupon{DiscountType: models.DiscountFixed, DiscountValue: 99.5}, 399.5},
		{"percentage rounds to paise", 333.33, models.Coupon{DiscountType: models.DiscountPercentage, DiscountValue: 15}, 283.33},
		{"percentage over 100 floors at zero", 250, models.Coupon{DiscountType: models.DiscountPercentage, DiscountValue: 120}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ApplyDiscount(tt.price, tt.coupon))
		})
	}
}

func TestValidateCoupon(t *testing.T) {
	base := models.Coupon{Code: "SAVE20", DiscountType: models.DiscountPercentage, DiscountValue: 20, ExpiryDate: now.Add(24 * time.Hour), MaxUses: 10}

	assert.NoError(t, ValidateCoupon(&base, now))

	expired := base
	expired.ExpiryDate = now.Add(-time.Minute)
	assert.True(t, apperrors.HasCode(ValidateCoupon(&expired, now), apperrors.ErrCodeCouponExpired))

	exhausted := base
	exhausted.UsedCount = 10
	assert.True(t, apperrors.HasCode(ValidateCoupon(&exhausted, now), apperrors.ErrCodeCouponExhausted))

	unlimited := base
	unlimited.MaxUses, unlimited.UsedCount = 0, 5000
	assert.NoError(t, ValidateCoupon(&unlimited, now))

	unknownType := base
	unknownType.DiscountType = "bogo"
	assert.True(t, apperrors.HasCode(ValidateCoupon(&unknownType, now), apperrors.ErrCodeCouponInvalid))
}

func TestSplitPayment(t *testing.T) {
	assert.Equal(t, Split{PayableNow: 100, PayableOnDelivery: 798}, SplitPayment(399, 2, true, 50))
	assert.Equal(t, Split{PayableNow: 798}, SplitPayment(399, 2, false, 50))
	assert.Equal(t, Split{PayableNow: 0, PayableOnDelivery: 0}, SplitPayment(0, 1, true, 0))
}

// ==========================
// Service
// ==========================

type fixture struct {
	mem     *store.MemoryStore
	service *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	mem := store.NewMemoryStore()
	onlineFee := 30.0

	require.NoError(t, mem.Set(ctx, models.CollectionBooks, "book-1", models.CatalogItem{Title: "NCERT Physics", Price: 500, Physical: true}))
	require.NoError(t, mem.Set(ctx, models.CollectionCourses, "course-1", models.CatalogItem{Title: "JEE Crash Course", Price: 2999}))
	require.NoError(t, mem.Set(ctx, models.CollectionSettings, models.PaymentSettingsID, models.PaymentSettings{OnlineScholarshipFee: &onlineFee}))
	require.NoError(t, mem.Set(ctx, models.CollectionCoupons, "c-save20", models.Coupon{
		Code: "SAVE20", DiscountType: models.DiscountPercentage, DiscountValue: 20, ExpiryDate: now.Add(48 * time.Hour), UsedCount: 3, MaxUses: 100,
	}))
	require.NoError(t, mem.Set(ctx, models.CollectionCoupons, "c-flat600", models.Coupon{
		Code: "Flat600", DiscountType: models.DiscountFixed, DiscountValue: 600, ExpiryDate: now.Add(48 * time.Hour),
	}))
	require.NoError(t, mem.Set(ctx, models.CollectionCoupons, "c-old", models.Coupon{
		Code: "OLD10", DiscountType: models.DiscountPercentage, DiscountValue: 10, ExpiryDate: now.Add(-48 * time.Hour),
	}))
	require.NoError(t, mem.Set(ctx, models.CollectionCoupons, "c-used", models.Coupon{
		Code: "ONCE", DiscountType: models.DiscountFixed, DiscountValue: 50, ExpiryDate: now.Add(48 * time.Hour), UsedCount: 1, MaxUses: 1,
	}))

	s := NewService(mem, scholarship.NewStoreSettings(mem), Options{VerificationCharge: 49}, logger.NewTestLogger(t))
	s.now = func() time.Time { return now }
	return &fixture{mem: mem, service: s}
}

func TestQuote_PercentageCoupon(t *testing.T) {
	f := newFixture(t)

	q, err := f.service.Quote(context.Background(), QuoteRequest{ItemType: models.ItemBook, ItemID: "book-1", CouponCode: " save20 "})

	require.NoError(t, err)
	assert.True(t, q.CouponApplied)
	assert.Equal(t, "SAVE20", q.CouponCode)
	assert.Equal(t, 500.0, q.UnitPrice)
	assert.Equal(t, 400.0, q.FinalPrice)
	assert.Equal(t, 100.0, q.Discount)
	assert.Equal(t, 49.0, q.PayableNow)
	assert.Equal(t, 400.0, q.PayableOnDelivery)
	assert.Equal(t, "INR", q.Currency)
}

func TestQuote_FixedCouponFloorsAtZeroCaseInsensitive(t *testing.T) {
	f := newFixture(t)

	q, err := f.service.Quote(context.Background(), QuoteRequest{ItemType: models.ItemBook, ItemID: "book-1", CouponCode: "flat600"})

	require.NoError(t, err)
	assert.True(t, q.CouponApplied)
	assert.Equal(t, 0.0, q.FinalPrice)
}

func TestQuote_RejectedCouponRevertsPrice(t *testing.T) {
	tests := []struct {
		code string
		want apperrors.ErrorCode
	}{
		{"OLD10", apperrors.ErrCodeCouponExpired},
		{"ONCE", apperrors.ErrCodeCouponExhausted},
		{"NOPE", apperrors.ErrCodeCouponInvalid},
	}
	f := newFixture(t)
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			q, err := f.service.Quote(context.Background(), QuoteRequest{ItemType: models.ItemCourse, ItemID: "course-1", CouponCode: tt.code})

			require.NoError(t, err)
			assert.False(t, q.CouponApplied)
			assert.Equal(t, string(tt.want), q.CouponError)
			assert.Equal(t, 2999.0, q.FinalPrice)
			assert.Equal(t, 2999.0, q.PayableNow)
			assert.Zero(t, q.PayableOnDelivery)
		})
	}
}

func TestQuote_ScholarshipFee(t *testing.T) {
	f := newFixture(t)

	q, err := f.service.Quote(context.Background(), QuoteRequest{ItemType: models.ItemScholarship, ItemID: "online", CouponCode: "SAVE20"})
	require.NoError(t, err)
	assert.Equal(t, 30.0, q.UnitPrice)
	assert.Equal(t, 24.0, q.FinalPrice)

	_, err = f.service.Quote(context.Background(), QuoteRequest{ItemType: models.ItemScholarship, ItemID: "offline"})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeFeeNotConfigured))
}

func TestQuote_BadRequests(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.Quote(ctx, QuoteRequest{ItemType: models.ItemBook, ItemID: "missing"})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeItemNotFound))

	_, err = f.service.Quote(ctx, QuoteRequest{ItemType: "magazine", ItemID: "x"})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidInput))

	_, err = f.service.Quote(ctx, QuoteRequest{ItemType: models.ItemBook, ItemID: "book-1", Quantity: -2})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidInput))
}

func TestPlaceOrder_PersistsThenRedeemsCoupon(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order, err := f.service.PlaceOrder(ctx, &models.Principal{ID: "u1"}, OrderRequest{
		QuoteRequest:    QuoteRequest{ItemType: models.ItemBook, ItemID: "book-1", Quantity: 2, CouponCode: "save20"},
		ShippingAddress: "12 MG Road, Pune",
		PaymentRef:      "UPI1234567",
	})

	require.NoError(t, err)
	assert.NotEmpty(t, order.ID)
	assert.Equal(t, "c-save20", order.CouponID)
	assert.Equal(t, 400.0, order.FinalPrice)
	assert.Equal(t, 98.0, order.PayableNow)
	assert.Equal(t, 800.0, order.PayableOnDelivery)
	assert.Equal(t, models.OrderStatusPending, order.Status)

	var stored models.Order
	require.NoError(t, store.GetAs(ctx, f.mem, models.CollectionOrders, order.ID, &stored))
	assert.Equal(t, "u1", stored.UserID)

	var coupon models.Coupon
	require.NoError(t, store.GetAs(ctx, f.mem, models.CollectionCoupons, "c-save20", &coupon))
	assert.Equal(t, 4, coupon.UsedCount)
}

func TestPlaceOrder_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.PlaceOrder(ctx, nil, OrderRequest{QuoteRequest: QuoteRequest{ItemType: models.ItemCourse, ItemID: "course-1"}})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeAuthentication))

	_, err = f.service.PlaceOrder(ctx, &models.Principal{ID: "u1"}, OrderRequest{QuoteRequest: QuoteRequest{ItemType: models.ItemCourse, ItemID: "course-1", CouponCode: "ONCE"}})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeCouponExhausted))

	_, err = f.service.PlaceOrder(ctx, &models.Principal{ID: "u1"}, OrderRequest{QuoteRequest: QuoteRequest{ItemType: models.ItemBook, ItemID: "book-1"}})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidInput))

	orders, err := f.mem.Query(ctx, models.CollectionOrders)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

type failingIncrements struct {
	store.DocumentStore
}

func (failingIncrements) Increment(context.Context, string, string, string, int64) (int64, error) {
	return 0, errors.New("write conflict")
}

func TestPlaceOrder_CouponCountFailureKeepsOrder(t *testing.T) {
	f := newFixture(t)
	f.service.docs = failingIncrements{DocumentStore: f.mem}

	order, err := f.service.PlaceOrder(context.Background(), &models.Principal{ID: "u1"}, OrderRequest{
		QuoteRequest: QuoteRequest{ItemType: models.ItemCourse, ItemID: "course-1", CouponCode: "SAVE20"},
	})

	require.NoError(t, err)
	assert.Equal(t, 2399.2, order.FinalPrice)
}

func TestPlaceOrder_ConcurrentRedemptionsAreAllCounted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.service.PlaceOrder(ctx, &models.Principal{ID: "u1"}, OrderRequest{
				QuoteRequest: QuoteRequest{ItemType: models.ItemCourse, ItemID: "course-1", CouponCode: "SAVE20"},
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	var coupon models.Coupon
	require.NoError(t, store.GetAs(ctx, f.mem, models.CollectionCoupons, "c-save20", &coupon))
	assert.Equal(t, 13, coupon.UsedCount)
}
