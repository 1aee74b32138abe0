package placeorder

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scholarship-workers/internal/checkout"
	apperrors "scholarship-workers/internal/common/errors"
	"scholarship-workers/internal/common/logger"
	"scholarship-workers/internal/models"
	"scholarship-workers/internal/scholarship"
	"scholarship-workers/internal/store"
)

// ==========================
// Test Helpers
// ==========================

func createTestHandler(t *testing.T) (*Handler, *store.MemoryStore) {
	t.Helper()
	ctx := context.Background()
	docs := store.NewMemoryStore()

	require.NoError(t, docs.Set(ctx, models.CollectionBooks, "book-1", models.CatalogItem{Title: "NCERT Physics", Price: 500, Physical: true}))
	require.NoError(t, docs.Set(ctx, models.CollectionCourses, "course-1", models.CatalogItem{Title: "JEE Crash Course", Price: 2999}))
	require.NoError(t, docs.Set(ctx, models.CollectionCoupons, "c-flat100", models.Coupon{
		Code: "FLAT100", DiscountType: models.DiscountFixed, DiscountValue: 100, ExpiryDate: time.Now().Add(48 * time.Hour), MaxUses: 5, UsedCount: 2,
	}))
	require.NoError(t, docs.Set(ctx, models.CollectionCoupons, "c-once", models.Coupon{
		Code: "ONCE", DiscountType: models.DiscountFixed, DiscountValue: 50, MaxUses: 1, UsedCount: 1,
	}))

	log := logger.NewTestLogger(t)
	service := checkout.NewService(docs, scholarship.NewStoreSettings(docs), checkout.Options{VerificationCharge: 49}, log)
	return NewHandler(LoadConfig(), service, log), docs
}

func order(itemType models.ItemType, itemID, coupon, address string) *Input {
	return &Input{
		Customer: models.Principal{ID: "user-1", DisplayName: "Asha Verma"},
		OrderRequest: checkout.OrderRequest{
			QuoteRequest:    checkout.QuoteRequest{ItemType: itemType, ItemID: itemID, CouponCode: coupon},
			ShippingAddress: address,
		},
	}
}

// ==========================
// Execute Tests
// ==========================

func TestHandler_PlacesOrderAndRedeemsCoupon(t *testing.T) {
	h, docs := createTestHandler(t)

	out, err := h.Execute(context.Background(), order(models.ItemCourse, "course-1", "flat100", ""))

	require.NoError(t, err)
	require.NotEmpty(t, out.OrderID)
	assert.Equal(t, models.OrderStatusPending, out.Status)
	assert.Equal(t, 2899.0, out.FinalPrice)
	assert.Equal(t, "FLAT100", out.CouponCode)

	var stored models.Order
	require.NoError(t, store.GetAs(context.Background(), docs, models.CollectionOrders, out.OrderID, &stored))
	assert.Equal(t, "user-1", stored.UserID)
	assert.Equal(t, "c-flat100", stored.CouponID)

	var coupon models.Coupon
	require.NoError(t, store.GetAs(context.Background(), docs, models.CollectionCoupons, "c-flat100", &coupon))
	assert.Equal(t, 3, coupon.UsedCount)
}

func TestHandler_PhysicalOrderSplitsPayment(t *testing.T) {
	h, _ := createTestHandler(t)

	out, err := h.Execute(context.Background(), order(models.ItemBook, "book-1", "", "12 MG Road, Pune"))

	require.NoError(t, err)
	assert.Equal(t, 49.0, out.PayableNow)
	assert.Equal(t, 500.0, out.PayableOnDelivery)
}

func TestHandler_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input *Input
		code  apperrors.ErrorCode
	}{
		{"nil input", nil, apperrors.ErrCodeInvalidInput},
		{"exhausted coupon", order(models.ItemCourse, "course-1", "ONCE", ""), apperrors.ErrCodeCouponExhausted},
		{"unknown coupon", order(models.ItemCourse, "course-1", "NOPE", ""), apperrors.ErrCodeCouponInvalid},
		{"physical without address", order(models.ItemBook, "book-1", "", ""), apperrors.ErrCodeInvalidInput},
		{"anonymous customer", &Input{OrderRequest: checkout.OrderRequest{
			QuoteRequest: checkout.QuoteRequest{ItemType: models.ItemCourse, ItemID: "course-1"},
		}}, apperrors.ErrCodeAuthentication},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, docs := createTestHandler(t)

			_, err := h.Execute(context.Background(), tt.input)

			require.Error(t, err)
			assert.True(t, apperrors.HasCode(err, tt.code), "got %v", err)
			orders, qerr := docs.Query(context.Background(), models.CollectionOrders)
			require.NoError(t, qerr)
			assert.Empty(t, orders)
		})
	}
}
