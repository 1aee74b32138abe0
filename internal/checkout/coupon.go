// Package checkout prices books, courses and scholarship fees, applies
// coupons and records orders.
package checkout

import (
	"context"
	"math"
	"strings"
	"time"

	apperrors "scholarship-workers/internal/common/errors"
	"scholarship-workers/internal/models"
	"scholarship-workers/internal/store"
)

// NormalizeCode canonicalises a coupon code for lookup.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// FindCoupon looks a coupon up by code, ignoring case.
func FindCoupon(ctx context.Context, docs store.DocumentStore, code string) (*models.Coupon, error) {
	code = NormalizeCode(code)
	if code == "" {
		return nil, apperrors.NewCouponInvalidError(code)
	}

	found, err := docs.Query(ctx, models.CollectionCoupons, store.Where("code", code))
	if err != nil {
		return nil, apperrors.NewStoreError("coupon_lookup", err)
	}
	if len(found) == 0 {
		// Older coupons were stored with the code as typed by the admin.
		all, err := docs.Query(ctx, models.CollectionCoupons)
		if err != nil {
			return nil, apperrors.NewStoreError("coupon_lookup", err)
		}
		for _, doc := range all {
			var c models.Coupon
			if doc.Decode(&c) == nil && strings.EqualFold(strings.TrimSpace(c.Code), code) {
				found = append(found, doc)
				break
			}
		}
	}
	if len(found) == 0 {
		return nil, apperrors.NewCouponInvalidError(code)
	}

	var coupon models.Coupon
	if err := found[0].Decode(&coupon); err != nil {
		return nil, apperrors.NewCouponInvalidError(code)
	}
	coupon.ID = found[0].ID
	return &coupon, nil
}

// ValidateCoupon rejects expired and used-up coupons. MaxUses 0 means no cap
// and a zero ExpiryDate never expires.
func ValidateCoupon(c *models.Coupon, now time.Time) error {
	if !c.ExpiryDate.IsZero() && now.After(c.ExpiryDate) {
		return apperrors.NewCouponExpiredError(c.Code)
	}
	if c.MaxUses > 0 && c.UsedCount >= c.MaxUses {
		return apperrors.NewCouponExhaustedError(c.Code)
	}
	switch c.DiscountType {
	case models.DiscountPercentage, models.DiscountFixed:
	default:
		return apperrors.NewCouponInvalidError(c.Code)
	}
	return nil
}

// ApplyDiscount returns the discounted price floored at zero and rounded to
// two decimals.
func ApplyDiscount(price float64, c models.Coupon) float64 {
	var out float64
	switch c.DiscountType {
	case models.DiscountPercentage:
		out = price * (1 - c.DiscountValue/100)
	case models.DiscountFixed:
		out = price - c.DiscountValue
	default:
		out = price
	}
	if out < 0 {
		out = 0
	}
	return Round2(out)
}

func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
