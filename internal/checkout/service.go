package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "scholarship-workers/internal/common/errors"
	"scholarship-workers/internal/common/logger"
	"scholarship-workers/internal/common/metrics"
	"scholarship-workers/internal/models"
	"scholarship-workers/internal/scholarship"
	"scholarship-workers/internal/store"
)

type QuoteRequest struct {
	ItemType   models.ItemType `json:"itemType"`
	ItemID     string          `json:"itemId"`
	Quantity   int             `json:"quantity"`
	CouponCode string          `json:"couponCode,omitempty"`
}

type OrderRequest struct {
	QuoteRequest
	PaymentRef      string `json:"paymentRef,omitempty"`
	ShippingAddress string `json:"shippingAddress,omitempty"`
}

// Quote is a priced item. A coupon that fails validation leaves the price at
// the base amount and is reported through CouponError.
type Quote struct {
	ItemType           models.ItemType `json:"itemType"`
	ItemID             string          `json:"itemId"`
	Title              string          `json:"title"`
	Physical           bool            `json:"physical"`
	Quantity           int             `json:"quantity"`
	UnitPrice          float64         `json:"unitPrice"`
	FinalPrice         float64         `json:"finalPrice"`
	Discount           float64         `json:"discount"`
	CouponCode         string          `json:"couponCode,omitempty"`
	CouponApplied      bool            `json:"couponApplied"`
	CouponError        string          `json:"couponError,omitempty"`
	VerificationCharge float64         `json:"verificationCharge,omitempty"`
	Currency           string          `json:"currency"`
	Split

	coupon    *models.Coupon
	couponErr error
}

type Options struct {
	VerificationCharge float64
	Currency           string
}

type Service struct {
	docs     store.DocumentStore
	settings scholarship.SettingsProvider
	opts     Options
	logger   logger.Logger
	now      func() time.Time
}

func NewService(docs store.DocumentStore, settings scholarship.SettingsProvider, opts Options, log logger.Logger) *Service {
	if opts.Currency == "" {
		opts.Currency = "INR"
	}
	return &Service{
		docs:     docs,
		settings: settings,
		opts:     opts,
		logger:   log.WithFields(map[string]interface{}{"component": "checkout"}),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Quote prices a request without writing anything.
func (s *Service) Quote(ctx context.Context, req QuoteRequest) (*Quote, error) {
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if req.Quantity < 1 {
		return nil, apperrors.NewInvalidInputError("quantity must be at least 1")
	}

	item, err := s.item(ctx, req.ItemType, req.ItemID)
	if err != nil {
		return nil, err
	}

	q := &Quote{
		ItemType:   req.ItemType,
		ItemID:     req.ItemID,
		Title:      item.Title,
		Physical:   item.Physical,
		Quantity:   req.Quantity,
		UnitPrice:  Round2(item.Price),
		FinalPrice: Round2(item.Price),
		Currency:   s.opts.Currency,
	}
	if item.Physical {
		q.VerificationCharge = s.opts.VerificationCharge
	}

	if req.CouponCode != "" {
		q.CouponCode = NormalizeCode(req.CouponCode)
		coupon, err := FindCoupon(ctx, s.docs, req.CouponCode)
		if err == nil {
			err = ValidateCoupon(coupon, s.now())
		}
		switch {
		case err == nil:
			q.coupon = coupon
			q.CouponApplied = true
			q.FinalPrice = ApplyDiscount(item.Price, *coupon)
			q.Discount = Round2(q.UnitPrice - q.FinalPrice)
			metrics.CouponRedemptions.WithLabelValues("valid").Inc()
		case apperrors.HasCode(err, apperrors.ErrCodeQueryExecutionFailed):
			return nil, err
		default:
			q.couponErr = err
			if stdErr, ok := apperrors.As(err); ok {
				q.CouponError = string(stdErr.Code)
				metrics.CouponRedemptions.WithLabelValues(string(stdErr.Code)).Inc()
			}
		}
	}

	q.Split = SplitPayment(q.FinalPrice, q.Quantity, q.Physical, q.VerificationCharge)
	return q, nil
}

// PlaceOrder persists a pending order and then counts the coupon use. The
// count is a separate write, so a crash in between under-counts the coupon.
func (s *Service) PlaceOrder(ctx context.Context, principal *models.Principal, req OrderRequest) (*models.Order, error) {
	if principal == nil || principal.ID == "" {
		return nil, apperrors.NewAuthenticationError("no signed-in user")
	}
	q, err := s.Quote(ctx, req.QuoteRequest)
	if err != nil {
		return nil, err
	}
	if q.couponErr != nil {
		return nil, q.couponErr
	}
	if q.Physical && req.ShippingAddress == "" {
		return nil, apperrors.NewInvalidInputError("shippingAddress is required for physical items")
	}

	order := &models.Order{
		UserID:             principal.ID,
		ItemType:           q.ItemType,
		ItemID:             q.ItemID,
		Title:              q.Title,
		Quantity:           q.Quantity,
		UnitPrice:          q.UnitPrice,
		FinalPrice:         q.FinalPrice,
		CouponCode:         q.CouponCode,
		VerificationCharge: q.VerificationCharge,
		PayableNow:         q.PayableNow,
		PayableOnDelivery:  q.PayableOnDelivery,
		PaymentRef:         req.PaymentRef,
		ShippingAddress:    req.ShippingAddress,
		Status:             models.OrderStatusPending,
		CreatedAt:          s.now(),
	}
	if q.coupon != nil {
		order.CouponID = q.coupon.ID
	}

	id, err := s.docs.Add(ctx, models.CollectionOrders, order)
	if err != nil {
		s.logger.Error("Failed to persist order", map[string]interface{}{"userId": principal.ID, "error": err.Error()})
		return nil, apperrors.NewOrderFailedError(err)
	}
	order.ID = id
	metrics.OrdersPlaced.WithLabelValues(string(order.ItemType)).Inc()

	if q.coupon != nil {
		s.redeem(ctx, q.coupon, order.ID)
	}

	s.logger.Info("Order placed", map[string]interface{}{
		"orderId":    order.ID,
		"itemType":   order.ItemType,
		"finalPrice": order.FinalPrice,
		"couponCode": order.CouponCode,
	})
	return order, nil
}

// redeem counts one use of the coupon. The increment is atomic in the store,
// but it still follows the order write, so two orders racing for the last
// use can both succeed.
func (s *Service) redeem(ctx context.Context, coupon *models.Coupon, orderID string) {
	used, err := s.docs.Increment(ctx, models.CollectionCoupons, coupon.ID, "usedCount", 1)
	if err != nil {
		s.logger.Warn("Coupon usage not recorded", map[string]interface{}{
			"couponId": coupon.ID,
			"orderId":  orderID,
			"error":    err.Error(),
		})
		return
	}
	if coupon.MaxUses > 0 && used > int64(coupon.MaxUses) {
		s.logger.Warn("Coupon redeemed past its limit", map[string]interface{}{
			"couponId":  coupon.ID,
			"orderId":   orderID,
			"usedCount": used,
			"maxUses":   coupon.MaxUses,
		})
		metrics.CouponRedemptions.WithLabelValues("over_limit").Inc()
		return
	}
	metrics.CouponRedemptions.WithLabelValues("redeemed").Inc()
}

// item resolves the base price. Scholarship fees come from payment settings
// with the exam mode as the item id.
func (s *Service) item(ctx context.Context, itemType models.ItemType, itemID string) (*models.CatalogItem, error) {
	switch itemType {
	case models.ItemBook, models.ItemCourse:
		collection := models.CollectionBooks
		if itemType == models.ItemCourse {
			collection = models.CollectionCourses
		}
		var item models.CatalogItem
		err := store.GetAs(ctx, s.docs, collection, itemID, &item)
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.NewItemNotFoundError(string(itemType), itemID)
		}
		if err != nil {
			return nil, apperrors.NewStoreError("catalog_lookup", err)
		}
		item.ID = itemID
		return &item, nil

	case models.ItemScholarship:
		mode := models.ExamMode(itemID)
		if !mode.Valid() {
			return nil, apperrors.NewItemNotFoundError(string(itemType), itemID)
		}
		settings, err := s.settings.Get(ctx)
		if err != nil {
			return nil, apperrors.NewStoreError("settings_lookup", err)
		}
		fee, ok := settings.Fee(mode)
		if !ok {
			return nil, apperrors.NewFeeNotConfiguredError(string(mode))
		}
		return &models.CatalogItem{ID: itemID, Title: fmt.Sprintf("Scholarship exam fee (%s)", mode), Price: fee}, nil

	default:
		return nil, apperrors.NewInvalidInputError(fmt.Sprintf("unknown itemType %q", itemType))
	}
}
