package models

import "time"

const (
	CollectionCoupons = "coupons"
	CollectionOrders  = "orders"
	CollectionBooks   = "books"
	CollectionCourses = "courses"
)

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

type Coupon struct {
	ID            string       `json:"id,omitempty"`
	Code          string       `json:"code"`
	DiscountType  DiscountType `json:"discountType"`
	DiscountValue float64      `json:"discountValue"`
	ExpiryDate    time.Time    `json:"expiryDate"`
	UsedCount     int          `json:"usedCount"`
	MaxUses       int          `json:"maxUses"`
}

type ItemType string

const (
	ItemBook        ItemType = "book"
	ItemCourse      ItemType = "course"
	ItemScholarship ItemType = "scholarship"
)

// CatalogItem is a purchasable book or course.
type CatalogItem struct {
	ID       string  `json:"id,omitempty"`
	Title    string  `json:"title"`
	Price    float64 `json:"price"`
	Physical bool    `json:"physical"`
}

type OrderStatus string

const OrderStatusPending OrderStatus = "pending"

// Order is a checkout record. PayableNow is collected upfront, PayableOnDelivery
// is cash on delivery for physical goods.
type Order struct {
	ID                 string      `json:"id,omitempty"`
	UserID             string      `json:"userId"`
	ItemType           ItemType    `json:"itemType"`
	ItemID             string      `json:"itemId"`
	Title              string      `json:"title,omitempty"`
	Quantity           int         `json:"quantity"`
	UnitPrice          float64     `json:"unitPrice"`
	FinalPrice         float64     `json:"finalPrice"`
	CouponCode         string      `json:"couponCode,omitempty"`
	CouponID           string      `json:"couponId,omitempty"`
	VerificationCharge float64     `json:"verificationCharge,omitempty"`
	PayableNow         float64     `json:"payableNow"`
	PayableOnDelivery  float64     `json:"payableOnDelivery"`
	PaymentRef         string      `json:"paymentRef,omitempty"`
	ShippingAddress    string      `json:"shippingAddress,omitempty"`
	Status             OrderStatus `json:"status"`
	CreatedAt          time.Time   `json:"createdAt"`
}
