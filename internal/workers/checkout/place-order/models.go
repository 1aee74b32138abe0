package placeorder

import (
	"time"

	"scholarship-workers/internal/checkout"
	"scholarship-workers/internal/models"
)

type Input struct {
	Customer models.Principal `json:"customer"`
	checkout.OrderRequest
}

type Output struct {
	OrderID           string             `json:"orderId"`
	Status            models.OrderStatus `json:"orderStatus"`
	FinalPrice        float64            `json:"finalPrice"`
	PayableNow        float64            `json:"payableNow"`
	PayableOnDelivery float64            `json:"payableOnDelivery"`
	CouponCode        string             `json:"couponCode,omitempty"`
	CreatedAt         time.Time          `json:"createdAt"`
}
