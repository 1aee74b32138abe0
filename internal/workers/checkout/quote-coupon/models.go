package quotecoupon

import "scholarship-workers/internal/checkout"

type Input struct {
	checkout.QuoteRequest
}

// Output is the priced quote. A coupon that could not be applied is reported
// through CouponError while the job still completes.
type Output struct {
	checkout.Quote
}
