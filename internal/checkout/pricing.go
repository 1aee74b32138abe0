package checkout

// Split is how an order total is collected.
type Split struct {
	PayableNow        float64 `json:"payableNow"`
	PayableOnDelivery float64 `json:"payableOnDelivery"`
}

// SplitPayment charges physical goods a verification amount upfront with the
// price collected on delivery. Digital goods are paid in full upfront.
func SplitPayment(finalPrice float64, quantity int, physical bool, verificationCharge float64) Split {
	if quantity < 1 {
		quantity = 1
	}
	if physical {
		return Split{
			PayableNow:        Round2(verificationCharge * float64(quantity)),
			PayableOnDelivery: Round2(finalPrice * float64(quantity)),
		}
	}
	return Split{PayableNow: Round2(finalPrice * float64(quantity))}
}
