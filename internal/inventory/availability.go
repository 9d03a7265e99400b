package inventory

// AvailableQty is the quantity still orderable for a product: on-hand stock
// minus quantity tied up in orders not yet fulfilled, minus whatever the
// requester has already staged in an unsubmitted cart. Never negative.
//
// This is a soft reservation: nothing is locked or marked reserved, the
// subtraction is recomputed on every read. Two checkouts racing past the
// same read can briefly oversell; the fulfill-time deduction still floors
// physical stock at zero.
func AvailableQty(stock, inFlight, staged int) int {
	a := stock - inFlight - staged
	if a < 0 {
		return 0
	}
	return a
}

// ClampStock applies a signed adjustment to a stock level, flooring at zero.
func ClampStock(current, delta int) int {
	n := current + delta
	if n < 0 {
		return 0
	}
	return n
}
