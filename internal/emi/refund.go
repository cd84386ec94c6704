package emi

// DefaultRefundRateBps is the flat refund rate applied to prepaid bookings on
// cancellation: 8000 basis points = 80% of the final price, independent of how
// close to the travel date the cancellation occurs.
const DefaultRefundRateBps = 8000

// RefundAmount computes the refund owed when a booking is cancelled.
// Non-prepaid bookings get nothing back. Integer basis-point math keeps the
// result exact in minor units.
func RefundAmount(finalPrice int64, isPrepaid bool, rateBps int64) int64 {
	if !isPrepaid || finalPrice <= 0 {
		return 0
	}
	if rateBps <= 0 {
		rateBps = DefaultRefundRateBps
	}
	return finalPrice * rateBps / 10000
}
