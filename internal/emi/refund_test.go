package emi

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRefundAmount(t *testing.T) {
	// Prepaid bookings get a flat 80% back.
	assert.Equal(t, int64(8000), RefundAmount(10000, true, DefaultRefundRateBps))

	// Non-prepaid bookings get nothing.
	assert.Equal(t, int64(0), RefundAmount(10000, false, DefaultRefundRateBps))

	// Zero rate falls back to the default.
	assert.Equal(t, int64(8000), RefundAmount(10000, true, 0))

	// Configured rates are honored.
	assert.Equal(t, int64(5000), RefundAmount(10000, true, 5000))

	// Degenerate price.
	assert.Equal(t, int64(0), RefundAmount(0, true, DefaultRefundRateBps))
}
