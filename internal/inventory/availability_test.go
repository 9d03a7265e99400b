package inventory

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAvailableQty(t *testing.T) {
	cases := []struct {
		name                    string
		stock, inFlight, staged int
		want                    int
	}{
		{"no pressure", 10, 0, 0, 10},
		{"in-flight subtracts", 10, 4, 0, 6},
		{"staged cart subtracts further", 10, 4, 3, 3},
		{"exactly consumed", 5, 5, 0, 0},
		{"oversubscribed floors at zero", 5, 6, 0, 0},
		{"concurrent checkouts past stock", 5, 3, 3, 0},
		{"zero stock", 0, 0, 0, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, AvailableQty(tc.stock, tc.inFlight, tc.staged))
		})
	}
}

func TestClampStock(t *testing.T) {
	require.Equal(t, 7, ClampStock(5, 2))
	require.Equal(t, 3, ClampStock(5, -2))
	require.Equal(t, 0, ClampStock(5, -5))
	// adjusting below zero clamps, never goes negative
	require.Equal(t, 0, ClampStock(5, -6))
	require.Equal(t, 0, ClampStock(0, -1))
}
