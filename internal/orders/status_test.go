package orders

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	for _, s := range []string{"PENDING", "RECEIVED", "IN_PROGRESS", "FULFILLED"} {
		st, ok := ParseStatus(s)
		require.True(t, ok)
		require.Equal(t, Status(s), st)
	}
	_, ok := ParseStatus("shipped")
	require.False(t, ok)
	_, ok = ParseStatus("received") // case sensitive, closed set
	require.False(t, ok)
}

func TestCanTransition(t *testing.T) {
	// forward moves
	require.True(t, CanTransition(StatusPending, StatusReceived))
	require.True(t, CanTransition(StatusReceived, StatusInProgress))
	require.True(t, CanTransition(StatusInProgress, StatusFulfilled))
	require.True(t, CanTransition(StatusReceived, StatusFulfilled))

	// idempotent re-application
	require.True(t, CanTransition(StatusFulfilled, StatusFulfilled))
	require.True(t, CanTransition(StatusInProgress, StatusInProgress))

	// backward moves rejected
	require.False(t, CanTransition(StatusFulfilled, StatusInProgress))
	require.False(t, CanTransition(StatusInProgress, StatusReceived))
	require.False(t, CanTransition(StatusReceived, StatusPending))

	// unknown values rejected
	require.False(t, CanTransition(StatusReceived, Status("shipped")))
	require.False(t, CanTransition(Status(""), StatusFulfilled))
}

func TestShouldDeduct(t *testing.T) {
	require.True(t, ShouldDeduct(StatusReceived, StatusFulfilled))
	require.True(t, ShouldDeduct(StatusInProgress, StatusFulfilled))
	// re-fulfilling never deducts a second time
	require.False(t, ShouldDeduct(StatusFulfilled, StatusFulfilled))
	require.False(t, ShouldDeduct(StatusReceived, StatusInProgress))
}

func TestDeductionPlan(t *testing.T) {
	plan := DeductionPlan([]ItemQty{
		{ProductID: 1, Qty: 2},
		{ProductID: 2, Qty: 1},
		{ProductID: 1, Qty: 3}, // same product on two lines
	})
	require.Equal(t, map[int64]int{1: 5, 2: 1}, plan)
	require.Empty(t, DeductionPlan(nil))
}
