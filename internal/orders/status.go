package orders

type Status string

// PENDING is an insert-time placeholder: the create transaction advances it
// to RECEIVED before commit, so it is never externally observable.
const (
	StatusPending    Status = "PENDING"
	StatusReceived   Status = "RECEIVED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusFulfilled  Status = "FULFILLED"
)

var statusRank = map[Status]int{
	StatusPending:    0,
	StatusReceived:   1,
	StatusInProgress: 2,
	StatusFulfilled:  3,
}

func ParseStatus(s string) (Status, bool) {
	st := Status(s)
	_, ok := statusRank[st]
	return st, ok
}

// CanTransition allows forward moves and idempotent re-application of the
// current status. Backward moves are rejected.
func CanTransition(from, to Status) bool {
	rf, okf := statusRank[from]
	rt, okt := statusRank[to]
	return okf && okt && rt >= rf
}

// ShouldDeduct reports whether moving from prior to target triggers the
// one-time stock deduction. Re-fulfilling an already fulfilled order must
// never deduct again.
func ShouldDeduct(prior, target Status) bool {
	return target == StatusFulfilled && prior != StatusFulfilled
}
