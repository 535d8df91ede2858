package transfer

// State is the position of a transfer in the saga.
type State string

const (
	StatePending   State = "PENDING"
	StateDebited   State = "DEBITED"
	StateCompleted State = "COMPLETED"
	StateFailed    State = "FAILED"
)

// IsTerminal reports whether no further state change is allowed.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed
}

func (s State) Valid() bool {
	switch s {
	case StatePending, StateDebited, StateCompleted, StateFailed:
		return true
	}
	return false
}

// CompensationStatus tracks the reversal of a debit on a failed transfer. It changes
// independently of State, which stays FAILED.
type CompensationStatus string

const (
	CompensationNone      CompensationStatus = "NONE"
	CompensationPending   CompensationStatus = "PENDING"
	CompensationCompleted CompensationStatus = "COMPLETED"
	CompensationFailed    CompensationStatus = "FAILED"
)
