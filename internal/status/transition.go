package status

var transitions = map[Status][]Status{
	Pending:   {Confirmed, Cancelled, Expired},
	Expired:   {Confirmed, Cancelled, Refunded},
	Confirmed: {Refunded},
	Cancelled: {Refunded},
}

// CanTransition reports whether a row in state from may move to to.
// Same-state moves are not transitions; callers treat them as no-ops.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Decision is the outcome of applying a target status to a current one.
type Decision int

const (
	// Apply means the row must be updated.
	Apply Decision = iota
	// Noop means the row already holds the target status.
	Noop
	// Reject means the move would break monotonicity and must be ignored.
	Reject
)

func (d Decision) String() string {
	switch d {
	case Apply:
		return "apply"
	case Noop:
		return "noop"
	default:
		return "reject"
	}
}

// Decide classifies moving from current to target.
func Decide(current, target Status) Decision {
	if current == target {
		return Noop
	}
	if CanTransition(current, target) {
		return Apply
	}
	return Reject
}
