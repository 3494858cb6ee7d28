package reconcile

// State is the lifecycle of one reconciled entity subscription.
type State int

const (
	// StateUninitialized means Mount has not run yet.
	StateUninitialized State = iota
	// StateLoading means the initial authoritative fetch is in flight
	// and no override was available for immediate display.
	StateLoading
	// StateConfirmed means the displayed value reflects an override or
	// the most recent authoritative source.
	StateConfirmed
	// StateDegraded means the initial fetch failed and a zero/override
	// fallback is displayed. A later push event promotes the entity
	// back to Confirmed.
	StateDegraded
	// StateUnmounted is terminal; late responses are discarded.
	StateUnmounted
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "UNINITIALIZED"
	case StateLoading:
		return "LOADING"
	case StateConfirmed:
		return "CONFIRMED"
	case StateDegraded:
		return "DEGRADED"
	case StateUnmounted:
		return "UNMOUNTED"
	default:
		return "UNKNOWN"
	}
}
