package poll

import "fmt"

// State is the scheduler's poll state.
type State int

const (
	Idle      State = iota // initial and reset state
	Tracking               // a check is scheduled or in flight
	Delivered              // answer emitted; reset follows immediately
)

// String returns string representation.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Tracking:
		return "tracking"
	case Delivered:
		return "delivered"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}
