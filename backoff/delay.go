// Package backoff maps a reported queue position to the delay before the next status check.
package backoff

import (
	"fmt"
	"time"
)

const (
	// NearFrontPositions is the queue depth below which items are checked at a fixed rate.
	NearFrontPositions = 20

	// NearFrontInterval is the check interval for items near the front of the queue.
	NearFrontInterval = 10 * time.Second

	// PerPosition is the delay added per queue position for items further back.
	PerPosition = 5 * time.Second

	// MaxDelay caps the delay for items deep in the queue.
	MaxDelay = 20 * time.Minute
)

// Tier names the band a queue position falls into.
type Tier int

const (
	NearFront Tier = iota // fixed 10s checks
	Linear                // 5s per position
	Capped                // 20 min ceiling
)

// String returns string representation.
func (t Tier) String() string {
	switch t {
	case NearFront:
		return "NearFront(10s)"
	case Linear:
		return "Linear(5s/pos)"
	case Capped:
		return "Capped(20m)"
	default:
		return fmt.Sprintf("Invalid(%d)", int(t))
	}
}

// Delay returns the wait before re-checking an item at the given position.
// Positions below 20 use 10s; otherwise (position+1)*5s, capped at 20 minutes.
func Delay(position int) time.Duration {
	if position < NearFrontPositions {
		return NearFrontInterval
	}
	// compare in positions so huge values cannot overflow the multiplication
	if position >= int(MaxDelay/PerPosition)-1 {
		return MaxDelay
	}
	return time.Duration(position+1) * PerPosition
}

// TierOf returns the band used by Delay for the given position.
func TierOf(position int) Tier {
	if position < NearFrontPositions {
		return NearFront
	}
	if Delay(position) == MaxDelay {
		return Capped
	}
	return Linear
}
