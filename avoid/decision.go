// Package avoid is the decision core of the obstacle-avoiding rover: a
// collision test over the center zone, a turn-direction policy over the
// side zones, and the state machine that sequences the reactive maneuver.
package avoid

import "fmt"

// Direction is a reactive turn choice.
type Direction int

// The turn directions. NoTurn is only ever the remembered bias before the
// first reactive cycle; the decision policy always picks a side.
const (
	NoTurn Direction = iota
	TurnLeft
	TurnRight
)

func (d Direction) String() string {
	switch d {
	case NoTurn:
		return "none"
	case TurnLeft:
		return "left"
	case TurnRight:
		return "right"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// Collision reports whether the forward distance is at or inside the
// collision threshold. Both values must be in the same unit.
func Collision(forward, threshold int) bool {
	return forward <= threshold
}

// DecideTurn picks a turn direction from the side-zone averages. A side
// wins outright when it has at least tolerance more room than the other;
// inside that band the obstacle is effectively symmetric and the decision
// falls to an unbiased coin flip on percent, which must be drawn fresh
// from [0, 100) for every call.
func DecideTurn(left, right, tolerance int, percent float64) Direction {
	switch {
	case right >= left+tolerance:
		return TurnRight
	case left >= right+tolerance:
		return TurnLeft
	case percent < 50:
		return TurnRight
	default:
		return TurnLeft
	}
}
