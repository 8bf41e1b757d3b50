package models

import (
	"errors"
	"fmt"
	"math/rand"
)

// ErrUnknownAction is returned when an action index is outside the enumerated set.
var ErrUnknownAction = errors.New("unknown action")

// Action is one of the fixed driving controls.
type Action int

const (
	Forward Action = iota
	Backward
	TurnRight
	TurnLeft

	NUM_ACTIONS = 4
)

var actionNames = [NUM_ACTIONS]string{"forward", "backward", "right", "left"}

// Valid reports whether the action belongs to the enumerated set.
func (a Action) Valid() bool {
	return a >= 0 && a < NUM_ACTIONS
}

func (a Action) String() string {
	if !a.Valid() {
		return fmt.Sprintf("action(%d)", int(a))
	}
	return actionNames[a]
}

// Apply mutates the vehicle per the action. Accelerations are clamped to the vehicle's
// max speed in either direction; turns are unbounded since heading wraps through cos/sin.
func (a Action) Apply(v *Vehicle) error {
	switch a {
	case Forward:
		v.Speed = clamp(v.Speed+v.Acceleration, -v.MaxSpeed, v.MaxSpeed)
	case Backward:
		v.Speed = clamp(v.Speed-v.Acceleration, -v.MaxSpeed, v.MaxSpeed)
	case TurnRight:
		v.Angle += v.RotationSpeed
	case TurnLeft:
		v.Angle -= v.RotationSpeed
	default:
		return fmt.Errorf("%w: %d", ErrUnknownAction, int(a))
	}
	return nil
}

// RandomAction draws uniformly from the action set.
func RandomAction(rng *rand.Rand) Action {
	return Action(rng.Intn(NUM_ACTIONS))
}

func clamp(val, lo, hi float64) float64 {
	if val < lo {
		return lo
	}
	if val > hi {
		return hi
	}
	return val
}
