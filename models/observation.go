package models

import (
	"math"
	"strconv"
)

// Observation is the discretized view of a vehicle that keys the policy.
// Identical rounded states always produce the same Key.
type Observation struct {
	Angle    float64
	Distance float64
	OnTrack  bool
}

// Observe derives the observation from the vehicle's current state.
func Observe(track *Track, v *Vehicle) Observation {
	return Observation{
		Angle:    round2(v.Angle),
		Distance: round2(track.DistancePastStartLine(v.Y)),
		OnTrack:  track.IsInside(v.X, v.Y),
	}
}

// Key serializes the observation with fixed two-decimal formatting.
func (o Observation) Key() string {
	buf := make([]byte, 0, 32)
	buf = strconv.AppendFloat(buf, o.Angle, 'f', 2, 64)
	buf = append(buf, '|')
	buf = strconv.AppendFloat(buf, o.Distance, 'f', 2, 64)
	buf = append(buf, '|')
	buf = strconv.AppendBool(buf, o.OnTrack)
	return string(buf)
}

func (o Observation) String() string {
	return o.Key()
}

// round2 rounds to two decimals. Adding zero folds -0 into +0 so keys stay stable.
func round2(val float64) float64 {
	return math.Round(val*100)/100 + 0
}
