package models

import "math"

// Vehicle physics and footprint defaults.
const (
	MAX_SPEED      = 1.0
	ACCELERATION   = 0.1
	ROTATION_SPEED = 0.034

	VEHICLE_WIDTH  = 50
	VEHICLE_HEIGHT = 30
)

// Palette is the cyclic color assignment for vehicles, by id.
var Palette = []string{
	"red", "blue", "green", "yellow", "orange", "purple", "cyan", "magenta", "pink", "brown",
	"teal", "lime", "maroon", "navy", "olive", "indigo", "salmon", "tan", "violet", "turquoise",
}

// Physics holds the fixed per-vehicle kinematic parameters.
type Physics struct {
	MaxSpeed      float64
	Acceleration  float64
	RotationSpeed float64
}

// DefaultPhysics returns the stock vehicle parameters.
func DefaultPhysics() Physics {
	return Physics{
		MaxSpeed:      MAX_SPEED,
		Acceleration:  ACCELERATION,
		RotationSpeed: ROTATION_SPEED,
	}
}

// Vehicle is the mutable kinematic state of one car plus its score.
// A vehicle is owned by exactly one stepper at a time; see Fleet for shared access.
type Vehicle struct {
	ID    int
	X, Y  float64
	Angle float64
	Speed float64

	MaxSpeed      float64
	Acceleration  float64
	RotationSpeed float64

	Width, Height float64
	Color         string

	Score int
	// PrevDistance is the distance past the start line at the last reward evaluation.
	PrevDistance float64
	// CrossedStartLine latches once this vehicle passes above the start line.
	CrossedStartLine bool
}

// NewVehicle places a vehicle at the track's spawn point, at rest and heading along +x.
func NewVehicle(id int, track *Track, physics Physics) *Vehicle {
	return &Vehicle{
		ID:            id,
		X:             track.Spawn.X,
		Y:             track.Spawn.Y,
		MaxSpeed:      physics.MaxSpeed,
		Acceleration:  physics.Acceleration,
		RotationSpeed: physics.RotationSpeed,
		Width:         VEHICLE_WIDTH,
		Height:        VEHICLE_HEIGHT,
		Color:         Palette[id%len(Palette)],
		PrevDistance:  track.DistancePastStartLine(track.Spawn.Y),
	}
}

// Integrate returns the proposed next position along the current heading.
func (v *Vehicle) Integrate() (x, y float64) {
	return v.X + math.Cos(v.Angle)*v.Speed, v.Y + math.Sin(v.Angle)*v.Speed
}

// CommitOrReject moves the vehicle to (x, y) if the track accepts it. Otherwise the
// position is untouched and the vehicle stops dead. Returns false on collision.
func (v *Vehicle) CommitOrReject(track *Track, x, y float64) bool {
	if !track.IsInside(x, y) {
		v.Speed = 0
		return false
	}
	v.X, v.Y = x, y
	return true
}

// GateStartLine applies the lap-direction guard: the first pass above the start line
// latches, after which dropping back below it stops the vehicle.
func (v *Vehicle) GateStartLine(track *Track) {
	switch {
	case v.Y < track.StartLine.Y && !v.CrossedStartLine:
		v.CrossedStartLine = true
	case v.Y > track.StartLine.Y && v.CrossedStartLine:
		v.Speed = 0
	}
}

// Snapshot is a read-only copy of a vehicle for sinks.
type Snapshot struct {
	ID     int     `json:"id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Angle  float64 `json:"angle"`
	Speed  float64 `json:"speed"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Color  string  `json:"color"`
	Score  int     `json:"score"`
}

func (v *Vehicle) Snapshot() Snapshot {
	return Snapshot{
		ID:     v.ID,
		X:      v.X,
		Y:      v.Y,
		Angle:  v.Angle,
		Speed:  v.Speed,
		Width:  v.Width,
		Height: v.Height,
		Color:  v.Color,
		Score:  v.Score,
	}
}
