package models

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidConfiguration is returned for any malformed run, track or physics parameter.
// Nothing is created when it is returned.
var ErrInvalidConfiguration = errors.New("invalid configuration")

// Default world and track dimensions. The track is laid out relative to the center of
// a WORLD_WIDTH x WORLD_HEIGHT plane whose y axis points down, as on a canvas.
const (
	WORLD_WIDTH  = 1200
	WORLD_HEIGHT = 800

	// The drawn track is an ellipse stroke of TRACK_WIDTH around semi-axes (500, 255);
	// the drivable boundaries are pulled in by half the vehicle footprint.
	TRACK_WIDTH = 200
	OUTER_A     = (500 + TRACK_WIDTH/2) - 25
	OUTER_B     = (255 + TRACK_WIDTH/2) - 15
	INNER_A     = (500 - TRACK_WIDTH/2) - 25
	INNER_B     = (255 - TRACK_WIDTH/2) - 15

	// Points must sit beyond this normalized radius of the inner ellipse, so vehicles
	// cannot ride the inner edge.
	INNER_THRESHOLD = 1.3

	// Offsets of the track center, start line and spawn point from the world center.
	CENTER_DX     = -30
	CENTER_DY     = -20
	START_LINE_DX = -40
	START_LINE_DY = -200
	SPAWN_DX      = -40
	SPAWN_DY      = 250
)

// Ellipse is an axis aligned ellipse by its semi-axes.
type Ellipse struct {
	A, B float64
}

// radial returns the normalized radial equation value of (dx, dy), relative to the ellipse center.
// 1.0 is on the boundary.
func (e Ellipse) radial(dx, dy float64) float64 {
	return math.Pow(dx/e.A, 2) + math.Pow(dy/e.B, 2)
}

// StartLine is the vertical start-line segment. Crossing is judged by Y alone; the
// segment extent only matters for drawing.
type StartLine struct {
	X, Y       float64
	Top, Below float64
}

// Point is a position on the world plane.
type Point struct {
	X, Y float64
}

// Track is the annulus between two concentric ellipses. It is immutable once built and
// safe to share read-only among any number of goroutines.
type Track struct {
	CenterX, CenterY float64
	Outer, Inner     Ellipse
	InnerThreshold   float64
	StartLine        StartLine
	// Spawn is where every vehicle starts; it is always on the track.
	Spawn         Point
	Width, Height float64
}

// NewTrack lays out the default track geometry on a world of the given size.
func NewTrack(width, height, innerThreshold float64) (*Track, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: world size must be positive, got %.0fx%.0f", ErrInvalidConfiguration, width, height)
	}
	cx, cy := width/2, height/2
	return NewTrackFrom(
		cx+CENTER_DX,
		cy+CENTER_DY,
		Ellipse{A: OUTER_A, B: OUTER_B},
		Ellipse{A: INNER_A, B: INNER_B},
		innerThreshold,
		StartLine{
			X:     cx + START_LINE_DX,
			Y:     cy + START_LINE_DY,
			Top:   cy + START_LINE_DY - 155,
			Below: cy + START_LINE_DY + 60,
		},
		Point{X: cx + SPAWN_DX, Y: cy + SPAWN_DY},
		width,
		height,
	)
}

// NewTrackFrom builds a track from explicit geometry, validating that the annulus is
// non-empty and that the spawn point lies on it.
func NewTrackFrom(
	centerX, centerY float64,
	outer, inner Ellipse,
	innerThreshold float64,
	startLine StartLine,
	spawn Point,
	width, height float64,
) (*Track, error) {
	if inner.A <= 0 || inner.B <= 0 {
		return nil, fmt.Errorf("%w: inner semi-axes must be positive", ErrInvalidConfiguration)
	}
	if outer.A <= inner.A || outer.B <= inner.B {
		return nil, fmt.Errorf("%w: outer semi-axes (%.1f, %.1f) must exceed inner (%.1f, %.1f)",
			ErrInvalidConfiguration, outer.A, outer.B, inner.A, inner.B)
	}
	if innerThreshold <= 1 {
		return nil, fmt.Errorf("%w: inner threshold must exceed 1, got %.2f", ErrInvalidConfiguration, innerThreshold)
	}
	track := &Track{
		CenterX:        centerX,
		CenterY:        centerY,
		Outer:          outer,
		Inner:          inner,
		InnerThreshold: innerThreshold,
		StartLine:      startLine,
		Spawn:          spawn,
		Width:          width,
		Height:         height,
	}
	if !track.IsInside(spawn.X, spawn.Y) {
		return nil, fmt.Errorf("%w: spawn point (%.1f, %.1f) is off the track", ErrInvalidConfiguration, spawn.X, spawn.Y)
	}
	return track, nil
}

// IsInside reports whether (x, y) is drivable: within the outer ellipse and clear of the
// inner ellipse by the threshold margin.
func (t *Track) IsInside(x, y float64) bool {
	dx, dy := x-t.CenterX, y-t.CenterY
	return t.Outer.radial(dx, dy) <= 1 && t.Inner.radial(dx, dy) >= t.InnerThreshold
}

// DistancePastStartLine is the signed vertical offset of y from the start line.
// Negative values are above (past) the line.
func (t *Track) DistancePastStartLine(y float64) float64 {
	return y - t.StartLine.Y
}
