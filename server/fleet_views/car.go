// fleet_views contains views derived from the Car view-model.
// Car is a flattened vehicle snapshot whose fields are immediately usable as svg
// and template parameters.
package fleet_views

import (
	"fmt"
	"math"

	"racer/models"
)

// Car is the view-model of one vehicle.
type Car struct {
	ID            int
	X, Y          float64
	Rotation      float64 // degrees
	Width, Height float64
	Color         string
	Score         int
	Speed         float64
}

// Convert maps fleet snapshots to cars, preserving order.
func Convert(snaps []models.Snapshot) []Car {
	cars := make([]Car, len(snaps))
	for i, snap := range snaps {
		cars[i] = Car{
			ID:       snap.ID,
			X:        snap.X,
			Y:        snap.Y,
			Rotation: snap.Angle * 180 / math.Pi,
			Width:    snap.Width,
			Height:   snap.Height,
			Color:    snap.Color,
			Score:    snap.Score,
			Speed:    snap.Speed,
		}
	}
	return cars
}

// Transform is the svg transform placing the car's footprint centered on its position.
func (c Car) Transform() string {
	return fmt.Sprintf("translate(%.1f %.1f) rotate(%.1f)", c.X, c.Y, c.Rotation)
}

// ElementId returns the id of one of the car's elements, e.g. "car3score".
// Hyphens are avoided since they interfere with html/template's template directive.
func ElementId(id int, part string) string {
	return fmt.Sprintf("car%d%s", id, part)
}

// Page is the data model the page template executes with.
type Page struct {
	Track *models.Track
	Cars  []Car
}

// NewPage builds the page model from the track and the latest snapshots.
func NewPage(track *models.Track, snaps []models.Snapshot) Page {
	return Page{
		Track: track,
		Cars:  Convert(snaps),
	}
}
