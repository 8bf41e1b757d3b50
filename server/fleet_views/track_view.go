package fleet_views

import (
	"html/template"
	"math"

	"racer/server/fastview"

	channerics "github.com/niceyeti/channerics/channels"
)

// TrackView draws the track as an svg and moves one rect per car over it.
type TrackView struct {
	id      string
	updates <-chan []fastview.EleUpdate
}

func NewTrackView(
	done <-chan struct{},
	cars <-chan []Car,
) (tv *TrackView) {
	tv = &TrackView{id: "trackview"}
	tv.updates = channerics.Convert(done, cars, tv.Render)
	return
}

func (tv *TrackView) Updates() <-chan []fastview.EleUpdate {
	return tv.updates
}

// Render returns the updates moving each car's footprint to its current pose.
func (tv *TrackView) Render(cars []Car) (ops []fastview.EleUpdate) {
	for _, car := range cars {
		ops = append(ops, fastview.EleUpdate{
			EleId: ElementId(car.ID, "pose"),
			Ops: []fastview.Op{
				{Key: "transform", Value: car.Transform()},
			},
		})
	}
	return
}

// exclusionAxis is the semi-axis of the region around the inner ellipse that is off-track:
// a point is clear of the inner ellipse only where its radial term reaches the threshold.
func exclusionAxis(axis, threshold float64) float64 {
	return axis * math.Sqrt(threshold)
}

// Parse defines an svg of the track, the start line and the cars, executed with a Page.
func (tv *TrackView) Parse(
	t *template.Template,
) (name string, err error) {
	name = tv.id
	// Footprints are drawn centered on the car's position, see negHalf.
	addedMap := template.FuncMap{
		"carId":         ElementId,
		"exclusionAxis": exclusionAxis,
		"negHalf":       func(v float64) float64 { return -v / 2 },
	}
	_, err = t.Funcs(addedMap).Parse(
		`{{ define "` + name + `" }}
		{{ $track := .Track }}
		<div style="padding:10px;">
			<svg id="` + tv.id + `" xmlns='http://www.w3.org/2000/svg'
				width="{{ $track.Width }}px"
				height="{{ $track.Height }}px">
				<rect width="100%" height="100%" fill="#3f7f3f" />
				<ellipse cx="{{ $track.CenterX }}" cy="{{ $track.CenterY }}"
					rx="{{ $track.Outer.A }}" ry="{{ $track.Outer.B }}"
					fill="#5a5a5a" stroke="white" stroke-width="2" />
				<ellipse cx="{{ $track.CenterX }}" cy="{{ $track.CenterY }}"
					rx="{{ exclusionAxis $track.Inner.A $track.InnerThreshold }}"
					ry="{{ exclusionAxis $track.Inner.B $track.InnerThreshold }}"
					fill="#6f6f6f" />
				<ellipse cx="{{ $track.CenterX }}" cy="{{ $track.CenterY }}"
					rx="{{ $track.Inner.A }}" ry="{{ $track.Inner.B }}"
					fill="#3f7f3f" stroke="white" stroke-width="2" />
				<line x1="{{ $track.StartLine.X }}" y1="{{ $track.StartLine.Top }}"
					x2="{{ $track.StartLine.X }}" y2="{{ $track.StartLine.Below }}"
					stroke="white" stroke-width="4" stroke-dasharray="8 4" />
				{{ range $car := .Cars }}
				<g id="{{ carId $car.ID "pose" }}" transform="{{ $car.Transform }}">
					<rect x="{{ printf "%.1f" (negHalf $car.Width) }}" y="{{ printf "%.1f" (negHalf $car.Height) }}"
						width="{{ $car.Width }}" height="{{ $car.Height }}"
						fill="{{ $car.Color }}" fill-opacity="0.8" stroke="black" />
				</g>
				{{ end }}
			</svg>
		</div>
		{{ end }}`)
	return
}
