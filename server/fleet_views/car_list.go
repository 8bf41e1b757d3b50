package fleet_views

import (
	"fmt"
	"html/template"

	"racer/server/fastview"

	channerics "github.com/niceyeti/channerics/channels"
)

// CarList is the table of cars with their live score and speed.
type CarList struct {
	id      string
	updates <-chan []fastview.EleUpdate
}

func NewCarList(
	done <-chan struct{},
	cars <-chan []Car,
) (cl *CarList) {
	cl = &CarList{id: "carlist"}
	cl.updates = channerics.Convert(done, cars, cl.Render)
	return
}

func (cl *CarList) Updates() <-chan []fastview.EleUpdate {
	return cl.updates
}

// Render returns the score and speed text updates for each car.
func (cl *CarList) Render(cars []Car) (ops []fastview.EleUpdate) {
	for _, car := range cars {
		ops = append(ops,
			fastview.EleUpdate{
				EleId: ElementId(car.ID, "score"),
				Ops:   []fastview.Op{{Key: "textContent", Value: fmt.Sprintf("%d", car.Score)}},
			},
			fastview.EleUpdate{
				EleId: ElementId(car.ID, "speed"),
				Ops:   []fastview.Op{{Key: "textContent", Value: fmt.Sprintf("%.1f", car.Speed)}},
			},
		)
	}
	return
}

// Parse defines the car table, executed with a Page.
func (cl *CarList) Parse(
	t *template.Template,
) (name string, err error) {
	name = cl.id
	_, err = t.Funcs(template.FuncMap{"carId": ElementId}).Parse(
		`{{ define "` + name + `" }}
		<div style="padding:10px;">
			<table id="` + cl.id + `" style="border-collapse: collapse; font-family: monospace;">
				<tr><th>car</th><th>score</th><th>speed</th></tr>
				{{ range $car := .Cars }}
				<tr>
					<td><span style="color: {{ $car.Color }};">&#9632;</span> {{ $car.ID }}</td>
					<td id="{{ carId $car.ID "score" }}" style="text-align: right;">{{ $car.Score }}</td>
					<td id="{{ carId $car.ID "speed" }}" style="text-align: right;">{{ printf "%.1f" $car.Speed }}</td>
				</tr>
				{{ end }}
			</table>
		</div>
		{{ end }}`)
	return
}
