package fleet_views

import (
	"bytes"
	"html/template"
	"math"
	"testing"

	"racer/models"
	"racer/server/fastview"

	. "github.com/smartystreets/goconvey/convey"
)

func testPage() Page {
	track, err := models.NewTrack(models.WORLD_WIDTH, models.WORLD_HEIGHT, models.INNER_THRESHOLD)
	So(err, ShouldBeNil)
	fleet, err := models.NewFleet(2, track, models.DefaultPhysics())
	So(err, ShouldBeNil)
	return NewPage(track, fleet.Snapshots())
}

func render(view fastview.ViewComponent, page Page) string {
	t := template.New("test")
	name, err := view.Parse(t)
	So(err, ShouldBeNil)
	_, err = t.Parse(`{{ template "` + name + `" . }}`)
	So(err, ShouldBeNil)

	buf := &bytes.Buffer{}
	So(t.Execute(buf, page), ShouldBeNil)
	return buf.String()
}

func TestConvert(t *testing.T) {
	Convey("When snapshots are converted to cars", t, func() {
		cars := Convert([]models.Snapshot{
			{ID: 0, X: 560, Y: 650, Angle: math.Pi / 2, Color: "red", Score: -4, Width: 50, Height: 30},
			{ID: 1, X: 100, Y: 200, Angle: 0, Color: "blue", Score: 3, Speed: 0.5},
		})

		So(len(cars), ShouldEqual, 2)
		So(cars[0].Rotation, ShouldAlmostEqual, 90.0)
		So(cars[0].Transform(), ShouldEqual, "translate(560.0 650.0) rotate(90.0)")
		So(cars[1].Color, ShouldEqual, "blue")
		So(cars[1].Speed, ShouldEqual, 0.5)
		So(ElementId(1, "score"), ShouldEqual, "car1score")
	})
}

func TestViews(t *testing.T) {
	Convey("Given a page of two cars at spawn", t, func() {
		page := testPage()
		done := make(chan struct{})
		defer close(done)

		Convey("The track view draws the track and one footprint per car", func() {
			view := NewTrackView(done, make(chan []Car))
			html := render(view, page)
			So(html, ShouldContainSubstring, `id="trackview"`)
			So(html, ShouldContainSubstring, `id="car0pose"`)
			So(html, ShouldContainSubstring, `id="car1pose"`)
			So(html, ShouldContainSubstring, `rx="575"`)
			So(html, ShouldContainSubstring, `x="-25.0"`)

			updates := view.Render(page.Cars)
			So(len(updates), ShouldEqual, 2)
			So(updates[1].EleId, ShouldEqual, "car1pose")
			So(updates[1].Ops[0], ShouldResemble, fastview.Op{Key: "transform", Value: page.Cars[1].Transform()})
		})

		Convey("The car list shows each car's score and speed", func() {
			view := NewCarList(done, make(chan []Car))
			html := render(view, page)
			So(html, ShouldContainSubstring, `id="car0score"`)
			So(html, ShouldContainSubstring, `id="car1speed"`)

			page.Cars[0].Score = 12
			updates := view.Render(page.Cars)
			So(len(updates), ShouldEqual, 4)
			So(updates[0], ShouldResemble, fastview.EleUpdate{
				EleId: "car0score",
				Ops:   []fastview.Op{{Key: "textContent", Value: "12"}},
			})
		})

		Convey("Views emit updates for every frame of cars", func() {
			cars := make(chan []Car, 1)
			view := NewCarList(done, cars)
			cars <- page.Cars
			updates := <-view.Updates()
			So(updates[1].EleId, ShouldEqual, "car0speed")
			So(updates[1].Ops[0].Value, ShouldEqual, "0.0")
		})
	})
}
