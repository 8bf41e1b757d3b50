package root_view

import (
	"context"
	"html/template"
	"time"

	"racer/models"
	"racer/server/fastview"
	"racer/server/fleet_views"
)

// batchRate bounds how often the merged ele-updates of all views are emitted.
const batchRate = time.Millisecond * 20

// renderer is implemented by views that can produce their full update set on demand.
type renderer interface {
	Render([]fleet_views.Car) []fastview.EleUpdate
}

// RootView is the main page's index.html, the container for all the view components
// and the wiring for their channels.
type RootView struct {
	track   *models.Track
	views   []fastview.ViewComponent
	updates <-chan []fastview.EleUpdate
}

// NewRootView creates the main page and the views it contains, fed by fleet snapshots.
func NewRootView(
	ctx context.Context,
	track *models.Track,
	snapshots <-chan []models.Snapshot,
) (*RootView, error) {
	views, err := fastview.NewViewBuilder[[]models.Snapshot, []fleet_views.Car]().
		WithContext(ctx).
		WithModel(snapshots, fleet_views.Convert).
		WithView(func(
			done <-chan struct{},
			cars <-chan []fleet_views.Car) fastview.ViewComponent {
			return fleet_views.NewTrackView(done, cars)
		}).
		WithView(func(
			done <-chan struct{},
			cars <-chan []fleet_views.Car) fastview.ViewComponent {
			return fleet_views.NewCarList(done, cars)
		}).
		Build()
	if err != nil {
		return nil, err
	}

	return &RootView{
		track:   track,
		views:   views,
		updates: fastview.FanIn(ctx.Done(), views, batchRate),
	}, nil
}

// Updates returns the main ele-update channel for all the views.
func (rv *RootView) Updates() <-chan []fastview.EleUpdate {
	return rv.updates
}

// Render returns every view's updates for the passed snapshots, e.g. to sync a new client.
func (rv *RootView) Render(snaps []models.Snapshot) (updates []fastview.EleUpdate) {
	cars := fleet_views.Convert(snaps)
	for _, view := range rv.views {
		if r, ok := view.(renderer); ok {
			updates = append(updates, r.Render(cars)...)
		}
	}
	return
}

// Page returns the data model the page template executes with.
func (rv *RootView) Page(snaps []models.Snapshot) fleet_views.Page {
	return fleet_views.NewPage(rv.track, snaps)
}

// Parse builds the main page's template, with websocket bootstrap code and run controls,
// and returns its name.
func (rv *RootView) Parse(
	parent *template.Template,
) (name string, err error) {
	viewTemplates := []string{}
	for _, vc := range rv.views {
		tname, parseErr := vc.Parse(parent)
		if parseErr != nil {
			return "", parseErr
		}
		viewTemplates = append(viewTemplates, tname)
	}

	var bodySpec string
	for _, tname := range viewTemplates {
		bodySpec += `{{ template "` + tname + `" . }}`
	}

	name = "mainpage"
	indexTemplate := `
	{{ define "` + name + `" }}
	<!DOCTYPE html>
	<html>
		<head>
			<link rel="icon" href="data:,">
			<!--The server pushes view updates to the page via websocket.-->
			<script>
				const ws = new WebSocket("ws://" + location.host + "/ws");
				ws.onopen = function (event) {
					console.log("Web socket opened")
				};

				ws.onerror = function (event) {
					console.log('WebSocket error: ', event);
				};

				// When the server pushes view updates, find these eles and update them.
				// Elements of a previous fleet may be missing until the page reloads.
				ws.onmessage = function (event) {
					const items = JSON.parse(event.data)
					for (const update of items) {
						const ele = document.getElementById(update.EleId)
						if (ele === null) {
							continue
						}
						for (const op of update.Ops) {
							if (op.Key === "textContent") {
								ele.textContent = op.Value;
							} else {
								ele.setAttribute(op.Key, op.Value)
							}
						}
					}
				}

				function post(url, body) {
					const status = document.getElementById("runstatus")
					fetch(url, { method: "POST", body: body }).then(function (resp) {
						if (resp.ok) {
							location.reload()
						} else {
							resp.text().then(function (text) { status.textContent = text })
						}
					})
				}

				function startRun(form) {
					post("/api/run", new FormData(form))
					return false
				}
			</script>
		</head>
		<body style="font-family: sans-serif;">
			<form id="runform" onsubmit="return startRun(this)">
				<label>vehicles <input name="vehicles" value="{{ len .Cars }}" size="4"></label>
				<label>steps <input name="steps" value="7000" size="6"></label>
				<button type="submit">start</button>
				<button type="button" onclick="post('/api/stop')">stop</button>
				<span id="runstatus"></span>
			</form>
			<div style="display: flex;">
			` + bodySpec + `
			</div>
		</body></html>
	{{ end }}
	`

	_, err = parent.Parse(indexTemplate)
	return
}
