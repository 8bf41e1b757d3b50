package console

import (
	"strings"
	"testing"
	"time"

	"racer/history"
	"racer/models"
	"racer/reinforcement"

	tea "github.com/charmbracelet/bubbletea"
	. "github.com/smartystreets/goconvey/convey"
)

func TestLeaderboard(t *testing.T) {
	Convey("Given a leaderboard", t, func() {
		lb := NewLeaderboard()

		Convey("It has nothing to show before the first frame", func() {
			So(lb.Standings(), ShouldBeEmpty)
			So(lb.History(0), ShouldBeNil)
			So(lb.Plot(0, 40, 5), ShouldEqual, "")
		})

		Convey("When frames and score changes arrive", func() {
			lb.OnTick([]models.Snapshot{
				{ID: 0, Color: "red", Score: 1, Speed: 2},
				{ID: 1, Color: "blue", Score: 4, Speed: 0},
				{ID: 2, Color: "green", Score: 4, Speed: 1},
			})
			lb.OnScoreChange(0, 9)

			Convey("Standings are ordered by score, ties by id", func() {
				standings := lb.Standings()
				So(len(standings), ShouldEqual, 3)
				So(standings[0].ID, ShouldEqual, 0)
				So(standings[0].Score, ShouldEqual, 9)
				So(standings[0].Color, ShouldEqual, "red")
				So(standings[1].ID, ShouldEqual, 1)
				So(standings[2].ID, ShouldEqual, 2)
			})

			Convey("A frame captured before a score change does not roll the score back", func() {
				lb.OnTick([]models.Snapshot{{ID: 0, Color: "red", Score: 3, Speed: 1}})
				standings := lb.Standings()
				So(standings[0].ID, ShouldEqual, 0)
				So(standings[0].Score, ShouldEqual, 9)
				So(standings[0].Speed, ShouldEqual, 1.0)
			})

			Convey("Reset forgets every vehicle", func() {
				lb.Reset()
				So(lb.Standings(), ShouldBeEmpty)
				So(lb.History(0), ShouldBeNil)
			})
		})

		Convey("When a vehicle's score changes more often than the history holds", func() {
			for i := 1; i <= 3*historyCapacity; i++ {
				lb.OnScoreChange(7, i)
			}

			Convey("The series is sampled down but stays bounded and ordered", func() {
				h := lb.History(7)
				So(len(h), ShouldBeLessThan, historyCapacity)
				So(len(h), ShouldBeGreaterThan, historyCapacity/4)
				for i := 1; i < len(h); i++ {
					So(h[i], ShouldBeGreaterThan, h[i-1])
				}
				So(h[len(h)-1], ShouldBeLessThanOrEqualTo, 3*historyCapacity)
			})

			Convey("The plot names the vehicle", func() {
				plot := lb.Plot(1, 40, 5)
				So(plot, ShouldContainSubstring, "score of cars 7")
			})
		})
	})
}

func TestRenderResult(t *testing.T) {
	Convey("When a run result is rendered", t, func() {
		out := RenderResult(reinforcement.RunResult{
			Seed:         5,
			Steps:        300,
			Elapsed:      1234 * time.Millisecond,
			TotalReward:  11,
			PolicyWrites: 77,
			Vehicles: []reinforcement.VehicleResult{
				{ID: 0, Color: "red", Score: -4, Steps: 300, Collisions: 2, PolicySize: 30},
				{ID: 1, Color: "blue", Score: 15, Steps: 120, PolicySize: 25, Stopped: true},
			},
		})

		Convey("The title carries the run totals", func() {
			So(out, ShouldContainSubstring, "seed 5")
			So(out, ShouldContainSubstring, "policy writes 77")
			So(out, ShouldContainSubstring, "1.234s")
		})

		Convey("The best vehicle is listed first", func() {
			So(out, ShouldContainSubstring, "stopped")
			So(strings.Index(out, "blue"), ShouldBeLessThan, strings.Index(out, "red"))
		})
	})
}

func TestLiveModel(t *testing.T) {
	Convey("Given a live view over a leaderboard", t, func() {
		lb := NewLeaderboard()
		lb.OnTick([]models.Snapshot{{ID: 3, Color: "teal", Score: 12}})
		m := NewLiveModel(lb, 0)

		Convey("It shows the standings while training", func() {
			view := m.View()
			So(view, ShouldContainSubstring, "training")
			So(view, ShouldContainSubstring, "car 3")
		})

		Convey("q quits and is reported as a user stop", func() {
			next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
			So(cmd, ShouldNotBeNil)
			So(next.(LiveModel).Quit(), ShouldBeTrue)
		})

		Convey("A finished run quits without a user stop", func() {
			next, cmd := m.Update(FinishedMsg{})
			So(cmd, ShouldNotBeNil)
			So(next.(LiveModel).Quit(), ShouldBeFalse)
			So(next.View(), ShouldContainSubstring, "finished")
		})
	})
}

func TestRenderHistory(t *testing.T) {
	Convey("When saved runs are rendered", t, func() {
		runs := []history.Run{
			{
				Seed:          21,
				Vehicles:      2,
				Steps:         500,
				ElapsedMillis: 2500,
				Results: []history.VehicleResult{
					{VehicleID: 0, Color: "red", Score: 3},
					{VehicleID: 1, Color: "blue", Score: 30},
				},
			},
			{Seed: 22},
		}
		out := RenderHistory(runs)

		Convey("Each run shows its seed and leader", func() {
			So(out, ShouldContainSubstring, "2 runs")
			So(out, ShouldContainSubstring, "21")
			So(out, ShouldContainSubstring, "car 1 (30)")
			So(out, ShouldContainSubstring, "2.5s")
		})
	})
}
