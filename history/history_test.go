package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"racer/models"
	"racer/reinforcement"

	"github.com/rs/zerolog"
	. "github.com/smartystreets/goconvey/convey"
)

func testResult(seed int64, scores ...int) reinforcement.RunResult {
	result := reinforcement.RunResult{
		Seed:          seed,
		Steps:         100,
		TickInterval:  10 * time.Millisecond,
		FrameInterval: 50 * time.Millisecond,
		Physics:       models.DefaultPhysics(),
		Track:         models.Track{Width: 1200, Height: 400, InnerThreshold: 1.3},
		StartedAt:     time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Elapsed:       1500 * time.Millisecond,
		PolicyWrites:  42,
		Errors:        []error{errors.New("boom")},
	}
	for id, score := range scores {
		result.Vehicles = append(result.Vehicles, reinforcement.VehicleResult{
			ID:         id,
			Color:      "red",
			Score:      score,
			Steps:      100,
			Collisions: id,
			PolicySize: 10 + id,
		})
		result.TotalReward += float64(score)
	}
	return result
}

func TestStore(t *testing.T) {
	Convey("Given an empty run history", t, func() {
		ctx := context.Background()
		store, err := Open(filepath.Join(t.TempDir(), "history.db"), zerolog.Nop())
		So(err, ShouldBeNil)
		defer store.Close()

		Convey("When nothing has been saved", func() {
			runs, err := store.List(ctx, 0)
			So(err, ShouldBeNil)
			So(runs, ShouldBeEmpty)

			_, err = store.Get(ctx, 1)
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
		})

		Convey("When runs are saved", func() {
			first, err := store.Save(ctx, testResult(1, 5, -3, 12))
			So(err, ShouldBeNil)
			So(first.ID, ShouldBeGreaterThan, 0)
			_, err = store.Save(ctx, testResult(2, 7))
			So(err, ShouldBeNil)

			Convey("They are listed newest first", func() {
				runs, err := store.List(ctx, 0)
				So(err, ShouldBeNil)
				So(len(runs), ShouldEqual, 2)
				So(runs[0].Seed, ShouldEqual, 2)
				So(runs[1].Seed, ShouldEqual, 1)

				limited, err := store.List(ctx, 1)
				So(err, ShouldBeNil)
				So(len(limited), ShouldEqual, 1)
			})

			Convey("Run totals and vehicles round trip, vehicles ordered by score", func() {
				run, err := store.Get(ctx, first.ID)
				So(err, ShouldBeNil)
				So(run.Vehicles, ShouldEqual, 3)
				So(run.ElapsedMillis, ShouldEqual, 1500)
				So(run.TotalReward, ShouldEqual, 14.0)
				So(run.PolicyWrites, ShouldEqual, 42)
				So(run.Errors, ShouldEqual, 1)
				So(run.TickIntervalMillis, ShouldEqual, 10)
				So(run.FrameIntervalMillis, ShouldEqual, 50)
				So(run.MaxSpeed, ShouldEqual, models.MAX_SPEED)
				So(run.Acceleration, ShouldEqual, models.ACCELERATION)
				So(run.RotationSpeed, ShouldEqual, models.ROTATION_SPEED)
				So(run.WorldWidth, ShouldEqual, 1200.0)
				So(run.WorldHeight, ShouldEqual, 400.0)
				So(run.InnerThreshold, ShouldEqual, 1.3)
				So(run.StartedAt.Equal(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)), ShouldBeTrue)

				So(len(run.Results), ShouldEqual, 3)
				So(run.Results[0].VehicleID, ShouldEqual, 2)
				So(run.Results[0].Score, ShouldEqual, 12)
				So(run.Results[0].PolicySize, ShouldEqual, 12)
				So(run.Results[2].Score, ShouldEqual, -3)

				leader, ok := run.Leader()
				So(ok, ShouldBeTrue)
				So(leader.VehicleID, ShouldEqual, 2)
			})
		})
	})
}
