package reinforcement

import (
	"math/rand"
	"testing"

	"racer/models"

	. "github.com/smartystreets/goconvey/convey"
)

func newTestTrack() *models.Track {
	track, err := models.NewTrack(models.WORLD_WIDTH, models.WORLD_HEIGHT, models.INNER_THRESHOLD)
	So(err, ShouldBeNil)
	return track
}

func TestReward(t *testing.T) {
	Convey("Given a vehicle at the spawn pose", t, func() {
		track := newTestTrack()
		v := models.NewVehicle(0, track, models.DefaultPhysics())

		Convey("When it has not moved and is stopped on the track", func() {
			So(Reward(track, v), ShouldEqual, -2)
			So(v.Score, ShouldEqual, -2)
		})

		Convey("When it moved toward the start line at speed", func() {
			v.Y -= 10
			v.Speed = models.MAX_SPEED
			So(Reward(track, v), ShouldEqual, 2)
			So(v.PrevDistance, ShouldEqual, track.DistancePastStartLine(v.Y))

			Convey("Holding position on the next evaluation is not progress", func() {
				So(Reward(track, v), ShouldEqual, 0)
				So(v.Score, ShouldEqual, 2)
			})
		})

		Convey("When it is off the track and stopped", func() {
			v.X, v.Y = track.CenterX, track.CenterY
			So(Reward(track, v), ShouldEqual, -1)
		})

		Convey("When it moves away from the start line off the track", func() {
			v.Y += 500
			So(Reward(track, v), ShouldEqual, -3)
		})

		Convey("When two vehicles are rewarded, progress is tracked separately", func() {
			other := models.NewVehicle(1, track, models.DefaultPhysics())
			v.Y -= 10
			v.Speed = 1
			So(Reward(track, v), ShouldEqual, 2)
			So(Reward(track, other), ShouldEqual, -2)
		})
	})
}

func TestStepper(t *testing.T) {
	Convey("Given a stepper over the default track", t, func() {
		track := newTestTrack()
		store := NewPolicyStore(1)
		stepper := NewStepper(track, store)
		v := models.NewVehicle(0, track, models.DefaultPhysics())
		rng := rand.New(rand.NewSource(3))

		Convey("When a vehicle steps forward once from spawn", func() {
			spawn := models.Observe(track, v)
			_, err := store.Record(0, spawn, models.Forward, 0)
			So(err, ShouldBeNil)

			result, err := stepper.Step(v, rng)
			So(err, ShouldBeNil)
			So(result.Action, ShouldEqual, models.Forward)
			So(result.Collided, ShouldBeFalse)
			So(v.Speed, ShouldAlmostEqual, 0.1)
			So(v.X, ShouldAlmostEqual, 560.1)
			So(v.Y, ShouldAlmostEqual, 650)

			// No progress toward the start line (-1) while moving (+1).
			So(result.Reward, ShouldEqual, 0)
			So(v.Score, ShouldEqual, 0)
			entry, ok := store.Lookup(0, spawn)
			So(ok, ShouldBeTrue)
			So(entry, ShouldResemble, Entry{Action: models.Forward, Value: 0})
		})

		Convey("When a vehicle steps once from spawn", func() {
			before := models.Observe(track, v)
			result, err := stepper.Step(v, rng)
			So(err, ShouldBeNil)

			So(result.Observation, ShouldResemble, before)
			So(result.Action.Valid(), ShouldBeTrue)
			So(result.Reward, ShouldBeBetweenOrEqual, -3, 2)
			So(v.Score, ShouldEqual, result.Reward)
			So(result.Collided, ShouldBeFalse)

			Convey("The policy is keyed by the pre-action observation", func() {
				So(result.Learned, ShouldBeTrue)
				entry, ok := store.Lookup(0, before)
				So(ok, ShouldBeTrue)
				So(entry.Action, ShouldEqual, result.Action)
				So(entry.Value, ShouldEqual, float64(result.Reward))
			})
		})

		Convey("When a vehicle is about to leave the track", func() {
			v.X, v.Y = 570, 719.5
			v.Angle = 1.5707963267948966
			v.Speed = models.MAX_SPEED
			// A learned non-negative entry pins the choice to Forward.
			store.Record(0, models.Observe(track, v), models.Forward, 0)

			result, err := stepper.Step(v, rng)
			So(err, ShouldBeNil)
			So(result.Action, ShouldEqual, models.Forward)
			So(result.Collided, ShouldBeTrue)
			So(v.X, ShouldEqual, 570)
			So(v.Y, ShouldEqual, 719.5)
			So(v.Speed, ShouldEqual, 0)
		})

		Convey("When many steps run, rewards stay in range and the vehicle stays on track", func() {
			for i := 0; i < 2000; i++ {
				result, err := stepper.Step(v, rng)
				So(err, ShouldBeNil)
				So(result.Reward, ShouldBeBetweenOrEqual, -3, 2)
				So(track.IsInside(v.X, v.Y), ShouldBeTrue)
				So(v.Speed, ShouldBeBetweenOrEqual, -models.MAX_SPEED, models.MAX_SPEED)
			}
			So(store.Len(0), ShouldBeGreaterThan, 0)
			So(store.Writes(), ShouldBeLessThanOrEqualTo, 2000)
		})
	})
}
