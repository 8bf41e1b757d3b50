package reinforcement

import (
	"errors"
	"math/rand"
	"testing"

	"racer/models"

	. "github.com/smartystreets/goconvey/convey"
)

func TestPolicyStore(t *testing.T) {
	Convey("Given an empty policy store for two vehicles", t, func() {
		store := NewPolicyStore(2)
		obs := models.Observation{Angle: 0, Distance: 450, OnTrack: true}
		rng := rand.New(rand.NewSource(1))

		Convey("When an observation has never been seen", func() {
			_, ok := store.Lookup(0, obs)
			So(ok, ShouldBeFalse)
			So(store.Choose(0, obs, rng).Valid(), ShouldBeTrue)
			So(store.Len(0), ShouldEqual, 0)
		})

		Convey("When the first reward is recorded it is always written", func() {
			written, err := store.Record(0, obs, models.TurnLeft, -2)
			So(err, ShouldBeNil)
			So(written, ShouldBeTrue)

			entry, ok := store.Lookup(0, obs)
			So(ok, ShouldBeTrue)
			So(entry.Action, ShouldEqual, models.TurnLeft)
			So(entry.Value, ShouldEqual, -2.0)
			So(store.Writes(), ShouldEqual, 1)
		})

		Convey("When a different action earns a reward", func() {
			_, err := store.Record(0, obs, models.Forward, 1)
			So(err, ShouldBeNil)

			Convey("A lower reward does not replace the entry", func() {
				written, _ := store.Record(0, obs, models.Backward, -1)
				So(written, ShouldBeFalse)
				entry, _ := store.Lookup(0, obs)
				So(entry.Action, ShouldEqual, models.Forward)
			})

			Convey("An equal reward keeps the first write", func() {
				written, _ := store.Record(0, obs, models.Backward, 1)
				So(written, ShouldBeFalse)
				entry, _ := store.Lookup(0, obs)
				So(entry.Action, ShouldEqual, models.Forward)
			})

			Convey("A strictly higher reward replaces the entry", func() {
				written, _ := store.Record(0, obs, models.TurnRight, 2)
				So(written, ShouldBeTrue)
				entry, _ := store.Lookup(0, obs)
				So(entry, ShouldResemble, Entry{Action: models.TurnRight, Value: 2})
			})
		})

		Convey("When the stored action degrades its value is overwritten", func() {
			store.Record(0, obs, models.Forward, 2)
			written, _ := store.Record(0, obs, models.Forward, -1)
			So(written, ShouldBeTrue)
			entry, _ := store.Lookup(0, obs)
			So(entry.Value, ShouldEqual, -1.0)
			So(store.Writes(), ShouldEqual, 2)
		})

		Convey("When the stored value is non-negative it is always chosen", func() {
			store.Record(0, obs, models.TurnRight, 0)
			for i := 0; i < 100; i++ {
				So(store.Choose(0, obs, rng), ShouldEqual, models.TurnRight)
			}
		})

		Convey("When the stored value is negative choice falls back to exploration", func() {
			store.Record(0, obs, models.TurnRight, -1)
			seen := map[models.Action]bool{}
			for i := 0; i < 200; i++ {
				seen[store.Choose(0, obs, rng)] = true
			}
			So(len(seen), ShouldEqual, models.NUM_ACTIONS)
		})

		Convey("When one vehicle learns, the other's table is untouched", func() {
			store.Record(0, obs, models.Forward, 2)
			_, ok := store.Lookup(1, obs)
			So(ok, ShouldBeFalse)
			So(store.Len(1), ShouldEqual, 0)
		})

		Convey("When an unknown action is recorded", func() {
			written, err := store.Record(0, obs, models.Action(9), 2)
			So(written, ShouldBeFalse)
			So(errors.Is(err, models.ErrUnknownAction), ShouldBeTrue)
			So(store.Len(0), ShouldEqual, 0)
		})

		Convey("When the vehicle id is out of range", func() {
			_, err := store.Record(5, obs, models.Forward, 1)
			So(err, ShouldNotBeNil)
			_, ok := store.Lookup(-1, obs)
			So(ok, ShouldBeFalse)
		})
	})
}
