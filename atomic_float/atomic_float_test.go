package atomic_float

import (
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestAtomicAdd(t *testing.T) {
	Convey("When atomicAdd is called", t, func() {
		Convey("When multiple writers accumulate into the float value concurrently", func() {
			af := NewAtomicFloat64(0)
			numOps := 3000
			numWriters := 200

			start := make(chan struct{})
			wg := sync.WaitGroup{}
			wg.Add(numWriters)
			adder := func() {
				<-start
				for i := 0; i < numOps; i++ {
					af.Accumulate(1.0)
				}
				wg.Done()
			}

			for i := 0; i < numWriters; i++ {
				go adder()
			}

			// Wait for goroutines to begin
			time.Sleep(time.Millisecond * 10)
			close(start)
			wg.Wait()
			So(af.AtomicRead(), ShouldEqual, float64(numOps*numWriters))
		})

		Convey("When writers increment and decrement with explicit retries", func() {
			af := NewAtomicFloat64(0)
			numOps := 3000
			numWriters := 50

			start := make(chan struct{})
			wg := sync.WaitGroup{}
			wg.Add(numWriters * 2)
			worker := func(addend float64) {
				<-start
				for i := 0; i < numOps; i++ {
					for succeeded := false; !succeeded; _, succeeded = af.AtomicAdd(addend) {
					}
				}
				wg.Done()
			}

			for i := 0; i < numWriters; i++ {
				go worker(1.0)
				go worker(-1.0)
			}

			time.Sleep(time.Millisecond * 10)
			close(start)
			wg.Wait()
			So(af.AtomicRead(), ShouldEqual, 0.0)
		})

		Convey("When the value is set and read back", func() {
			var af AtomicFloat64
			So(af.AtomicRead(), ShouldEqual, 0.0)
			af.AtomicSet(-2.5)
			So(af.AtomicRead(), ShouldEqual, -2.5)
			newVal, ok := af.AtomicAdd(0.5)
			So(ok, ShouldBeTrue)
			So(newVal, ShouldEqual, -2.0)
		})
	})
}
