package reinforcement

import (
	"racer/models"
)

// Sink receives read-only notifications from a run: rendering, car lists, recorders.
// Implementations must be safe for concurrent use and must not block for long; they are
// called from the vehicle goroutines and the frame loop.
type Sink interface {
	// OnTick receives copies of every vehicle once per frame.
	OnTick(snapshots []models.Snapshot)
	// OnScoreChange is called after each reward evaluation of a vehicle.
	OnScoreChange(id, score int)
}

// MultiSink fans notifications out to each sink in order.
type MultiSink []Sink

func (ms MultiSink) OnTick(snapshots []models.Snapshot) {
	for _, sink := range ms {
		sink.OnTick(snapshots)
	}
}

func (ms MultiSink) OnScoreChange(id, score int) {
	for _, sink := range ms {
		sink.OnScoreChange(id, score)
	}
}

// NopSink discards everything.
type NopSink struct{}

func (NopSink) OnTick([]models.Snapshot) {}

func (NopSink) OnScoreChange(int, int) {}
