package server

import (
	"racer/models"
)

// Publisher is a training sink that hands fleet frames to the views. Frames are
// idempotent, so when the views fall behind the pending frame is replaced by the newest
// one instead of blocking the simulation.
type Publisher struct {
	frames chan []models.Snapshot
}

func NewPublisher() *Publisher {
	return &Publisher{frames: make(chan []models.Snapshot, 1)}
}

// Frames is the snapshot source for the root view.
func (p *Publisher) Frames() <-chan []models.Snapshot {
	return p.frames
}

func (p *Publisher) OnTick(snapshots []models.Snapshot) {
	for {
		select {
		case p.frames <- snapshots:
			return
		default:
		}
		// Drop the stale frame and retry.
		select {
		case <-p.frames:
		default:
		}
	}
}

// OnScoreChange is a no-op: scores reach the page with the next frame.
func (p *Publisher) OnScoreChange(id, score int) {}
