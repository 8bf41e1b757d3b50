package models

import (
	"fmt"
	"sync"
)

// slot guards one vehicle so that its owner can mutate it while sinks take snapshots.
type slot struct {
	mu      sync.RWMutex
	vehicle *Vehicle
}

// Fleet is the arena of vehicles for one run, addressed by stable integer ids 0..Len()-1.
// The set of vehicles never changes after construction; a new run builds a new fleet.
type Fleet struct {
	slots []*slot
}

// NewFleet creates n vehicles at the spawn pose.
func NewFleet(n int, track *Track, physics Physics) (*Fleet, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: vehicle count must be positive, got %d", ErrInvalidConfiguration, n)
	}
	if physics.MaxSpeed <= 0 || physics.Acceleration <= 0 || physics.RotationSpeed <= 0 {
		return nil, fmt.Errorf("%w: vehicle physics must be positive: %+v", ErrInvalidConfiguration, physics)
	}
	if !track.IsInside(track.Spawn.X, track.Spawn.Y) {
		return nil, fmt.Errorf("%w: spawn point (%.1f, %.1f) is off the track",
			ErrInvalidConfiguration, track.Spawn.X, track.Spawn.Y)
	}
	fleet := &Fleet{slots: make([]*slot, n)}
	for id := range fleet.slots {
		fleet.slots[id] = &slot{vehicle: NewVehicle(id, track, physics)}
	}
	return fleet, nil
}

// Len returns the number of vehicles.
func (f *Fleet) Len() int {
	return len(f.slots)
}

// Update runs fn with exclusive access to the vehicle. fn must not retain the pointer.
func (f *Fleet) Update(id int, fn func(*Vehicle) error) error {
	s, err := f.slot(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.vehicle)
}

// Snapshot copies one vehicle's state.
func (f *Fleet) Snapshot(id int) (Snapshot, error) {
	s, err := f.slot(id)
	if err != nil {
		return Snapshot{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.vehicle.Snapshot(), nil
}

// Snapshots copies every vehicle, ordered by id. Each copy is consistent on its own;
// vehicles may be captured at different steps.
func (f *Fleet) Snapshots() []Snapshot {
	snaps := make([]Snapshot, len(f.slots))
	for id, s := range f.slots {
		s.mu.RLock()
		snaps[id] = s.vehicle.Snapshot()
		s.mu.RUnlock()
	}
	return snaps
}

func (f *Fleet) slot(id int) (*slot, error) {
	if id < 0 || id >= len(f.slots) {
		return nil, fmt.Errorf("no vehicle with id %d in fleet of %d", id, len(f.slots))
	}
	return f.slots[id], nil
}
