package reinforcement

import (
	"math/rand"

	"racer/models"
)

// StepResult describes one completed simulation step of one vehicle.
type StepResult struct {
	// Observation is the pre-action observation the step was chosen from.
	Observation models.Observation
	Action      models.Action
	Reward      int
	Collided    bool
	// Learned reports whether the policy store was written.
	Learned bool
}

// vehicleStepper advances one vehicle by one step; the vehicle's goroutine holds it exclusively.
type vehicleStepper interface {
	Step(v *models.Vehicle, rng *rand.Rand) (StepResult, error)
}

// Stepper advances single vehicles by one discrete time step. It holds the shared track
// read-only and the policy store, whose per-vehicle tables are only written by the
// vehicle being stepped; one Stepper may serve every vehicle goroutine.
type Stepper struct {
	track *models.Track
	store *PolicyStore
}

func NewStepper(track *models.Track, store *PolicyStore) *Stepper {
	return &Stepper{
		track: track,
		store: store,
	}
}

// Step runs observe -> choose -> apply -> integrate -> collide -> gate -> reward -> learn.
// The caller must hold exclusive access to v and pass the vehicle's own rng.
func (s *Stepper) Step(v *models.Vehicle, rng *rand.Rand) (result StepResult, err error) {
	result.Observation = models.Observe(s.track, v)
	result.Action = s.store.Choose(v.ID, result.Observation, rng)
	if err = result.Action.Apply(v); err != nil {
		return
	}

	x, y := v.Integrate()
	result.Collided = !v.CommitOrReject(s.track, x, y)
	v.GateStartLine(s.track)

	result.Reward = Reward(s.track, v)
	result.Learned, err = s.store.Record(v.ID, result.Observation, result.Action, float64(result.Reward))
	return
}

// Reward scores the vehicle's latest move and adds it to the vehicle's score:
//   - +1 if the vehicle moved toward the start line since the last evaluation, else -1
//   - -1 if it is off the track
//   - +1 if it is moving, else -1
//
// The net is in [-3, +2]. Progress is tracked per vehicle.
func Reward(track *models.Track, v *models.Vehicle) (reward int) {
	distance := track.DistancePastStartLine(v.Y)
	if v.PrevDistance > distance {
		reward++
	} else {
		reward--
	}
	v.PrevDistance = distance

	if !track.IsInside(v.X, v.Y) {
		reward--
	}

	if v.Speed != 0 {
		reward++
	} else {
		reward--
	}

	v.Score += reward
	return
}
