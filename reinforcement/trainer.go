package reinforcement

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"racer/atomic_float"
	"racer/models"

	channerics "github.com/niceyeti/channerics/channels"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

var (
	ErrRunInProgress = errors.New("a run is already in progress")
	ErrNoRun         = errors.New("no run has been started")
)

// VehicleState is the lifecycle of one vehicle's schedule within a run.
type VehicleState int32

const (
	Idle VehicleState = iota
	Running
	Done
)

func (vs VehicleState) String() string {
	switch vs {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Done:
		return "done"
	}
	return fmt.Sprintf("VehicleState(%d)", int32(vs))
}

// StepError is a failed step. It ends only the owning vehicle's schedule.
type StepError struct {
	VehicleID int
	Step      int
	Err       error
}

func (se *StepError) Error() string {
	return fmt.Sprintf("vehicle %d step %d: %v", se.VehicleID, se.Step, se.Err)
}

func (se *StepError) Unwrap() error {
	return se.Err
}

// VehicleResult summarizes one vehicle after its schedule ended.
type VehicleResult struct {
	ID         int
	Color      string
	Score      int
	Steps      int
	Collisions int
	PolicySize int
	// Stopped is set when the schedule ended before completing its steps.
	Stopped bool
}

// RunResult summarizes a finished run and the configuration it ran with.
type RunResult struct {
	Seed          int64
	Steps         int
	TickInterval  time.Duration
	FrameInterval time.Duration
	Physics       models.Physics
	Track         models.Track
	StartedAt     time.Time
	Elapsed       time.Duration
	Vehicles      []VehicleResult
	TotalReward   float64
	PolicyWrites  int64
	Errors        []error
}

// progress is written only by the owning vehicle goroutine and read after it exits.
type progress struct {
	steps      int
	collisions int
	stopped    bool
}

type run struct {
	fleet   *models.Fleet
	store   *PolicyStore
	stepper vehicleStepper
	sink    Sink
	tel     *telemetry
	logger  zerolog.Logger

	track         *models.Track
	physics       models.Physics
	seed          int64
	steps         int
	tickInterval  time.Duration
	frameInterval time.Duration
	startedAt     time.Time

	cancels   []context.CancelFunc
	cancelRun context.CancelFunc
	states    []atomic.Int32
	progress  []progress
	reward    *atomic_float.AtomicFloat64

	group     errgroup.Group
	frameStop context.CancelFunc
	frameDone chan struct{}

	errMu sync.Mutex
	errs  []error

	waitOnce sync.Once
	result   RunResult
}

// Trainer schedules one run at a time: each vehicle steps on its own goroutine for a
// bounded number of steps, while a frame loop publishes fleet snapshots to the sink.
type Trainer struct {
	cfg    *TrainingConfig
	sink   Sink
	tel    *telemetry
	logger zerolog.Logger

	// newStepper builds the run's stepper from its track and policy store.
	newStepper func(*models.Track, *PolicyStore) vehicleStepper

	mu  sync.Mutex
	run *run
}

// NewTrainer returns a trainer for cfg. A nil sink discards notifications.
func NewTrainer(cfg *TrainingConfig, sink Sink, logger zerolog.Logger) (*Trainer, error) {
	if cfg == nil {
		cfg = DefaultTrainingConfig()
	}
	if sink == nil {
		sink = NopSink{}
	}
	tel, err := newTelemetry()
	if err != nil {
		return nil, err
	}
	return &Trainer{
		cfg:    cfg,
		sink:   sink,
		tel:    tel,
		logger: logger,
		newStepper: func(track *models.Track, store *PolicyStore) vehicleStepper {
			return NewStepper(track, store)
		},
	}, nil
}

// ParseRunRequest validates raw vehicle and step counts, e.g. from a form or flags.
func ParseRunRequest(vehicles, steps string) (numVehicles, numSteps int, err error) {
	if numVehicles, err = parseCount("vehicle count", vehicles); err != nil {
		return 0, 0, err
	}
	if numSteps, err = parseCount("step count", steps); err != nil {
		return 0, 0, err
	}
	return
}

func parseCount(name, raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q is not a number", models.ErrInvalidConfiguration, name, raw)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%w: %s must be positive, got %d", models.ErrInvalidConfiguration, name, n)
	}
	return n, nil
}

// StartRun builds a fresh fleet and policy store and starts every vehicle's schedule.
// numSteps is clamped to the step cap. Invalid input is rejected before any vehicle is
// created. Cancelling ctx stops every vehicle.
func (t *Trainer) StartRun(ctx context.Context, numVehicles, numSteps int) error {
	if numVehicles <= 0 {
		return fmt.Errorf("%w: vehicle count must be positive, got %d", models.ErrInvalidConfiguration, numVehicles)
	}
	if numSteps <= 0 {
		return fmt.Errorf("%w: step count must be positive, got %d", models.ErrInvalidConfiguration, numSteps)
	}
	numSteps = min(numSteps, t.cfg.StepCap())

	tickInterval, err := t.cfg.TickInterval()
	if err != nil {
		return err
	}
	frameInterval, err := t.cfg.FrameInterval()
	if err != nil {
		return err
	}
	track, err := t.cfg.Track()
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.run != nil && !t.run.finished() {
		return ErrRunInProgress
	}
	if t.run != nil {
		// Release the previous run's frame loop if nobody waited on it.
		t.run.wait()
	}

	physics := t.cfg.Physics()
	fleet, err := models.NewFleet(numVehicles, track, physics)
	if err != nil {
		return err
	}

	seed := t.cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	runCtx, cancelRun, err := t.cfg.WithTrainingDeadline(ctx)
	if err != nil {
		return err
	}

	store := NewPolicyStore(numVehicles)
	r := &run{
		fleet:         fleet,
		store:         store,
		stepper:       t.newStepper(track, store),
		sink:          t.sink,
		tel:           t.tel,
		logger:        t.logger,
		track:         track,
		physics:       physics,
		seed:          seed,
		steps:         numSteps,
		tickInterval:  tickInterval,
		frameInterval: frameInterval,
		startedAt:     time.Now(),
		cancels:       make([]context.CancelFunc, numVehicles),
		cancelRun:     cancelRun,
		states:        make([]atomic.Int32, numVehicles),
		progress:      make([]progress, numVehicles),
		reward:        atomic_float.NewAtomicFloat64(0),
		frameDone:     make(chan struct{}),
	}

	t.logger.Info().
		Int("vehicles", numVehicles).
		Int("steps", numSteps).
		Int64("seed", seed).
		Dur("tick", tickInterval).
		Msg("starting run")

	frameCtx, frameStop := context.WithCancel(context.Background())
	r.frameStop = frameStop
	go r.frames(frameCtx)

	for id := 0; id < numVehicles; id++ {
		vctx, cancel := context.WithCancel(runCtx)
		r.cancels[id] = cancel
		// Each vehicle draws from its own source so trajectories do not depend on interleaving.
		rng := rand.New(rand.NewSource(seed + int64(id)))
		r.group.Go(func() error {
			defer cancel()
			return r.drive(vctx, id, rng)
		})
	}

	t.run = r
	return nil
}

// Stop cancels one vehicle's schedule. Stopping a finished or already stopped vehicle is a no-op.
func (t *Trainer) Stop(id int) error {
	r, err := t.current()
	if err != nil {
		return err
	}
	if id < 0 || id >= len(r.cancels) {
		return fmt.Errorf("no vehicle with id %d in fleet of %d", id, len(r.cancels))
	}
	r.cancels[id]()
	return nil
}

// StopAll cancels every vehicle's schedule.
func (t *Trainer) StopAll() {
	if r, err := t.current(); err == nil {
		r.cancelRun()
	}
}

// Wait blocks until every vehicle is Done and returns the run's summary.
// Subsequent calls return the same summary.
func (t *Trainer) Wait() (RunResult, error) {
	r, err := t.current()
	if err != nil {
		return RunResult{}, err
	}
	return r.wait(), nil
}

// State returns a vehicle's schedule state in the current run.
func (t *Trainer) State(id int) (VehicleState, error) {
	r, err := t.current()
	if err != nil {
		return Idle, err
	}
	if id < 0 || id >= len(r.states) {
		return Idle, fmt.Errorf("no vehicle with id %d in fleet of %d", id, len(r.states))
	}
	return VehicleState(r.states[id].Load()), nil
}

// Snapshots copies every vehicle of the current run; nil if no run has started.
func (t *Trainer) Snapshots() []models.Snapshot {
	r, err := t.current()
	if err != nil {
		return nil
	}
	return r.fleet.Snapshots()
}

func (t *Trainer) current() (*run, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.run == nil {
		return nil, ErrNoRun
	}
	return t.run, nil
}

func (r *run) finished() bool {
	for i := range r.states {
		if VehicleState(r.states[i].Load()) != Done {
			return false
		}
	}
	return true
}

// drive runs one vehicle's schedule: Idle -> Running -> Done.
func (r *run) drive(ctx context.Context, id int, rng *rand.Rand) error {
	r.states[id].Store(int32(Running))
	defer r.states[id].Store(int32(Done))

	logger := r.logger.With().Int("vehicle", id).Logger()
	prog := &r.progress[id]

	var tick <-chan time.Time
	if r.tickInterval > 0 {
		tick = channerics.NewTicker(ctx.Done(), r.tickInterval)
	}

	for prog.steps < r.steps {
		if tick != nil {
			select {
			case <-ctx.Done():
			case <-tick:
			}
		}
		if ctx.Err() != nil {
			prog.stopped = true
			logger.Debug().Int("steps", prog.steps).Msg("vehicle stopped")
			return nil
		}

		var (
			result StepResult
			score  int
		)
		err := r.fleet.Update(id, func(v *models.Vehicle) (stepErr error) {
			result, stepErr = r.stepper.Step(v, rng)
			score = v.Score
			return
		})
		if err != nil {
			stepErr := &StepError{VehicleID: id, Step: prog.steps, Err: err}
			prog.stopped = true
			r.addError(stepErr)
			logger.Error().Err(err).Int("step", prog.steps).Msg("step failed")
			return stepErr
		}

		prog.steps++
		if result.Collided {
			prog.collisions++
		}
		r.reward.Accumulate(float64(result.Reward))
		r.tel.record(ctx, id, result)

		r.sink.OnScoreChange(id, score)
		if r.frameInterval == 0 {
			r.sink.OnTick(r.fleet.Snapshots())
		}
	}

	logger.Debug().Int("steps", prog.steps).Int("collisions", prog.collisions).Msg("vehicle done")
	return nil
}

// frames publishes fleet snapshots every frame interval until stopped. With a zero
// interval the vehicles publish after each step instead.
func (r *run) frames(ctx context.Context) {
	defer close(r.frameDone)
	if r.frameInterval == 0 {
		<-ctx.Done()
		return
	}
	ticker := channerics.NewTicker(ctx.Done(), r.frameInterval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker:
			r.sink.OnTick(r.fleet.Snapshots())
		}
	}
}

func (r *run) addError(err error) {
	r.errMu.Lock()
	defer r.errMu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *run) wait() RunResult {
	r.waitOnce.Do(func() {
		// Vehicle errors are already collected; the group's first error is redundant.
		_ = r.group.Wait()
		r.cancelRun()
		r.frameStop()
		<-r.frameDone

		snaps := r.fleet.Snapshots()
		r.sink.OnTick(snaps)

		result := RunResult{
			Seed:          r.seed,
			Steps:         r.steps,
			TickInterval:  r.tickInterval,
			FrameInterval: r.frameInterval,
			Physics:       r.physics,
			Track:         *r.track,
			StartedAt:     r.startedAt,
			Elapsed:       time.Since(r.startedAt),
			Vehicles:      make([]VehicleResult, len(snaps)),
			TotalReward:   r.reward.AtomicRead(),
			PolicyWrites:  r.store.Writes(),
		}
		for id, snap := range snaps {
			result.Vehicles[id] = VehicleResult{
				ID:         id,
				Color:      snap.Color,
				Score:      snap.Score,
				Steps:      r.progress[id].steps,
				Collisions: r.progress[id].collisions,
				PolicySize: r.store.Len(id),
				Stopped:    r.progress[id].stopped,
			}
		}
		r.errMu.Lock()
		result.Errors = append([]error(nil), r.errs...)
		r.errMu.Unlock()
		r.result = result

		r.logger.Info().
			Int("vehicles", len(snaps)).
			Float64("total_reward", result.TotalReward).
			Int64("policy_writes", result.PolicyWrites).
			Int("errors", len(result.Errors)).
			Dur("elapsed", result.Elapsed).
			Msg("run finished")
	})
	return r.result
}
