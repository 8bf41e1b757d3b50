// history records the outcome of finished runs in sqlite. Only outcomes are kept:
// learned policies never leave the process that built them.
package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"racer/reinforcement"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Run is one finished run with the configuration it ran with.
type Run struct {
	gorm.Model
	Seed                int64
	Vehicles            int
	Steps               int
	TickIntervalMillis  int64
	FrameIntervalMillis int64
	MaxSpeed            float64
	Acceleration        float64
	RotationSpeed       float64
	WorldWidth          float64
	WorldHeight         float64
	InnerThreshold      float64

	StartedAt     time.Time
	ElapsedMillis int64
	TotalReward   float64
	PolicyWrites  int64
	Errors        int
	Results       []VehicleResult `gorm:"foreignKey:RunID"`
}

// VehicleResult is one vehicle's outcome within a run.
type VehicleResult struct {
	gorm.Model
	RunID      uint `gorm:"index"`
	VehicleID  int
	Color      string `gorm:"size:32"`
	Score      int
	Steps      int
	Collisions int
	PolicySize int
	Stopped    bool
}

// Leader returns the best scoring vehicle of the run, if any.
func (run *Run) Leader() (VehicleResult, bool) {
	if len(run.Results) == 0 {
		return VehicleResult{}, false
	}
	best := run.Results[0]
	for _, vr := range run.Results[1:] {
		if vr.Score > best.Score {
			best = vr
		}
	}
	return best, true
}

// ErrNotFound is returned when no run has the requested id.
var ErrNotFound = errors.New("run not found")

// Store persists run outcomes.
type Store struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// Open opens or creates the sqlite database at path; an empty path keeps it in memory.
func Open(path string, log zerolog.Logger) (*Store, error) {
	dsn := path
	if dsn == "" {
		dsn = "file::memory:?cache=shared"
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening run history %q: %w", path, err)
	}
	if err = db.AutoMigrate(&Run{}, &VehicleResult{}); err != nil {
		return nil, fmt.Errorf("migrating run history: %w", err)
	}
	log.Debug().Str("path", path).Msg("run history opened")
	return &Store{db: db, logger: log}, nil
}

// Save records a finished run and its vehicles.
func (s *Store) Save(ctx context.Context, result reinforcement.RunResult) (*Run, error) {
	run := &Run{
		Seed:                result.Seed,
		Vehicles:            len(result.Vehicles),
		Steps:               result.Steps,
		TickIntervalMillis:  result.TickInterval.Milliseconds(),
		FrameIntervalMillis: result.FrameInterval.Milliseconds(),
		MaxSpeed:            result.Physics.MaxSpeed,
		Acceleration:        result.Physics.Acceleration,
		RotationSpeed:       result.Physics.RotationSpeed,
		WorldWidth:          result.Track.Width,
		WorldHeight:         result.Track.Height,
		InnerThreshold:      result.Track.InnerThreshold,
		StartedAt:           result.StartedAt,
		ElapsedMillis:       result.Elapsed.Milliseconds(),
		TotalReward:         result.TotalReward,
		PolicyWrites:        result.PolicyWrites,
		Errors:              len(result.Errors),
		Results:             make([]VehicleResult, len(result.Vehicles)),
	}
	for i, vr := range result.Vehicles {
		run.Results[i] = VehicleResult{
			VehicleID:  vr.ID,
			Color:      vr.Color,
			Score:      vr.Score,
			Steps:      vr.Steps,
			Collisions: vr.Collisions,
			PolicySize: vr.PolicySize,
			Stopped:    vr.Stopped,
		}
	}

	if err := s.db.WithContext(ctx).Create(run).Error; err != nil {
		return nil, fmt.Errorf("saving run: %w", err)
	}
	s.logger.Info().Uint("run", run.ID).Int("vehicles", run.Vehicles).Msg("run saved")
	return run, nil
}

// List returns up to limit runs, newest first, with their vehicles ordered by score.
// A non-positive limit returns every run.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	var runs []Run
	query := s.db.WithContext(ctx).
		Preload("Results", func(db *gorm.DB) *gorm.DB {
			return db.Order("score DESC, vehicle_id ASC")
		}).
		Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	return runs, nil
}

// Get returns one run with its vehicles ordered by score.
func (s *Store) Get(ctx context.Context, id uint) (*Run, error) {
	run := &Run{}
	err := s.db.WithContext(ctx).
		Preload("Results", func(db *gorm.DB) *gorm.DB {
			return db.Order("score DESC, vehicle_id ASC")
		}).
		First(run, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting run %d: %w", id, err)
	}
	return run, nil
}

// Close releases the database.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
