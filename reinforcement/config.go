package reinforcement

import (
	"context"
	"fmt"
	"time"

	"racer/models"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	// MaxSteps is the hard cap on steps per vehicle per run.
	MaxSteps = 7000

	DefaultTickInterval  = 10 * time.Millisecond
	DefaultFrameInterval = 50 * time.Millisecond
)

// OuterConfig is the config file envelope: a kind and its definition.
type OuterConfig struct {
	Kind string      `mapstructure:"kind"`
	Def  interface{} `mapstructure:"def"`
}

// TrainingConfig holds run sizing, pacing and physics parameters.
// NOTE: viper lowercases every key it reads, so the yaml tags are lowercase; the
// config file itself may use any casing.
type TrainingConfig struct {
	// HyperParams is a key-val list of physics and geometry parameters.
	HyperParams []HyperParameter `yaml:"hyperparams"`
	Fleet       FleetConfig      `yaml:"fleet"`
	Timing      TimingConfig     `yaml:"timing"`
	// Seed for the vehicles' action choice. Zero selects a time-based seed.
	Seed int64 `yaml:"seed"`
	// TrainingDeadline is an optional wall-clock bound on a run, e.g. duration: 1m.
	TrainingDeadline map[string]string `yaml:"trainingdeadline"`
}

type HyperParameter struct {
	Key string  `yaml:"key"`
	Val float64 `yaml:"val"`
}

type FleetConfig struct {
	Vehicles int `yaml:"vehicles"`
	Steps    int `yaml:"steps"`
	MaxSteps int `yaml:"maxsteps"`
}

// TimingConfig holds durations in time.ParseDuration form. "0s" disables the throttle.
type TimingConfig struct {
	TickInterval  string `yaml:"tickinterval"`
	FrameInterval string `yaml:"frameinterval"`
}

// DefaultTrainingConfig returns a config with every field populated.
func DefaultTrainingConfig() *TrainingConfig {
	return &TrainingConfig{
		Fleet: FleetConfig{
			Vehicles: 5,
			Steps:    MaxSteps,
			MaxSteps: MaxSteps,
		},
		Timing: TimingConfig{
			TickInterval:  DefaultTickInterval.String(),
			FrameInterval: DefaultFrameInterval.String(),
		},
		TrainingDeadline: map[string]string{},
	}
}

func (cfg *TrainingConfig) GetHyperParamOrDefault(param string, defaultVal float64) float64 {
	for _, kvp := range cfg.HyperParams {
		if kvp.Key == param {
			return kvp.Val
		}
	}
	return defaultVal
}

// Physics returns the vehicle parameters, falling back to the stock values.
func (cfg *TrainingConfig) Physics() models.Physics {
	return models.Physics{
		MaxSpeed:      cfg.GetHyperParamOrDefault("maxSpeed", models.MAX_SPEED),
		Acceleration:  cfg.GetHyperParamOrDefault("acceleration", models.ACCELERATION),
		RotationSpeed: cfg.GetHyperParamOrDefault("rotationSpeed", models.ROTATION_SPEED),
	}
}

// Track builds the track geometry for the configured world size.
func (cfg *TrainingConfig) Track() (*models.Track, error) {
	return models.NewTrack(
		cfg.GetHyperParamOrDefault("worldWidth", models.WORLD_WIDTH),
		cfg.GetHyperParamOrDefault("worldHeight", models.WORLD_HEIGHT),
		cfg.GetHyperParamOrDefault("innerThreshold", models.INNER_THRESHOLD),
	)
}

// TickInterval is the pause between consecutive steps of one vehicle.
func (cfg *TrainingConfig) TickInterval() (time.Duration, error) {
	return parseInterval("tick interval", cfg.Timing.TickInterval, DefaultTickInterval)
}

// FrameInterval is the pause between sink frames; zero means a frame per step.
func (cfg *TrainingConfig) FrameInterval() (time.Duration, error) {
	return parseInterval("frame interval", cfg.Timing.FrameInterval, DefaultFrameInterval)
}

func parseInterval(name, val string, defaultVal time.Duration) (time.Duration, error) {
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", models.ErrInvalidConfiguration, name, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%w: %s must not be negative, got %s", models.ErrInvalidConfiguration, name, d)
	}
	return d, nil
}

// StepCap returns the effective per-vehicle cap: the configured max, never above MaxSteps.
func (cfg *TrainingConfig) StepCap() int {
	if cfg.Fleet.MaxSteps <= 0 || cfg.Fleet.MaxSteps > MaxSteps {
		return MaxSteps
	}
	return cfg.Fleet.MaxSteps
}

// WithTrainingDeadline returns a context extended by the training deadline, if one is specified.
func (cfg *TrainingConfig) WithTrainingDeadline(
	ctx context.Context,
) (context.Context, context.CancelFunc, error) {
	if val, ok := cfg.TrainingDeadline["duration"]; ok && val != "" {
		duration, err := time.ParseDuration(val)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: training deadline: %v", models.ErrInvalidConfiguration, err)
		}
		innerCtx, cancel := context.WithTimeout(ctx, duration)
		return innerCtx, cancel, nil
	}
	defaultCtx, cancel := context.WithCancel(ctx)
	return defaultCtx, cancel, nil
}

// FromYaml reads a {kind, def} config file.
func FromYaml(path string) (*TrainingConfig, error) {
	vp := viper.New()
	vp.SetConfigFile(path)
	vp.SetConfigType("yaml")
	if err := vp.ReadInConfig(); err != nil {
		return nil, err
	}
	return FromViper(vp)
}

// FromViper decodes the def section of an already populated viper instance over the
// defaults. Flags bound under "def.<section>.<key>" override file values.
func FromViper(vp *viper.Viper) (*TrainingConfig, error) {
	outerConfig := &OuterConfig{}
	if err := vp.Unmarshal(outerConfig); err != nil {
		return nil, err
	}

	cfg := DefaultTrainingConfig()
	if outerConfig.Def == nil {
		return cfg, nil
	}

	spec, err := yaml.Marshal(outerConfig.Def)
	if err != nil {
		return nil, err
	}
	if err = yaml.Unmarshal(spec, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
