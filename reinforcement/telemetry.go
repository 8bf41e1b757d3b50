package reinforcement

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "racer/reinforcement"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

// telemetry holds the trainer's counters. The global meter provider is a no-op unless the
// binary installs one.
type telemetry struct {
	steps      metric.Int64Counter
	collisions metric.Int64Counter
	writes     metric.Int64Counter
}

func newTelemetry() (*telemetry, error) {
	m := meter()
	tel := &telemetry{}

	var err error
	tel.steps, err = m.Int64Counter(
		"racer.steps",
		metric.WithDescription("Total simulation steps completed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating steps counter: %w", err)
	}

	tel.collisions, err = m.Int64Counter(
		"racer.collisions",
		metric.WithDescription("Total proposed moves rejected by the track"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating collisions counter: %w", err)
	}

	tel.writes, err = m.Int64Counter(
		"racer.policy.writes",
		metric.WithDescription("Total policy store writes"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating policy writes counter: %w", err)
	}

	return tel, nil
}

func (tel *telemetry) record(ctx context.Context, vehicleID int, result StepResult) {
	attrs := metric.WithAttributes(attribute.Int("vehicle", vehicleID))
	tel.steps.Add(ctx, 1, attrs)
	if result.Collided {
		tel.collisions.Add(ctx, 1, attrs)
	}
	if result.Learned {
		tel.writes.Add(ctx, 1, attrs)
	}
}
