// Package sink persists a finished snapshot.
package sink

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mobiusAMM/mobius-pool-registry/internal/domain/model"
	"github.com/mobiusAMM/mobius-pool-registry/internal/fault"
	"github.com/mobiusAMM/mobius-pool-registry/internal/metrics"
)

// Sink receives the complete snapshot exactly once per run.
type Sink interface {
	Name() string
	Write(ctx context.Context, snapshot model.Snapshot) error
}

// Multi writes to each sink in order and stops at the first failure.
type Multi struct {
	sinks  []Sink
	logger *slog.Logger
}

func NewMulti(logger *slog.Logger, sinks ...Sink) *Multi {
	if logger == nil {
		logger = slog.Default()
	}
	return &Multi{sinks: sinks, logger: logger}
}

func (m *Multi) Name() string {
	return "multi"
}

// Write implements Sink. Failures are reported as sink faults.
func (m *Multi) Write(ctx context.Context, snapshot model.Snapshot) error {
	for _, s := range m.sinks {
		if err := s.Write(ctx, snapshot); err != nil {
			metrics.SinkWritesTotal.WithLabelValues(s.Name(), "error").Inc()
			return fault.Sink(fmt.Errorf("sink %s: %w", s.Name(), err))
		}
		metrics.SinkWritesTotal.WithLabelValues(s.Name(), "ok").Inc()
		m.logger.Debug("snapshot written", "sink", s.Name(), "pools", len(snapshot.Pools))
	}
	return nil
}
