package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/mobiusAMM/mobius-pool-registry/internal/chain/evm/rpc"
	"github.com/mobiusAMM/mobius-pool-registry/internal/domain/model"
	"github.com/mobiusAMM/mobius-pool-registry/internal/fault"
	"github.com/mobiusAMM/mobius-pool-registry/internal/metrics"
	"github.com/mobiusAMM/mobius-pool-registry/internal/multicall"
	"github.com/mobiusAMM/mobius-pool-registry/internal/sink"
	"github.com/mobiusAMM/mobius-pool-registry/internal/swap"
	"github.com/mobiusAMM/mobius-pool-registry/internal/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otelTrace "go.opentelemetry.io/otel/trace"
)

// Registry supplies the pools to snapshot.
type Registry interface {
	ListEntities(network model.Network) ([]model.Pool, error)
	ChainID(network model.Network) (uint64, bool)
}

// HeadSource reports the connected chain id and its latest block.
type HeadSource interface {
	Head(ctx context.Context) (rpc.Head, error)
}

type Config struct {
	Chain       model.Chain
	Network     model.Network
	MaxChunk    int
	BlockNumber uint64
}

// Result summarises a successful run.
type Result struct {
	RunID       uuid.UUID
	Pools       int
	Calls       int
	BlockNumber uint64
	Duration    time.Duration
}

// Runner executes one snapshot run: registry, calls, batches, decode,
// assemble, sink. Any failure aborts the run before the sink is touched.
type Runner struct {
	cfg        Config
	registry   Registry
	aggregator *multicall.Aggregator
	sink       sink.Sink
	logger     *slog.Logger
	now        func() time.Time
	newRunID   func() uuid.UUID
}

type Option func(*Runner)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithClock overrides the snapshot timestamp source.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		r.now = now
	}
}

// WithRunIDGenerator overrides run id generation.
func WithRunIDGenerator(gen func() uuid.UUID) Option {
	return func(r *Runner) {
		r.newRunID = gen
	}
}

func NewRunner(cfg Config, registry Registry, aggregator *multicall.Aggregator, out sink.Sink, opts ...Option) *Runner {
	r := &Runner{
		cfg:        cfg,
		registry:   registry,
		aggregator: aggregator,
		sink:       out,
		logger:     slog.Default(),
		now:        time.Now,
		newRunID:   uuid.New,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run performs the snapshot. The returned error carries a fault class.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	start := time.Now()
	runID := r.newRunID()
	network := string(r.cfg.Network)
	logger := r.logger.With("run_id", runID.String(), "network", network)

	ctx, span := tracing.Tracer("pipeline").Start(ctx, "pipeline.run",
		otelTrace.WithAttributes(
			attribute.String("run_id", runID.String()),
			attribute.String("chain", string(r.cfg.Chain)),
			attribute.String("network", network),
			attribute.Int64("block_number", int64(r.cfg.BlockNumber)),
		),
	)
	defer span.End()

	result, err := r.run(ctx, runID, logger)
	result.Duration = time.Since(start)
	if err != nil {
		metrics.RunDuration.WithLabelValues(network, "error").Set(result.Duration.Seconds())
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error("snapshot run failed", append(failureAttrs(err), "elapsed", result.Duration)...)
		return result, err
	}

	metrics.RunDuration.WithLabelValues(network, "ok").Set(result.Duration.Seconds())
	metrics.RunPools.WithLabelValues(network).Set(float64(result.Pools))
	metrics.RunLastSuccessTimestamp.WithLabelValues(network).SetToCurrentTime()
	span.SetAttributes(attribute.Int("pool_count", result.Pools))
	logger.Info("snapshot run completed", "pools", result.Pools, "calls", result.Calls, "block", result.BlockNumber, "elapsed", result.Duration)
	return result, nil
}

func (r *Runner) run(ctx context.Context, runID uuid.UUID, logger *slog.Logger) (Result, error) {
	result := Result{RunID: runID, BlockNumber: r.cfg.BlockNumber}

	pools, err := r.registry.ListEntities(r.cfg.Network)
	if err != nil {
		return result, fault.Configuration(fmt.Errorf("list pools: %w", err))
	}

	reqs := swap.BuildRequests(pools)
	result.Calls = len(reqs)
	logger.Info("snapshot run starting", "pools", len(pools), "calls", len(reqs), "max_chunk", r.cfg.MaxChunk, "block", r.cfg.BlockNumber)

	raws, err := r.aggregator.Run(ctx, swap.Calls(reqs), r.cfg.MaxChunk)
	if err != nil {
		if fault.Classify(err) == fault.ClassUnknown {
			err = fault.Transport(err)
		}
		return result, fmt.Errorf("aggregate: %w", err)
	}

	values, err := swap.DecodeAll(reqs, raws)
	if err != nil {
		var decodeErr *swap.DecodeError
		if errors.As(err, &decodeErr) {
			metrics.DecodeFailuresTotal.WithLabelValues(string(r.cfg.Network), decodeErr.Kind.String()).Inc()
		}
		return result, err
	}

	snapshots, err := swap.Assemble(values, swap.GroupSize)
	if err != nil {
		return result, err
	}

	snapshot := model.Snapshot{
		RunID:       runID,
		Chain:       r.cfg.Chain,
		Network:     r.cfg.Network,
		BlockNumber: r.cfg.BlockNumber,
		TakenAt:     r.now().UTC(),
		Pools:       snapshots,
	}
	if err := r.sink.Write(ctx, snapshot); err != nil {
		return result, fault.Sink(err)
	}

	result.Pools = len(snapshots)
	return result, nil
}

// ResolveHead checks that the endpoint serves the chain the registry expects
// for network and returns the block every batch should read. A non-zero
// pinned block is kept; otherwise the latest block is pinned.
func ResolveHead(ctx context.Context, src HeadSource, registry Registry, network model.Network, pinned uint64) (uint64, error) {
	head, err := src.Head(ctx)
	if err != nil {
		return 0, fault.Transport(fmt.Errorf("resolve head: %w", err))
	}

	if want, ok := registry.ChainID(network); ok && head.ChainID != want {
		return 0, fault.Configuration(fmt.Errorf("endpoint serves chain id %d, network %s expects %d", head.ChainID, network, want))
	}

	if pinned != 0 {
		if pinned > head.BlockNumber {
			return 0, fault.Configuration(fmt.Errorf("block %d is ahead of head %d", pinned, head.BlockNumber))
		}
		return pinned, nil
	}
	return head.BlockNumber, nil
}

// failureAttrs extracts the identifying context of a fatal error for logging.
func failureAttrs(err error) []any {
	attrs := []any{"class", string(fault.Classify(err)), "error", err}

	var decodeErr *swap.DecodeError
	if errors.As(err, &decodeErr) {
		attrs = append(attrs, "position", decodeErr.Position, "kind", decodeErr.Kind.String(),
			"pool", decodeErr.Pool.Name, "pool_address", decodeErr.Pool.Address.Hex())
	}
	var integrityErr *multicall.IntegrityError
	if errors.As(err, &integrityErr) {
		attrs = append(attrs, "batch", integrityErr.Batch, "offset", integrityErr.Offset,
			"expected", integrityErr.Expected, "got", integrityErr.Got)
	}
	var transportErr *multicall.TransportError
	if errors.As(err, &transportErr) {
		attrs = append(attrs, "batch", transportErr.Batch, "offset", transportErr.Offset, "calls", transportErr.Calls)
	}
	return attrs
}
