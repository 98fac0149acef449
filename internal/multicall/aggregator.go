package multicall

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mobiusAMM/mobius-pool-registry/internal/fault"
	"github.com/mobiusAMM/mobius-pool-registry/internal/metrics"
	"github.com/mobiusAMM/mobius-pool-registry/internal/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otelTrace "go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Aggregator dispatches batches to an Endpoint concurrently and flattens the
// results back into submission order.
type Aggregator struct {
	endpoint        Endpoint
	logger          *slog.Logger
	network         string
	batchTimeout    time.Duration
	cancelOnFailure bool
	limiter         *rate.Limiter
}

type AggregatorOption func(*Aggregator)

func WithLogger(logger *slog.Logger) AggregatorOption {
	return func(a *Aggregator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithBatchTimeout bounds each batch round trip. Zero disables the bound.
func WithBatchTimeout(d time.Duration) AggregatorOption {
	return func(a *Aggregator) {
		if d > 0 {
			a.batchTimeout = d
		}
	}
}

// WithCancelOnFailure cancels in-flight sibling batches once any batch fails.
// By default every batch runs to completion before the failure is reported.
func WithCancelOnFailure(enabled bool) AggregatorOption {
	return func(a *Aggregator) {
		a.cancelOnFailure = enabled
	}
}

// WithNetwork sets the network label used for metrics and spans.
func WithNetwork(network string) AggregatorOption {
	return func(a *Aggregator) {
		a.network = network
	}
}

func NewAggregator(endpoint Endpoint, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		endpoint: endpoint,
		logger:   slog.Default(),
		network:  "unknown",
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run chunks calls into batches of at most maxSize and executes them.
func (a *Aggregator) Run(ctx context.Context, calls []Call, maxSize int) ([]RawResult, error) {
	batches, err := Chunk(calls, maxSize)
	if err != nil {
		return nil, fault.Configuration(err)
	}
	return a.Execute(ctx, batches)
}

// Execute dispatches every batch concurrently. The returned slice holds one
// result per call, batch i's results preceding batch i+1's. Any failed batch
// fails the whole execution; the error reported is the lowest-indexed one.
func (a *Aggregator) Execute(ctx context.Context, batches [][]Call) ([]RawResult, error) {
	ctx, span := tracing.Tracer("multicall").Start(ctx, "multicall.execute",
		otelTrace.WithAttributes(
			attribute.String("network", a.network),
			attribute.Int("batch_count", len(batches)),
		),
	)
	defer span.End()

	offsets := make([]int, len(batches))
	total := 0
	for i, batch := range batches {
		offsets[i] = total
		total += len(batch)
	}
	span.SetAttributes(attribute.Int("call_count", total))

	var (
		g    *errgroup.Group
		gCtx = ctx
	)
	if a.cancelOnFailure {
		g, gCtx = errgroup.WithContext(ctx)
	} else {
		g = &errgroup.Group{}
	}

	slots := make([][]RawResult, len(batches))
	errs := make([]error, len(batches))
	for i, batch := range batches {
		g.Go(func() error {
			results, err := a.dispatch(gCtx, i, offsets[i], batch)
			if err != nil {
				errs[i] = err
				return err
			}
			slots[i] = results
			return nil
		})
	}

	if g.Wait() != nil {
		err := a.firstFailure(ctx, errs)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	flat := make([]RawResult, 0, total)
	for _, results := range slots {
		flat = append(flat, results...)
	}
	return flat, nil
}

func (a *Aggregator) dispatch(ctx context.Context, index, offset int, batch []Call) ([]RawResult, error) {
	if err := a.acquire(ctx); err != nil {
		metrics.MulticallBatchesTotal.WithLabelValues(a.network, "transport_error").Inc()
		a.logger.Warn("multicall batch not dispatched", "batch", index, "offset", offset, "calls", len(batch), "error", err)
		return nil, &TransportError{Batch: index, Offset: offset, Calls: len(batch), Err: err}
	}

	if a.batchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.batchTimeout)
		defer cancel()
	}

	ctx, span := tracing.Tracer("multicall").Start(ctx, "multicall.batch",
		otelTrace.WithAttributes(
			attribute.Int("batch", index),
			attribute.Int("offset", offset),
			attribute.Int("calls", len(batch)),
		),
	)
	defer span.End()

	start := time.Now()
	results, err := a.endpoint.Aggregate(ctx, batch)
	elapsed := time.Since(start)
	metrics.MulticallBatchLatency.WithLabelValues(a.network).Observe(elapsed.Seconds())
	metrics.MulticallCallsTotal.WithLabelValues(a.network).Add(float64(len(batch)))

	if err != nil {
		metrics.MulticallBatchesTotal.WithLabelValues(a.network, "transport_error").Inc()
		terr := &TransportError{Batch: index, Offset: offset, Calls: len(batch), Err: err}
		span.RecordError(terr)
		span.SetStatus(codes.Error, terr.Error())
		a.logger.Warn("multicall batch failed", "batch", index, "offset", offset, "calls", len(batch), "elapsed", elapsed, "error", err)
		return nil, terr
	}
	if len(results) != len(batch) {
		metrics.MulticallBatchesTotal.WithLabelValues(a.network, "integrity_error").Inc()
		ierr := &IntegrityError{Batch: index, Offset: offset, Expected: len(batch), Got: len(results)}
		span.RecordError(ierr)
		span.SetStatus(codes.Error, ierr.Error())
		a.logger.Warn("multicall batch result count mismatch", "batch", index, "offset", offset, "expected", len(batch), "got", len(results))
		return nil, ierr
	}

	metrics.MulticallBatchesTotal.WithLabelValues(a.network, "ok").Inc()
	a.logger.Debug("multicall batch done", "batch", index, "offset", offset, "calls", len(batch), "elapsed", elapsed)
	return results, nil
}

// firstFailure picks the lowest-indexed batch error. With cancel-on-failure,
// siblings aborted by the group cancellation are skipped in favour of the
// batch that caused it.
func (a *Aggregator) firstFailure(parent context.Context, errs []error) error {
	var first error
	for _, err := range errs {
		if err == nil {
			continue
		}
		if first == nil {
			first = err
		}
		if a.cancelOnFailure && parent.Err() == nil && errors.Is(err, context.Canceled) {
			continue
		}
		return err
	}
	return first
}
