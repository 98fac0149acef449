package multicall

import (
	"context"
	"fmt"
	"time"

	"github.com/mobiusAMM/mobius-pool-registry/internal/metrics"
	"golang.org/x/time/rate"
)

// WithRateLimit caps dispatch at rps batches per second, letting up to burst
// batches go back to back. A batch's wait for its token is not counted
// against the batch timeout. rps <= 0 disables the limit.
func WithRateLimit(rps float64, burst int) AggregatorOption {
	return func(a *Aggregator) {
		if rps <= 0 {
			a.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		a.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// acquire blocks until the batch may be dispatched.
func (a *Aggregator) acquire(ctx context.Context) error {
	if a.limiter == nil {
		return nil
	}
	start := time.Now()
	err := a.limiter.Wait(ctx)
	metrics.MulticallThrottleWait.WithLabelValues(a.network).Observe(time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("wait for dispatch token: %w", err)
	}
	return nil
}
