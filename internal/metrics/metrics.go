package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Run stage counters and histograms, partitioned by network.

var (
	// RPC transport
	RPCCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "poolsync",
		Subsystem: "rpc",
		Name:      "calls_total",
		Help:      "Total JSON-RPC calls by method and outcome (ok or fault class)",
	}, []string{"network", "method", "outcome"})

	// Multicall
	MulticallBatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "poolsync",
		Subsystem: "multicall",
		Name:      "batches_total",
		Help:      "Total multicall batches dispatched by outcome",
	}, []string{"network", "outcome"})

	MulticallCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "poolsync",
		Subsystem: "multicall",
		Name:      "calls_total",
		Help:      "Total calls carried inside multicall batches",
	}, []string{"network"})

	MulticallBatchLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "poolsync",
		Subsystem: "multicall",
		Name:      "batch_duration_seconds",
		Help:      "Multicall batch round trip duration",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"network"})

	MulticallThrottleWait = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "poolsync",
		Subsystem: "multicall",
		Name:      "throttle_wait_seconds",
		Help:      "Time a batch waited for a dispatch token",
		Buckets:   []float64{0, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"network"})

	// Decoder
	DecodeFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "poolsync",
		Subsystem: "decoder",
		Name:      "failures_total",
		Help:      "Total raw results that failed to decode by call kind",
	}, []string{"network", "kind"})

	// Sink
	SinkWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "poolsync",
		Subsystem: "sink",
		Name:      "writes_total",
		Help:      "Total snapshot writes by sink and outcome",
	}, []string{"sink", "outcome"})

	// Run
	RunPools = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "poolsync",
		Subsystem: "run",
		Name:      "pools",
		Help:      "Pools written by the last successful run",
	}, []string{"network"})

	RunDuration = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "poolsync",
		Subsystem: "run",
		Name:      "duration_seconds",
		Help:      "Duration of the last run",
	}, []string{"network", "outcome"})

	RunLastSuccessTimestamp = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "poolsync",
		Subsystem: "run",
		Name:      "last_success_timestamp_seconds",
		Help:      "Unix time of the last successful run",
	}, []string{"network"})

	// Postgres sink connection pool, sampled once after the run
	DBPoolOpenConnections = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "poolsync",
		Subsystem: "db_pool",
		Name:      "open_connections",
		Help:      "Open connections in the postgres pool",
	}, []string{"network"})

	DBPoolInUse = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "poolsync",
		Subsystem: "db_pool",
		Name:      "in_use",
		Help:      "Connections currently in use",
	}, []string{"network"})

	DBPoolIdle = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "poolsync",
		Subsystem: "db_pool",
		Name:      "idle",
		Help:      "Idle connections",
	}, []string{"network"})

	DBPoolWaitCount = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "poolsync",
		Subsystem: "db_pool",
		Name:      "wait_count",
		Help:      "Total connections waited for",
	}, []string{"network"})

	DBPoolWaitDuration = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "poolsync",
		Subsystem: "db_pool",
		Name:      "wait_duration_seconds",
		Help:      "Total time blocked waiting for a connection",
	}, []string{"network"})

	// Alerts
	AlertsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "poolsync",
		Subsystem: "alert",
		Name:      "sent_total",
		Help:      "Alerts sent by channel, type and outcome",
	}, []string{"channel", "type", "outcome"})
)

// WriteTextfile dumps the default registry in the node_exporter textfile
// format so a one-shot run can be scraped after it exits.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("write metrics textfile %s: %w", path, err)
	}
	return nil
}

// Push replaces the metrics of job on a Prometheus Pushgateway with the
// default registry.
func Push(ctx context.Context, url, job string) error {
	err := push.New(url, job).
		Gatherer(prometheus.DefaultGatherer).
		PushContext(ctx)
	if err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}
