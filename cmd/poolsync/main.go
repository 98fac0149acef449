package main

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mobiusAMM/mobius-pool-registry/internal/alert"
	"github.com/mobiusAMM/mobius-pool-registry/internal/chain/evm/rpc"
	"github.com/mobiusAMM/mobius-pool-registry/internal/config"
	"github.com/mobiusAMM/mobius-pool-registry/internal/domain/model"
	"github.com/mobiusAMM/mobius-pool-registry/internal/fault"
	"github.com/mobiusAMM/mobius-pool-registry/internal/metrics"
	"github.com/mobiusAMM/mobius-pool-registry/internal/multicall"
	"github.com/mobiusAMM/mobius-pool-registry/internal/pipeline"
	"github.com/mobiusAMM/mobius-pool-registry/internal/registry"
	"github.com/mobiusAMM/mobius-pool-registry/internal/sink"
	"github.com/mobiusAMM/mobius-pool-registry/internal/store/postgres"
	redispkg "github.com/mobiusAMM/mobius-pool-registry/internal/store/redis"
	"github.com/mobiusAMM/mobius-pool-registry/internal/tracing"
)

const serviceName = "poolsync"

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return fault.ExitCode(fault.Classify(err))
	}

	logger := newLogger(cfg.Log, os.Stderr)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, err := execute(ctx, cfg, logger)
	exportMetrics(cfg.Telemetry, logger)

	if err != nil {
		class := fault.Classify(err)
		logger.Error("poolsync failed", "class", string(class), "error", err)
		notifyFailure(cfg, logger, err)
		return fault.ExitCode(class)
	}

	fmt.Fprintf(os.Stdout, "Discovered and wrote %d pools\n", result.Pools)
	return 0
}

func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// execute wires the job from cfg and performs a single snapshot run.
func execute(ctx context.Context, cfg *config.Config, logger *slog.Logger) (pipeline.Result, error) {
	network := model.Network(cfg.RPC.Network)

	shutdownTracing, err := tracing.Init(ctx, serviceName, cfg.Telemetry.OTLPEndpoint, cfg.Telemetry.OTLPInsecure, cfg.Telemetry.SampleRatio)
	if err != nil {
		return pipeline.Result{}, fault.Configuration(fmt.Errorf("init tracing: %w", err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("tracing shutdown failed", "error", err)
		}
	}()

	reg, err := registry.Load(cfg.Registry.Path)
	if err != nil {
		return pipeline.Result{}, err
	}
	// Reject an undeclared network before touching the node or any sink.
	if _, err := reg.ListEntities(network); err != nil {
		return pipeline.Result{}, err
	}

	logger.Info("starting poolsync",
		"network", network,
		"rpc", cfg.RPC.URL,
		"registry", cfg.Registry.Path,
		"mode", cfg.Multicall.Mode,
		"max_chunk", cfg.Multicall.MaxChunk,
	)

	client := rpc.NewClient(cfg.RPC.URL, logger,
		rpc.WithTimeout(cfg.RPC.Timeout),
		rpc.WithNetwork(string(network)),
	)

	block, err := pipeline.ResolveHead(ctx, client, reg, network, cfg.Multicall.BlockNumber)
	if err != nil {
		return pipeline.Result{}, err
	}

	mode, err := multicall.ParseMode(cfg.Multicall.Mode)
	if err != nil {
		return pipeline.Result{}, fault.Configuration(err)
	}
	address := common.HexToAddress(cfg.Multicall.Address)
	if override, ok := reg.Multicall(network); ok {
		address = override
	}
	contract := multicall.NewContract(client, address, mode,
		multicall.WithBlockNumber(block),
		multicall.WithGas(cfg.Multicall.Gas),
	)

	aggOpts := []multicall.AggregatorOption{
		multicall.WithLogger(logger),
		multicall.WithNetwork(string(network)),
		multicall.WithBatchTimeout(cfg.Multicall.BatchTimeout),
		multicall.WithCancelOnFailure(cfg.Multicall.CancelOnFailure),
		multicall.WithRateLimit(cfg.Multicall.RateLimitRPS, cfg.Multicall.RateLimitBurst),
	}
	aggregator := multicall.NewAggregator(contract, aggOpts...)

	sinks, err := openSinks(ctx, cfg, logger)
	if err != nil {
		return pipeline.Result{}, err
	}
	defer sinks.close()

	runner := pipeline.NewRunner(
		pipeline.Config{
			Chain:       model.ChainCelo,
			Network:     network,
			MaxChunk:    cfg.Multicall.MaxChunk,
			BlockNumber: block,
		},
		reg,
		aggregator,
		sink.NewMulti(logger, sinks.sinks...),
		pipeline.WithLogger(logger),
	)
	result, err := runner.Run(ctx)

	if sinks.db != nil {
		if err := collectDBPoolStats(sinks.db, network, defaultDBPoolStatsGauges()); err != nil {
			logger.Warn("failed to collect db pool stats", "error", err)
		}
	}
	return result, err
}

type sinkSet struct {
	sinks   []sink.Sink
	db      *postgres.DB
	closers []io.Closer
	logger  *slog.Logger
}

func (s *sinkSet) close() {
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			s.logger.Warn("failed to close sink", "error", err)
		}
	}
}

// openSinks builds the optional postgres and redis sinks followed by the file
// sink. The file is written last so a failing store leaves the previous
// pools.json in place.
func openSinks(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sinkSet, error) {
	set := &sinkSet{logger: logger}

	if cfg.DB.URL != "" {
		db, err := postgres.New(ctx, postgres.Config{
			URL:             cfg.DB.URL,
			MaxOpenConns:    cfg.DB.MaxOpenConns,
			MaxIdleConns:    cfg.DB.MaxIdleConns,
			ConnMaxLifetime: cfg.DB.ConnMaxLifetime,
		})
		if err != nil {
			return nil, fault.Sink(fmt.Errorf("open postgres: %w", err))
		}
		set.closers = append(set.closers, db)

		var migrations fs.FS = postgres.Migrations()
		if cfg.DB.MigrationsDir != "" {
			migrations = os.DirFS(cfg.DB.MigrationsDir)
		}
		if err := db.RunMigrations(ctx, migrations); err != nil {
			set.close()
			return nil, fault.Sink(fmt.Errorf("migrate postgres: %w", err))
		}
		set.db = db
		set.sinks = append(set.sinks, postgres.NewSnapshotRepo(db))
	}

	if cfg.Redis.URL != "" {
		store, err := redispkg.NewSnapshotStore(ctx, cfg.Redis.URL, cfg.Redis.Key, cfg.Redis.TTL)
		if err != nil {
			set.close()
			return nil, fault.Sink(fmt.Errorf("open redis: %w", err))
		}
		set.closers = append(set.closers, store)
		set.sinks = append(set.sinks, store)
	}

	set.sinks = append(set.sinks, sink.NewFileSink(cfg.Output.Path))
	return set, nil
}

// exportMetrics publishes the run's metrics to the configured textfile and
// Pushgateway. Failures are logged and never change the exit status.
func exportMetrics(cfg config.TelemetryConfig, logger *slog.Logger) {
	if cfg.MetricsTextfile != "" {
		if err := metrics.WriteTextfile(cfg.MetricsTextfile); err != nil {
			logger.Warn("failed to write metrics textfile", "error", err)
		}
	}
	if cfg.PushgatewayURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := metrics.Push(ctx, cfg.PushgatewayURL, serviceName); err != nil {
			logger.Warn("failed to push metrics", "error", err)
		}
	}
}

func newAlerter(cfg config.AlertConfig, logger *slog.Logger) *alert.Multi {
	var alerters []alert.Alerter
	if cfg.SlackWebhookURL != "" {
		alerters = append(alerters, alert.NewSlackAlerter(cfg.SlackWebhookURL))
	}
	if cfg.WebhookURL != "" {
		alerters = append(alerters, alert.NewWebhookAlerter(cfg.WebhookURL))
	}
	return alert.NewMulti(logger, alerters...)
}

// notifyFailure reports a failed run to every configured alert channel.
func notifyFailure(cfg *config.Config, logger *slog.Logger, runErr error) {
	alerter := newAlerter(cfg.Alert, logger)
	if alerter.Len() == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	err := alerter.Send(ctx, alert.Alert{
		Type:    alert.AlertTypeRunFailed,
		Network: cfg.RPC.Network,
		Title:   "poolsync run failed",
		Message: runErr.Error(),
		Fields: map[string]string{
			"class":     string(fault.Classify(runErr)),
			"exit_code": strconv.Itoa(fault.ExitCode(fault.Classify(runErr))),
			"registry":  cfg.Registry.Path,
		},
	})
	if err != nil {
		logger.Warn("failed to deliver failure alert", "error", err)
	}
}
