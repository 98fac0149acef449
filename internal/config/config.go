package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mobiusAMM/mobius-pool-registry/internal/fault"
)

const (
	DefaultRPCURL           = "https://forno.celo.org"
	DefaultMulticallAddress = "0xcA11bde05977b3631167028862bE2a173976CA11"
	DefaultOutputPath       = "data/pools.json"
	DefaultRegistryPath     = "config/pools.yaml"
	DefaultRedisKey         = "poolsync:snapshot"
)

type Config struct {
	RPC       RPCConfig
	Multicall MulticallConfig
	Registry  RegistryConfig
	Output    OutputConfig
	DB        DBConfig
	Redis     RedisConfig
	Telemetry TelemetryConfig
	Alert     AlertConfig
	Log       LogConfig
}

type RPCConfig struct {
	URL     string
	Network string
	Timeout time.Duration
}

type MulticallConfig struct {
	Address         string
	Mode            string
	MaxChunk        int
	BatchTimeout    time.Duration
	CancelOnFailure bool
	BlockNumber     uint64
	Gas             uint64
	RateLimitRPS    float64
	RateLimitBurst  int
}

type RegistryConfig struct {
	Path string
}

type OutputConfig struct {
	Path string
}

// DBConfig enables the postgres sink when URL is set.
type DBConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	MigrationsDir   string
}

// RedisConfig enables the redis sink when URL is set.
type RedisConfig struct {
	URL string
	Key string
	TTL time.Duration
}

type TelemetryConfig struct {
	MetricsTextfile string
	PushgatewayURL  string
	OTLPEndpoint    string
	OTLPInsecure    bool
	SampleRatio     float64
}

// AlertConfig lists the channels notified when a run fails.
type AlertConfig struct {
	SlackWebhookURL string
	WebhookURL      string
}

type LogConfig struct {
	Level  string
	Format string
}

// Load reads the job configuration from the environment. Any malformed or
// inconsistent value is reported as a configuration fault.
func Load() (*Config, error) {
	var errs []error

	cfg := &Config{
		RPC: RPCConfig{
			URL:     getEnv("RPC_URL", DefaultRPCURL),
			Network: strings.ToLower(getEnv("NETWORK", "mainnet")),
			Timeout: parseEnvDuration("RPC_TIMEOUT", 30*time.Second, &errs),
		},
		Multicall: MulticallConfig{
			Address:         getEnv("MULTICALL_ADDRESS", DefaultMulticallAddress),
			Mode:            strings.ToLower(getEnv("MULTICALL_MODE", "try")),
			MaxChunk:        parseEnvInt("MULTICALL_MAX_CHUNK", 100, &errs),
			BatchTimeout:    parseEnvDuration("MULTICALL_BATCH_TIMEOUT", 30*time.Second, &errs),
			CancelOnFailure: parseEnvBool("MULTICALL_CANCEL_ON_FAILURE", false, &errs),
			BlockNumber:     parseEnvUint("BLOCK_NUMBER", 0, &errs),
			Gas:             parseEnvUint("MULTICALL_GAS", 0, &errs),
			RateLimitRPS:    parseEnvFloat("MULTICALL_RATE_LIMIT_RPS", 0, &errs),
			RateLimitBurst:  parseEnvInt("MULTICALL_RATE_LIMIT_BURST", 5, &errs),
		},
		Registry: RegistryConfig{
			Path: getEnv("REGISTRY_PATH", DefaultRegistryPath),
		},
		Output: OutputConfig{
			Path: getEnv("OUTPUT_PATH", DefaultOutputPath),
		},
		DB: DBConfig{
			URL:             getEnv("POSTGRES_URL", ""),
			MaxOpenConns:    parseEnvInt("DB_MAX_OPEN_CONNS", 4, &errs),
			MaxIdleConns:    parseEnvInt("DB_MAX_IDLE_CONNS", 2, &errs),
			ConnMaxLifetime: time.Duration(parseEnvInt("DB_CONN_MAX_LIFETIME_MIN", 5, &errs)) * time.Minute,
			MigrationsDir:   getEnv("DB_MIGRATIONS_DIR", ""),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", ""),
			Key: getEnv("REDIS_KEY", DefaultRedisKey),
			TTL: parseEnvDuration("REDIS_TTL", 0, &errs),
		},
		Telemetry: TelemetryConfig{
			MetricsTextfile: getEnv("METRICS_TEXTFILE", ""),
			PushgatewayURL:  getEnv("METRICS_PUSHGATEWAY_URL", ""),
			OTLPEndpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			OTLPInsecure:    parseEnvBool("OTEL_INSECURE", true, &errs),
			SampleRatio:     parseEnvFloat("OTEL_SAMPLE_RATIO", 1, &errs),
		},
		Alert: AlertConfig{
			SlackWebhookURL: getEnv("ALERT_SLACK_WEBHOOK_URL", ""),
			WebhookURL:      getEnv("ALERT_WEBHOOK_URL", ""),
		},
		Log: LogConfig{
			Level:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
			Format: strings.ToLower(getEnv("LOG_FORMAT", "text")),
		},
	}

	if len(errs) > 0 {
		return nil, fault.Configuration(errors.Join(errs...))
	}
	if err := cfg.validate(); err != nil {
		return nil, fault.Configuration(err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.RPC.URL == "" {
		return fmt.Errorf("RPC_URL is required")
	}
	if c.RPC.Network == "" {
		return fmt.Errorf("NETWORK is required")
	}
	if !common.IsHexAddress(c.Multicall.Address) {
		return fmt.Errorf("MULTICALL_ADDRESS %q is not a valid address", c.Multicall.Address)
	}
	switch c.Multicall.Mode {
	case "strict", "try":
	default:
		return fmt.Errorf("MULTICALL_MODE must be strict or try, got %q", c.Multicall.Mode)
	}
	if c.Multicall.MaxChunk < 1 {
		return fmt.Errorf("MULTICALL_MAX_CHUNK must be >= 1, got %d", c.Multicall.MaxChunk)
	}
	if c.Multicall.BatchTimeout < 0 {
		return fmt.Errorf("MULTICALL_BATCH_TIMEOUT must not be negative")
	}
	if c.Multicall.RateLimitRPS < 0 {
		return fmt.Errorf("MULTICALL_RATE_LIMIT_RPS must be >= 0, got %v", c.Multicall.RateLimitRPS)
	}
	if c.Registry.Path == "" {
		return fmt.Errorf("REGISTRY_PATH is required")
	}
	if c.Output.Path == "" {
		return fmt.Errorf("OUTPUT_PATH is required")
	}
	if c.Redis.URL != "" && c.Redis.Key == "" {
		return fmt.Errorf("REDIS_KEY is required when REDIS_URL is set")
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("OTEL_SAMPLE_RATIO must be within [0, 1], got %v", c.Telemetry.SampleRatio)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error, got %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.Log.Format)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func parseEnvInt(key string, fallback int, errs *[]error) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: must be an integer", key))
		return fallback
	}
	return i
}

func parseEnvUint(key string, fallback uint64, errs *[]error) uint64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	u, err := strconv.ParseUint(v, 0, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: must be a non-negative integer", key))
		return fallback
	}
	return u
}

func parseEnvFloat(key string, fallback float64, errs *[]error) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: must be a number", key))
		return fallback
	}
	return f
}

func parseEnvBool(key string, fallback bool, errs *[]error) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: must be a boolean", key))
		return fallback
	}
	return b
}

func parseEnvDuration(key string, fallback time.Duration, errs *[]error) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: must be a duration such as 30s", key))
		return fallback
	}
	return d
}
