// Package config assembles the process configuration from defaults, a YAML or
// JSON file, CONJ_* environment variables and command-line flags.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fluxorio/threadpool/pkg/conjecture"
	"github.com/fluxorio/threadpool/pkg/core"
	"github.com/fluxorio/threadpool/pkg/observability/otel"
	"github.com/fluxorio/threadpool/pkg/sink"
	"github.com/fluxorio/threadpool/pkg/store"
	"github.com/fluxorio/threadpool/pkg/worker"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. CONJ_POOL_WORKERS.
const EnvPrefix = "CONJ"

// Config is the full process configuration.
type Config struct {
	Pool       worker.Config     `yaml:"pool" json:"pool"`
	Conjecture conjecture.Config `yaml:"conjecture" json:"conjecture"`
	Logging    core.LoggerConfig `yaml:"logging" json:"logging"`
	Metrics    MetricsConfig     `yaml:"metrics" json:"metrics"`
	Tracing    otel.Config       `yaml:"tracing" json:"tracing"`
	Store      store.Config      `yaml:"store" json:"store"`
	NATS       sink.Config       `yaml:"nats" json:"nats"`

	// ShutdownTimeout bounds how long queued batches may take to drain.
	ShutdownTimeout time.Duration `yaml:"shutdown-timeout" json:"shutdown_timeout"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Addr    string `yaml:"addr" json:"addr"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Pool:       worker.DefaultConfig(),
		Conjecture: conjecture.DefaultConfig(),
		Logging: core.LoggerConfig{
			Level:      "INFO",
			MaxSizeMB:  100,
			MaxBackups: 3,
		},
		Metrics: MetricsConfig{
			Addr: ":9090",
		},
		Tracing:         otel.DefaultConfig(),
		NATS:            sink.DefaultConfig(),
		ShutdownTimeout: 30 * time.Second,
	}
}

// Validate checks every section.
func (c Config) Validate() error {
	if err := core.ValidatePoolSize(c.Pool.Workers); err != nil {
		return fmt.Errorf("pool: %w", err)
	}
	if err := core.ValidateQueueSize(c.Pool.QueueSize); err != nil {
		return fmt.Errorf("pool: %w", err)
	}
	if err := c.Conjecture.Validate(); err != nil {
		return fmt.Errorf("conjecture: %w", err)
	}
	switch strings.ToUpper(c.Logging.Level) {
	case "DEBUG", "INFO", "ERROR":
	default:
		return fmt.Errorf("logging: %w", &core.Error{Code: core.CodeInvalidConfig, Message: fmt.Sprintf("unknown level %q", c.Logging.Level)})
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return fmt.Errorf("metrics: %w", &core.Error{Code: core.CodeInvalidConfig, Message: "addr is required"})
	}
	if err := c.Tracing.Validate(); err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if err := c.NATS.Validate(); err != nil {
		return fmt.Errorf("nats: %w", err)
	}
	if c.ShutdownTimeout <= 0 {
		return &core.Error{Code: core.CodeInvalidConfig, Message: "shutdown timeout must be positive"}
	}
	return nil
}

// Load reads path over the defaults and validates the result. The format is
// chosen by extension: .yaml, .yml or .json.
func Load(path string) (Config, error) {
	cfg := Default()

	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = LoadYAML(path, &cfg)
	case ".json":
		err = LoadJSON(path, &cfg)
	default:
		return Config{}, fmt.Errorf("unsupported config file extension %q", filepath.Ext(path))
	}
	if err != nil {
		return Config{}, err
	}
	cfg.Logging.Level = strings.ToUpper(cfg.Logging.Level)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Save writes cfg to path as YAML or JSON, chosen by the file extension.
func Save(path string, cfg Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return SaveYAML(path, cfg)
	case ".json":
		return SaveJSON(path, cfg)
	default:
		return fmt.Errorf("unsupported config file extension %q", filepath.Ext(path))
	}
}

type flagBinding struct {
	key  string
	flag string
}

// BindFlags registers every configuration flag on flagSet and returns a viper
// instance bound to them and to CONJ_* environment variables.
func BindFlags(flagSet *pflag.FlagSet) (*viper.Viper, error) {
	d := Default()
	v := viper.New()

	flagSet.IntP("workers", "w", d.Pool.Workers, "Number of worker goroutines.")
	flagSet.Int("queue-size", d.Pool.QueueSize, "Capacity of the job queue. 0 means one slot per worker.")
	flagSet.Uint64("start", d.Conjecture.Start, "First value to check.")
	flagSet.Uint64("batch-size", d.Conjecture.BatchSize, "Values checked by a single job.")
	flagSet.Int("max-batches", d.Conjecture.MaxBatches, "Stop after submitting this many batches. 0 means no limit.")
	flagSet.Float64("submit-rate", d.Conjecture.SubmitRate, "Maximum batches submitted per second. 0 means no limit.")
	flagSet.Bool("resume", d.Conjecture.Resume, "Continue from the store's checkpoint.")
	flagSet.String("log-level", d.Logging.Level, "Minimum log level: DEBUG, INFO or ERROR.")
	flagSet.Bool("log-json", d.Logging.JSONOutput, "Write logs as JSON.")
	flagSet.String("log-file", d.Logging.File, "Write logs to a rotating file instead of stdout/stderr.")
	flagSet.Bool("metrics", d.Metrics.Enabled, "Serve Prometheus metrics.")
	flagSet.String("metrics-addr", d.Metrics.Addr, "Address of the metrics endpoint.")
	flagSet.String("trace-exporter", d.Tracing.Exporter, "Trace exporter: jaeger, zipkin, stdout or none.")
	flagSet.String("trace-endpoint", d.Tracing.Endpoint, "Trace exporter endpoint.")
	flagSet.Float64("trace-sample-rate", d.Tracing.SampleRate, "Fraction of jobs traced.")
	flagSet.String("store-driver", d.Store.Driver, "Database driver: sqlite3, postgres or pgx. Empty disables persistence.")
	flagSet.String("store-dsn", d.Store.DSN, "Database connection string.")
	flagSet.String("nats-url", d.NATS.URL, "NATS server URL. Empty disables publishing.")
	flagSet.String("nats-prefix", d.NATS.Prefix, "Subject prefix for published events.")
	flagSet.Duration("shutdown-timeout", d.ShutdownTimeout, "How long queued batches may take to drain on shutdown.")

	bindings := []flagBinding{
		{"pool.workers", "workers"},
		{"pool.queue-size", "queue-size"},
		{"conjecture.start", "start"},
		{"conjecture.batch-size", "batch-size"},
		{"conjecture.max-batches", "max-batches"},
		{"conjecture.submit-rate", "submit-rate"},
		{"conjecture.resume", "resume"},
		{"logging.level", "log-level"},
		{"logging.json", "log-json"},
		{"logging.file", "log-file"},
		{"metrics.enabled", "metrics"},
		{"metrics.addr", "metrics-addr"},
		{"tracing.exporter", "trace-exporter"},
		{"tracing.endpoint", "trace-endpoint"},
		{"tracing.sample-rate", "trace-sample-rate"},
		{"store.driver", "store-driver"},
		{"store.dsn", "store-dsn"},
		{"nats.url", "nats-url"},
		{"nats.prefix", "nats-prefix"},
		{"shutdown-timeout", "shutdown-timeout"},
	}
	for _, b := range bindings {
		if err := v.BindPFlag(b.key, flagSet.Lookup(b.flag)); err != nil {
			return nil, fmt.Errorf("bind flag %s: %w", b.flag, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v, nil
}

// DecodeHook converts flag and environment strings into config field types.
func DecodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

// FromViper builds the configuration from v. When configFile is set it is
// read first; flags that were set explicitly and environment variables take
// precedence over it.
func FromViper(v *viper.Viper, configFile string) (Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("error while reading the config file: %w", err)
		}
	}

	cfg := Default()
	err := v.Unmarshal(&cfg, viper.DecodeHook(DecodeHook()), func(decoderConfig *mapstructure.DecoderConfig) {
		decoderConfig.TagName = "yaml"
	})
	if err != nil {
		return Config{}, fmt.Errorf("error while unmarshaling the config: %w", err)
	}
	cfg.Logging.Level = strings.ToUpper(cfg.Logging.Level)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
