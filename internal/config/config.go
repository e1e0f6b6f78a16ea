// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/viper"

	"github.com/fd1az/mordor-monitor/internal/apperror"
)

// Config holds all application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Node      NodeConfig      `mapstructure:"node"`
	Fork      ForkConfig      `mapstructure:"fork"`
	Gas       GasConfig       `mapstructure:"gas"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	API       APIConfig       `mapstructure:"api"`
	CLI       CLIConfig       `mapstructure:"cli"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
	TUIMode     bool   `mapstructure:"-"` // set at runtime by the CLI
}

// NodeConfig holds the RPC endpoint and how hard we lean on it.
type NodeConfig struct {
	RPCURL            string        `mapstructure:"rpc_url"`
	PollIntervalSecs  int           `mapstructure:"poll_interval_secs"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	MaxRetries        int           `mapstructure:"max_retries"`
	InitialBackoff    time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff        time.Duration `mapstructure:"max_backoff"`
	BlockCacheTTL     time.Duration `mapstructure:"block_cache_ttl"`
	BackfillLimit     int           `mapstructure:"backfill_limit"`
}

// PollInterval returns the poll period as a duration.
func (c NodeConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSecs) * time.Second
}

// ForkConfig bounds the fork detector's memory.
type ForkConfig struct {
	RetentionWindow int `mapstructure:"retention_window"`
	MaxBranches     int `mapstructure:"max_branches"`
	HistorySize     int `mapstructure:"history_size"`
	ResolveDepth    int `mapstructure:"resolve_depth"`
}

// GasConfig sizes the gas sample window.
type GasConfig struct {
	WindowSize int `mapstructure:"window_size"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Namespace string `mapstructure:"namespace"`
	Port      int    `mapstructure:"port"`
}

// APIConfig controls the query API and event stream.
type APIConfig struct {
	Port         int `mapstructure:"port"`
	StreamBuffer int `mapstructure:"stream_buffer"`
}

// CLIConfig holds the endpoints mordor-cli talks to.
type CLIConfig struct {
	MonitorURL    string        `mapstructure:"monitor_url"`
	MetricsURL    string        `mapstructure:"metrics_url"`
	PrometheusURL string        `mapstructure:"prometheus_url"`
	GrafanaURL    string        `mapstructure:"grafana_url"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	ServiceName   string `mapstructure:"service_name"`
	TraceProvider string `mapstructure:"trace_provider"` // zipkin, otlp-grpc, otlp-http, console
	OTLPEndpoint  string `mapstructure:"otlp_endpoint"`
	ZipkinURL     string `mapstructure:"zipkin_url"`
	OTLPMetrics   bool   `mapstructure:"otlp_metrics"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("MORDOR")
	v.AutomaticEnv()

	bindEnvVars(v)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, apperror.New(apperror.CodeConfigurationError,
				apperror.WithCause(err),
				apperror.WithContext("read config"))
		}
		// Config file not found is OK, use env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithCause(err),
			apperror.WithContext("unmarshal config"))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	// App
	v.BindEnv("app.name", "MORDOR_APP_NAME", "SERVICE_NAME")
	v.BindEnv("app.environment", "MORDOR_ENVIRONMENT", "ENVIRONMENT")
	v.BindEnv("app.log_level", "MORDOR_LOG_LEVEL", "LOG_LEVEL")

	// Node
	v.BindEnv("node.rpc_url", "MORDOR_RPC_URL", "RPC_URL")
	v.BindEnv("node.poll_interval_secs", "MORDOR_POLL_INTERVAL_SECS", "POLL_INTERVAL_SECS")
	v.BindEnv("node.requests_per_second", "MORDOR_RPC_RPS")

	// Metrics / API
	v.BindEnv("metrics.namespace", "MORDOR_METRICS_NAMESPACE")
	v.BindEnv("metrics.port", "MORDOR_METRICS_PORT", "METRICS_PORT")
	v.BindEnv("api.port", "MORDOR_API_PORT", "API_PORT")

	// CLI
	v.BindEnv("cli.monitor_url", "MORDOR_MONITOR_URL")
	v.BindEnv("cli.metrics_url", "MORDOR_METRICS_URL")

	// Telemetry
	v.BindEnv("telemetry.enabled", "MORDOR_OTEL_ENABLED", "OTEL_ENABLED")
	v.BindEnv("telemetry.service_name", "MORDOR_OTEL_SERVICE_NAME", "OTEL_SERVICE_NAME")
	v.BindEnv("telemetry.otlp_endpoint", "MORDOR_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
	v.BindEnv("telemetry.trace_provider", "MORDOR_TRACE_PROVIDER")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "fork-monitor")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("node.rpc_url", "http://mordor-node:8545")
	v.SetDefault("node.poll_interval_secs", 5)
	v.SetDefault("node.request_timeout", "10s")
	v.SetDefault("node.requests_per_second", 10)
	v.SetDefault("node.burst", 5)
	v.SetDefault("node.max_retries", 3)
	v.SetDefault("node.initial_backoff", "500ms")
	v.SetDefault("node.max_backoff", "4s")
	v.SetDefault("node.block_cache_ttl", "10m")
	v.SetDefault("node.backfill_limit", 32)

	v.SetDefault("fork.retention_window", 256)
	v.SetDefault("fork.max_branches", 16)
	v.SetDefault("fork.history_size", 64)
	v.SetDefault("fork.resolve_depth", 12)

	v.SetDefault("gas.window_size", 20)

	v.SetDefault("metrics.namespace", "etc_mordor")
	v.SetDefault("metrics.port", 9090)

	v.SetDefault("api.port", 8081)
	v.SetDefault("api.stream_buffer", 16)

	v.SetDefault("cli.monitor_url", "http://localhost:8081")
	v.SetDefault("cli.metrics_url", "http://localhost:9090/metrics")
	v.SetDefault("cli.prometheus_url", "http://localhost:9092")
	v.SetDefault("cli.grafana_url", "http://localhost:3000")
	v.SetDefault("cli.timeout", "5s")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "fork-monitor")
	v.SetDefault("telemetry.trace_provider", "zipkin")
	v.SetDefault("telemetry.zipkin_url", "http://localhost:9411/api/v2/spans")
	v.SetDefault("telemetry.otlp_endpoint", "localhost:4317")
	v.SetDefault("telemetry.otlp_metrics", false)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return apperror.Validation(apperror.CodeConfigurationError, fmt.Sprintf(format, args...))
	}

	if c.Node.RPCURL == "" {
		return invalid("node.rpc_url is required")
	}
	if _, err := url.ParseRequestURI(c.Node.RPCURL); err != nil {
		return invalid("node.rpc_url is not a URL: %s", c.Node.RPCURL)
	}
	if c.Node.PollIntervalSecs <= 0 {
		return invalid("node.poll_interval_secs must be positive, got %d", c.Node.PollIntervalSecs)
	}
	if c.Node.MaxRetries < 0 {
		return invalid("node.max_retries cannot be negative")
	}
	if c.Node.BackfillLimit < 0 {
		return invalid("node.backfill_limit cannot be negative")
	}
	if c.Fork.RetentionWindow < 2 {
		return invalid("fork.retention_window must be at least 2, got %d", c.Fork.RetentionWindow)
	}
	if c.Fork.MaxBranches < 1 {
		return invalid("fork.max_branches must be at least 1")
	}
	if c.Fork.HistorySize < 1 {
		return invalid("fork.history_size must be at least 1")
	}
	if c.Fork.ResolveDepth < 0 {
		return invalid("fork.resolve_depth cannot be negative")
	}
	if c.Gas.WindowSize < 1 {
		return invalid("gas.window_size must be at least 1, got %d", c.Gas.WindowSize)
	}
	if c.Metrics.Namespace == "" {
		return invalid("metrics.namespace is required")
	}
	for name, port := range map[string]int{"metrics.port": c.Metrics.Port, "api.port": c.API.Port} {
		if port <= 0 || port > 65535 {
			return invalid("%s out of range: %d", name, port)
		}
	}
	return nil
}
