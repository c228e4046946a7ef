package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Monitor MonitorConfig `mapstructure:"monitor"`
	Tasks   TasksConfig   `mapstructure:"tasks"`
	Poll    PollConfig    `mapstructure:"poll"`
	Source  SourceConfig  `mapstructure:"source"`
	Publish PublishConfig `mapstructure:"publish"`
	Logging LoggingConfig `mapstructure:"logging"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type MonitorConfig struct {
	MaxTraces         int           `mapstructure:"max_traces"`
	CorrelationHeader string        `mapstructure:"correlation_header"`
	CacheTTL          time.Duration `mapstructure:"cache_ttl"`
	StaleMarkInterval int           `mapstructure:"stale_mark_interval"`
	HealthyAge        time.Duration `mapstructure:"healthy_age"`
	SlowTraceCount    int           `mapstructure:"slow_trace_count"`
	DriftTraceRatio   float64       `mapstructure:"drift_trace_ratio"`
	DriftMessageCount int64         `mapstructure:"drift_message_count"`
	TopologyFile      string        `mapstructure:"topology_file"`
}

type TasksConfig struct {
	MaxConcurrent int64         `mapstructure:"max_concurrent"`
	WarnAfter     time.Duration `mapstructure:"warn_after"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

type PollConfig struct {
	BaseTimeout   time.Duration `mapstructure:"base_timeout"`
	MaxTimeout    time.Duration `mapstructure:"max_timeout"`
	BackoffFactor float64       `mapstructure:"backoff_factor"`
}

type SourceConfig struct {
	NATSURL    string `mapstructure:"nats_url"`
	Subject    string `mapstructure:"subject"`
	BufferSize int    `mapstructure:"buffer_size"`
}

type PublishConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	RedisURL      string        `mapstructure:"redis_url"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
	InstanceID    string        `mapstructure:"instance_id"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("server.port", 8095)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("monitor.max_traces", 1000)
	v.SetDefault("monitor.correlation_header", "correlation-id")
	v.SetDefault("monitor.cache_ttl", "5s")
	v.SetDefault("monitor.stale_mark_interval", 50)
	v.SetDefault("monitor.healthy_age", "30s")
	v.SetDefault("monitor.slow_trace_count", 5)
	v.SetDefault("monitor.drift_trace_ratio", 0.10)
	v.SetDefault("monitor.drift_message_count", 50)
	v.SetDefault("monitor.topology_file", "")
	v.SetDefault("tasks.max_concurrent", 20)
	v.SetDefault("tasks.warn_after", "5m")
	v.SetDefault("tasks.sweep_interval", "30s")
	v.SetDefault("poll.base_timeout", "1s")
	v.SetDefault("poll.max_timeout", "30s")
	v.SetDefault("poll.backoff_factor", 1.2)
	v.SetDefault("source.nats_url", "nats://localhost:4222")
	v.SetDefault("source.subject", "kafkamon.records")
	v.SetDefault("source.buffer_size", 4096)
	v.SetDefault("publish.enabled", false)
	v.SetDefault("publish.redis_url", "redis://localhost:6379")
	v.SetDefault("publish.flush_interval", "30s")
	v.SetDefault("publish.instance_id", "")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Read config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/kafkamon")
	}

	// Environment variables override
	v.SetEnvPrefix("KAFKAMON")
	v.AutomaticEnv()

	// Read config
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found; use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
