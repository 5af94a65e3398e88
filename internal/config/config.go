package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`
	Publish  PublishConfig  `yaml:"publish" mapstructure:"publish"`
	Schedule ScheduleConfig `yaml:"schedule" mapstructure:"schedule"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // postgres or sqlite
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// PipelineConfig configures orchestration behavior.
type PipelineConfig struct {
	ExtractionTimeoutSecs int `yaml:"extraction_timeout_secs" mapstructure:"extraction_timeout_secs"`
	AnalysisTimeoutSecs   int `yaml:"analysis_timeout_secs" mapstructure:"analysis_timeout_secs"`
	PublishTimeoutSecs    int `yaml:"publish_timeout_secs" mapstructure:"publish_timeout_secs"`
	RecurrenceDays        int `yaml:"recurrence_days" mapstructure:"recurrence_days"`
	HistoryLimit          int `yaml:"history_limit" mapstructure:"history_limit"`
}

// The accessors fall back to the Load defaults so a zero-valued
// PipelineConfig never produces an already-expired stage context.

// ExtractionTimeout returns the extraction stage timeout.
func (c PipelineConfig) ExtractionTimeout() time.Duration {
	if c.ExtractionTimeoutSecs <= 0 {
		return 300 * time.Second
	}
	return time.Duration(c.ExtractionTimeoutSecs) * time.Second
}

// AnalysisTimeout returns the analysis stage timeout.
func (c PipelineConfig) AnalysisTimeout() time.Duration {
	if c.AnalysisTimeoutSecs <= 0 {
		return 300 * time.Second
	}
	return time.Duration(c.AnalysisTimeoutSecs) * time.Second
}

// PublishTimeout returns the publish stage timeout.
func (c PipelineConfig) PublishTimeout() time.Duration {
	if c.PublishTimeoutSecs <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.PublishTimeoutSecs) * time.Second
}

// RecurrenceInterval returns the automation re-run interval, computed from
// the completion time of the prior run.
func (c PipelineConfig) RecurrenceInterval() time.Duration {
	if c.RecurrenceDays <= 0 {
		return 30 * 24 * time.Hour
	}
	return time.Duration(c.RecurrenceDays) * 24 * time.Hour
}

// PublishConfig configures the eligibility gate and publish rate limiting.
type PublishConfig struct {
	SandboxMode        bool    `yaml:"sandbox_mode" mapstructure:"sandbox_mode"`
	LenientThreshold   float64 `yaml:"lenient_threshold" mapstructure:"lenient_threshold"`
	ReferenceThreshold float64 `yaml:"reference_threshold" mapstructure:"reference_threshold"`
	ReviewThreshold    float64 `yaml:"review_threshold" mapstructure:"review_threshold"`
	RatePerMinute      float64 `yaml:"rate_per_minute" mapstructure:"rate_per_minute"`
}

// ScheduleConfig configures the recurrence sweep.
type ScheduleConfig struct {
	SweepSpec string `yaml:"sweep_spec" mapstructure:"sweep_spec"` // cron spec
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("VISIBILITY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Every key needs a default so AutomaticEnv can bind it.
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.sqlite_path", "visibility.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("pipeline.extraction_timeout_secs", 300)
	v.SetDefault("pipeline.analysis_timeout_secs", 300)
	v.SetDefault("pipeline.publish_timeout_secs", 60)
	v.SetDefault("pipeline.recurrence_days", 30)
	v.SetDefault("pipeline.history_limit", 20)
	v.SetDefault("publish.sandbox_mode", false)
	v.SetDefault("publish.lenient_threshold", 0.3)
	v.SetDefault("publish.reference_threshold", 0.2)
	v.SetDefault("publish.review_threshold", 0.7)
	v.SetDefault("publish.rate_per_minute", 30)
	v.SetDefault("schedule.sweep_spec", "@every 1h")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
