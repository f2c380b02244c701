package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// ServiceConfig is the runtime configuration for the guardrail service:
// where it listens, where it persists, and which streams it consumes.
// Policy lives separately in Config so officers can tune thresholds
// without touching deployment settings.
type ServiceConfig struct {
	LogLevel    string         `mapstructure:"log_level" yaml:"log_level"`
	PolicyPath  string         `mapstructure:"policy_path" yaml:"policy_path"`
	MetricsAddr string         `mapstructure:"metrics_addr" yaml:"metrics_addr"`
	DatabaseDSN string         `mapstructure:"database_dsn" yaml:"database_dsn"`
	Tracing     TracingConfig  `mapstructure:"tracing" yaml:"tracing"`
	Kafka       KafkaConfig    `mapstructure:"kafka" yaml:"kafka"`
	Pipeline    PipelineConfig `mapstructure:"pipeline" yaml:"pipeline"`
}

// TracingConfig controls the OpenTelemetry trace exporter.
type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
}

// KafkaConfig carries the broker settings for the evaluation stream and
// the audit topic.
type KafkaConfig struct {
	Enabled       bool     `mapstructure:"enabled" yaml:"enabled"`
	Brokers       []string `mapstructure:"brokers" yaml:"brokers"`
	RequestTopic  string   `mapstructure:"request_topic" yaml:"request_topic"`
	DecisionTopic string   `mapstructure:"decision_topic" yaml:"decision_topic"`
	AuditTopic    string   `mapstructure:"audit_topic" yaml:"audit_topic"`
	GroupID       string   `mapstructure:"group_id" yaml:"group_id"`
}

// PipelineConfig tunes the evaluation worker pool.
type PipelineConfig struct {
	Workers   int `mapstructure:"workers" yaml:"workers"`
	QueueSize int `mapstructure:"queue_size" yaml:"queue_size"`
}

// LoadService reads the service configuration, merging an optional YAML
// file with GUARDRAIL_* environment variables. A missing file is not an
// error; defaults and environment cover everything.
func LoadService(path string) (*ServiceConfig, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("GUARDRAIL")

	setServiceDefaults(v)

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.MergeInConfig(); err != nil {
				return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
			}
		}
	}

	var cfg ServiceConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal service config: %w", err)
	}

	if cfg.Pipeline.Workers <= 0 {
		return nil, fmt.Errorf("pipeline workers must be positive, got %d", cfg.Pipeline.Workers)
	}
	if cfg.Kafka.Enabled && len(cfg.Kafka.Brokers) == 0 {
		return nil, fmt.Errorf("kafka enabled but no brokers configured")
	}
	return &cfg, nil
}

func setServiceDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("policy_path", "")
	v.SetDefault("metrics_addr", ":9090")
	v.SetDefault("database_dsn", "")
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "guardrail")
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.request_topic", "guardrail.requests")
	v.SetDefault("kafka.decision_topic", "guardrail.decisions")
	v.SetDefault("kafka.audit_topic", "guardrail.audit")
	v.SetDefault("kafka.group_id", "guardrail-evaluator")
	v.SetDefault("pipeline.workers", 4)
	v.SetDefault("pipeline.queue_size", 256)
}
