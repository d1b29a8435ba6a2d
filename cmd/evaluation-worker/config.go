package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"hushhire/internal/common/cache"
	"hushhire/internal/common/db"
	"hushhire/internal/common/mq"
	"hushhire/internal/common/storage"
	"hushhire/internal/evaluation/sandbox"
	"hushhire/pkg/utils/logger"
)

const (
	defaultMetricsAddr     = "0.0.0.0:9091"
	defaultShutdownTimeout = 10 * time.Second
	defaultStatusTTL       = 5 * time.Minute
	defaultEventTopic      = "assessment.events"
	defaultEvaluationTopic = "assessment.evaluate"
	defaultPoolSize        = 4
	defaultRunTimeout      = 30 * time.Second
	defaultSweepInterval   = time.Minute
	defaultStaleAfter      = 5 * time.Minute
)

// WorkerConfig holds evaluation worker pool settings.
type WorkerConfig struct {
	PoolSize      int           `yaml:"poolSize"`
	RunTimeout    time.Duration `yaml:"runTimeout"`
	WorkRoot      string        `yaml:"workRoot"`
	SweepInterval time.Duration `yaml:"sweepInterval"`
	StaleAfter    time.Duration `yaml:"staleAfter"`
}

// RunnerConfig selects and configures the sandbox backend.
type RunnerConfig struct {
	// Mode is "docker" or "process". Process mode runs the evaluator
	// binary directly and is meant for development only.
	Mode          string `yaml:"mode"`
	EvaluatorPath string `yaml:"evaluatorPath"`

	Docker sandbox.DockerConfig `yaml:"docker"`
}

// TopicsConfig names the Kafka topics the platform uses.
type TopicsConfig struct {
	Events     string `yaml:"events"`
	Evaluation string `yaml:"evaluation"`
}

// StatusConfig holds status snapshot cache settings.
type StatusConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

// AppConfig holds evaluation-worker config.
type AppConfig struct {
	MetricsAddr string              `yaml:"metricsAddr"`
	Logger      logger.Config       `yaml:"logger"`
	Database    db.MySQLConfig      `yaml:"database"`
	Redis       cache.RedisConfig   `yaml:"redis"`
	Kafka       mq.KafkaConfig      `yaml:"kafka"`
	MinIO       storage.MinIOConfig `yaml:"minio"`
	Topics      TopicsConfig        `yaml:"topics"`
	Status      StatusConfig        `yaml:"status"`
	Worker      WorkerConfig        `yaml:"worker"`
	Runner      RunnerConfig        `yaml:"runner"`
}

func loadYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file failed: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse config file failed: %w", err)
	}
	return nil
}

func loadAppConfig(path string) (*AppConfig, error) {
	var cfg AppConfig
	if err := loadYAML(path, &cfg); err != nil {
		return nil, err
	}
	if cfg.Database.DSN == "" {
		return nil, fmt.Errorf("database dsn is required")
	}
	if cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}
	if cfg.MetricsAddr == "" {
		cfg.MetricsAddr = defaultMetricsAddr
	}
	if cfg.Topics.Events == "" {
		cfg.Topics.Events = defaultEventTopic
	}
	if cfg.Topics.Evaluation == "" {
		cfg.Topics.Evaluation = defaultEvaluationTopic
	}
	if cfg.Status.TTL == 0 {
		cfg.Status.TTL = defaultStatusTTL
	}
	if cfg.Worker.PoolSize <= 0 {
		cfg.Worker.PoolSize = defaultPoolSize
	}
	if cfg.Worker.RunTimeout == 0 {
		cfg.Worker.RunTimeout = defaultRunTimeout
	}
	if cfg.Worker.SweepInterval == 0 {
		cfg.Worker.SweepInterval = defaultSweepInterval
	}
	if cfg.Worker.StaleAfter == 0 {
		cfg.Worker.StaleAfter = defaultStaleAfter
	}
	if cfg.Runner.Mode == "" {
		cfg.Runner.Mode = "docker"
	}
	if cfg.Runner.Mode == "process" && cfg.Runner.EvaluatorPath == "" {
		return nil, fmt.Errorf("runner.evaluatorPath is required in process mode")
	}
	return &cfg, nil
}
