package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"hushhire/internal/common/auth"
	"hushhire/internal/common/cache"
	"hushhire/internal/common/db"
	"hushhire/internal/common/mq"
	"hushhire/pkg/utils/logger"
)

const (
	defaultHTTPAddr        = "0.0.0.0:8080"
	defaultReadTimeout     = 5 * time.Second
	defaultWriteTimeout    = 10 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	defaultStatusTTL       = 5 * time.Minute
	defaultEventTopic      = "assessment.events"
	defaultEvaluationTopic = "assessment.evaluate"
	defaultJWTTTL          = 12 * time.Hour
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	IdleTimeout  time.Duration `yaml:"idleTimeout"`
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

// AppConfig holds assessment-service config.
type AppConfig struct {
	Server   ServerConfig      `yaml:"server"`
	Logger   logger.Config     `yaml:"logger"`
	Database db.MySQLConfig    `yaml:"database"`
	Redis    cache.RedisConfig `yaml:"redis"`
	Kafka    mq.KafkaConfig    `yaml:"kafka"`
	Topics   TopicsConfig      `yaml:"topics"`
	Status   StatusConfig      `yaml:"status"`
	JWT      auth.Config       `yaml:"jwt"`
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
	if cfg.JWT.Secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaultHTTPAddr
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = defaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = defaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = defaultIdleTimeout
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
	if cfg.JWT.TTL == 0 {
		cfg.JWT.TTL = defaultJWTTTL
	}
	return &cfg, nil
}
