// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`

	Database struct {
		URL      string `yaml:"url"`
		MaxConns int    `yaml:"max_conns"`
		MaxIdle  int    `yaml:"max_idle"`
	} `yaml:"database"`

	RabbitMQ struct {
		URL   string `yaml:"url"`
		Queue string `yaml:"queue"`
	} `yaml:"rabbitmq"`

	Redis struct {
		Addr     string        `yaml:"addr"`
		Password string        `yaml:"password"`
		DB       int           `yaml:"db"`
		TTL      time.Duration `yaml:"ttl"`
	} `yaml:"redis"`

	Aggregator struct {
		Concurrency  int           `yaml:"concurrency"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
		TopCampaigns int           `yaml:"top_campaigns"`

		// RefreshInterval re-warms the current month's cached report; 0 disables it.
		RefreshInterval time.Duration `yaml:"refresh_interval"`
	} `yaml:"aggregator"`

	Provisioner struct {
		WebhookURL     string        `yaml:"webhook_url"`
		WebhookTimeout time.Duration `yaml:"webhook_timeout"`
	} `yaml:"provisioner"`

	Auth struct {
		JWTSecret string `yaml:"jwt_secret"`
	} `yaml:"auth"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`

	Sentry struct {
		DSN         string `yaml:"dsn"`
		Environment string `yaml:"environment"`
	} `yaml:"sentry"`
}

func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

// applyEnv lets secrets and endpoints be injected without editing the file.
func (c *Config) applyEnv() {
	setString(&c.Database.URL, "DATABASE_URL")
	setString(&c.RabbitMQ.URL, "RABBITMQ_URL")
	setString(&c.Redis.Addr, "REDIS_ADDR")
	setString(&c.Redis.Password, "REDIS_PASSWORD")
	setString(&c.Auth.JWTSecret, "JWT_SECRET")
	setString(&c.Sentry.DSN, "SENTRY_DSN")
	setString(&c.Provisioner.WebhookURL, "PROVISION_WEBHOOK_URL")
	setString(&c.Log.Level, "LOG_LEVEL")
	if v, err := strconv.Atoi(os.Getenv("AGGREGATOR_CONCURRENCY")); err == nil && v > 0 {
		c.Aggregator.Concurrency = v
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.RabbitMQ.Queue == "" {
		c.RabbitMQ.Queue = "tenant_provisioned"
	}
	if c.Redis.TTL <= 0 {
		c.Redis.TTL = 5 * time.Minute
	}
	if c.Aggregator.Concurrency <= 0 {
		c.Aggregator.Concurrency = 8
	}
	if c.Aggregator.ReadTimeout <= 0 {
		c.Aggregator.ReadTimeout = 15 * time.Second
	}
	if c.Aggregator.TopCampaigns <= 0 {
		c.Aggregator.TopCampaigns = 20
	}
	if c.Provisioner.WebhookTimeout <= 0 {
		c.Provisioner.WebhookTimeout = 10 * time.Second
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
