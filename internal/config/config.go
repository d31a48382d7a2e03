// Package config loads ambient (environment/.env/CLI flag) settings and the
// per-system JSON domain configuration this consumer is driven by.
package config

import (
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds process-wide ambient settings: broker connection, worker
// pool sizing, scratch directory, and logging.
type Config struct {
	MQTTBrokerURL    string `env:"MQTT_BROKER_URL,required"`
	MQTTClientID     string `env:"MQTT_CLIENT_ID" envDefault:"icad-tr-mqtt-consumer"`
	MQTTTopicPrefix  string `env:"MQTT_TOPIC_PREFIX" envDefault:"#"`
	MQTTUsername     string `env:"MQTT_USERNAME"`
	MQTTPassword     string `env:"MQTT_PASSWORD"`
	MQTTTLSCACert    string `env:"MQTT_TLS_CA_CERT"`
	MQTTTLSCert      string `env:"MQTT_TLS_CLIENT_CERT"`
	MQTTTLSKey       string `env:"MQTT_TLS_CLIENT_KEY"`

	ConfigFile string `env:"CONFIG_FILE" envDefault:"./config.json"`
	ScratchDir string `env:"SCRATCH_DIR" envDefault:"./tmp"`

	WorkerPoolSize  int `env:"WORKER_POOL_SIZE" envDefault:"32"`
	WorkerQueueSize int `env:"WORKER_QUEUE_SIZE" envDefault:"1000"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	MetricsAddr string `env:"METRICS_ADDR" envDefault:":9090"`

	HTTPTimeout time.Duration `env:"HTTP_TIMEOUT" envDefault:"10s"`
}

// Overrides holds CLI flag values that take priority over env vars.
type Overrides struct {
	EnvFile       string
	ConfigFile    string
	MQTTBrokerURL string
	LogLevel      string
}

// Load reads ambient configuration from .env, environment variables, and CLI
// overrides. Priority: CLI flags > environment variables > .env file >
// struct defaults.
func Load(overrides Overrides) (*Config, error) {
	envFile := overrides.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		_ = godotenv.Load(envFile)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, NewConfigError("parse environment", err)
	}

	if overrides.ConfigFile != "" {
		cfg.ConfigFile = overrides.ConfigFile
	}
	if overrides.MQTTBrokerURL != "" {
		cfg.MQTTBrokerURL = overrides.MQTTBrokerURL
	}
	if overrides.LogLevel != "" {
		cfg.LogLevel = overrides.LogLevel
	}

	return cfg, nil
}

// Validate checks ambient settings required for the process to start.
func (c *Config) Validate() error {
	if c.MQTTBrokerURL == "" {
		return NewConfigError("validate", errRequired("MQTT_BROKER_URL"))
	}
	if c.WorkerPoolSize <= 0 {
		return NewConfigError("validate", errRequired("WORKER_POOL_SIZE must be > 0"))
	}
	return nil
}

type staticErr string

func (e staticErr) Error() string { return string(e) }

func errRequired(what string) error { return staticErr(what + " must be set") }
