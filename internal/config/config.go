// Package config resolves the redirect service configuration from defaults,
// an optional YAML file, a .env file, environment variables and AWS Secrets
// Manager, in that order.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	EventSinkNone      = "none"
	EventSinkWatermill = "watermill"
	EventSinkDapr      = "dapr"

	// MinNonceTTL is the shortest time a consumed token id is remembered.
	MinNonceTTL = 60 * time.Second
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Secrets   SecretsConfig   `yaml:"secrets"`
	Events    EventsConfig    `yaml:"events"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Log       LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	Port            string        `yaml:"port"`
	BaseURL         string        `yaml:"base_url"`
	RateLimit       int           `yaml:"rate_limit"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// TrustedProxies lists the CIDR ranges or addresses whose forwarding
	// headers name the client. Empty means the socket peer is the client.
	TrustedProxies []string `yaml:"trusted_proxies"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// RedisConfig selects the Redis server. URL takes precedence over Addr;
// with neither set the service runs on in-memory stores.
type RedisConfig struct {
	URL      string `yaml:"url"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Enabled reports whether a Redis server is configured.
func (r RedisConfig) Enabled() bool {
	return r.URL != "" || r.Addr != ""
}

type PipelineConfig struct {
	GenesisTTL    time.Duration `yaml:"genesis_ttl"`
	ValidationTTL time.Duration `yaml:"validation_ttl"`
	RoutingTTL    time.Duration `yaml:"routing_ttl"`
	NonceTTL      time.Duration `yaml:"nonce_ttl"`
}

// SecretsConfig holds the per-stage signing keys. RoutingKey is reserved
// for a routing output token. ContextKey keys the IP and user agent digests
// carried in tokens.
type SecretsConfig struct {
	GenesisKey    string `yaml:"-"`
	ValidationKey string `yaml:"-"`
	RoutingKey    string `yaml:"-"`
	ContextKey    string `yaml:"-"`
	MasterSecret  string `yaml:"-"`
}

type EventsConfig struct {
	Sink       string `yaml:"sink"`
	DaprPubSub string `yaml:"dapr_pubsub"`
	DaprTopic  string `yaml:"dapr_topic"`
}

type TelemetryConfig struct {
	GeoIPDatabase string `yaml:"geoip_database"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	Env   string `yaml:"env"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8080",
			BaseURL:         "http://localhost:8080",
			RateLimit:       100,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "data/links.db",
		},
		Pipeline: PipelineConfig{
			GenesisTTL:    15 * time.Second,
			ValidationTTL: 10 * time.Second,
			RoutingTTL:    5 * time.Second,
			NonceTTL:      MinNonceTTL,
		},
		Events: EventsConfig{
			Sink:       EventSinkWatermill,
			DaprPubSub: "pubsub",
			DaprTopic:  "clicks",
		},
		Log: LogConfig{
			Level: "info",
			Env:   "development",
		},
	}
}

// Option configures Load.
type Option func(*loader)

type loader struct {
	secrets SecretsFetcher
}

// WithSecretsFetcher replaces the AWS Secrets Manager client.
func WithSecretsFetcher(f SecretsFetcher) Option {
	return func(l *loader) {
		l.secrets = f
	}
}

// Load resolves the configuration. path names an optional YAML file; a
// missing file is not an error.
func Load(ctx context.Context, path string, opts ...Option) (*Config, error) {
	l := &loader{}
	for _, opt := range opts {
		opt(l)
	}

	cfg := Default()

	if path != "" {
		if err := loadFile(cfg, path); err != nil {
			return nil, err
		}
	}

	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	applyEnv(cfg)

	if secretID := getEnv("AWS_SECRETS_MANAGER_SECRET_ID", ""); secretID != "" {
		fetcher := l.secrets
		if fetcher == nil {
			aws, err := NewAWSSecretsFetcher(ctx, getEnv("AWS_SECRETS_MANAGER_REGION", ""))
			if err != nil {
				return nil, err
			}
			fetcher = aws
		}
		if err := applySecrets(ctx, cfg, fetcher, secretID, envBool("AWS_SECRETS_MANAGER_OVERWRITE", false)); err != nil {
			return nil, err
		}
	}

	if err := cfg.Secrets.deriveMissing(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func loadFile(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

// loadDotEnv reads ENV_FILE_PATH (default .env). Variables already in the
// environment win.
func loadDotEnv() error {
	envFile := getEnv("ENV_FILE_PATH", ".env")
	if err := godotenv.Load(envFile); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", envFile, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Server.Port = getEnv("PORT", cfg.Server.Port)
	cfg.Server.BaseURL = getEnv("BASE_URL", cfg.Server.BaseURL)
	cfg.Server.RateLimit = envInt("RATE_LIMIT", cfg.Server.RateLimit)
	cfg.Server.ShutdownTimeout = envDuration("SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout)
	cfg.Server.TrustedProxies = envList("TRUSTED_PROXIES", cfg.Server.TrustedProxies)

	cfg.Database.Driver = getEnv("DB_DRIVER", cfg.Database.Driver)
	cfg.Database.DSN = getEnv("DATABASE_URL", getEnv("DATABASE_PATH", cfg.Database.DSN))

	cfg.Redis.URL = getEnv("REDIS_URL", cfg.Redis.URL)
	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = envInt("REDIS_DB", cfg.Redis.DB)

	cfg.Pipeline.GenesisTTL = envDuration("GENESIS_TOKEN_TTL", cfg.Pipeline.GenesisTTL)
	cfg.Pipeline.ValidationTTL = envDuration("VALIDATION_TOKEN_TTL", cfg.Pipeline.ValidationTTL)
	cfg.Pipeline.RoutingTTL = envDuration("ROUTING_TOKEN_TTL", cfg.Pipeline.RoutingTTL)
	cfg.Pipeline.NonceTTL = envDuration("NONCE_TTL", cfg.Pipeline.NonceTTL)

	cfg.Secrets.GenesisKey = getEnv("GENESIS_SECRET", cfg.Secrets.GenesisKey)
	cfg.Secrets.ValidationKey = getEnv("VALIDATION_SECRET", cfg.Secrets.ValidationKey)
	cfg.Secrets.RoutingKey = getEnv("ROUTING_SECRET", cfg.Secrets.RoutingKey)
	cfg.Secrets.ContextKey = getEnv("CONTEXT_SECRET", cfg.Secrets.ContextKey)
	cfg.Secrets.MasterSecret = getEnv("MASTER_SECRET", cfg.Secrets.MasterSecret)

	cfg.Events.Sink = strings.ToLower(getEnv("EVENT_SINK", cfg.Events.Sink))
	cfg.Events.DaprPubSub = getEnv("DAPR_PUBSUB_NAME", cfg.Events.DaprPubSub)
	cfg.Events.DaprTopic = getEnv("DAPR_TOPIC", cfg.Events.DaprTopic)

	cfg.Telemetry.GeoIPDatabase = getEnv("GEOIP_DB_PATH", cfg.Telemetry.GeoIPDatabase)

	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Env = getEnv("APP_ENV", cfg.Log.Env)
}

// getEnv retrieves an environment variable or returns the default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func envInt(key string, defaultValue int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return v
}

// envList splits a comma separated variable, dropping empty items.
func envList(key string, defaultValue []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func envBool(key string, defaultValue bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return v
}

// envDuration accepts Go durations ("15s") or plain seconds ("15").
func envDuration(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
