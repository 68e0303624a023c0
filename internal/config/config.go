// Package config layers defaults, environment (with an optional .env file)
// and command line flags into the server configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Storage backends
const (
	BackendMongo  = "mongo"
	BackendMemory = "memory"
)

// Config is the server configuration
type Config struct {
	HTTPAddr string

	StorageBackend string
	MongoURI       string
	MongoDatabase  string

	MQTTBroker   string
	MQTTClientID string
	MQTTTopic    string
	MQTTQoS      int

	IngestBuffer       int
	IngestStoreTimeout time.Duration
	PayloadFormat      string

	SessionTTL    time.Duration
	TokenMode     string
	JWTSecret     string
	SweepInterval time.Duration

	LogLevel  string
	LogFormat string
}

// Load reads .env (if present), then the environment, then args. Flags win.
func Load(args []string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg, err := fromEnv()
	if err != nil {
		return nil, err
	}

	fs := pflag.NewFlagSet("devicehub", pflag.ContinueOnError)
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "HTTP listen address")
	fs.StringVar(&cfg.StorageBackend, "storage", cfg.StorageBackend, "storage backend (mongo|memory)")
	fs.StringVar(&cfg.MongoURI, "mongodb-uri", cfg.MongoURI, "MongoDB connection string")
	fs.StringVar(&cfg.MongoDatabase, "mongodb-database", cfg.MongoDatabase, "MongoDB database name")
	fs.StringVar(&cfg.MQTTBroker, "mqtt-broker", cfg.MQTTBroker, "MQTT broker URL")
	fs.StringVar(&cfg.MQTTClientID, "mqtt-client-id", cfg.MQTTClientID, "MQTT client id")
	fs.StringVar(&cfg.MQTTTopic, "mqtt-topic", cfg.MQTTTopic, "MQTT ingestion topic")
	fs.IntVar(&cfg.MQTTQoS, "mqtt-qos", cfg.MQTTQoS, "MQTT subscription QoS (0-2)")
	fs.IntVar(&cfg.IngestBuffer, "ingest-buffer", cfg.IngestBuffer, "ingestion queue capacity")
	fs.DurationVar(&cfg.IngestStoreTimeout, "ingest-store-timeout", cfg.IngestStoreTimeout, "timeout for each message insert")
	fs.StringVar(&cfg.PayloadFormat, "payload-format", cfg.PayloadFormat, "telemetry payload format (json|cbor)")
	fs.DurationVar(&cfg.SessionTTL, "session-ttl", cfg.SessionTTL, "login token validity")
	fs.StringVar(&cfg.TokenMode, "token-mode", cfg.TokenMode, "login token strategy (digest|random|jwt)")
	fs.StringVar(&cfg.JWTSecret, "jwt-secret", cfg.JWTSecret, "HMAC secret for jwt tokens")
	fs.DurationVar(&cfg.SweepInterval, "sweep-interval", cfg.SweepInterval, "expired login record purge interval (0 disables)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug|info|warn|error)")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format (json|console)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromEnv() (*Config, error) {
	cfg := &Config{
		HTTPAddr:       envString("HTTP_ADDR", ":8080"),
		StorageBackend: envString("STORAGE_BACKEND", BackendMongo),
		MongoURI:       envString("MONGODB_URI", "mongodb://localhost:27017"),
		MongoDatabase:  envString("MONGODB_DATABASE", "devicehub"),
		MQTTBroker:     envString("MQTT_BROKER", "tcp://127.0.0.1:1883"),
		MQTTClientID:   envString("MQTT_CLIENT_ID", "mqtt_sub"),
		MQTTTopic:      envString("MQTT_TOPIC", "testapp"),
		PayloadFormat:  envString("INGEST_PAYLOAD_FORMAT", "json"),
		TokenMode:      envString("SESSION_TOKEN_MODE", "digest"),
		JWTSecret:      envString("JWT_SECRET", ""),
		LogLevel:       envString("LOG_LEVEL", "info"),
		LogFormat:      envString("LOG_FORMAT", "json"),
	}

	var err error
	if cfg.MQTTQoS, err = envInt("MQTT_QOS", 0); err != nil {
		return nil, err
	}
	if cfg.IngestBuffer, err = envInt("INGEST_BUFFER", 256); err != nil {
		return nil, err
	}
	if cfg.IngestStoreTimeout, err = envDuration("INGEST_STORE_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.SessionTTL, err = envDuration("SESSION_TTL", time.Hour); err != nil {
		return nil, err
	}
	if cfg.SweepInterval, err = envDuration("SESSION_SWEEP_INTERVAL", 0); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every setting
func (c *Config) Validate() error {
	if c.HTTPAddr == "" {
		return errors.New("http address is required")
	}
	switch c.StorageBackend {
	case BackendMongo:
		if c.MongoURI == "" || c.MongoDatabase == "" {
			return errors.New("mongodb uri and database are required")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown storage backend %q", c.StorageBackend)
	}
	if c.MQTTBroker == "" || c.MQTTTopic == "" {
		return errors.New("mqtt broker and topic are required")
	}
	if c.MQTTQoS < 0 || c.MQTTQoS > 2 {
		return fmt.Errorf("mqtt qos must be 0, 1 or 2, got %d", c.MQTTQoS)
	}
	if c.IngestBuffer <= 0 {
		return fmt.Errorf("ingest buffer must be positive, got %d", c.IngestBuffer)
	}
	if c.IngestStoreTimeout <= 0 {
		return errors.New("ingest store timeout must be positive")
	}
	if c.PayloadFormat != "json" && c.PayloadFormat != "cbor" {
		return fmt.Errorf("unknown payload format %q", c.PayloadFormat)
	}
	if c.SessionTTL <= 0 {
		return errors.New("session ttl must be positive")
	}
	switch c.TokenMode {
	case "digest", "random":
	case "jwt":
		if c.JWTSecret == "" {
			return errors.New("jwt token mode requires JWT_SECRET")
		}
	default:
		return fmt.Errorf("unknown token mode %q", c.TokenMode)
	}
	if c.SweepInterval < 0 {
		return errors.New("sweep interval must not be negative")
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	if c.LogFormat != "json" && c.LogFormat != "console" {
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	return nil
}

// Logger builds the zap logger described by LogLevel and LogFormat
func (c *Config) Logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}

	zc := zap.NewProductionConfig()
	if c.LogFormat == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

func envString(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
