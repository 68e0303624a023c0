package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, BackendMongo, cfg.StorageBackend)
	assert.Equal(t, "mongodb://localhost:27017", cfg.MongoURI)
	assert.Equal(t, "devicehub", cfg.MongoDatabase)
	assert.Equal(t, "tcp://127.0.0.1:1883", cfg.MQTTBroker)
	assert.Equal(t, "mqtt_sub", cfg.MQTTClientID)
	assert.Equal(t, "testapp", cfg.MQTTTopic)
	assert.Equal(t, 0, cfg.MQTTQoS)
	assert.Equal(t, 256, cfg.IngestBuffer)
	assert.Equal(t, 5*time.Second, cfg.IngestStoreTimeout)
	assert.Equal(t, "json", cfg.PayloadFormat)
	assert.Equal(t, time.Hour, cfg.SessionTTL)
	assert.Equal(t, "digest", cfg.TokenMode)
	assert.Equal(t, time.Duration(0), cfg.SweepInterval)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoadEnvironment(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "memory")
	t.Setenv("MQTT_QOS", "1")
	t.Setenv("INGEST_STORE_TIMEOUT", "2s")
	t.Setenv("SESSION_SWEEP_INTERVAL", "10m")

	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, cfg.StorageBackend)
	assert.Equal(t, 1, cfg.MQTTQoS)
	assert.Equal(t, 2*time.Second, cfg.IngestStoreTimeout)
	assert.Equal(t, 10*time.Minute, cfg.SweepInterval)
}

func TestFlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9000")
	t.Setenv("MQTT_TOPIC", "from-env")

	cfg, err := Load([]string{"--http-addr", ":9100", "--payload-format=cbor", "--log-format", "console"})
	require.NoError(t, err)
	assert.Equal(t, ":9100", cfg.HTTPAddr)
	assert.Equal(t, "from-env", cfg.MQTTTopic)
	assert.Equal(t, "cbor", cfg.PayloadFormat)
	assert.Equal(t, "console", cfg.LogFormat)
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string][]string{
		"Backend":     {"--storage", "sqlite"},
		"QoS":         {"--mqtt-qos", "3"},
		"Buffer":      {"--ingest-buffer", "0"},
		"Format":      {"--payload-format", "xml"},
		"TTL":         {"--session-ttl", "0s"},
		"TokenMode":   {"--token-mode", "magic"},
		"JWTNoSecret": {"--token-mode", "jwt"},
		"Sweep":       {"--sweep-interval", "-1s"},
		"LogLevel":    {"--log-level", "loud"},
		"LogFormat":   {"--log-format", "xml"},
		"UnknownFlag": {"--nope"},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(args)
			assert.Error(t, err)
		})
	}
}

func TestLoadRejectsBadEnvironment(t *testing.T) {
	t.Setenv("INGEST_BUFFER", "lots")
	_, err := Load(nil)
	assert.Error(t, err)
}

func TestJWTModeWithSecret(t *testing.T) {
	cfg, err := Load([]string{"--token-mode", "jwt", "--jwt-secret", "s3cret"})
	require.NoError(t, err)
	assert.Equal(t, "jwt", cfg.TokenMode)
}

func TestLogger(t *testing.T) {
	cfg, err := Load([]string{"--log-level", "debug", "--log-format", "console"})
	require.NoError(t, err)

	logger, err := cfg.Logger()
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
}
