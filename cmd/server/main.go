package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/satriahrh/devicehub/adapters/memory"
	mongoadapter "github.com/satriahrh/devicehub/adapters/mongo"
	"github.com/satriahrh/devicehub/adapters/mqtt"
	"github.com/satriahrh/devicehub/domain/repositories"
	"github.com/satriahrh/devicehub/internal/api"
	"github.com/satriahrh/devicehub/internal/auth"
	"github.com/satriahrh/devicehub/internal/config"
	"github.com/satriahrh/devicehub/internal/ingest"
	"github.com/satriahrh/devicehub/internal/sweeper"
	"github.com/satriahrh/devicehub/internal/websocket"
	"github.com/satriahrh/devicehub/usecase"
)

// backend is the storage selected by configuration
type backend struct {
	users    repositories.UserRepository
	devices  repositories.DeviceRepository
	messages repositories.MessageRepository
	records  repositories.LoginRecordRepository
	health   repositories.Health
	close    func(ctx context.Context) error
}

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	// Initialize logger
	logger, err := cfg.Logger()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer logger.Sync()

	ctx := context.Background()

	store, err := openBackend(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to open storage", zap.String("backend", cfg.StorageBackend), zap.Error(err))
	}

	tokens, err := auth.NewTokenGenerator(cfg.TokenMode, []byte(cfg.JWTSecret))
	if err != nil {
		logger.Fatal("Failed to initialize token generator", zap.Error(err))
	}

	// Initialize usecase services
	sessions := usecase.NewSessionService(store.records, tokens, cfg.SessionTTL, logger)
	telemetry := usecase.NewTelemetryService(store.messages, sessions, logger)
	credentials := usecase.NewCredentialService(store.users, logger)
	devices := usecase.NewDeviceService(store.users, store.devices, telemetry, sessions, logger)

	// Live stream hub
	hub := websocket.NewHub(logger)
	go hub.Run()

	// Ingestion
	codec, err := ingest.NewCodec(cfg.PayloadFormat)
	if err != nil {
		logger.Fatal("Failed to initialize payload codec", zap.Error(err))
	}
	pipeline := ingest.NewPipeline(ingest.Config{
		Buffer:       cfg.IngestBuffer,
		StoreTimeout: cfg.IngestStoreTimeout,
	}, codec, telemetry, hub, logger)
	pipeline.Start()

	subscriber, err := mqtt.NewSubscriber(mqtt.SubscriberConfig{
		Broker:   cfg.MQTTBroker,
		ClientID: cfg.MQTTClientID,
		Topic:    cfg.MQTTTopic,
		QoS:      byte(cfg.MQTTQoS),
	}, pipeline, logger)
	if err != nil {
		logger.Fatal("Failed to initialize MQTT subscriber", zap.Error(err))
	}
	if err := subscriber.Connect(); err != nil {
		logger.Fatal("Failed to connect to MQTT broker", zap.Error(err))
	}

	sweep := sweeper.New(sessions, cfg.SweepInterval, logger)
	sweep.Start()

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	api.InitRoutes(e, &api.Handler{
		Credentials: credentials,
		Sessions:    sessions,
		Devices:     devices,
		Telemetry:   telemetry,
		Hub:         hub,
		Storage:     store.health,
		Ingest:      pipeline,
		Logger:      logger,
	})

	// Graceful shutdown
	go func() {
		if err := e.Start(cfg.HTTPAddr); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Server started",
		zap.String("addr", cfg.HTTPAddr),
		zap.String("storage", cfg.StorageBackend),
		zap.String("mqtt_topic", cfg.MQTTTopic))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	subscriber.Close()
	pipeline.Stop()
	sweep.Stop()
	hub.Stop()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := store.close(shutdownCtx); err != nil {
		logger.Error("Failed to close storage", zap.Error(err))
	}

	logger.Info("Server exited")
}

func openBackend(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*backend, error) {
	switch cfg.StorageBackend {
	case config.BackendMemory:
		store := memory.NewStore()
		logger.Warn("Using in-memory storage; data is lost on exit")
		return &backend{
			users:    store.Users,
			devices:  store.Devices,
			messages: store.Messages,
			records:  store.LoginRecords,
			health:   store,
			close:    func(context.Context) error { return nil },
		}, nil

	default:
		client, err := mongoadapter.NewClient(ctx, cfg.MongoURI, cfg.MongoDatabase, logger)
		if err != nil {
			return nil, err
		}

		store := mongoadapter.NewStore(client.Database, logger)
		indexCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := store.EnsureIndexes(indexCtx); err != nil {
			_ = client.Close(ctx)
			return nil, err
		}

		return &backend{
			users:    store.Users,
			devices:  store.Devices,
			messages: store.Messages,
			records:  store.LoginRecords,
			health:   client,
			close:    client.Close,
		}, nil
	}
}
