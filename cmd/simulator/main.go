// Command simulator publishes random telemetry readings to the ingestion topic.
package main

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/satriahrh/devicehub/adapters/mqtt"
)

type reading struct {
	ClientID  string  `json:"clientId" cbor:"clientId"`
	Info      string  `json:"info" cbor:"info"`
	Value     int32   `json:"value" cbor:"value"`
	Alert     int     `json:"alert" cbor:"alert"`
	Longitude float64 `json:"lng" cbor:"lng"`
	Latitude  float64 `json:"lat" cbor:"lat"`
	Timestamp int64   `json:"timestamp" cbor:"timestamp"`
}

func main() {
	flagSet := pflag.NewFlagSet("simulator", pflag.ContinueOnError)
	broker := flagSet.String("broker", "tcp://127.0.0.1:1883", "MQTT broker URL")
	topic := flagSet.String("topic", "testapp", "ingestion topic")
	qos := flagSet.Int("qos", 0, "publish QoS (0-2)")
	deviceID := flagSet.String("device", "", "device id to report as (random if empty)")
	count := flagSet.Int("count", 10, "number of readings to publish (0 runs until interrupted)")
	interval := flagSet.Duration("interval", time.Second, "delay between readings")
	alertRate := flagSet.Float64("alert-rate", 0.1, "fraction of readings flagged as alerts")
	format := flagSet.String("format", "json", "payload format (json|cbor)")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	if *deviceID == "" {
		*deviceID = "sim-" + uuid.NewString()[:8]
	}

	encode, err := encoder(*format)
	if err != nil {
		logger.Fatal("Invalid payload format", zap.Error(err))
	}

	publisher, err := mqtt.NewPublisher(*broker, "simulator-"+uuid.NewString(), *topic, byte(*qos))
	if err != nil {
		logger.Fatal("Failed to connect to broker", zap.String("broker", *broker), zap.Error(err))
	}
	defer publisher.Close()

	logger.Info("Publishing telemetry",
		zap.String("device_id", *deviceID),
		zap.String("topic", *topic),
		zap.Int("count", *count))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	for sent := 0; *count == 0 || sent < *count; sent++ {
		r := reading{
			ClientID:  *deviceID,
			Info:      "simulated",
			Value:     rng.Int31n(1000),
			Longitude: 106.8 + rng.Float64()/100,
			Latitude:  -6.2 + rng.Float64()/100,
			Timestamp: time.Now().UnixMilli(),
		}
		if rng.Float64() < *alertRate {
			r.Alert = 1
		}

		payload, err := encode(r)
		if err != nil {
			logger.Fatal("Failed to encode reading", zap.Error(err))
		}
		if err := publisher.Publish(payload); err != nil {
			logger.Error("Failed to publish reading", zap.Error(err))
		} else {
			logger.Debug("Reading published", zap.Int32("value", r.Value), zap.Int("alert", r.Alert))
		}

		select {
		case <-quit:
			logger.Info("Simulator interrupted", zap.Int("sent", sent+1))
			return
		case <-ticker.C:
		}
	}

	logger.Info("Simulator finished", zap.Int("sent", *count))
}

func encoder(format string) (func(interface{}) ([]byte, error), error) {
	switch format {
	case "json":
		return json.Marshal, nil
	case "cbor":
		return cbor.Marshal, nil
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}
}
