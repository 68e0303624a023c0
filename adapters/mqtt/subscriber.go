// Package mqtt connects the ingestion pipeline to an MQTT broker.
package mqtt

import (
	"errors"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/satriahrh/devicehub/internal/ingest"
)

const (
	keepAlive      = 5 * time.Second
	connectTimeout = 10 * time.Second
	quiesceMillis  = 250
)

// Sink accepts inbound events without blocking
type Sink interface {
	Submit(ev ingest.Event) bool
}

// SubscriberConfig selects the broker and topic
type SubscriberConfig struct {
	Broker   string
	ClientID string
	Topic    string
	QoS      byte
}

// Subscriber forwards every message on a topic to a Sink
type Subscriber struct {
	cfg    SubscriberConfig
	sink   Sink
	client paho.Client
	logger *zap.Logger
}

// NewSubscriber creates a subscriber. Call Connect to start receiving.
func NewSubscriber(cfg SubscriberConfig, sink Sink, logger *zap.Logger) (*Subscriber, error) {
	if cfg.Broker == "" || cfg.Topic == "" {
		return nil, errors.New("mqtt broker and topic are required")
	}
	if cfg.QoS > 2 {
		return nil, fmt.Errorf("invalid mqtt qos %d", cfg.QoS)
	}

	s := &Subscriber{cfg: cfg, sink: sink, logger: logger}
	s.client = paho.NewClient(s.options())
	return s, nil
}

func (s *Subscriber) options() *paho.ClientOptions {
	return paho.NewClientOptions().
		AddBroker(s.cfg.Broker).
		SetClientID(s.cfg.ClientID).
		SetKeepAlive(keepAlive).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetCleanSession(true).
		SetOnConnectHandler(s.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			s.logger.Warn("MQTT connection lost", zap.Error(err))
		})
}

// Connect dials the broker. The subscription is (re)made on every connect.
func (s *Subscriber) Connect() error {
	token := s.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		s.logger.Warn("MQTT broker not reachable yet, retrying in background",
			zap.String("broker", s.cfg.Broker))
		return nil
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect %s: %w", s.cfg.Broker, err)
	}
	return nil
}

// Close disconnects from the broker
func (s *Subscriber) Close() {
	if s.client.IsConnected() {
		s.client.Unsubscribe(s.cfg.Topic).WaitTimeout(time.Second)
	}
	s.client.Disconnect(quiesceMillis)
	s.logger.Info("MQTT subscriber closed")
}

func (s *Subscriber) onConnect(client paho.Client) {
	token := client.Subscribe(s.cfg.Topic, s.cfg.QoS, s.handle)
	go func() {
		token.Wait()
		if err := token.Error(); err != nil {
			s.logger.Error("MQTT subscribe failed", zap.String("topic", s.cfg.Topic), zap.Error(err))
			return
		}
		s.logger.Info("MQTT subscribed",
			zap.String("broker", s.cfg.Broker),
			zap.String("topic", s.cfg.Topic),
			zap.Uint8("qos", s.cfg.QoS))
	}()
}

func (s *Subscriber) handle(_ paho.Client, msg paho.Message) {
	payload := make([]byte, len(msg.Payload()))
	copy(payload, msg.Payload())
	s.sink.Submit(ingest.Event{Topic: msg.Topic(), Payload: payload})
}
