package mqtt

import (
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// Publisher sends payloads to a topic
type Publisher struct {
	client paho.Client
	topic  string
	qos    byte
}

// NewPublisher connects to broker and returns a publisher for topic
func NewPublisher(broker, clientID, topic string, qos byte) (*Publisher, error) {
	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetKeepAlive(keepAlive).
		SetAutoReconnect(true)

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("mqtt connect %s: timed out", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", broker, err)
	}

	return &Publisher{client: client, topic: topic, qos: qos}, nil
}

// Publish sends payload and waits for the broker to accept it
func (p *Publisher) Publish(payload []byte) error {
	token := p.client.Publish(p.topic, p.qos, false, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("mqtt publish to %s: timed out", p.topic)
	}
	return token.Error()
}

// Close disconnects from the broker
func (p *Publisher) Close() {
	p.client.Disconnect(quiesceMillis)
}
