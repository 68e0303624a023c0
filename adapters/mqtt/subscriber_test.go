package mqtt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/satriahrh/devicehub/internal/ingest"
)

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return 0 }
func (m *fakeMessage) Retained() bool    { return false }
func (m *fakeMessage) Topic() string     { return m.topic }
func (m *fakeMessage) MessageID() uint16 { return 1 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              {}

type recordingSink struct {
	events []ingest.Event
}

func (s *recordingSink) Submit(ev ingest.Event) bool {
	s.events = append(s.events, ev)
	return true
}

func TestNewSubscriberValidates(t *testing.T) {
	_, err := NewSubscriber(SubscriberConfig{Topic: "testapp"}, &recordingSink{}, zap.NewNop())
	assert.Error(t, err)

	_, err = NewSubscriber(SubscriberConfig{Broker: "tcp://127.0.0.1:1883"}, &recordingSink{}, zap.NewNop())
	assert.Error(t, err)

	_, err = NewSubscriber(SubscriberConfig{Broker: "tcp://127.0.0.1:1883", Topic: "testapp", QoS: 3}, &recordingSink{}, zap.NewNop())
	assert.Error(t, err)
}

func TestSubscriberOptions(t *testing.T) {
	s, err := NewSubscriber(SubscriberConfig{
		Broker:   "tcp://127.0.0.1:1883",
		ClientID: "mqtt_sub",
		Topic:    "testapp",
	}, &recordingSink{}, zap.NewNop())
	require.NoError(t, err)

	opts := s.options()
	require.Len(t, opts.Servers, 1)
	assert.Equal(t, "127.0.0.1:1883", opts.Servers[0].Host)
	assert.Equal(t, "mqtt_sub", opts.ClientID)
	assert.Equal(t, int64(keepAlive/time.Second), opts.KeepAlive)
	assert.True(t, opts.AutoReconnect)
}

func TestSubscriberForwardsPayloadCopy(t *testing.T) {
	sink := &recordingSink{}
	s, err := NewSubscriber(SubscriberConfig{Broker: "tcp://127.0.0.1:1883", Topic: "testapp"}, sink, zap.NewNop())
	require.NoError(t, err)

	raw := []byte(`{"clientId":"dev-1"}`)
	s.handle(nil, &fakeMessage{topic: "testapp", payload: raw})
	raw[2] = 'X'

	require.Len(t, sink.events, 1)
	assert.Equal(t, "testapp", sink.events[0].Topic)
	assert.Equal(t, `{"clientId":"dev-1"}`, string(sink.events[0].Payload))
}
