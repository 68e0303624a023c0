package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/satriahrh/devicehub/adapters/memory"
	"github.com/satriahrh/devicehub/domain/entities"
)

type failingStore struct{}

func (failingStore) Insert(ctx context.Context, message *entities.Message) error {
	return errors.New("store unavailable")
}

type blockingStore struct {
	release chan struct{}
}

func (s *blockingStore) Insert(ctx context.Context, message *entities.Message) error {
	<-s.release
	return nil
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []*entities.Message
}

func (n *recordingNotifier) Notify(message *entities.Message) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.messages)
}

func TestPipelineStoresDecodedMessages(t *testing.T) {
	messages := memory.NewMessageRepository()
	notifier := &recordingNotifier{}
	p := NewPipeline(Config{Buffer: 8}, JSONCodec{}, messages, notifier, zap.NewNop())
	p.Start()
	defer p.Stop()

	assert.True(t, p.Submit(Event{Topic: "testapp", Payload: []byte(`{"clientId":"dev-1","value":1,"timestamp":10}`)}))
	assert.True(t, p.Submit(Event{Topic: "testapp", Payload: []byte(`not json`)}))
	assert.True(t, p.Submit(Event{Topic: "testapp", Payload: []byte(`{"clientId":"dev-1","value":2,"alert":1,"timestamp":20}`)}))

	require.Eventually(t, func() bool {
		s := p.Stats()
		return s.Stored+s.DecodeFailures == 3
	}, time.Second, 10*time.Millisecond)

	stats := p.Stats()
	assert.Equal(t, uint64(3), stats.Received)
	assert.Equal(t, uint64(2), stats.Stored)
	assert.Equal(t, uint64(1), stats.DecodeFailures)
	assert.Equal(t, 2, notifier.count())

	n, err := messages.CountByDevice(context.Background(), "dev-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	alerts, err := messages.CountAlertsByDevice(context.Background(), "dev-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), alerts)
}

func TestPipelineContinuesAfterStoreFailure(t *testing.T) {
	notifier := &recordingNotifier{}
	p := NewPipeline(Config{Buffer: 4, StoreTimeout: 50 * time.Millisecond}, JSONCodec{}, failingStore{}, notifier, zap.NewNop())
	p.Start()
	defer p.Stop()

	p.Submit(Event{Payload: []byte(`{"clientId":"dev-1"}`)})
	p.Submit(Event{Payload: []byte(`{"clientId":"dev-2"}`)})

	require.Eventually(t, func() bool {
		return p.Stats().StoreFailures == 2
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, notifier.count())
}

func TestPipelineDropsWhenFull(t *testing.T) {
	store := &blockingStore{release: make(chan struct{})}
	p := NewPipeline(Config{Buffer: 1}, JSONCodec{}, store, nil, zap.NewNop())
	p.Start()

	payload := []byte(`{"clientId":"dev-1"}`)
	require.True(t, p.Submit(Event{Payload: payload}))
	// Wait for the worker to pick up the first event and block on the store
	require.Eventually(t, func() bool {
		return len(p.events) == 0
	}, time.Second, 5*time.Millisecond)

	assert.True(t, p.Submit(Event{Payload: payload}))
	assert.False(t, p.Submit(Event{Payload: payload}))
	assert.Equal(t, uint64(1), p.Stats().Dropped)

	close(store.release)
	require.Eventually(t, func() bool {
		return p.Stats().Stored == 2
	}, time.Second, 10*time.Millisecond)
	p.Stop()
}

func TestPipelineSubmitAfterStop(t *testing.T) {
	p := NewPipeline(Config{}, JSONCodec{}, failingStore{}, nil, zap.NewNop())
	p.Start()
	p.Stop()
	p.Stop()

	assert.False(t, p.Submit(Event{Payload: []byte(`{"clientId":"dev-1"}`)}))
	assert.Equal(t, uint64(1), p.Stats().Dropped)
}
