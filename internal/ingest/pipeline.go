// Package ingest drains inbound telemetry events into the message store.
//
// A transport (see adapters/mqtt) hands events to Pipeline.Submit, which never
// blocks: a full queue drops the event, matching at-most-once delivery. A
// single worker decodes each event and inserts it. Decode and store failures
// are logged and counted; the worker never stops on a bad record.
package ingest

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/devicehub/domain/entities"
)

// Event is one inbound transport message
type Event struct {
	Topic   string
	Payload []byte
}

// Store is where decoded messages go
type Store interface {
	Insert(ctx context.Context, message *entities.Message) error
}

// Notifier is told about every stored message
type Notifier interface {
	Notify(message *entities.Message)
}

// Stats is a snapshot of the pipeline counters
type Stats struct {
	Received       uint64 `json:"received"`
	Stored         uint64 `json:"stored"`
	Dropped        uint64 `json:"dropped"`
	DecodeFailures uint64 `json:"decode_failures"`
	StoreFailures  uint64 `json:"store_failures"`
}

// Config tunes the pipeline
type Config struct {
	// Buffer is the queue capacity between transport and worker
	Buffer int
	// StoreTimeout bounds each insert
	StoreTimeout time.Duration
}

// Pipeline is the ingestion worker
type Pipeline struct {
	events   chan Event
	codec    Codec
	store    Store
	notifier Notifier
	timeout  time.Duration
	logger   *zap.Logger

	received       atomic.Uint64
	stored         atomic.Uint64
	dropped        atomic.Uint64
	decodeFailures atomic.Uint64
	storeFailures  atomic.Uint64

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewPipeline creates a pipeline. notifier may be nil.
func NewPipeline(cfg Config, codec Codec, store Store, notifier Notifier, logger *zap.Logger) *Pipeline {
	if cfg.Buffer <= 0 {
		cfg.Buffer = 256
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = 5 * time.Second
	}
	return &Pipeline{
		events:   make(chan Event, cfg.Buffer),
		codec:    codec,
		store:    store,
		notifier: notifier,
		timeout:  cfg.StoreTimeout,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// Submit queues ev without blocking. It returns false when the event was dropped.
func (p *Pipeline) Submit(ev Event) bool {
	p.received.Add(1)
	select {
	case <-p.stopChan:
		p.dropped.Add(1)
		return false
	default:
	}

	select {
	case p.events <- ev:
		return true
	default:
		p.dropped.Add(1)
		p.logger.Warn("Ingestion queue full, dropping telemetry event", zap.String("topic", ev.Topic))
		return false
	}
}

// Start begins the worker loop
func (p *Pipeline) Start() {
	p.wg.Add(1)
	go p.run()
	p.logger.Info("Ingestion pipeline started", zap.Int("buffer", cap(p.events)))
}

// Stop stops the worker after it finishes the event in hand. Queued events are discarded.
func (p *Pipeline) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopChan)
	})
	p.wg.Wait()
	p.logger.Info("Ingestion pipeline stopped", zap.Any("stats", p.Stats()))
}

// Stats returns the current counters
func (p *Pipeline) Stats() Stats {
	return Stats{
		Received:       p.received.Load(),
		Stored:         p.stored.Load(),
		Dropped:        p.dropped.Load(),
		DecodeFailures: p.decodeFailures.Load(),
		StoreFailures:  p.storeFailures.Load(),
	}
}

func (p *Pipeline) run() {
	defer p.wg.Done()
	for {
		select {
		case <-p.stopChan:
			return
		case ev := <-p.events:
			p.handle(ev)
		}
	}
}

func (p *Pipeline) handle(ev Event) {
	message, err := p.codec.Decode(ev.Payload)
	if err != nil {
		p.decodeFailures.Add(1)
		p.logger.Warn("Failed to decode telemetry payload",
			zap.String("topic", ev.Topic),
			zap.Int("size", len(ev.Payload)),
			zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	if err := p.store.Insert(ctx, message); err != nil {
		p.storeFailures.Add(1)
		p.logger.Error("Failed to insert message",
			zap.String("device_id", message.DeviceID),
			zap.Error(err))
		return
	}

	p.stored.Add(1)
	p.logger.Debug("Message stored",
		zap.String("device_id", message.DeviceID),
		zap.Int64("timestamp", message.Timestamp),
		zap.Bool("alert", message.Alert))

	if p.notifier != nil {
		p.notifier.Notify(message)
	}
}
