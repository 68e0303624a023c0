package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/satriahrh/devicehub/domain/entities"
)

// MessageRepository is an in-memory implementation of repositories.MessageRepository
type MessageRepository struct {
	mu       sync.RWMutex
	messages []storedMessage
	seq      uint64
}

type storedMessage struct {
	seq     uint64
	message entities.Message
}

// NewMessageRepository creates a new in-memory message repository
func NewMessageRepository() *MessageRepository {
	return &MessageRepository{}
}

// Insert implements repositories.MessageRepository
func (m *MessageRepository) Insert(ctx context.Context, message *entities.Message) error {
	if message == nil {
		return errors.New("message cannot be nil")
	}
	if err := message.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if message.ID.IsZero() {
		message.ID = primitive.NewObjectID()
	}
	m.seq++
	m.messages = append(m.messages, storedMessage{seq: m.seq, message: *message})
	return nil
}

// CountByDevice implements repositories.MessageRepository
func (m *MessageRepository) CountByDevice(ctx context.Context, deviceID string) (int64, error) {
	return m.count(func(msg *entities.Message) bool {
		return msg.DeviceID == deviceID
	}), nil
}

// CountAlertsByDevice implements repositories.MessageRepository
func (m *MessageRepository) CountAlertsByDevice(ctx context.Context, deviceID string) (int64, error) {
	return m.count(func(msg *entities.Message) bool {
		return msg.DeviceID == deviceID && msg.Alert
	}), nil
}

// Find implements repositories.MessageRepository
func (m *MessageRepository) Find(ctx context.Context, q entities.MessageQuery) ([]*entities.Message, int64, error) {
	q = q.Normalize()

	m.mu.RLock()
	matched := make([]storedMessage, 0)
	for i := range m.messages {
		if q.Matches(&m.messages[i].message) {
			matched = append(matched, m.messages[i])
		}
	}
	m.mu.RUnlock()

	// Newest first; later inserts win ties
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if a.message.Timestamp != b.message.Timestamp {
			return a.message.Timestamp > b.message.Timestamp
		}
		return a.seq > b.seq
	})

	total := int64(len(matched))
	result := make([]*entities.Message, 0)
	for i := q.FirstIndex; i < total && int64(len(result)) < q.Limit; i++ {
		msg := matched[i].message
		result = append(result, &msg)
	}
	return result, total, nil
}

func (m *MessageRepository) count(match func(*entities.Message) bool) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var n int64
	for i := range m.messages {
		if match(&m.messages[i].message) {
			n++
		}
	}
	return n
}
