package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/satriahrh/devicehub/domain/entities"
)

// LoginRecordRepository is an in-memory implementation of repositories.LoginRecordRepository
type LoginRecordRepository struct {
	mu      sync.RWMutex
	records map[primitive.ObjectID]*entities.LoginRecord
}

// NewLoginRecordRepository creates a new in-memory login record repository
func NewLoginRecordRepository() *LoginRecordRepository {
	return &LoginRecordRepository{
		records: make(map[primitive.ObjectID]*entities.LoginRecord),
	}
}

// Insert implements repositories.LoginRecordRepository
func (m *LoginRecordRepository) Insert(ctx context.Context, record *entities.LoginRecord) error {
	if record == nil {
		return errors.New("login record cannot be nil")
	}
	if err := record.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if record.ID.IsZero() {
		record.ID = primitive.NewObjectID()
	}
	recordCopy := *record
	m.records[record.ID] = &recordCopy
	return nil
}

// GetLatestByToken implements repositories.LoginRecordRepository
func (m *LoginRecordRepository) GetLatestByToken(ctx context.Context, token string) (*entities.LoginRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var latest *entities.LoginRecord
	for _, record := range m.records {
		if record.Token != token {
			continue
		}
		if latest == nil || record.IssuedAt.After(latest.IssuedAt) {
			latest = record
		}
	}
	if latest == nil {
		return nil, nil
	}
	recordCopy := *latest
	return &recordCopy, nil
}

// Delete implements repositories.LoginRecordRepository
func (m *LoginRecordRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, id)
	return nil
}

// DeleteByToken implements repositories.LoginRecordRepository
func (m *LoginRecordRepository) DeleteByToken(ctx context.Context, token string) (int64, error) {
	return m.deleteWhere(func(r *entities.LoginRecord) bool {
		return r.Token == token
	}), nil
}

// DeleteIssuedBefore implements repositories.LoginRecordRepository
func (m *LoginRecordRepository) DeleteIssuedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return m.deleteWhere(func(r *entities.LoginRecord) bool {
		return r.IssuedAt.Before(cutoff)
	}), nil
}

// Count returns the number of stored records for token
func (m *LoginRecordRepository) Count(token string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, record := range m.records {
		if record.Token == token {
			n++
		}
	}
	return n
}

func (m *LoginRecordRepository) deleteWhere(match func(*entities.LoginRecord) bool) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for id, record := range m.records {
		if match(record) {
			delete(m.records, id)
			n++
		}
	}
	return n
}
