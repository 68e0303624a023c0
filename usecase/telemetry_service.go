package usecase

import (
	"context"
	"math"

	"go.uber.org/zap"

	"github.com/satriahrh/devicehub/domain"
	"github.com/satriahrh/devicehub/domain/entities"
	"github.com/satriahrh/devicehub/domain/repositories"
)

// MessagePage is one page of a time-ranged message query
type MessagePage struct {
	Messages []*entities.Message
	// Total is the number of matches in the whole time range, not just this page
	Total int64
}

// TelemetryService stores and queries device messages
type TelemetryService struct {
	messages repositories.MessageRepository
	sessions SessionGate
	logger   *zap.Logger
}

// NewTelemetryService creates a new telemetry service
func NewTelemetryService(messages repositories.MessageRepository, sessions SessionGate, logger *zap.Logger) *TelemetryService {
	return &TelemetryService{
		messages: messages,
		sessions: sessions,
		logger:   logger,
	}
}

// Insert appends message. It is not session-gated; only ingestion calls it.
func (s *TelemetryService) Insert(ctx context.Context, message *entities.Message) error {
	if err := s.messages.Insert(ctx, message); err != nil {
		return domain.NewStoreError("insert message", err)
	}
	return nil
}

// Query returns the page of q, newest first, and the total match count
func (s *TelemetryService) Query(ctx context.Context, token string, q entities.MessageQuery) (*MessagePage, error) {
	if err := requireSession(ctx, s.sessions, token); err != nil {
		return nil, err
	}

	messages, total, err := s.messages.Find(ctx, q.Normalize())
	if err != nil {
		return nil, domain.NewStoreError("find messages", err)
	}
	return &MessagePage{Messages: messages, Total: total}, nil
}

// Count returns the number of messages stored for deviceID
func (s *TelemetryService) Count(ctx context.Context, deviceID string) (uint32, error) {
	n, err := s.messages.CountByDevice(ctx, deviceID)
	if err != nil {
		return 0, domain.NewStoreError("count messages", err)
	}
	return clampUint32(n), nil
}

// CountAlert returns the number of alert messages stored for deviceID
func (s *TelemetryService) CountAlert(ctx context.Context, deviceID string) (uint32, error) {
	n, err := s.messages.CountAlertsByDevice(ctx, deviceID)
	if err != nil {
		return 0, domain.NewStoreError("count alert messages", err)
	}
	return clampUint32(n), nil
}

func clampUint32(n int64) uint32 {
	switch {
	case n < 0:
		return 0
	case n > math.MaxUint32:
		return math.MaxUint32
	default:
		return uint32(n)
	}
}
