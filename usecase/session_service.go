package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/devicehub/domain"
	"github.com/satriahrh/devicehub/domain/entities"
	"github.com/satriahrh/devicehub/domain/repositories"
	"github.com/satriahrh/devicehub/internal/auth"
)

// SessionGate is the part of SessionService the other services depend on
type SessionGate interface {
	Validate(ctx context.Context, token string) (bool, error)
}

// SessionService issues, validates and revokes login tokens
type SessionService struct {
	records repositories.LoginRecordRepository
	tokens  auth.TokenGenerator
	ttl     time.Duration
	now     func() time.Time
	logger  *zap.Logger
}

// NewSessionService creates a new session service. A zero ttl means entities.DefaultSessionTTL.
func NewSessionService(
	records repositories.LoginRecordRepository,
	tokens auth.TokenGenerator,
	ttl time.Duration,
	logger *zap.Logger,
) *SessionService {
	if ttl <= 0 {
		ttl = entities.DefaultSessionTTL
	}
	return &SessionService{
		records: records,
		tokens:  tokens,
		ttl:     ttl,
		now:     time.Now,
		logger:  logger,
	}
}

// SetClock replaces the wall clock, for tests
func (s *SessionService) SetClock(now func() time.Time) {
	s.now = now
}

// TTL returns the session validity window
func (s *SessionService) TTL() time.Duration {
	return s.ttl
}

// Issue creates a login record for mail and returns its token
func (s *SessionService) Issue(ctx context.Context, mail string) (string, error) {
	now := s.now()
	token, err := s.tokens.Generate(mail, now)
	if err != nil {
		return "", domain.NewStoreError("generate login token", err)
	}

	if err := s.records.Insert(ctx, entities.NewLoginRecord(token, now)); err != nil {
		return "", domain.NewStoreError("insert login record", err)
	}

	s.logger.Debug("Login token issued", zap.String("mail", mail))
	return token, nil
}

// Validate reports whether the latest record for token is within the TTL.
// An expired record is deleted as a side effect; a valid one is left untouched.
func (s *SessionService) Validate(ctx context.Context, token string) (bool, error) {
	record, err := s.records.GetLatestByToken(ctx, token)
	if err != nil {
		return false, domain.NewStoreError("find login record", err)
	}
	if record == nil {
		return false, nil
	}

	if !record.IsExpired(s.now(), s.ttl) {
		return true, nil
	}

	if err := s.records.Delete(ctx, record.ID); err != nil {
		return false, domain.NewStoreError("delete login record", err)
	}
	s.logger.Debug("Expired login record evicted", zap.String("id", record.ID.Hex()))
	return false, nil
}

// Revoke deletes every record for token. Unknown tokens are a no-op.
func (s *SessionService) Revoke(ctx context.Context, token string) error {
	n, err := s.records.DeleteByToken(ctx, token)
	if err != nil {
		return domain.NewStoreError("delete login records", err)
	}
	if n > 0 {
		s.logger.Debug("Login records revoked", zap.Int64("count", n))
	}
	return nil
}

// PurgeExpired deletes every record issued more than one TTL ago
func (s *SessionService) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.records.DeleteIssuedBefore(ctx, s.now().Add(-s.ttl))
	if err != nil {
		return 0, domain.NewStoreError("purge login records", err)
	}
	return n, nil
}

// requireSession fails with domain.ErrSessionExpired unless token is valid
func requireSession(ctx context.Context, gate SessionGate, token string) error {
	ok, err := gate.Validate(ctx, token)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrSessionExpired
	}
	return nil
}
