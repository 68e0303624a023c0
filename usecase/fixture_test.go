package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/satriahrh/devicehub/adapters/memory"
	"github.com/satriahrh/devicehub/domain/entities"
	"github.com/satriahrh/devicehub/internal/auth"
)

// fakeClock is a manually advanced clock
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	store       *memory.Store
	clock       *fakeClock
	credentials *CredentialService
	sessions    *SessionService
	telemetry   *TelemetryService
	devices     *DeviceService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := zap.NewNop()
	store := memory.NewStore()
	clock := newFakeClock()

	sessions := NewSessionService(store.LoginRecords, auth.DigestTokens{}, entities.DefaultSessionTTL, logger)
	sessions.SetClock(clock.Now)
	telemetry := NewTelemetryService(store.Messages, sessions, logger)

	return &fixture{
		store:       store,
		clock:       clock,
		credentials: NewCredentialService(store.Users, logger),
		sessions:    sessions,
		telemetry:   telemetry,
		devices:     NewDeviceService(store.Users, store.Devices, telemetry, sessions, logger),
	}
}

// login registers mail/name and returns a fresh login token
func (f *fixture) login(t *testing.T, mail, name string) string {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, f.credentials.Register(ctx, mail, name, auth.HashPassword("pw")))
	token, err := f.sessions.Issue(ctx, mail)
	require.NoError(t, err)
	return token
}
