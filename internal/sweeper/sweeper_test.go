package sweeper

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/satriahrh/devicehub/adapters/memory"
	"github.com/satriahrh/devicehub/domain/entities"
	"github.com/satriahrh/devicehub/internal/auth"
	"github.com/satriahrh/devicehub/usecase"
)

type countingPurger struct {
	calls atomic.Int32
	err   error
}

func (p *countingPurger) PurgeExpired(ctx context.Context) (int64, error) {
	p.calls.Add(1)
	return 1, p.err
}

func TestSweeperRunsOnInterval(t *testing.T) {
	purger := &countingPurger{}
	s := New(purger, 10*time.Millisecond, zap.NewNop())
	s.Start()

	require.Eventually(t, func() bool {
		return purger.calls.Load() >= 2
	}, time.Second, 5*time.Millisecond)

	s.Stop()
	calls := purger.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, purger.calls.Load())
}

func TestSweeperDisabled(t *testing.T) {
	purger := &countingPurger{}
	s := New(purger, 0, zap.NewNop())
	assert.False(t, s.Enabled())

	s.Start()
	time.Sleep(20 * time.Millisecond)
	s.Stop()
	assert.Equal(t, int32(0), purger.calls.Load())
}

func TestSweeperSurvivesErrors(t *testing.T) {
	purger := &countingPurger{err: errors.New("store down")}
	s := New(purger, 5*time.Millisecond, zap.NewNop())
	s.Start()
	defer s.Stop()

	require.Eventually(t, func() bool {
		return purger.calls.Load() >= 3
	}, time.Second, 5*time.Millisecond)
}

func TestSweepRemovesOnlyExpiredRecords(t *testing.T) {
	ctx := context.Background()
	records := memory.NewLoginRecordRepository()
	sessions := usecase.NewSessionService(records, auth.DigestTokens{}, time.Hour, zap.NewNop())

	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	sessions.SetClock(func() time.Time { return now })

	stale := entities.NewLoginRecord("stale-token", now.Add(-2*time.Hour))
	require.NoError(t, records.Insert(ctx, stale))
	fresh, err := sessions.Issue(ctx, "alice@example.com")
	require.NoError(t, err)

	New(sessions, time.Minute, zap.NewNop()).Sweep()

	assert.Equal(t, 0, records.Count("stale-token"))
	assert.Equal(t, 1, records.Count(fresh))

	ok, err := sessions.Validate(ctx, fresh)
	require.NoError(t, err)
	assert.True(t, ok)
}
