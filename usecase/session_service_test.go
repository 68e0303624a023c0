package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueIsDeterministic(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	first, err := f.sessions.Issue(ctx, "alice@x.com")
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	second, err := f.sessions.Issue(ctx, "alice@x.com")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 2, f.store.LoginRecords.Count(first))
}

func TestValidateWithinTTL(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	token, err := f.sessions.Issue(ctx, "alice@x.com")
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	ok, err := f.sessions.Validate(ctx, token)
	require.NoError(t, err)
	assert.True(t, ok, "exactly one TTL after issue is still valid")
	assert.Equal(t, 1, f.store.LoginRecords.Count(token), "validation must not mutate a valid record")
}

func TestValidateExpiredEvicts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	token, err := f.sessions.Issue(ctx, "alice@x.com")
	require.NoError(t, err)

	f.clock.Advance(time.Hour + time.Second)
	ok, err := f.sessions.Validate(ctx, token)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, f.store.LoginRecords.Count(token))

	ok, err = f.sessions.Validate(ctx, token)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReissueExtendsExpiry(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	token, err := f.sessions.Issue(ctx, "alice@x.com")
	require.NoError(t, err)

	f.clock.Advance(50 * time.Minute)
	_, err = f.sessions.Issue(ctx, "alice@x.com")
	require.NoError(t, err)

	f.clock.Advance(50 * time.Minute)
	ok, err := f.sessions.Validate(ctx, token)
	require.NoError(t, err)
	assert.True(t, ok, "the latest record decides")
}

func TestValidateUnknownToken(t *testing.T) {
	f := newFixture(t)
	ok, err := f.sessions.Validate(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRevoke(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	token, err := f.sessions.Issue(ctx, "alice@x.com")
	require.NoError(t, err)
	_, err = f.sessions.Issue(ctx, "alice@x.com")
	require.NoError(t, err)

	require.NoError(t, f.sessions.Revoke(ctx, token))
	assert.Equal(t, 0, f.store.LoginRecords.Count(token))

	ok, err := f.sessions.Validate(ctx, token)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, f.sessions.Revoke(ctx, "unknown"), "revoking an unknown token is a no-op")
}

func TestPurgeExpired(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	old, err := f.sessions.Issue(ctx, "old@x.com")
	require.NoError(t, err)

	f.clock.Advance(2 * time.Hour)
	fresh, err := f.sessions.Issue(ctx, "fresh@x.com")
	require.NoError(t, err)

	n, err := f.sessions.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 0, f.store.LoginRecords.Count(old))
	assert.Equal(t, 1, f.store.LoginRecords.Count(fresh))
}
