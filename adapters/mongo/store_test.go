package mongo

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/satriahrh/devicehub/domain/entities"
	"github.com/satriahrh/devicehub/domain/repositories"
)

// TestStore_Integration exercises the repositories against a real MongoDB.
// Skipped when MONGODB_URI is not set.
func TestStore_Integration(t *testing.T) {
	mongoURI := os.Getenv("MONGODB_URI")
	if mongoURI == "" {
		t.Skip("Skipping MongoDB integration test - MONGODB_URI not set")
	}

	ctx := context.Background()
	logger := zap.NewNop()

	client, err := NewClient(ctx, mongoURI, "devicehub_test", logger)
	require.NoError(t, err)
	defer client.Close(ctx)

	defer client.Database.Drop(ctx)
	require.NoError(t, client.Database.Drop(ctx))

	store := NewStore(client.Database, logger)
	require.NoError(t, store.EnsureIndexes(ctx))

	t.Run("Users", func(t *testing.T) {
		require.NoError(t, store.Users.Create(ctx, entities.NewUser("alice@x.com", "alice", "h")))

		err := store.Users.Create(ctx, entities.NewUser("alice@x.com", "alice2", "h"))
		var dup *repositories.DuplicateKeyError
		require.ErrorAs(t, err, &dup)
		assert.Equal(t, "mail", dup.Field)

		err = store.Users.Create(ctx, entities.NewUser("alice2@x.com", "alice", "h"))
		require.ErrorAs(t, err, &dup)
		assert.Equal(t, "name", dup.Field)

		require.NoError(t, store.Users.AppendDevice(ctx, "alice@x.com", "dev1"))
		require.NoError(t, store.Users.AppendDevice(ctx, "alice@x.com", "dev1"))
		owns, err := store.Users.OwnsDevice(ctx, "alice@x.com", "dev1")
		require.NoError(t, err)
		assert.True(t, owns)

		user, err := store.Users.GetByMail(ctx, "alice@x.com")
		require.NoError(t, err)
		assert.Equal(t, []string{"dev1", "dev1"}, user.DeviceIDs)

		require.NoError(t, store.Users.PullDevice(ctx, "alice@x.com", "dev1"))
		user, err = store.Users.GetByMail(ctx, "alice@x.com")
		require.NoError(t, err)
		assert.Empty(t, user.DeviceIDs)

		_, err = store.Users.GetByMail(ctx, "nobody@x.com")
		assert.ErrorIs(t, err, repositories.ErrNotFound)
	})

	t.Run("Devices", func(t *testing.T) {
		created, err := store.Devices.CreateIfAbsent(ctx, entities.NewDevice("dev1"))
		require.NoError(t, err)
		assert.True(t, created)

		require.NoError(t, store.Devices.UpdateDetails(ctx, "dev1", "Kitchen", "thermo"))

		created, err = store.Devices.CreateIfAbsent(ctx, entities.NewDevice("dev1"))
		require.NoError(t, err)
		assert.False(t, created)

		device, err := store.Devices.GetByID(ctx, "dev1")
		require.NoError(t, err)
		assert.Equal(t, "Kitchen", device.Name)
		assert.Equal(t, "thermo", device.Description)

		assert.ErrorIs(t, store.Devices.UpdateDetails(ctx, "nope", "n", "d"), repositories.ErrNotFound)
	})

	t.Run("Messages", func(t *testing.T) {
		for _, ts := range []int64{50, 150, 120, 200} {
			require.NoError(t, store.Messages.Insert(ctx, &entities.Message{DeviceID: "dev1", Timestamp: ts, Alert: ts == 150}))
		}

		page, total, err := store.Messages.Find(ctx, entities.MessageQuery{DeviceID: "dev1", StartTS: 100, EndTS: 200, Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		require.Len(t, page, 2)
		assert.Equal(t, int64(200), page[0].Timestamp)
		assert.Equal(t, int64(150), page[1].Timestamp)

		count, err := store.Messages.CountByDevice(ctx, "dev1")
		require.NoError(t, err)
		assert.Equal(t, int64(4), count)

		alerts, err := store.Messages.CountAlertsByDevice(ctx, "dev1")
		require.NoError(t, err)
		assert.Equal(t, int64(1), alerts)
	})

	t.Run("LoginRecords", func(t *testing.T) {
		// Mongo stores milliseconds
		base := time.Now().UTC().Truncate(time.Millisecond)
		require.NoError(t, store.LoginRecords.Insert(ctx, entities.NewLoginRecord("tok", base.Add(-time.Hour))))
		require.NoError(t, store.LoginRecords.Insert(ctx, entities.NewLoginRecord("tok", base)))

		latest, err := store.LoginRecords.GetLatestByToken(ctx, "tok")
		require.NoError(t, err)
		require.NotNil(t, latest)
		assert.True(t, base.Equal(latest.IssuedAt))

		require.NoError(t, store.LoginRecords.Delete(ctx, latest.ID))

		n, err := store.LoginRecords.DeleteByToken(ctx, "tok")
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		missing, err := store.LoginRecords.GetLatestByToken(ctx, "tok")
		require.NoError(t, err)
		assert.Nil(t, missing)
	})
}
