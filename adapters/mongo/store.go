package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Store bundles the MongoDB repositories sharing one database
type Store struct {
	Users        *UserRepository
	Devices      *DeviceRepository
	Messages     *MessageRepository
	LoginRecords *LoginRecordRepository
}

// NewStore creates the repositories for db
func NewStore(db *mongo.Database, logger *zap.Logger) *Store {
	return &Store{
		Users:        NewUserRepository(db, logger),
		Devices:      NewDeviceRepository(db, logger),
		Messages:     NewMessageRepository(db, logger),
		LoginRecords: NewLoginRecordRepository(db, logger),
	}
}

// EnsureIndexes creates the indexes every repository relies on.
// Unique indexes on users.mail, users.name and devices.device_id back the
// application-level uniqueness checks.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	for name, create := range map[string]func(context.Context) error{
		UsersCollection:        s.Users.ensureIndexes,
		DevicesCollection:      s.Devices.ensureIndexes,
		MessagesCollection:     s.Messages.ensureIndexes,
		LoginRecordsCollection: s.LoginRecords.ensureIndexes,
	} {
		if err := create(ctx); err != nil {
			return fmt.Errorf("failed to create %s indexes: %w", name, err)
		}
	}
	return nil
}
