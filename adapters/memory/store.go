// Package memory keeps every repository in process memory. It backs the
// "memory" storage mode and the service tests.
package memory

import (
	"context"

	"github.com/satriahrh/devicehub/domain/repositories"
)

// Store bundles the in-memory repositories
type Store struct {
	Users        *UserRepository
	Devices      *DeviceRepository
	Messages     *MessageRepository
	LoginRecords *LoginRecordRepository
}

// NewStore creates an empty in-memory store
func NewStore() *Store {
	return &Store{
		Users:        NewUserRepository(),
		Devices:      NewDeviceRepository(),
		Messages:     NewMessageRepository(),
		LoginRecords: NewLoginRecordRepository(),
	}
}

// Ping implements repositories.Health
func (s *Store) Ping(ctx context.Context) error {
	return nil
}

var (
	_ repositories.UserRepository        = (*UserRepository)(nil)
	_ repositories.DeviceRepository      = (*DeviceRepository)(nil)
	_ repositories.MessageRepository     = (*MessageRepository)(nil)
	_ repositories.LoginRecordRepository = (*LoginRecordRepository)(nil)
	_ repositories.Health                = (*Store)(nil)
)
