package memory

import (
	"context"
	"errors"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/satriahrh/devicehub/domain/entities"
	"github.com/satriahrh/devicehub/domain/repositories"
)

// UserRepository is an in-memory implementation of repositories.UserRepository
type UserRepository struct {
	mu     sync.RWMutex
	byMail map[string]*entities.User
	names  map[string]string // name -> mail
}

// NewUserRepository creates a new in-memory user repository
func NewUserRepository() *UserRepository {
	return &UserRepository{
		byMail: make(map[string]*entities.User),
		names:  make(map[string]string),
	}
}

// Create implements repositories.UserRepository
func (m *UserRepository) Create(ctx context.Context, user *entities.User) error {
	if user == nil {
		return errors.New("user cannot be nil")
	}
	if err := user.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byMail[user.Mail]; exists {
		return &repositories.DuplicateKeyError{Field: "mail"}
	}
	if _, exists := m.names[user.Name]; exists {
		return &repositories.DuplicateKeyError{Field: "name"}
	}

	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	userCopy := copyUser(user)
	m.byMail[user.Mail] = userCopy
	m.names[user.Name] = user.Mail
	return nil
}

// GetByMail implements repositories.UserRepository
func (m *UserRepository) GetByMail(ctx context.Context, mail string) (*entities.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, exists := m.byMail[mail]
	if !exists {
		return nil, repositories.ErrNotFound
	}
	// Return a copy to prevent external modifications
	return copyUser(user), nil
}

// ExistsByMail implements repositories.UserRepository
func (m *UserRepository) ExistsByMail(ctx context.Context, mail string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, exists := m.byMail[mail]
	return exists, nil
}

// ExistsByName implements repositories.UserRepository
func (m *UserRepository) ExistsByName(ctx context.Context, name string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, exists := m.names[name]
	return exists, nil
}

// OwnsDevice implements repositories.UserRepository
func (m *UserRepository) OwnsDevice(ctx context.Context, mail, deviceID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, exists := m.byMail[mail]
	if !exists {
		return false, nil
	}
	return user.OwnsDevice(deviceID), nil
}

// AppendDevice implements repositories.UserRepository
func (m *UserRepository) AppendDevice(ctx context.Context, mail, deviceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, exists := m.byMail[mail]
	if !exists {
		return repositories.ErrNotFound
	}
	user.DeviceIDs = append(user.DeviceIDs, deviceID)
	return nil
}

// PullDevice implements repositories.UserRepository
func (m *UserRepository) PullDevice(ctx context.Context, mail, deviceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, exists := m.byMail[mail]
	if !exists {
		return repositories.ErrNotFound
	}
	kept := make([]string, 0, len(user.DeviceIDs))
	for _, id := range user.DeviceIDs {
		if id != deviceID {
			kept = append(kept, id)
		}
	}
	user.DeviceIDs = kept
	return nil
}

func copyUser(user *entities.User) *entities.User {
	userCopy := *user
	userCopy.DeviceIDs = append(make([]string, 0, len(user.DeviceIDs)), user.DeviceIDs...)
	return &userCopy
}
