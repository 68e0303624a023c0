package repositories

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/satriahrh/devicehub/domain/entities"
)

var (
	// ErrNotFound is returned when a lookup matches no record
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when an insert violates a unique key.
	// Implementations wrap it in a *DuplicateKeyError naming the field.
	ErrDuplicate = errors.New("duplicate key")
)

// DuplicateKeyError names the unique field an insert collided on
type DuplicateKeyError struct {
	Field string
}

func (e *DuplicateKeyError) Error() string {
	return "duplicate key on " + e.Field
}

func (e *DuplicateKeyError) Unwrap() error {
	return ErrDuplicate
}

// UserRepository defines data access methods for users
type UserRepository interface {
	Create(ctx context.Context, user *entities.User) error
	GetByMail(ctx context.Context, mail string) (*entities.User, error)
	ExistsByMail(ctx context.Context, mail string) (bool, error)
	ExistsByName(ctx context.Context, name string) (bool, error)
	// OwnsDevice reports whether the user with mail has deviceID in its device set
	OwnsDevice(ctx context.Context, mail, deviceID string) (bool, error)
	// AppendDevice pushes deviceID onto the device set without deduplication
	AppendDevice(ctx context.Context, mail, deviceID string) error
	// PullDevice removes every occurrence of deviceID from the device set
	PullDevice(ctx context.Context, mail, deviceID string) error
}

// DeviceRepository defines data access methods for devices
type DeviceRepository interface {
	// CreateIfAbsent inserts device unless one with the same id exists
	CreateIfAbsent(ctx context.Context, device *entities.Device) (created bool, err error)
	GetByID(ctx context.Context, deviceID string) (*entities.Device, error)
	UpdateDetails(ctx context.Context, deviceID, name, description string) error
}

// MessageRepository defines data access methods for telemetry messages
type MessageRepository interface {
	Insert(ctx context.Context, message *entities.Message) error
	CountByDevice(ctx context.Context, deviceID string) (int64, error)
	CountAlertsByDevice(ctx context.Context, deviceID string) (int64, error)
	// Find returns the page selected by q, newest first, and the total number of matches
	Find(ctx context.Context, q entities.MessageQuery) ([]*entities.Message, int64, error)
}

// LoginRecordRepository defines data access methods for login records
type LoginRecordRepository interface {
	Insert(ctx context.Context, record *entities.LoginRecord) error
	// GetLatestByToken returns the most recently issued record, or nil when none exists
	GetLatestByToken(ctx context.Context, token string) (*entities.LoginRecord, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
	DeleteByToken(ctx context.Context, token string) (int64, error)
	DeleteIssuedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Health is implemented by backends that can report reachability
type Health interface {
	Ping(ctx context.Context) error
}
