package entities

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User represents a registered account that owns devices
type User struct {
	ID           primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Mail         string             `json:"mail" bson:"mail"`
	Name         string             `json:"name" bson:"name"`
	PasswordHash string             `json:"-" bson:"password"`
	DeviceIDs    []string           `json:"devices" bson:"devices"`
	CreatedAt    time.Time          `json:"created_at" bson:"created_at"`
}

// NewUser creates a user with an empty device set
func NewUser(mail, name, passwordHash string) *User {
	return &User{
		Mail:         mail,
		Name:         name,
		PasswordHash: passwordHash,
		DeviceIDs:    make([]string, 0),
		CreatedAt:    time.Now(),
	}
}

// OwnsDevice reports whether deviceID is in the user's device set
func (u *User) OwnsDevice(deviceID string) bool {
	for _, id := range u.DeviceIDs {
		if id == deviceID {
			return true
		}
	}
	return false
}

// Validate validates the user data
func (u *User) Validate() error {
	if u.Mail == "" {
		return errors.New("mail is required")
	}
	if u.Name == "" {
		return errors.New("name is required")
	}
	if u.PasswordHash == "" {
		return errors.New("password hash is required")
	}
	return nil
}
