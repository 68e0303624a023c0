package entities

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DefaultSessionTTL is how long a login record stays valid after it was issued
const DefaultSessionTTL = 3600 * time.Second

// LoginRecord is one issued login. Several records may share a token.
type LoginRecord struct {
	ID       primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Token    string             `json:"login_token" bson:"login_token"`
	IssuedAt time.Time          `json:"login_time" bson:"login_time"`
}

// NewLoginRecord creates a login record issued at now
func NewLoginRecord(token string, now time.Time) *LoginRecord {
	return &LoginRecord{
		ID:       primitive.NewObjectID(),
		Token:    token,
		IssuedAt: now,
	}
}

// IsExpired reports whether more than ttl has elapsed since the record was issued.
// Exactly ttl is still valid.
func (r *LoginRecord) IsExpired(now time.Time, ttl time.Duration) bool {
	return now.Sub(r.IssuedAt) > ttl
}

// Validate validates the login record
func (r *LoginRecord) Validate() error {
	if r.Token == "" {
		return errors.New("login_token is required")
	}
	if r.IssuedAt.IsZero() {
		return errors.New("login_time is required")
	}
	return nil
}
