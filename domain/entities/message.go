package entities

import (
	"errors"
	"math"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DefaultMessageLimit is the page size used when a query does not set one
const DefaultMessageLimit = 20

// Message is one telemetry reading reported by a device
type Message struct {
	ID        primitive.ObjectID `json:"-" bson:"_id,omitempty"`
	DeviceID  string             `json:"id" bson:"device_id"`
	Info      string             `json:"info" bson:"info"`
	Value     int32              `json:"value" bson:"value"`
	Alert     bool               `json:"alert" bson:"alert"`
	Longitude float64            `json:"lng" bson:"lng"`
	Latitude  float64            `json:"lat" bson:"lat"`
	// Timestamp is in milliseconds since the Unix epoch
	Timestamp int64 `json:"timestamp" bson:"timestamp"`
}

// Validate validates the message data
func (m *Message) Validate() error {
	if m.DeviceID == "" {
		return errors.New("device id is required")
	}
	return nil
}

// MessageQuery selects a page of a device's messages in an inclusive timestamp range
type MessageQuery struct {
	DeviceID   string
	StartTS    int64
	EndTS      int64
	FirstIndex int64
	Limit      int64
}

// NewMessageQuery returns a query over the whole time range with the default page
func NewMessageQuery(deviceID string) MessageQuery {
	return MessageQuery{
		DeviceID:   deviceID,
		StartTS:    0,
		EndTS:      math.MaxInt64,
		FirstIndex: 0,
		Limit:      DefaultMessageLimit,
	}
}

// Normalize clamps out-of-range pagination values to their defaults
func (q MessageQuery) Normalize() MessageQuery {
	if q.FirstIndex < 0 {
		q.FirstIndex = 0
	}
	if q.Limit <= 0 {
		q.Limit = DefaultMessageLimit
	}
	return q
}

// Matches reports whether m falls inside the query's device and time range
func (q MessageQuery) Matches(m *Message) bool {
	return m.DeviceID == q.DeviceID && m.Timestamp >= q.StartTS && m.Timestamp <= q.EndTS
}
