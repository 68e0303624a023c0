package websocket

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/satriahrh/devicehub/domain/entities"
)

// MessageType defines the type of a stream frame
type MessageType string

// Supported frame types
const (
	MessageTypeTelemetry MessageType = "telemetry"
	MessageTypePing      MessageType = "ping"
	MessageTypePong      MessageType = "pong"
	MessageTypeError     MessageType = "error"
)

// BaseMessage is the common header of every frame
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp string      `json:"timestamp"`
}

// TelemetryMessage carries one stored reading
type TelemetryMessage struct {
	BaseMessage
	Message *entities.Message `json:"message"`
}

// PongMessage answers a client ping
type PongMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// ErrorMessage reports a problem with a client frame
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"error_code"`
	Message string `json:"message"`
}

// ClientMessage is what a stream client may send
type ClientMessage struct {
	Type MessageType `json:"type"`
	Data string      `json:"data,omitempty"`
}

func header(t MessageType) BaseMessage {
	return BaseMessage{Type: t, Timestamp: time.Now().UTC().Format(time.RFC3339)}
}

// NewTelemetryMessage wraps a stored reading for the stream
func NewTelemetryMessage(message *entities.Message) *TelemetryMessage {
	return &TelemetryMessage{BaseMessage: header(MessageTypeTelemetry), Message: message}
}

// NewPongMessage creates a pong echoing data
func NewPongMessage(data string) *PongMessage {
	return &PongMessage{BaseMessage: header(MessageTypePong), Data: data}
}

// NewErrorMessage creates an error frame
func NewErrorMessage(code, message string) *ErrorMessage {
	return &ErrorMessage{BaseMessage: header(MessageTypeError), Code: code, Message: message}
}

// ParseClientMessage parses a text frame sent by a stream client
func ParseClientMessage(data []byte) (*ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("message type is required")
	}
	return &msg, nil
}
