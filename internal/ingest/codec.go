package ingest

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/satriahrh/devicehub/domain"
	"github.com/satriahrh/devicehub/domain/entities"
)

// Payload formats accepted by NewCodec
const (
	FormatJSON = "json"
	FormatCBOR = "cbor"
)

// Codec turns one transport payload into a Message
type Codec interface {
	Decode(payload []byte) (*entities.Message, error)
}

// NewCodec returns the codec for format
func NewCodec(format string) (Codec, error) {
	switch format {
	case FormatJSON, "":
		return JSONCodec{}, nil
	case FormatCBOR:
		return NewCBORCodec()
	default:
		return nil, fmt.Errorf("unknown payload format %q", format)
	}
}

// Payload is the wire form of a telemetry reading
type Payload struct {
	ClientID  string    `json:"clientId" cbor:"clientId"`
	Info      string    `json:"info" cbor:"info"`
	Value     int32     `json:"value" cbor:"value"`
	Alert     AlertFlag `json:"alert" cbor:"alert"`
	Longitude float64   `json:"lng" cbor:"lng"`
	Latitude  float64   `json:"lat" cbor:"lat"`
	Timestamp int64     `json:"timestamp" cbor:"timestamp"`
}

// Message converts the payload, rejecting readings with no device id
func (p *Payload) Message() (*entities.Message, error) {
	if p.ClientID == "" {
		return nil, &domain.DecodeError{Err: errors.New("clientId is required")}
	}
	return &entities.Message{
		DeviceID:  p.ClientID,
		Info:      p.Info,
		Value:     p.Value,
		Alert:     bool(p.Alert),
		Longitude: p.Longitude,
		Latitude:  p.Latitude,
		Timestamp: p.Timestamp,
	}, nil
}

// AlertFlag is true for any non-zero number. Booleans are accepted as well.
type AlertFlag bool

// UnmarshalJSON implements json.Unmarshaler
func (a *AlertFlag) UnmarshalJSON(data []byte) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	return a.set(v)
}

// UnmarshalCBOR implements cbor.Unmarshaler
func (a *AlertFlag) UnmarshalCBOR(data []byte) error {
	var v interface{}
	if err := cbor.Unmarshal(data, &v); err != nil {
		return err
	}
	return a.set(v)
}

func (a *AlertFlag) set(v interface{}) error {
	switch t := v.(type) {
	case nil:
		*a = false
	case bool:
		*a = AlertFlag(t)
	case float64:
		*a = t != 0
	case uint64:
		*a = t != 0
	case int64:
		*a = t != 0
	default:
		return fmt.Errorf("alert: unsupported type %T", v)
	}
	return nil
}

// JSONCodec decodes JSON payloads
type JSONCodec struct{}

// Decode implements Codec
func (JSONCodec) Decode(payload []byte) (*entities.Message, error) {
	var p Payload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, &domain.DecodeError{Err: err}
	}
	return p.Message()
}

// CBORCodec decodes CBOR payloads carrying the same fields as JSON
type CBORCodec struct {
	dec cbor.DecMode
}

// NewCBORCodec creates a CBOR codec. Unknown fields are ignored.
func NewCBORCodec() (*CBORCodec, error) {
	dec, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		return nil, fmt.Errorf("cbor decoder initialization failed: %w", err)
	}
	return &CBORCodec{dec: dec}, nil
}

// Decode implements Codec
func (c *CBORCodec) Decode(payload []byte) (*entities.Message, error) {
	var p Payload
	if err := c.dec.Unmarshal(payload, &p); err != nil {
		return nil, &domain.DecodeError{Err: err}
	}
	return p.Message()
}
