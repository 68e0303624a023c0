package entities

import "errors"

// Device represents a telemetry-emitting device. Ownership lives on User.DeviceIDs.
type Device struct {
	DeviceID    string `json:"id" bson:"device_id"`
	Name        string `json:"name" bson:"name"`
	Description string `json:"info" bson:"description"`
}

// NewDevice creates the record used when a device id is first linked to a user
func NewDevice(deviceID string) *Device {
	return &Device{
		DeviceID:    deviceID,
		Name:        deviceID,
		Description: "",
	}
}

// Validate validates the device data
func (d *Device) Validate() error {
	if d.DeviceID == "" {
		return errors.New("device id is required")
	}
	return nil
}

// DeviceProfile summarises a device together with its message counters
type DeviceProfile struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	MessageCount      uint32 `json:"message_count"`
	AlertMessageCount uint32 `json:"alert_message_count"`
}
