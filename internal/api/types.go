package api

import "github.com/satriahrh/devicehub/domain/entities"

// Envelope is shared by every response. Err is empty on success.
type Envelope struct {
	Success bool   `json:"success"`
	Err     string `json:"err"`
}

// RegisterRequest creates an account
type RegisterRequest struct {
	Mail     string `json:"mail"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

// LoginRequest authenticates an account
type LoginRequest struct {
	Mail     string `json:"mail"`
	Password string `json:"password"`
}

// LoginResponse carries the issued token
type LoginResponse struct {
	Envelope
	LoginToken string `json:"login_token,omitempty"`
	Mail       string `json:"mail,omitempty"`
	Name       string `json:"name,omitempty"`
}

// TokenRequest carries only a login token
type TokenRequest struct {
	LoginToken string `json:"login_token"`
}

// OwnedDeviceRequest names a device in a user's list
type OwnedDeviceRequest struct {
	LoginToken string `json:"login_token"`
	Mail       string `json:"mail"`
	DeviceID   string `json:"id"`
}

// ModifyDeviceRequest replaces a device's name and info
type ModifyDeviceRequest struct {
	LoginToken string `json:"login_token"`
	DeviceID   string `json:"id"`
	Name       string `json:"name"`
	Info       string `json:"info"`
}

// DeviceRequest names a device
type DeviceRequest struct {
	LoginToken string `json:"login_token"`
	DeviceID   string `json:"id"`
}

// DeviceResponse returns a device's details
type DeviceResponse struct {
	Envelope
	*entities.Device
}

// DeviceProfileResponse returns a device's profile
type DeviceProfileResponse struct {
	Envelope
	*entities.DeviceProfile
}

// DeviceListRequest names a user
type DeviceListRequest struct {
	LoginToken string `json:"login_token"`
	Mail       string `json:"mail"`
}

// DeviceListResponse returns the profiles of a user's devices
type DeviceListResponse struct {
	Envelope
	Devices []entities.DeviceProfile `json:"devices"`
}

// MessageListRequest selects a page of a device's messages. Omitted fields
// take the query defaults.
type MessageListRequest struct {
	LoginToken     string `json:"login_token"`
	DeviceID       string `json:"id"`
	StartTimestamp *int64 `json:"start_timestamp"`
	EndTimestamp   *int64 `json:"end_timestamp"`
	FirstIndex     *int64 `json:"first_index"`
	Limit          *int64 `json:"limit"`
}

// Query converts the request into a message query
func (r *MessageListRequest) Query() entities.MessageQuery {
	q := entities.NewMessageQuery(r.DeviceID)
	if r.StartTimestamp != nil {
		q.StartTS = *r.StartTimestamp
	}
	if r.EndTimestamp != nil {
		q.EndTS = *r.EndTimestamp
	}
	if r.FirstIndex != nil {
		q.FirstIndex = *r.FirstIndex
	}
	if r.Limit != nil {
		q.Limit = *r.Limit
	}
	return q
}

// MessageListResponse returns one page and the total match count
type MessageListResponse struct {
	Envelope
	Messages          []*entities.Message `json:"messages"`
	TotalMatchedCount int64               `json:"total_matched_count"`
}

// HealthResponse reports storage and ingestion status
type HealthResponse struct {
	Status  string      `json:"status"`
	Service string      `json:"service"`
	Storage string      `json:"storage"`
	Ingest  interface{} `json:"ingest,omitempty"`
}
