package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/satriahrh/devicehub/domain/entities"
	"github.com/satriahrh/devicehub/domain/repositories"
)

// DeviceRepository is an in-memory implementation of repositories.DeviceRepository
type DeviceRepository struct {
	mu      sync.RWMutex
	devices map[string]*entities.Device // device_id -> device mapping
}

// NewDeviceRepository creates a new in-memory device repository
func NewDeviceRepository() *DeviceRepository {
	return &DeviceRepository{
		devices: make(map[string]*entities.Device),
	}
}

// CreateIfAbsent implements repositories.DeviceRepository
func (m *DeviceRepository) CreateIfAbsent(ctx context.Context, device *entities.Device) (bool, error) {
	if device == nil {
		return false, errors.New("device cannot be nil")
	}
	if err := device.Validate(); err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.devices[device.DeviceID]; exists {
		return false, nil
	}
	deviceCopy := *device
	m.devices[device.DeviceID] = &deviceCopy
	return true, nil
}

// GetByID implements repositories.DeviceRepository
func (m *DeviceRepository) GetByID(ctx context.Context, deviceID string) (*entities.Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	device, exists := m.devices[deviceID]
	if !exists {
		return nil, repositories.ErrNotFound
	}
	deviceCopy := *device
	return &deviceCopy, nil
}

// UpdateDetails implements repositories.DeviceRepository
func (m *DeviceRepository) UpdateDetails(ctx context.Context, deviceID, name, description string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	device, exists := m.devices[deviceID]
	if !exists {
		return repositories.ErrNotFound
	}
	device.Name = name
	device.Description = description
	return nil
}
