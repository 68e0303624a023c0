package usecase

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/satriahrh/devicehub/domain"
	"github.com/satriahrh/devicehub/domain/entities"
	"github.com/satriahrh/devicehub/domain/repositories"
)

// MessageCounter supplies the counters of a device profile
type MessageCounter interface {
	Count(ctx context.Context, deviceID string) (uint32, error)
	CountAlert(ctx context.Context, deviceID string) (uint32, error)
}

// DeviceService manages devices and their ownership links. Every operation
// validates the caller's login token first.
type DeviceService struct {
	users    repositories.UserRepository
	devices  repositories.DeviceRepository
	counter  MessageCounter
	sessions SessionGate
	logger   *zap.Logger
}

// NewDeviceService creates a new device service
func NewDeviceService(
	users repositories.UserRepository,
	devices repositories.DeviceRepository,
	counter MessageCounter,
	sessions SessionGate,
	logger *zap.Logger,
) *DeviceService {
	return &DeviceService{
		users:    users,
		devices:  devices,
		counter:  counter,
		sessions: sessions,
		logger:   logger,
	}
}

// AddDevice links deviceID to the user, creating the device record on first use.
// The link is appended unconditionally, so adding twice stores the id twice.
func (s *DeviceService) AddDevice(ctx context.Context, token, mail, deviceID string) error {
	if err := requireSession(ctx, s.sessions, token); err != nil {
		return err
	}
	if deviceID == "" {
		return domain.ErrInvalidRequest
	}
	if err := s.requireUser(ctx, mail); err != nil {
		return err
	}

	created, err := s.devices.CreateIfAbsent(ctx, entities.NewDevice(deviceID))
	if err != nil {
		return domain.NewStoreError("create device", err)
	}

	if err := s.users.AppendDevice(ctx, mail, deviceID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return domain.ErrNoSuchUser
		}
		return domain.NewStoreError("link device", err)
	}

	s.logger.Info("Device added",
		zap.String("mail", mail),
		zap.String("device_id", deviceID),
		zap.Bool("created", created))
	return nil
}

// RemoveDevice unlinks every occurrence of deviceID from the user. The device
// record itself survives since other users may own it.
func (s *DeviceService) RemoveDevice(ctx context.Context, token, mail, deviceID string) error {
	if err := requireSession(ctx, s.sessions, token); err != nil {
		return err
	}
	if err := s.requireUser(ctx, mail); err != nil {
		return err
	}

	owns, err := s.users.OwnsDevice(ctx, mail, deviceID)
	if err != nil {
		return domain.NewStoreError("check device ownership", err)
	}
	if !owns {
		return domain.ErrNoSuchOwnedDevice
	}

	if err := s.users.PullDevice(ctx, mail, deviceID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return domain.ErrNoSuchUser
		}
		return domain.NewStoreError("unlink device", err)
	}

	s.logger.Info("Device removed", zap.String("mail", mail), zap.String("device_id", deviceID))
	return nil
}

// ModifyDevice rewrites the device's name and description. Any authenticated
// caller may modify any device.
func (s *DeviceService) ModifyDevice(ctx context.Context, token, deviceID, name, description string) error {
	if err := requireSession(ctx, s.sessions, token); err != nil {
		return err
	}

	if err := s.devices.UpdateDetails(ctx, deviceID, name, description); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return domain.ErrNoSuchDevice
		}
		return domain.NewStoreError("update device", err)
	}
	return nil
}

// FetchDevice returns the device record
func (s *DeviceService) FetchDevice(ctx context.Context, token, deviceID string) (*entities.Device, error) {
	if err := requireSession(ctx, s.sessions, token); err != nil {
		return nil, err
	}
	return s.getDevice(ctx, deviceID)
}

// FetchDeviceProfile returns the device with freshly counted messages
func (s *DeviceService) FetchDeviceProfile(ctx context.Context, token, deviceID string) (*entities.DeviceProfile, error) {
	if err := requireSession(ctx, s.sessions, token); err != nil {
		return nil, err
	}

	device, err := s.getDevice(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	return s.profile(ctx, device)
}

// FetchDeviceList returns the profiles of the user's devices in stored order.
// If any linked id has no device record the whole call fails.
func (s *DeviceService) FetchDeviceList(ctx context.Context, token, mail string) ([]entities.DeviceProfile, error) {
	if err := requireSession(ctx, s.sessions, token); err != nil {
		return nil, err
	}

	user, err := s.users.GetByMail(ctx, mail)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, domain.ErrNoSuchUser
		}
		return nil, domain.NewStoreError("find user", err)
	}

	profiles := make([]entities.DeviceProfile, 0, len(user.DeviceIDs))
	for _, id := range user.DeviceIDs {
		device, err := s.devices.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return nil, fmt.Errorf("device %s: %w", id, domain.ErrNoSuchOwnedDevice)
			}
			return nil, domain.NewStoreError("find device", err)
		}

		profile, err := s.profile(ctx, device)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, *profile)
	}
	return profiles, nil
}

func (s *DeviceService) requireUser(ctx context.Context, mail string) error {
	_, err := s.users.GetByMail(ctx, mail)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return domain.ErrNoSuchUser
		}
		return domain.NewStoreError("find user", err)
	}
	return nil
}

func (s *DeviceService) getDevice(ctx context.Context, deviceID string) (*entities.Device, error) {
	device, err := s.devices.GetByID(ctx, deviceID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, domain.ErrNoSuchDevice
		}
		return nil, domain.NewStoreError("find device", err)
	}
	return device, nil
}

func (s *DeviceService) profile(ctx context.Context, device *entities.Device) (*entities.DeviceProfile, error) {
	total, err := s.counter.Count(ctx, device.DeviceID)
	if err != nil {
		return nil, err
	}
	alerts, err := s.counter.CountAlert(ctx, device.DeviceID)
	if err != nil {
		return nil, err
	}

	return &entities.DeviceProfile{
		ID:                device.DeviceID,
		Name:              device.Name,
		MessageCount:      total,
		AlertMessageCount: alerts,
	}, nil
}
