package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/satriahrh/devicehub/domain/entities"
	"github.com/satriahrh/devicehub/domain/repositories"
)

// DeviceRepository implements repositories.DeviceRepository using MongoDB
type DeviceRepository struct {
	collection *mongo.Collection
	logger     *zap.Logger
}

// NewDeviceRepository creates a new MongoDB device repository
func NewDeviceRepository(db *mongo.Database, logger *zap.Logger) *DeviceRepository {
	return &DeviceRepository{
		collection: db.Collection(DevicesCollection),
		logger:     logger,
	}
}

func (r *DeviceRepository) ensureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "device_id", Value: 1}},
		Options: options.Index().SetName("device_id_unique").SetUnique(true),
	})
	return err
}

// CreateIfAbsent implements repositories.DeviceRepository.
// An upsert with $setOnInsert leaves an existing record untouched.
func (r *DeviceRepository) CreateIfAbsent(ctx context.Context, device *entities.Device) (bool, error) {
	if device == nil {
		return false, errors.New("device cannot be nil")
	}
	if err := device.Validate(); err != nil {
		return false, err
	}

	result, err := r.collection.UpdateOne(
		ctx,
		bson.M{"device_id": device.DeviceID},
		bson.M{"$setOnInsert": device},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		// Two concurrent upserts may both miss; the loser hits the unique index.
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to create device %s: %w", device.DeviceID, err)
	}

	created := result.UpsertedCount > 0
	if created {
		r.logger.Info("Device created", zap.String("device_id", device.DeviceID))
	}
	return created, nil
}

// GetByID implements repositories.DeviceRepository
func (r *DeviceRepository) GetByID(ctx context.Context, deviceID string) (*entities.Device, error) {
	var device entities.Device
	err := r.collection.FindOne(ctx, bson.M{"device_id": deviceID}).Decode(&device)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get device %s: %w", deviceID, err)
	}
	return &device, nil
}

// UpdateDetails implements repositories.DeviceRepository
func (r *DeviceRepository) UpdateDetails(ctx context.Context, deviceID, name, description string) error {
	update := bson.M{
		"$set": bson.M{
			"name":        name,
			"description": description,
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"device_id": deviceID}, update)
	if err != nil {
		r.logger.Error("Failed to update device", zap.Error(err), zap.String("device_id", deviceID))
		return fmt.Errorf("failed to update device %s: %w", deviceID, err)
	}
	if result.MatchedCount == 0 {
		return repositories.ErrNotFound
	}

	r.logger.Debug("Device updated", zap.String("device_id", deviceID))
	return nil
}
