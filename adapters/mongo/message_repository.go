package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/satriahrh/devicehub/domain/entities"
)

// MessageRepository implements repositories.MessageRepository using MongoDB
type MessageRepository struct {
	collection *mongo.Collection
	logger     *zap.Logger
}

// NewMessageRepository creates a new MongoDB message repository
func NewMessageRepository(db *mongo.Database, logger *zap.Logger) *MessageRepository {
	return &MessageRepository{
		collection: db.Collection(MessagesCollection),
		logger:     logger,
	}
}

func (r *MessageRepository) ensureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			// Range queries, newest first
			Keys: bson.D{
				{Key: "device_id", Value: 1},
				{Key: "timestamp", Value: -1},
			},
		},
		{
			// Alert counters
			Keys: bson.D{
				{Key: "device_id", Value: 1},
				{Key: "alert", Value: 1},
			},
		},
	})
	return err
}

// Insert implements repositories.MessageRepository
func (r *MessageRepository) Insert(ctx context.Context, message *entities.Message) error {
	if message == nil {
		return errors.New("message cannot be nil")
	}
	if err := message.Validate(); err != nil {
		return err
	}
	if message.ID.IsZero() {
		message.ID = primitive.NewObjectID()
	}

	if _, err := r.collection.InsertOne(ctx, message); err != nil {
		return fmt.Errorf("failed to insert message for %s: %w", message.DeviceID, err)
	}
	return nil
}

// CountByDevice implements repositories.MessageRepository
func (r *MessageRepository) CountByDevice(ctx context.Context, deviceID string) (int64, error) {
	n, err := r.collection.CountDocuments(ctx, bson.M{"device_id": deviceID})
	if err != nil {
		return 0, fmt.Errorf("failed to count messages for %s: %w", deviceID, err)
	}
	return n, nil
}

// CountAlertsByDevice implements repositories.MessageRepository
func (r *MessageRepository) CountAlertsByDevice(ctx context.Context, deviceID string) (int64, error) {
	n, err := r.collection.CountDocuments(ctx, bson.M{"device_id": deviceID, "alert": true})
	if err != nil {
		return 0, fmt.Errorf("failed to count alert messages for %s: %w", deviceID, err)
	}
	return n, nil
}

// Find implements repositories.MessageRepository
func (r *MessageRepository) Find(ctx context.Context, q entities.MessageQuery) ([]*entities.Message, int64, error) {
	q = q.Normalize()

	filter := bson.M{
		"device_id": q.DeviceID,
		"timestamp": bson.M{
			"$gte": q.StartTS,
			"$lte": q.EndTS,
		},
	}

	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count messages for %s: %w", q.DeviceID, err)
	}

	// _id breaks timestamp ties so pages do not overlap
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(q.FirstIndex).
		SetLimit(q.Limit)

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		r.logger.Error("Failed to find messages", zap.Error(err), zap.String("device_id", q.DeviceID))
		return nil, 0, fmt.Errorf("failed to find messages for %s: %w", q.DeviceID, err)
	}
	defer cursor.Close(ctx)

	messages := make([]*entities.Message, 0)
	for cursor.Next(ctx) {
		var message entities.Message
		if err := cursor.Decode(&message); err != nil {
			return nil, 0, fmt.Errorf("failed to decode message: %w", err)
		}
		messages = append(messages, &message)
	}
	if err := cursor.Err(); err != nil {
		r.logger.Error("Cursor error", zap.Error(err))
		return nil, 0, err
	}

	return messages, total, nil
}
