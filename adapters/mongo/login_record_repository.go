package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/satriahrh/devicehub/domain/entities"
)

// LoginRecordRepository implements repositories.LoginRecordRepository using MongoDB
type LoginRecordRepository struct {
	collection *mongo.Collection
	logger     *zap.Logger
}

// NewLoginRecordRepository creates a new MongoDB login record repository
func NewLoginRecordRepository(db *mongo.Database, logger *zap.Logger) *LoginRecordRepository {
	return &LoginRecordRepository{
		collection: db.Collection(LoginRecordsCollection),
		logger:     logger,
	}
}

func (r *LoginRecordRepository) ensureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "login_token", Value: 1},
			{Key: "login_time", Value: -1},
		},
	})
	return err
}

// Insert implements repositories.LoginRecordRepository
func (r *LoginRecordRepository) Insert(ctx context.Context, record *entities.LoginRecord) error {
	if record == nil {
		return errors.New("login record cannot be nil")
	}
	if err := record.Validate(); err != nil {
		return err
	}
	if record.ID.IsZero() {
		record.ID = primitive.NewObjectID()
	}

	if _, err := r.collection.InsertOne(ctx, record); err != nil {
		return fmt.Errorf("failed to insert login record: %w", err)
	}
	return nil
}

// GetLatestByToken implements repositories.LoginRecordRepository
func (r *LoginRecordRepository) GetLatestByToken(ctx context.Context, token string) (*entities.LoginRecord, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "login_time", Value: -1}})

	var record entities.LoginRecord
	err := r.collection.FindOne(ctx, bson.M{"login_token": token}, opts).Decode(&record)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil // No login found, return nil without error
		}
		return nil, fmt.Errorf("failed to get login record: %w", err)
	}
	return &record, nil
}

// Delete implements repositories.LoginRecordRepository
func (r *LoginRecordRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	if _, err := r.collection.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		r.logger.Error("Failed to delete login record", zap.Error(err), zap.String("id", id.Hex()))
		return fmt.Errorf("failed to delete login record: %w", err)
	}
	return nil
}

// DeleteByToken implements repositories.LoginRecordRepository
func (r *LoginRecordRepository) DeleteByToken(ctx context.Context, token string) (int64, error) {
	return r.deleteMany(ctx, bson.M{"login_token": token})
}

// DeleteIssuedBefore implements repositories.LoginRecordRepository
func (r *LoginRecordRepository) DeleteIssuedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return r.deleteMany(ctx, bson.M{"login_time": bson.M{"$lt": cutoff}})
}

func (r *LoginRecordRepository) deleteMany(ctx context.Context, filter bson.M) (int64, error) {
	result, err := r.collection.DeleteMany(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to delete login records: %w", err)
	}
	return result.DeletedCount, nil
}
