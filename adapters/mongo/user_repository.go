package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/satriahrh/devicehub/domain/entities"
	"github.com/satriahrh/devicehub/domain/repositories"
)

const (
	userMailIndex = "mail_unique"
	userNameIndex = "name_unique"
)

// UserRepository implements repositories.UserRepository using MongoDB
type UserRepository struct {
	collection *mongo.Collection
	logger     *zap.Logger
}

// NewUserRepository creates a new MongoDB user repository
func NewUserRepository(db *mongo.Database, logger *zap.Logger) *UserRepository {
	return &UserRepository{
		collection: db.Collection(UsersCollection),
		logger:     logger,
	}
}

func (r *UserRepository) ensureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "mail", Value: 1}},
			Options: options.Index().SetName(userMailIndex).SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "name", Value: 1}},
			Options: options.Index().SetName(userNameIndex).SetUnique(true),
		},
	})
	return err
}

// Create implements repositories.UserRepository
func (r *UserRepository) Create(ctx context.Context, user *entities.User) error {
	if user == nil {
		return errors.New("user cannot be nil")
	}
	if err := user.Validate(); err != nil {
		return err
	}
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	if user.DeviceIDs == nil {
		user.DeviceIDs = make([]string, 0)
	}

	_, err := r.collection.InsertOne(ctx, user)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			field := "mail"
			if strings.Contains(err.Error(), userNameIndex) {
				field = "name"
			}
			return &repositories.DuplicateKeyError{Field: field}
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	r.logger.Info("User created", zap.String("mail", user.Mail))
	return nil
}

// GetByMail implements repositories.UserRepository
func (r *UserRepository) GetByMail(ctx context.Context, mail string) (*entities.User, error) {
	var user entities.User
	err := r.collection.FindOne(ctx, bson.M{"mail": mail}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user %s: %w", mail, err)
	}
	return &user, nil
}

// ExistsByMail implements repositories.UserRepository
func (r *UserRepository) ExistsByMail(ctx context.Context, mail string) (bool, error) {
	return r.exists(ctx, bson.M{"mail": mail})
}

// ExistsByName implements repositories.UserRepository
func (r *UserRepository) ExistsByName(ctx context.Context, name string) (bool, error) {
	return r.exists(ctx, bson.M{"name": name})
}

// OwnsDevice implements repositories.UserRepository
func (r *UserRepository) OwnsDevice(ctx context.Context, mail, deviceID string) (bool, error) {
	return r.exists(ctx, bson.M{
		"mail":    mail,
		"devices": bson.M{"$elemMatch": bson.M{"$eq": deviceID}},
	})
}

// AppendDevice implements repositories.UserRepository
func (r *UserRepository) AppendDevice(ctx context.Context, mail, deviceID string) error {
	return r.updateDevices(ctx, mail, bson.M{"$push": bson.M{"devices": deviceID}})
}

// PullDevice implements repositories.UserRepository
func (r *UserRepository) PullDevice(ctx context.Context, mail, deviceID string) error {
	return r.updateDevices(ctx, mail, bson.M{"$pull": bson.M{"devices": deviceID}})
}

func (r *UserRepository) updateDevices(ctx context.Context, mail string, update bson.M) error {
	result, err := r.collection.UpdateOne(ctx, bson.M{"mail": mail}, update)
	if err != nil {
		r.logger.Error("Failed to update user devices", zap.Error(err), zap.String("mail", mail))
		return fmt.Errorf("failed to update devices of %s: %w", mail, err)
	}
	if result.MatchedCount == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

func (r *UserRepository) exists(ctx context.Context, filter bson.M) (bool, error) {
	n, err := r.collection.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to count users: %w", err)
	}
	return n > 0, nil
}
