package mongostore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/coreybb/rhymera/models"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type UserRepository struct {
	coll *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{coll: db.Collection(usersCollection)}
}

func (r *UserRepository) CreateUser(ctx context.Context, user *models.User) error {
	if user.Username == "" || user.Email == "" {
		return fmt.Errorf("username and email cannot be empty")
	}
	if user.HashedPassword == "" {
		return fmt.Errorf("hashed password cannot be empty")
	}

	if n, err := r.coll.CountDocuments(ctx, bson.D{{Key: "username", Value: user.Username}}); err != nil {
		return fmt.Errorf("failed to check username: %w", err)
	} else if n > 0 {
		return models.ErrUsernameTaken
	}
	if n, err := r.coll.CountDocuments(ctx, bson.D{{Key: "email", Value: user.Email}}); err != nil {
		return fmt.Errorf("failed to check email: %w", err)
	} else if n > 0 {
		return models.ErrEmailTaken
	}

	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	user.CreatedAt = user.CreatedAt.UTC().Truncate(time.Millisecond)

	if _, err := r.coll.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			if strings.Contains(err.Error(), "email") {
				return models.ErrEmailTaken
			}
			return models.ErrUsernameTaken
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// GetUserByID accepts both uuid ids and the hex ObjectIDs of accounts created by version 1.
func (r *UserRepository) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	var idValue any = userID
	if oid, err := primitive.ObjectIDFromHex(userID); err == nil {
		idValue = oid
	}
	return r.findOne(ctx, bson.D{{Key: "_id", Value: idValue}}, userID)
}

func (r *UserRepository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.findOne(ctx, bson.D{{Key: "username", Value: username}}, username)
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.D, key string) (*models.User, error) {
	var user models.User
	if err := r.coll.FindOne(ctx, filter).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("user %s: %w", key, models.ErrUserNotFound)
		}
		return nil, fmt.Errorf("failed to get user %s: %w", key, err)
	}
	user.CreatedAt = user.CreatedAt.UTC()
	return &user, nil
}
