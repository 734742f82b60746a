package mongostore

import (
	"context"
	"errors"
	"strings"
	"time"

	"yatube/models"
	"yatube/store"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type UserStore struct {
	users *mongo.Collection
}

func NewUserStore(db *mongo.Database) *UserStore {
	return &UserStore{users: db.Collection(usersCollection)}
}

func (s *UserStore) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var user models.User
	err := s.users.FindOne(ctx, filter).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *UserStore) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *UserStore) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.findOne(ctx, bson.M{"username": username})
}

// GetByEmail matches on the lower-cased address; Create stores it that way.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findOne(ctx, bson.M{"email": strings.ToLower(email)})
}

func (s *UserStore) Create(ctx context.Context, u *models.User) error {
	if u.Username == "" {
		return &store.ValidationError{Field: "username", Message: "must not be empty"}
	}
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	if u.CreatedAt == 0 {
		u.CreatedAt = time.Now().Unix()
	}
	u.Email = strings.ToLower(u.Email)
	_, err := s.users.InsertOne(ctx, u)
	if mongo.IsDuplicateKeyError(err) {
		return store.ErrConflict
	}
	return err
}
