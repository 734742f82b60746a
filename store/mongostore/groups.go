package mongostore

import (
	"context"
	"errors"

	"yatube/models"
	"yatube/store"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type GroupStore struct {
	groups *mongo.Collection
}

func NewGroupStore(db *mongo.Database) *GroupStore {
	return &GroupStore{groups: db.Collection(groupsCollection)}
}

func (s *GroupStore) findOne(ctx context.Context, filter bson.M) (*models.Group, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var group models.Group
	err := s.groups.FindOne(ctx, filter).Decode(&group)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &group, nil
}

func (s *GroupStore) GetBySlug(ctx context.Context, slug string) (*models.Group, error) {
	return s.findOne(ctx, bson.M{"slug": slug})
}

func (s *GroupStore) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Group, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *GroupStore) List(ctx context.Context) ([]*models.Group, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	findOptions := options.Find().SetSort(bson.D{{Key: "title", Value: 1}, {Key: "slug", Value: 1}})
	cursor, err := s.groups.Find(ctx, bson.M{}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	groups := []*models.Group{}
	if err := cursor.All(ctx, &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

func (s *GroupStore) Create(ctx context.Context, g *models.Group) error {
	if g.Slug == "" {
		return &store.ValidationError{Field: "slug", Message: "must not be empty"}
	}
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if g.ID.IsZero() {
		g.ID = primitive.NewObjectID()
	}
	_, err := s.groups.InsertOne(ctx, g)
	if mongo.IsDuplicateKeyError(err) {
		return store.ErrConflict
	}
	return err
}
