// Package mongostore implements the store interfaces on MongoDB.
package mongostore

import (
	"context"
	"errors"
	"time"

	"yatube/models"
	"yatube/store"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	postsCollection  = "posts"
	groupsCollection = "groups"
	usersCollection  = "users"

	opTimeout = 10 * time.Second
)

var plog = logrus.WithField("component", "mongostore")

// feedSort is the total feed order: newest first, then highest ID.
var feedSort = bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}

type PostStore struct {
	posts  *mongo.Collection
	groups *mongo.Collection
	rules  store.Rules
}

func NewPostStore(db *mongo.Database, rules store.Rules) *PostStore {
	return &PostStore{
		posts:  db.Collection(postsCollection),
		groups: db.Collection(groupsCollection),
		rules:  rules,
	}
}

// now is truncated to what a BSON datetime can hold so that returned posts
// compare equal to the stored ones.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

func (s *PostStore) checkGroup(ctx context.Context, groupID *primitive.ObjectID) error {
	if groupID == nil {
		return nil
	}
	count, err := s.groups.CountDocuments(ctx, bson.M{"_id": *groupID}, options.Count().SetLimit(1))
	if err != nil {
		return err
	}
	if count == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *PostStore) Create(ctx context.Context, text string, authorID primitive.ObjectID, groupID *primitive.ObjectID) (*models.Post, error) {
	text, err := s.rules.CheckText(text)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if err := s.checkGroup(ctx, groupID); err != nil {
		return nil, err
	}

	ts := now()
	post := &models.Post{
		ID:        primitive.NewObjectID(),
		AuthorID:  authorID,
		GroupID:   groupID,
		Text:      text,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	if _, err := s.posts.InsertOne(ctx, post); err != nil {
		plog.WithError(err).Error("insert post")
		return nil, err
	}
	return post, nil
}

func (s *PostStore) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Post, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var post models.Post
	err := s.posts.FindOne(ctx, bson.M{"_id": id}).Decode(&post)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (s *PostStore) Edit(ctx context.Context, id primitive.ObjectID, text string, groupID *primitive.ObjectID) (*models.Post, error) {
	text, err := s.rules.CheckText(text)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if err := s.checkGroup(ctx, groupID); err != nil {
		return nil, err
	}

	set := bson.M{"text": text, "updatedAt": now()}
	update := bson.M{"$set": set}
	if groupID != nil {
		set["groupId"] = *groupID
	} else {
		update["$unset"] = bson.M{"groupId": ""}
	}

	var post models.Post
	err = s.posts.FindOneAndUpdate(ctx, bson.M{"_id": id}, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&post)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		plog.WithError(err).WithField("post_id", id.Hex()).Error("update post")
		return nil, err
	}
	return &post, nil
}

func (s *PostStore) QueryPage(ctx context.Context, q store.PostQuery, page, pageSize int) ([]*models.Post, int64, error) {
	offset, err := store.Offset(page, pageSize)
	if err != nil {
		return nil, 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	filter := bson.M{}
	if q.GroupID != nil {
		filter["groupId"] = *q.GroupID
	}
	if q.AuthorID != nil {
		filter["authorId"] = *q.AuthorID
	}

	total, err := s.posts.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	posts := []*models.Post{}
	if offset >= total {
		return posts, total, nil
	}

	findOptions := options.Find().
		SetSort(feedSort).
		SetSkip(offset).
		SetLimit(int64(pageSize))
	cursor, err := s.posts.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	if err := cursor.All(ctx, &posts); err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

// EnsureIndexes creates the indexes the feed queries and unique lookups rely on.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	indexes := map[string][]mongo.IndexModel{
		postsCollection: {
			{Keys: feedSort},
			{Keys: bson.D{{Key: "groupId", Value: 1}, {Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}},
			{Keys: bson.D{{Key: "authorId", Value: 1}, {Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}},
		},
		groupsCollection: {
			{Keys: bson.D{{Key: "slug", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		usersCollection: {
			{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
	}
	for coll, idx := range indexes {
		if _, err := db.Collection(coll).Indexes().CreateMany(ctx, idx); err != nil {
			return err
		}
	}
	return nil
}
