package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type PostEventKind string

const (
	PostCreated PostEventKind = "post_created"
	PostEdited  PostEventKind = "post_edited"
)

// PostEvent announces a successful post write to live subscribers.
type PostEvent struct {
	Kind      PostEventKind      `json:"type"`
	PostID    primitive.ObjectID `json:"postId"`
	Author    string             `json:"author"`
	GroupSlug string             `json:"group,omitempty"`
	At        time.Time          `json:"at"`
}

// Matches reports whether a feed with the given filter shows the post.
func (e PostEvent) Matches(f Filter) bool {
	switch f.Kind {
	case FilterGroup:
		return e.GroupSlug == f.Value
	case FilterAuthor:
		return e.Author == f.Value
	}
	return true
}
