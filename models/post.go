package models

import (
	"bytes"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Post struct {
	ID        primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	AuthorID  primitive.ObjectID  `bson:"authorId" json:"authorId"`
	GroupID   *primitive.ObjectID `bson:"groupId,omitempty" json:"groupId,omitempty"` // Optional
	Text      string              `bson:"text" json:"text"`
	CreatedAt time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time           `bson:"updatedAt" json:"updatedAt"`
}

// Clone returns a copy of p that shares no pointers with it.
func (p *Post) Clone() *Post {
	if p == nil {
		return nil
	}
	c := *p
	if p.GroupID != nil {
		gid := *p.GroupID
		c.GroupID = &gid
	}
	return &c
}

// InGroup reports whether the post is assigned to the given group.
func (p *Post) InGroup(id primitive.ObjectID) bool {
	return p.GroupID != nil && *p.GroupID == id
}

// Newer reports whether a sorts before b in a feed: newest CreatedAt first,
// ties broken by the larger ID.
func Newer(a, b *Post) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return bytes.Compare(a.ID[:], b.ID[:]) > 0
}

// ByNewest sorts posts in feed order.
type ByNewest []*Post

func (o ByNewest) Len() int           { return len(o) }
func (o ByNewest) Swap(i, j int)      { o[i], o[j] = o[j], o[i] }
func (o ByNewest) Less(i, j int) bool { return Newer(o[i], o[j]) }

// AuthorRef is the public part of a user that is shown next to a post.
type AuthorRef struct {
	ID       primitive.ObjectID `json:"id"`
	Username string             `json:"username"`
	Name     string             `json:"name"`
}

// PostView is a post together with the data needed to display it.
type PostView struct {
	Post
	Author AuthorRef `json:"author"`
	Group  *Group    `json:"group,omitempty"`
}

// PostDetail is the single-post page.
type PostDetail struct {
	PostView
	AuthorPostCount int64 `json:"authorPostCount"`
}
