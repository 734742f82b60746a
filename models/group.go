package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Group is a named topic posts can be assigned to.
type Group struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Slug        string             `bson:"slug" json:"slug"`
	Title       string             `bson:"title" json:"title"`
	Description string             `bson:"description" json:"description"`
}

func (g *Group) String() string {
	return g.Title
}

func (g *Group) Clone() *Group {
	if g == nil {
		return nil
	}
	c := *g
	return &c
}
