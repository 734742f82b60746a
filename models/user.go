package models

import "go.mongodb.org/mongo-driver/bson/primitive"

type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Email        string             `bson:"email" json:"email"`
	PasswordHash *string            `bson:"passwordHash,omitempty" json:"-"`

	CreatedAt int64 `bson:"createdAt" json:"createdAt"`

	// Profile fields
	Username string `bson:"username" json:"username"`
	Name     string `bson:"name" json:"name"`
}

// Ref returns the author reference shown next to the user's posts.
func (u *User) Ref() AuthorRef {
	name := u.Name
	if name == "" {
		name = u.Username
	}
	return AuthorRef{
		ID:       u.ID,
		Username: u.Username,
		Name:     name,
	}
}

// Principal is the identity making a request. The zero value is anonymous.
type Principal struct {
	UserID   primitive.ObjectID
	Username string
}

// Anonymous returns the principal of a request without credentials.
func Anonymous() Principal {
	return Principal{}
}

func (p Principal) IsAnonymous() bool {
	return p.UserID.IsZero()
}
