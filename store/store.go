// Package store defines the persistence contracts for posts, groups and users
// and an in-memory implementation of them. The mongostore and pgstore
// packages provide the database backed implementations.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"yatube/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	// ErrNotFound is returned when a post, group or user does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrConflict is returned when a unique field (slug, username, email) is taken.
	ErrConflict = errors.New("store: already exists")
)

// ValidationError reports a field value the store refuses to persist.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("store: invalid %s: %s", e.Field, e.Message)
}

// DefaultMaxTextLength is used when Rules.MaxTextLength is not set.
const DefaultMaxTextLength = 4000

// Rules holds the checks every PostStore applies before writing.
type Rules struct {
	MaxTextLength int
}

// CheckText trims text and verifies it is non-empty and within the length
// limit, counted in characters.
func (r Rules) CheckText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", &ValidationError{Field: "text", Message: "must not be empty"}
	}
	max := r.MaxTextLength
	if max <= 0 {
		max = DefaultMaxTextLength
	}
	if utf8.RuneCountInString(text) > max {
		return "", &ValidationError{Field: "text", Message: fmt.Sprintf("must be at most %d characters", max)}
	}
	return text, nil
}

// PostQuery selects posts for a feed page. Nil fields do not filter.
type PostQuery struct {
	GroupID  *primitive.ObjectID
	AuthorID *primitive.ObjectID
}

func (q PostQuery) Matches(p *models.Post) bool {
	if q.GroupID != nil && !p.InGroup(*q.GroupID) {
		return false
	}
	if q.AuthorID != nil && p.AuthorID != *q.AuthorID {
		return false
	}
	return true
}

// Offset converts a 1-based page number into the number of posts to skip.
func Offset(page, pageSize int) (int64, error) {
	if page < 1 {
		return 0, &ValidationError{Field: "page", Message: "must be a positive number"}
	}
	if pageSize < 1 {
		return 0, &ValidationError{Field: "pageSize", Message: "must be a positive number"}
	}
	return int64(page-1) * int64(pageSize), nil
}

// PostStore persists posts. QueryPage always orders newest first, ties broken
// by descending ID, and returns an empty page (not an error) past the end.
type PostStore interface {
	Create(ctx context.Context, text string, authorID primitive.ObjectID, groupID *primitive.ObjectID) (*models.Post, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Post, error)
	Edit(ctx context.Context, id primitive.ObjectID, text string, groupID *primitive.ObjectID) (*models.Post, error)
	QueryPage(ctx context.Context, q PostQuery, page, pageSize int) ([]*models.Post, int64, error)
}

// GroupStore is read-only for the feed and authoring code; Create is used by
// the admin command line only.
type GroupStore interface {
	GetBySlug(ctx context.Context, slug string) (*models.Group, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Group, error)
	List(ctx context.Context) ([]*models.Group, error)
	Create(ctx context.Context, g *models.Group) error
}

// UserStore is owned by the authentication glue.
type UserStore interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, u *models.User) error
}
