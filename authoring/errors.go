package authoring

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("authoring: post not found")
	ErrUnauthenticated = errors.New("authoring: login required")
	ErrForbidden       = errors.New("authoring: not the author of this post")
)

// ForbiddenError is returned when someone other than the author submits an
// edit. The post is left untouched and the caller should send the editor to
// Redirect.
type ForbiddenError struct {
	PostID   string
	EditorID string
	Redirect string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("authoring: user %s may not edit post %s", e.EditorID, e.PostID)
}

func (e *ForbiddenError) Is(target error) bool {
	return target == ErrForbidden
}
