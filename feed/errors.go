package feed

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when the requested group, author or post does not
// exist.
var ErrNotFound = errors.New("feed: not found")

// ValidationError reports an unusable request parameter.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("feed: invalid %s: %s", e.Field, e.Message)
}
