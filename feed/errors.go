package feed

import "errors"

// ErrNotFound is returned when the parent item of a comment page does not exist.
var ErrNotFound = errors.New("item not found")
