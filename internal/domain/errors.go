package domain

import "errors"

// ErrNotFound marks a read against a key the store has never seen.
var ErrNotFound = errors.New("not found")
