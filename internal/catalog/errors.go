package catalog

import "errors"

// ErrNotFound indicates the requested module does not exist.
var ErrNotFound = errors.New("module not found")
