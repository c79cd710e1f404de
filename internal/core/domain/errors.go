package domain

import "errors"

// ErrNotFound is returned by repositories when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrUnknownReference is returned by repositories when a write points at a
// record that does not exist, e.g. a farm with an unknown farmer.
var ErrUnknownReference = errors.New("unknown reference")
