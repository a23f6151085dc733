package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Record is one stored key-value pair.
type Record struct {
	Key       string
	Value     string
	UpdatedAt time.Time
}
