package storage

import "github.com/pkg/errors"

var (
	ErrNotFound = errors.New("not found")

	ErrEpochTooLarge = errors.New("epoch exceeds max tx count")
)
