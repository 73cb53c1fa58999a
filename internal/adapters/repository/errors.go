package repository

import "errors"

// Sentinel kinds for result store errors.
var (
	ErrDuplicateEntity = errors.New("entity already merged")
	ErrNotFound        = errors.New("entity not found")
)
