package worker

import "errors"

// ErrPanic wraps a panic recovered while processing an entity.
var ErrPanic = errors.New("entity task panicked")
