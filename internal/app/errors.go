package app

import (
	"errors"
)

// Sentinel kinds for a run.
var (
	ErrNilPanel = errors.New("no input panel")
)
