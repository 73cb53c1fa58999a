package cli

import (
	"errors"
)

// Sentinel kinds for command errors.
var (
	ErrNoInput  = errors.New("no input panel configured (use --input or QRF_INPUT)")
	ErrNoConfig = errors.New("configuration not loaded")
)
