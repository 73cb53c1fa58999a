package source

import "errors"

// Sentinel kinds for panel reading errors.
var (
	ErrEmptyTable        = errors.New("table has no data rows")
	ErrMissingColumn     = errors.New("column not found")
	ErrBadValue          = errors.New("unparseable value")
	ErrUnsupportedFormat = errors.New("unsupported input format")
)
