package conformal

import "errors"

// Sentinel kinds for calibration.
var (
	// ErrDegenerateCalibration flags a coverage search that stopped at its
	// ceiling. It is informational: the fold proceeds with the ceiling.
	ErrDegenerateCalibration = errors.New("coverage search hit lambda ceiling")
	ErrInvalidCoverage       = errors.New("target coverage must be in (0,1)")
	ErrLengthMismatch        = errors.New("calibration vectors differ in length")
)
