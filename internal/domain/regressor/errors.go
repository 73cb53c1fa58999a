package regressor

import "errors"

// Sentinel kinds for regressor errors.
var (
	ErrModelFit       = errors.New("model fit failed")
	ErrUnknownFamily  = errors.New("unknown model family")
	ErrFamilyMismatch = errors.New("handle belongs to another family")
	ErrFeatureWidth   = errors.New("feature width mismatch")
)
