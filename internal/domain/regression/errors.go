package regression

import "errors"

// Sentinel kinds for model artifact errors.
var (
	ErrArtifactNotFound = errors.New("model artifact not found")
	ErrInvalidArtifact  = errors.New("invalid model artifact")
	ErrMissingFeature   = errors.New("missing model feature")
)
