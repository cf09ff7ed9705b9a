package feedback

import "errors"

// Sentinel kinds for feedback domain errors.
var (
	ErrInvalidOrder    = errors.New("invalid order")
	ErrInvalidFeedback = errors.New("invalid feedback")
)
