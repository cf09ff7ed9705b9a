package logstore

import "errors"

// Sentinel kinds for log store errors.
var (
	ErrInvalidHeader = errors.New("invalid log header")
	ErrAppend        = errors.New("append log records")
	ErrLoad          = errors.New("load log records")
)
