package service

import "errors"

// Sentinel kinds for application errors.
var (
	ErrNoPrediction = errors.New("no prediction in session")
	ErrNoSession    = errors.New("no session")
	ErrPrediction   = errors.New("prediction failed")
	ErrLogWrite     = errors.New("log write failed")
	ErrNoLogs       = errors.New("no monitoring logs")
)
