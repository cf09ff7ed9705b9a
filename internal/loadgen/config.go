// Package loadgen drives simulated customer sessions against a running
// prediction surface and checks the monitoring surface saw every row.
package loadgen

import (
	"errors"
	"fmt"
	"time"
)

// Error constants.
var (
	ErrUnhealthy    = errors.New("service unhealthy")
	ErrVerification = errors.New("row count verification failed")
	ErrBadConfig    = errors.New("invalid load generator config")
)

// Config holds configuration for one seeding run.
type Config struct {
	BaseURL     string        // prediction surface base URL
	MonitorURL  string        // monitoring surface base URL; empty skips verification
	Submissions int           // number of predict+feedback sessions
	Workers     int           // concurrent sessions
	Timeout     time.Duration // per request
	Verbose     bool
}

// Stats holds run statistics.
type Stats struct {
	Submitted   int
	Successful  int
	Failed      int
	RowsBefore  int
	RowsAfter   int
	Verified    bool
	StartTime   time.Time
	Duration    time.Duration
	MeanLatency time.Duration
}

func (c *Config) validate() error {
	switch {
	case c.BaseURL == "":
		return fmt.Errorf("%w: base url is required", ErrBadConfig)
	case c.Submissions <= 0:
		return fmt.Errorf("%w: submissions must be positive", ErrBadConfig)
	case c.Workers <= 0:
		return fmt.Errorf("%w: workers must be positive", ErrBadConfig)
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	return nil
}
