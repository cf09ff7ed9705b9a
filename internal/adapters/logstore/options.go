package logstore

import (
	"time"

	"github.com/okian/brewcast/pkg/logger"
)

// CSVOption applies a configuration option to the CSVStore.
type CSVOption func(*CSVStore)

// WithFileMode sets the permissions of a newly created log file.
func WithFileMode(mode uint32) CSVOption {
	return func(s *CSVStore) {
		if mode != 0 {
			s.mode = mode
		}
	}
}

// WatcherOption applies a configuration option to the Watcher.
type WatcherOption func(*Watcher)

// WithDebounce coalesces bursts of file events.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithWatcherLogger sets a custom logger for the watcher.
func WithWatcherLogger(l logger.Logger) WatcherOption {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}
