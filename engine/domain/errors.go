package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across the pipeline.
var (
	ErrVehicleNotFound = errors.New("vehicle channel not found")
	ErrChannelNotFound = errors.New("channel not found")
	ErrNoContent       = errors.New("empty response content")
)

// ConfigError marks missing or malformed per-channel endpoint configuration.
// It is fatal for the owning task and never retried.
type ConfigError struct {
	ChannelID int64
	Field     string
	Reason    string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("channel %d config: %s: %s", e.ChannelID, e.Field, e.Reason)
}

// NewConfigError creates a ConfigError.
func NewConfigError(channelID int64, field, reason string) *ConfigError {
	return &ConfigError{ChannelID: channelID, Field: field, Reason: reason}
}

// IsConfigError reports whether err is (or wraps) a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// FetchError marks a failed upstream page or detail request. Callers recover
// locally: pages are skipped, details leave the draft body empty.
type FetchError struct {
	URL    string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: http %d", e.URL, e.Status)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// PersistError marks a failed store write. For a crawl batch the whole batch
// rolls back and the error fails the job; for per-comment classification the
// comment is marked failed and the batch continues.
type PersistError struct {
	Op  string
	Err error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Op, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }
