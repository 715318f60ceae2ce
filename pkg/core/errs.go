package core

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrTransient   = errors.New("transient provider failure")
	ErrRateLimited = errors.New("rate limited by provider")
	ErrIO          = errors.New("storage failure")
	ErrConfig      = errors.New("invalid configuration")
)

// ProviderError describes a failed call to the market data provider.
// Err is one of ErrTransient or ErrRateLimited, possibly wrapping the cause.
type ProviderError struct {
	Op         string
	Key        string
	RetryAfter time.Duration
	Err        error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// StorageError wraps every failure of a StateStorage backend so callers can
// match it with errors.Is(err, ErrIO)
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrIO }

// ErrorKind returns a short label for metrics and logs
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrTransient):
		return "transient"
	case errors.Is(err, ErrIO):
		return "io"
	case errors.Is(err, ErrConfig):
		return "config"
	default:
		return "unknown"
	}
}
