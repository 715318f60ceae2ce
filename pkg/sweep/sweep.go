// Package sweep implements the two periodic polling tasks of the relay: the
// favorite price sweep and the new pair discovery sweep.
package sweep

import (
	"context"
	"errors"
	"time"

	"github.com/raykavin/dexwatch/pkg/core"
	"github.com/raykavin/dexwatch/pkg/logger"
)

// Task names, also used as metric labels
const (
	TaskFavorites = "favorites"
	TaskDiscovery = "discovery"
)

// Notification kinds
const (
	KindFavorite  = "favorite"
	KindDiscovery = "discovery"
)

// Recorder observes the outcome of every provider call and notification
type Recorder interface {
	NotificationSent(kind string, err error)
	ProviderFailed(op string, err error)
	SetSeenEntries(n int)
}

type noopRecorder struct{}

func (noopRecorder) NotificationSent(string, error) {}
func (noopRecorder) ProviderFailed(string, error)   {}
func (noopRecorder) SetSeenEntries(int)             {}

// Report summarizes one sweep
type Report struct {
	Checked  int // items fetched or returned by the provider
	Notified int // notifications delivered
	Skipped  int // absent or already seen items
	Failed   int // provider, delivery or storage failures
}

type options struct {
	recorder Recorder
	siteURL  string
	delay    time.Duration
	pause    time.Duration
	now      func() time.Time
}

// Option configures a sweep
type Option func(*options)

// WithRecorder reports provider failures and deliveries to recorder
func WithRecorder(recorder Recorder) Option {
	return func(o *options) {
		if recorder != nil {
			o.recorder = recorder
		}
	}
}

// WithSiteURL attaches an "open" button pointing to siteURL on discovery alerts
func WithSiteURL(siteURL string) Option {
	return func(o *options) {
		o.siteURL = siteURL
	}
}

// WithDelay sets the pause between successive provider calls
func WithDelay(delay time.Duration) Option {
	return func(o *options) {
		o.delay = delay
	}
}

// WithRateLimitPause sets the upper bound of the pause after a rate limited call
func WithRateLimitPause(pause time.Duration) Option {
	return func(o *options) {
		o.pause = pause
	}
}

// WithClock overrides the clock stamping seen entries
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func newOptions(opts []Option) options {
	o := options{
		recorder: noopRecorder{},
		pause:    time.Minute,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// wait sleeps for d, it reports false when ctx ended first
func wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func retryAfter(err error) time.Duration {
	var providerErr *core.ProviderError
	if errors.As(err, &providerErr) {
		return providerErr.RetryAfter
	}
	return 0
}

func logProviderError(log logger.Logger, err error, msg string) {
	if errors.Is(err, core.ErrNotFound) {
		log.Debug(msg)
		return
	}
	log.WithError(err).WithField("kind", core.ErrorKind(err)).Warn(msg)
}
