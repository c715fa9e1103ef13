// Package location holds the collaborators that sit in front of the tracking
// store: the permission gate and the sources that deliver fixes.
package location

import (
	"context"
	"errors"
	"time"

	"github.com/edge-hybrid/location-tracker/internal/shared/geo"
)

var (
	ErrPermissionDenied = errors.New("location permission denied")
	ErrUnavailable      = errors.New("location unavailable")
)

// Source delivers fixes, either once or as a stream.
type Source interface {
	Current(ctx context.Context, opts CurrentOptions) (geo.Point, error)
	Watch(ctx context.Context, opts WatchOptions) (Subscription, error)
}

// Subscription is a live watch registration. Updates is closed once the
// subscription ends, either through Cancel or because the source ran dry.
type Subscription interface {
	Updates() <-chan Update
	Cancel()
}

// Update carries exactly one of Point or Err.
type Update struct {
	Point geo.Point
	Err   error
}

type WatchOptions struct {
	HighAccuracy bool
	MinDistanceM float64
	MinInterval  time.Duration
}

type CurrentOptions struct {
	HighAccuracy bool
	Timeout      time.Duration
	MaxAge       time.Duration
}

func DefaultWatchOptions() WatchOptions {
	return WatchOptions{
		HighAccuracy: true,
		MinDistanceM: 5,
		MinInterval:  time.Second,
	}
}

func DefaultCurrentOptions() CurrentOptions {
	return CurrentOptions{
		HighAccuracy: true,
		Timeout:      15 * time.Second,
		MaxAge:       10 * time.Second,
	}
}

// throttle drops fixes that are too close in space or time to the last one
// it let through.
type throttle struct {
	opts WatchOptions
	last *geo.Point
}

func newThrottle(opts WatchOptions) *throttle {
	return &throttle{opts: opts}
}

func (t *throttle) allow(p geo.Point) bool {
	if t.last != nil {
		if t.opts.MinDistanceM > 0 && geo.Distance(*t.last, p) < t.opts.MinDistanceM {
			return false
		}
		if t.opts.MinInterval > 0 && p.Timestamp-t.last.Timestamp < t.opts.MinInterval.Milliseconds() {
			return false
		}
	}
	t.last = &p
	return true
}
