package location

import (
	"context"
	"time"

	"github.com/edge-hybrid/location-tracker/internal/shared/geo"
)

// ReplaySource plays back a recorded track. Speed scales the gaps between
// fix timestamps; zero delivers the whole track without pausing.
type ReplaySource struct {
	points []geo.Point
	speed  float64
}

func NewReplaySource(points []geo.Point, speed float64) *ReplaySource {
	return &ReplaySource{points: points, speed: speed}
}

func (r *ReplaySource) Current(_ context.Context, _ CurrentOptions) (geo.Point, error) {
	if len(r.points) == 0 {
		return geo.Point{}, ErrUnavailable
	}
	return r.points[0], nil
}

func (r *ReplaySource) Watch(ctx context.Context, opts WatchOptions) (Subscription, error) {
	if len(r.points) == 0 {
		return nil, ErrUnavailable
	}

	ctx, cancel := context.WithCancel(ctx)
	sub := &replaySub{
		ch:     make(chan Update, watchBuffer),
		cancel: cancel,
	}
	go sub.run(ctx, r.points, r.speed, newThrottle(opts))
	return sub, nil
}

type replaySub struct {
	ch     chan Update
	cancel context.CancelFunc
}

func (s *replaySub) Updates() <-chan Update {
	return s.ch
}

func (s *replaySub) Cancel() {
	s.cancel()
}

func (s *replaySub) run(ctx context.Context, points []geo.Point, speed float64, th *throttle) {
	defer close(s.ch)

	for i, p := range points {
		if i > 0 && speed > 0 {
			gap := time.Duration(float64(p.Timestamp-points[i-1].Timestamp)/speed) * time.Millisecond
			if gap > 0 {
				timer := time.NewTimer(gap)
				select {
				case <-ctx.Done():
					timer.Stop()
					return
				case <-timer.C:
				}
			}
		}

		if !th.allow(p) {
			continue
		}
		select {
		case s.ch <- Update{Point: p}:
		case <-ctx.Done():
			return
		}
	}
}
