package location

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/edge-hybrid/location-tracker/internal/shared/geo"
)

const watchBuffer = 64

// PushSource is fed by clients reporting their own fixes. Every watcher gets
// its own throttle; a watcher that falls behind loses fixes rather than
// blocking the pusher.
type PushSource struct {
	mu       sync.Mutex
	last     *geo.Point
	lastAt   time.Time
	watchers map[*pushWatch]struct{}
	waiters  map[chan geo.Point]struct{}
	now      func() time.Time
}

func NewPushSource() *PushSource {
	return &PushSource{
		watchers: map[*pushWatch]struct{}{},
		waiters:  map[chan geo.Point]struct{}{},
		now:      time.Now,
	}
}

func (s *PushSource) Push(p geo.Point) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.last = &p
	s.lastAt = s.now()

	for w := range s.waiters {
		w <- p
		delete(s.waiters, w)
	}
	for w := range s.watchers {
		if !w.throttle.allow(p) {
			continue
		}
		select {
		case w.ch <- Update{Point: p}:
		default:
		}
	}
}

// PushError forwards a client-side fix failure to every watcher.
func (s *PushSource) PushError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for w := range s.watchers {
		select {
		case w.ch <- Update{Err: err}:
		default:
		}
	}
}

func (s *PushSource) Current(ctx context.Context, opts CurrentOptions) (geo.Point, error) {
	s.mu.Lock()
	if s.last != nil && s.now().Sub(s.lastAt) <= opts.MaxAge {
		p := *s.last
		s.mu.Unlock()
		return p, nil
	}
	waiter := make(chan geo.Point, 1)
	s.waiters[waiter] = struct{}{}
	s.mu.Unlock()

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	select {
	case p := <-waiter:
		return p, nil
	case <-ctx.Done():
		s.mu.Lock()
		delete(s.waiters, waiter)
		s.mu.Unlock()
		// a push may have landed between the timeout and the delete
		select {
		case p := <-waiter:
			return p, nil
		default:
		}
		return geo.Point{}, fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
	}
}

func (s *PushSource) Watch(ctx context.Context, opts WatchOptions) (Subscription, error) {
	w := &pushWatch{
		src:      s,
		ch:       make(chan Update, watchBuffer),
		throttle: newThrottle(opts),
	}

	s.mu.Lock()
	s.watchers[w] = struct{}{}
	s.mu.Unlock()

	context.AfterFunc(ctx, w.Cancel)
	return w, nil
}

type pushWatch struct {
	src      *PushSource
	ch       chan Update
	throttle *throttle
	once     sync.Once
}

func (w *pushWatch) Updates() <-chan Update {
	return w.ch
}

func (w *pushWatch) Cancel() {
	w.once.Do(func() {
		w.src.mu.Lock()
		defer w.src.mu.Unlock()
		delete(w.src.watchers, w)
		close(w.ch)
	})
}
