package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/edge-hybrid/location-tracker/internal/location"
	"github.com/edge-hybrid/location-tracker/internal/shared/geo"
	"github.com/edge-hybrid/location-tracker/internal/stream"
)

// LiveTopic is the hub topic live viewers subscribe to. It stays the same
// across sessions; messages carry the session id.
const LiveTopic = "live"

// SummarySink receives the summary of every finished session.
type SummarySink interface {
	PublishSummary(ctx context.Context, summary Summary) error
}

type Deps struct {
	Gate    location.Gate
	Source  location.Source
	Hub     *stream.Hub
	Sink    SummarySink
	Logger  *slog.Logger
	Watch   location.WatchOptions
	Current location.CurrentOptions
}

// Service drives the session lifecycle: it asks for permission, wires the
// fix stream into the store and reports what happened to live viewers.
type Service struct {
	store       *Store
	gate        location.Gate
	source      location.Source
	hub         *stream.Hub
	sink        SummarySink
	logger      *slog.Logger
	watchOpts   location.WatchOptions
	currentOpts location.CurrentOptions

	mu        sync.Mutex
	sub       location.Subscription
	stopWatch context.CancelFunc
	pumpDone  chan struct{}

	feed      *Subscriber
	feedDone  chan struct{}
	closeOnce sync.Once
}

func NewService(store *Store, deps Deps) *Service {
	s := &Service{
		store:       store,
		gate:        deps.Gate,
		source:      deps.Source,
		hub:         deps.Hub,
		sink:        deps.Sink,
		logger:      deps.Logger,
		watchOpts:   deps.Watch,
		currentOpts: deps.Current,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.currentOpts == (location.CurrentOptions{}) {
		s.currentOpts = location.DefaultCurrentOptions()
	}
	if s.hub != nil {
		s.feed = store.Subscribe()
		s.feedDone = make(chan struct{})
		go s.forward()
	}
	return s
}

func (s *Service) Snapshot() State {
	return s.store.Snapshot()
}

func (s *Service) Summary() Summary {
	return Summarize(s.store.Snapshot())
}

// Locate returns a single fix, typically used to centre a map before a
// session starts. It does not touch the session.
func (s *Service) Locate(ctx context.Context) (geo.Point, error) {
	if err := s.authorize(ctx); err != nil {
		return geo.Point{}, err
	}

	p, err := s.source.Current(ctx, s.currentOpts)
	if err != nil {
		s.notice(Notice{
			Kind:    NoticeLocationError,
			Title:   "Error",
			Message: "Could not get your current location",
		}, err)
		if !errors.Is(err, location.ErrUnavailable) {
			err = fmt.Errorf("%w: %v", location.ErrUnavailable, err)
		}
		return geo.Point{}, err
	}
	return p, nil
}

// StartTracking begins a new session and starts feeding it from the fix
// source. A session already in progress is discarded. When permission is
// denied nothing changes.
func (s *Service) StartTracking(ctx context.Context) (State, error) {
	if err := s.authorize(ctx); err != nil {
		return State{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelWatchLocked()

	watchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	sub, err := s.source.Watch(watchCtx, s.watchOpts)
	if err != nil {
		cancel()
		s.notice(Notice{
			Kind:    NoticeLocationError,
			Title:   "Error",
			Message: "Could not start location updates",
		}, err)
		return State{}, fmt.Errorf("watch location: %w", err)
	}

	state := s.store.Start()
	done := make(chan struct{})
	s.sub, s.stopWatch, s.pumpDone = sub, cancel, done
	go s.pump(sub, done)

	s.logger.Info("tracking started", "session_id", state.SessionID)
	return state, nil
}

// StopTracking freezes the session, ends the fix subscription and returns
// the summary of the frozen snapshot. Fixes still in flight are dropped by
// the store because the session is no longer active. Only the stop that
// ends a session publishes its summary.
func (s *Service) StopTracking(ctx context.Context) Summary {
	s.mu.Lock()
	state, stopped := s.store.Stop()
	s.cancelWatchLocked()
	s.mu.Unlock()

	summary := Summarize(state)
	if !stopped {
		return summary
	}
	s.logger.Info("tracking stopped",
		"session_id", summary.SessionID,
		"points", summary.PointCount,
		"distance_m", summary.DistanceM,
		"duration_sec", summary.DurationSec,
	)

	if s.sink != nil {
		if err := s.sink.PublishSummary(ctx, summary); err != nil {
			s.logger.Error("publish summary failed", "session_id", summary.SessionID, "error", err)
		}
	}
	s.broadcast("summary", summary)
	return summary
}

// Close ends any running subscription and stops forwarding to the hub.
func (s *Service) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.cancelWatchLocked()
		s.mu.Unlock()

		if s.feed != nil {
			s.store.Unsubscribe(s.feed)
			<-s.feedDone
		}
	})
}

func (s *Service) authorize(ctx context.Context) error {
	if err := location.Authorize(ctx, s.gate); err != nil {
		s.notice(Notice{
			Kind:    NoticePermissionDenied,
			Title:   "Permission needed",
			Message: "We need your location to track your workout route.",
		}, err)
		return err
	}
	return nil
}

func (s *Service) cancelWatchLocked() {
	if s.sub == nil {
		return
	}
	s.sub.Cancel()
	s.stopWatch()
	<-s.pumpDone
	s.sub, s.stopWatch, s.pumpDone = nil, nil, nil
}

func (s *Service) pump(sub location.Subscription, done chan<- struct{}) {
	defer close(done)

	for u := range sub.Updates() {
		if u.Err != nil {
			s.notice(Notice{Kind: NoticeFixError, Title: "GPS error", Message: u.Err.Error()}, u.Err)
			continue
		}
		if !s.store.AddPoint(u.Point) {
			s.logger.Debug("fix ignored", "lat", u.Point.Lat, "lng", u.Point.Lng, "at", u.Point.Time())
		}
	}
}

func (s *Service) forward() {
	defer close(s.feedDone)
	for state := range s.feed.C {
		s.broadcast("progress", progressOf(state))
	}
}

func (s *Service) notice(n Notice, cause error) {
	s.logger.Warn(n.Message, "kind", n.Kind, "error", cause)
	s.broadcast("notice", n)
}

func (s *Service) broadcast(kind string, data any) {
	if s.hub == nil {
		return
	}
	payload, err := json.Marshal(Message{Type: kind, Data: data})
	if err != nil {
		s.logger.Error("encode live message failed", "type", kind, "error", err)
		return
	}
	s.hub.Broadcast(LiveTopic, payload)
}
