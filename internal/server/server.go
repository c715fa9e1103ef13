package server

import (
	"fmt"
	"log/slog"

	"github.com/edge-hybrid/location-tracker/internal/config"
	"github.com/edge-hybrid/location-tracker/internal/location"
	"github.com/edge-hybrid/location-tracker/internal/stream"
	"github.com/edge-hybrid/location-tracker/internal/tracking"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
)

type Server struct {
	App      *fiber.App
	Cfg      config.Config
	Redis    *redis.Client
	Stream   *stream.Hub
	Tracking *tracking.Service

	// nil when fixes are replayed from a file
	Push *location.PushSource
}

// NewServer wires the tracking service to its fix source and the live hub.
// sink may be nil.
func NewServer(cfg config.Config, redisClient *redis.Client, sink tracking.SummarySink, log *slog.Logger) (*Server, error) {
	if log == nil {
		log = slog.Default()
	}

	gate, err := newGate(cfg)
	if err != nil {
		return nil, err
	}

	var (
		source location.Source
		push   *location.PushSource
	)
	if cfg.ReplayFile != "" {
		points, err := location.LoadTrackFile(cfg.ReplayFile)
		if err != nil {
			return nil, fmt.Errorf("load replay track: %w", err)
		}
		log.Info("replaying track", "file", cfg.ReplayFile, "points", len(points), "speed", cfg.ReplaySpeed)
		source = location.NewReplaySource(points, cfg.ReplaySpeed)
	} else {
		push = location.NewPushSource()
		source = push
	}

	hub := stream.NewHub(redisClient, log)
	svc := tracking.NewService(tracking.NewStore(), tracking.Deps{
		Gate:    gate,
		Source:  source,
		Hub:     hub,
		Sink:    sink,
		Logger:  log,
		Watch:   watchOptions(cfg),
		Current: currentOptions(cfg),
	})

	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New())

	s := &Server{
		App:      app,
		Cfg:      cfg,
		Redis:    redisClient,
		Stream:   hub,
		Tracking: svc,
		Push:     push,
	}

	registerRoutes(s)
	return s, nil
}

// Close stops the tracking service before the hub it reports to.
func (s *Server) Close() {
	s.Tracking.Close()
	s.Stream.Close()
}

func newGate(cfg config.Config) (location.Gate, error) {
	status, err := location.ParseStatus(cfg.LocationPermission)
	if err != nil {
		return nil, fmt.Errorf("LOCATION_PERMISSION: %w", err)
	}
	outcome, err := location.ParseStatus(cfg.LocationRequestOutcome)
	if err != nil {
		return nil, fmt.Errorf("LOCATION_REQUEST_OUTCOME: %w", err)
	}
	return location.NewStaticGate(status, outcome), nil
}

// Unset or non-positive values keep the defaults.
func watchOptions(cfg config.Config) location.WatchOptions {
	opts := location.DefaultWatchOptions()
	if cfg.WatchMinDistanceM > 0 {
		opts.MinDistanceM = cfg.WatchMinDistanceM
	}
	if cfg.WatchMinIntervalMS > 0 {
		opts.MinInterval = cfg.WatchMinInterval()
	}
	return opts
}

func currentOptions(cfg config.Config) location.CurrentOptions {
	opts := location.DefaultCurrentOptions()
	if cfg.FixTimeoutMS > 0 {
		opts.Timeout = cfg.FixTimeout()
	}
	if cfg.FixMaxAgeMS > 0 {
		opts.MaxAge = cfg.FixMaxAge()
	}
	return opts
}

func registerRoutes(s *Server) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	tracking.RegisterRoutes(s.App.Group("/tracking"), s.Tracking, s.Push)
	stream.RegisterRoutes(s.App.Group("/stream"), s.Stream)
}
