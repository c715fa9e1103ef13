package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/edge-hybrid/location-tracker/internal/broker"
	"github.com/edge-hybrid/location-tracker/internal/config"
	"github.com/edge-hybrid/location-tracker/internal/db"
	"github.com/edge-hybrid/location-tracker/internal/logging"
	"github.com/edge-hybrid/location-tracker/internal/server"
	"github.com/edge-hybrid/location-tracker/internal/tracking"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const serviceName = "location-tracker"

var mainDepsProvider = defaultDeps
var mainRunner = realMain

func main() {
	mainRunner(mainDepsProvider())
}

type mainDeps struct {
	loadConfig    func() config.Config
	newLogger     func(config.Config) *slog.Logger
	connectRedis  func(config.Config) *redis.Client
	connectBroker func(config.Config, *slog.Logger) (*broker.Publisher, error)
	notify        func(chan<- os.Signal, ...os.Signal)
	run           func(context.Context, config.Config, Resources, <-chan os.Signal, ListenFunc) error
}

// Resources are the connections Run owns and closes on shutdown.
type Resources struct {
	Logger    *slog.Logger
	Redis     *redis.Client
	Publisher *broker.Publisher
}

func defaultDeps() mainDeps {
	return mainDeps{
		loadConfig:    config.Load,
		newLogger:     newLogger,
		connectRedis:  db.ConnectRedis,
		connectBroker: connectBroker,
		notify:        signal.Notify,
		run:           Run,
	}
}

func newLogger(cfg config.Config) *slog.Logger {
	level, err := logging.ParseLevel(cfg.LogLevel)
	logger := logging.New(os.Stdout, serviceName, level)
	if err != nil {
		logger.Warn("falling back to info level", "error", err)
	}
	return logger
}

func connectBroker(cfg config.Config, logger *slog.Logger) (*broker.Publisher, error) {
	if cfg.AMQPURL == "" {
		return nil, nil
	}
	return broker.NewPublisher(cfg.AMQPURL, logger)
}

func realMain(deps mainDeps) {
	cfg := deps.loadConfig()
	logger := deps.newLogger(cfg)

	rdb := deps.connectRedis(cfg)

	pub, err := deps.connectBroker(cfg, logger)
	if err != nil {
		logger.Error("rabbitmq connection failed, summaries will not be published", "error", err)
	}

	signals := make(chan os.Signal, 1)
	deps.notify(signals, syscall.SIGINT, syscall.SIGTERM)

	res := Resources{Logger: logger, Redis: rdb, Publisher: pub}
	if err := deps.run(context.Background(), cfg, res, signals, nil); err != nil {
		logger.Error("server exited with error", "error", err)
	}
}

type ListenFunc func(app *fiber.App, addr string) error

var defaultListen ListenFunc = func(app *fiber.App, addr string) error {
	return app.Listen(addr)
}

var shutdownFn = func(app *fiber.App, ctx context.Context) error {
	return app.ShutdownWithContext(ctx)
}

// Run starts the HTTP server and waits for termination signals.
func Run(ctx context.Context, cfg config.Config, res Resources, signals <-chan os.Signal, listen ListenFunc) error {
	defer closeResources(res)

	var sink tracking.SummarySink
	if res.Publisher != nil {
		sink = res.Publisher
	}

	srv, err := server.NewServer(cfg, res.Redis, sink, res.Logger)
	if err != nil {
		return err
	}
	defer srv.Close()

	if listen == nil {
		listen = defaultListen
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- listen(srv.App, cfg.ServerPort)
	}()

	select {
	case <-signals:
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return shutdownFn(srv.App, shutdownCtx)
}

func closeResources(res Resources) {
	if res.Publisher != nil {
		_ = res.Publisher.Close()
	}
	if res.Redis != nil {
		_ = res.Redis.Close()
	}
}
