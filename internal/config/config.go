package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	ServerPort    string `mapstructure:"SERVER_PORT"`
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	AMQPURL       string `mapstructure:"AMQP_URL"`
	LogLevel      string `mapstructure:"LOG_LEVEL"`

	// granted, denied or undetermined; the outcome applies when the status
	// is undetermined and a request is made.
	LocationPermission     string `mapstructure:"LOCATION_PERMISSION"`
	LocationRequestOutcome string `mapstructure:"LOCATION_REQUEST_OUTCOME"`

	WatchMinDistanceM  float64 `mapstructure:"WATCH_MIN_DISTANCE_M"`
	WatchMinIntervalMS int     `mapstructure:"WATCH_MIN_INTERVAL_MS"`
	FixTimeoutMS       int     `mapstructure:"FIX_TIMEOUT_MS"`
	FixMaxAgeMS        int     `mapstructure:"FIX_MAX_AGE_MS"`

	// When set, fixes are replayed from this GPX or FIT file instead of
	// being pushed by clients.
	ReplayFile  string  `mapstructure:"REPLAY_FILE"`
	ReplaySpeed float64 `mapstructure:"REPLAY_SPEED"`
}

func (c Config) WatchMinInterval() time.Duration {
	return time.Duration(c.WatchMinIntervalMS) * time.Millisecond
}

func (c Config) FixTimeout() time.Duration {
	return time.Duration(c.FixTimeoutMS) * time.Millisecond
}

func (c Config) FixMaxAge() time.Duration {
	return time.Duration(c.FixMaxAgeMS) * time.Millisecond
}

func Load() Config {
	return LoadFrom(".env")
}

// LoadFrom reads envFile (if present) into the process environment without
// overriding variables that are already set, then resolves the config.
func LoadFrom(envFile string) Config {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("could not load env file", "file", envFile, "error", err)
	}

	viper.AutomaticEnv()
	viper.SetDefault("SERVER_PORT", ":8080")
	viper.SetDefault("REDIS_ADDR", "")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("AMQP_URL", "")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOCATION_PERMISSION", "granted")
	viper.SetDefault("LOCATION_REQUEST_OUTCOME", "denied")
	viper.SetDefault("WATCH_MIN_DISTANCE_M", 5.0)
	viper.SetDefault("WATCH_MIN_INTERVAL_MS", 1000)
	viper.SetDefault("FIX_TIMEOUT_MS", 15000)
	viper.SetDefault("FIX_MAX_AGE_MS", 10000)
	viper.SetDefault("REPLAY_FILE", "")
	viper.SetDefault("REPLAY_SPEED", 1.0)

	var cfg Config
	_ = viper.Unmarshal(&cfg)
	return cfg
}
