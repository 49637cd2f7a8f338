package config

import (
	"fmt"
	"locker-reservation-service/internal/services"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config is read from the environment (optionally seeded from .env).
type Config struct {
	DBDriver    string `envconfig:"DB_DRIVER" default:"sqlite"`
	DatabaseURL string `envconfig:"DATABASE_URL"`
	DBPath      string `envconfig:"DB_PATH" default:"data/app.db"`
	SeedPath    string `envconfig:"SEED_PATH" default:"data/seeds/lockers.json"`
	Port        string `envconfig:"PORT" default:"8080"`

	ReservationWindow    time.Duration `envconfig:"RESERVATION_WINDOW" default:"30m"`
	MaxReservationWindow time.Duration `envconfig:"MAX_RESERVATION_WINDOW" default:"4h"`
	PickupWindow         time.Duration `envconfig:"PICKUP_WINDOW" default:"72h"`
	ReclaimInterval      time.Duration `envconfig:"RECLAIM_INTERVAL" default:"1m"`
	ReclaimBatchSize     int           `envconfig:"RECLAIM_BATCH_SIZE" default:"100"`

	AllowLargerSlots   bool    `envconfig:"ALLOW_LARGER_SLOTS" default:"false"`
	NearbyFallback     bool    `envconfig:"NEARBY_FALLBACK" default:"false"`
	NearbyRadiusMeters float64 `envconfig:"NEARBY_RADIUS_METERS" default:"2000"`

	RedisAddr           string        `envconfig:"REDIS_ADDR"`
	PickupMaxFailures   int           `envconfig:"PICKUP_MAX_FAILURES" default:"5"`
	PickupFailureWindow time.Duration `envconfig:"PICKUP_FAILURE_WINDOW" default:"15m"`

	RabbitURL      string `envconfig:"RABBIT_URL"`
	EventsExchange string `envconfig:"EVENTS_EXCHANGE" default:"locker.events"`

	// Seeded locations without coordinates are geocoded when a key is set.
	ORSAPIKey  string `envconfig:"ORS_API_KEY"`
	ORSBaseURL string `envconfig:"ORS_BASE_URL" default:"https://api.openrouteservice.org"`
}

func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch strings.ToLower(c.DBDriver) {
	case "postgres", "pgx":
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return fmt.Errorf("DATABASE_URL is required for driver %q", c.DBDriver)
		}
	case "sqlite", "sqlite3":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}

	if c.ReservationWindow <= 0 || c.MaxReservationWindow < c.ReservationWindow {
		return fmt.Errorf("RESERVATION_WINDOW %s must be positive and not above MAX_RESERVATION_WINDOW %s",
			c.ReservationWindow, c.MaxReservationWindow)
	}
	if c.PickupWindow <= 0 {
		return fmt.Errorf("PICKUP_WINDOW must be positive")
	}
	if c.ReclaimInterval <= 0 {
		return fmt.Errorf("RECLAIM_INTERVAL must be positive")
	}
	return nil
}

// Policy maps the allocation and expiry settings onto the service policy.
func (c Config) Policy() services.Policy {
	p := services.DefaultPolicy()
	p.AllowLargerSlots = c.AllowLargerSlots
	p.NearbyFallback = c.NearbyFallback
	p.NearbyRadiusMeters = c.NearbyRadiusMeters
	p.DefaultReservationWindow = c.ReservationWindow
	p.MaxReservationWindow = c.MaxReservationWindow
	p.PickupWindow = c.PickupWindow
	p.ReclaimBatchSize = c.ReclaimBatchSize
	return p
}
