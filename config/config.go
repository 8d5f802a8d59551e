package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/bellapacxx/bingo-engine/game"
	"github.com/bellapacxx/bingo-engine/utils/logger"
)

// Config is the process configuration, read from .env / environment.
type Config struct {
	Port          string
	DatabaseURL   string
	AllowedOrigin string
	LogLevel      string

	SessionCapacity   int
	DrawInterval      time.Duration
	StartPolicy       game.StartPolicy
	IdleGrace         time.Duration
	FinishedRetention time.Duration
}

// Load reads the .env file (if present) and the environment. DATABASE_URL is
// the only required setting; everything else has defaults.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		logger.Infof("[Config] no .env file, reading environment")
	}

	cfg := Config{
		Port:              getenv("PORT", "4000"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		AllowedOrigin:     getenv("ALLOWED_ORIGIN", "http://localhost:3000"),
		LogLevel:          getenv("LOG_LEVEL", "info"),
		SessionCapacity:   getenvInt("SESSION_CAPACITY", 10),
		DrawInterval:      getenvDuration("DRAW_INTERVAL", game.DefaultDrawInterval),
		StartPolicy:       game.StartPolicy(getenv("START_POLICY", string(game.StartAuto))),
		IdleGrace:         getenvDuration("IDLE_GRACE", 2*time.Minute),
		FinishedRetention: getenvDuration("FINISHED_RETENTION", 30*time.Second),
	}

	if cfg.DatabaseURL == "" {
		logger.Fatalf("[Config] DATABASE_URL is required in .env or environment")
	}
	if cfg.StartPolicy != game.StartAuto && cfg.StartPolicy != game.StartManual {
		logger.Fatalf("[Config] invalid START_POLICY %q (want auto or manual)", cfg.StartPolicy)
	}
	return cfg
}

// SessionConfig maps the process config onto per-session settings.
func (c Config) SessionConfig() game.SessionConfig {
	return game.SessionConfig{
		Capacity:     c.SessionCapacity,
		DrawInterval: c.DrawInterval,
		StartPolicy:  c.StartPolicy,
	}
}

// RegistryConfig maps the process config onto registry settings.
func (c Config) RegistryConfig() game.RegistryConfig {
	return game.RegistryConfig{
		Session:           c.SessionConfig(),
		IdleGrace:         c.IdleGrace,
		FinishedRetention: c.FinishedRetention,
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		logger.Fatalf("[Config] %s: invalid integer %q", key, v)
	}
	return n
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		logger.Fatalf("[Config] %s: invalid duration %q", key, v)
	}
	return d
}
