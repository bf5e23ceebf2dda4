package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type AppConfig struct {
	ListenAddr string

	RedisURL    string
	DatabaseURL string

	GameTTL       time.Duration
	SweepInterval time.Duration
	LockTTL       time.Duration
	LockWait      time.Duration

	MessageOverrideDir string
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		ListenAddr:    ":8080",
		GameTTL:       72 * time.Hour,
		SweepInterval: 5 * time.Minute,
		LockTTL:       15 * time.Second,
		LockWait:      3 * time.Second,
	}

	if v := strings.TrimSpace(os.Getenv("LISTEN_ADDR")); v != "" {
		cfg.ListenAddr = v
	}
	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	cfg.MessageOverrideDir = strings.TrimSpace(os.Getenv("MESSAGE_DIR"))

	var err error
	if cfg.GameTTL, err = durationEnv("GAME_TTL", cfg.GameTTL); err != nil {
		return nil, err
	}
	if cfg.SweepInterval, err = durationEnv("SWEEP_INTERVAL", cfg.SweepInterval); err != nil {
		return nil, err
	}
	if cfg.LockTTL, err = durationEnv("LOCK_TTL", cfg.LockTTL); err != nil {
		return nil, err
	}
	if cfg.LockWait, err = durationEnv("LOCK_WAIT", cfg.LockWait); err != nil {
		return nil, err
	}

	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}

	return cfg, nil
}

// durationEnv reads key as a Go duration, accepting a bare integer as
// seconds for compatibility with older deployments.
func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	if n, err := strconv.Atoi(v); err == nil {
		if n <= 0 {
			return 0, errors.New(key + " must be positive")
		}
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, errors.New(key + " is not a valid duration")
	}
	if d <= 0 {
		return 0, errors.New(key + " must be positive")
	}
	return d, nil
}
