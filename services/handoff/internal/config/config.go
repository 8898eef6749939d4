package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"scribed/services/handoff"
)

func Load() (Config, error) {
	cfg := Config{}

	cfg.Server.ListenAddr = getEnv("HANDOFF_LISTEN_ADDR", ":8080")
	cfg.Server.PublicBase = getEnv("HANDOFF_PUBLIC_BASE", "http://localhost:8080")
	if _, err := url.Parse(cfg.Server.PublicBase); err != nil {
		return Config{}, fmt.Errorf("invalid HANDOFF_PUBLIC_BASE: %w", err)
	}

	cfg.Store.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.Store.DataDir = getEnv("HANDOFF_DATA_DIR", "/var/lib/scribed")
	cfg.Store.S3Bucket = os.Getenv("S3_BUCKET")
	if cfg.Store.DatabaseURL != "" && cfg.Store.S3Bucket == "" {
		return Config{}, fmt.Errorf("S3_BUCKET is required when DATABASE_URL is set")
	}

	var err error
	cfg.Handoff.ExpiryWindow, err = getEnvDuration("HANDOFF_EXPIRY_WINDOW", handoff.DefaultExpiryWindow)
	if err != nil {
		return Config{}, err
	}
	if cfg.Handoff.ExpiryWindow <= 0 {
		return Config{}, fmt.Errorf("HANDOFF_EXPIRY_WINDOW must be positive")
	}
	cfg.Handoff.PollInterval, err = getEnvDuration("HANDOFF_POLL_INTERVAL", handoff.DefaultPollInterval)
	if err != nil {
		return Config{}, err
	}
	if cfg.Handoff.PollInterval <= 0 {
		return Config{}, fmt.Errorf("HANDOFF_POLL_INTERVAL must be positive")
	}
	cfg.Handoff.MaxPolls = getEnvInt("HANDOFF_MAX_POLLS", handoff.DefaultMaxPolls)
	if cfg.Handoff.MaxPolls <= 0 {
		return Config{}, fmt.Errorf("HANDOFF_MAX_POLLS must be positive")
	}
	cfg.Handoff.SweepInterval, err = getEnvDuration("HANDOFF_SWEEP_INTERVAL", handoff.DefaultSweepInterval)
	if err != nil {
		return Config{}, err
	}
	if cfg.Handoff.SweepInterval <= 0 {
		return Config{}, fmt.Errorf("HANDOFF_SWEEP_INTERVAL must be positive")
	}
	minBytes := getEnvInt("HANDOFF_MIN_UPLOAD_BYTES", int(handoff.DefaultMinUploadBytes))
	if minBytes < 0 {
		return Config{}, fmt.Errorf("HANDOFF_MIN_UPLOAD_BYTES must not be negative")
	}
	cfg.Handoff.MinUploadBytes = int64(minBytes)

	cfg.Bus.URL = os.Getenv("NATS_URL")

	cfg.STT.APIKey = os.Getenv("STT_API_KEY")
	cfg.STT.BaseURL = os.Getenv("STT_BASE_URL")
	cfg.STT.Model = os.Getenv("STT_MODEL")

	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		if secs, serr := strconv.Atoi(v); serr == nil && secs > 0 {
			return time.Duration(secs) * time.Second, nil
		}
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return d, nil
}
