package config

import (
	"testing"
	"time"
)

func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		def     time.Duration
		want    time.Duration
		wantErr bool
	}{
		{
			name:  "unset uses default",
			value: "",
			def:   2 * time.Second,
			want:  2 * time.Second,
		},
		{
			name:  "duration string",
			value: "90s",
			want:  90 * time.Second,
		},
		{
			name:  "bare seconds",
			value: "45",
			want:  45 * time.Second,
		},
		{
			name:    "garbage",
			value:   "soon",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value != "" {
				t.Setenv("TEST_DURATION", tt.value)
			}
			got, err := getEnvDuration("TEST_DURATION", tt.def)
			if (err != nil) != tt.wantErr {
				t.Fatalf("getEnvDuration() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if got != tt.want {
				t.Fatalf("getEnvDuration() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"HANDOFF_LISTEN_ADDR", "HANDOFF_EXPIRY_WINDOW", "HANDOFF_POLL_INTERVAL",
		"HANDOFF_MAX_POLLS", "DATABASE_URL", "S3_BUCKET",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.ListenAddr != ":8080" {
		t.Fatalf("ListenAddr = %q, want :8080", cfg.Server.ListenAddr)
	}
	if cfg.Handoff.ExpiryWindow != 10*time.Minute {
		t.Fatalf("ExpiryWindow = %v, want 10m", cfg.Handoff.ExpiryWindow)
	}
	if cfg.Handoff.PollInterval != 2*time.Second {
		t.Fatalf("PollInterval = %v, want 2s", cfg.Handoff.PollInterval)
	}
	if cfg.Handoff.MaxPolls != 300 {
		t.Fatalf("MaxPolls = %d, want 300", cfg.Handoff.MaxPolls)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "zero expiry", key: "HANDOFF_EXPIRY_WINDOW", value: "0s"},
		{name: "negative poll interval", key: "HANDOFF_POLL_INTERVAL", value: "-2s"},
		{name: "db without bucket", key: "DATABASE_URL", value: "postgres://localhost/scribed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("S3_BUCKET", "")
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Fatal("Load() expected error, got nil")
			}
		})
	}
}
