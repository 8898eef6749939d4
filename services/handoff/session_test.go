package handoff

import (
	"testing"
	"time"
)

func TestNewSessionIDUnique(t *testing.T) {
	const n = 100000
	seen := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		id := NewSessionID()
		if id == "" {
			t.Fatal("NewSessionID() returned empty id")
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("NewSessionID() produced duplicate %q", id)
		}
		seen[id] = struct{}{}
	}
}

func TestExtensionForMIME(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		want        string
	}{
		{name: "webm", contentType: "audio/webm", want: "webm"},
		{name: "mp4", contentType: "audio/mp4", want: "mp4"},
		{name: "mpeg", contentType: "audio/mpeg", want: "mp3"},
		{name: "ogg", contentType: "audio/ogg", want: "ogg"},
		{name: "wav", contentType: "audio/wav", want: "wav"},
		{name: "codec parameters stripped", contentType: "audio/webm;codecs=opus", want: "webm"},
		{name: "case insensitive", contentType: "Audio/MP4", want: "mp4"},
		{name: "unknown defaults to webm", contentType: "application/octet-stream", want: "webm"},
		{name: "empty defaults to webm", contentType: "", want: "webm"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtensionForMIME(tt.contentType); got != tt.want {
				t.Fatalf("ExtensionForMIME(%q) = %q, want %q", tt.contentType, got, tt.want)
			}
		})
	}
}

func TestRecordingKey(t *testing.T) {
	got := RecordingKey("abc123-deadbeef", "audio/mp4")
	want := "recordings/abc123-deadbeef.mp4"
	if got != want {
		t.Fatalf("RecordingKey() = %q, want %q", got, want)
	}
}

func TestSessionExpiredAt(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := Session{ID: "s1", CreatedAt: created}
	window := 10 * time.Minute

	if s.ExpiredAt(created.Add(window), window) {
		t.Fatal("session at exactly the window boundary should not be expired")
	}
	if !s.ExpiredAt(created.Add(window+time.Second), window) {
		t.Fatal("session past the window should be expired")
	}

	// A late upload does not extend the lifetime.
	s.Status = StatusCompleted
	s.UpdatedAt = created.Add(window + time.Minute)
	if !s.ExpiredAt(created.Add(window+2*time.Minute), window) {
		t.Fatal("completion must not extend the expiry window")
	}
}
