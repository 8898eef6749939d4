package handoff

import (
	"strings"
	"testing"
)

func TestBuildScanURL(t *testing.T) {
	tests := []struct {
		name      string
		base      string
		sessionID string
		ownerID   string
		want      string
		wantErr   bool
	}{
		{
			name:      "with owner",
			base:      "https://scribe.example.com",
			sessionID: "s1",
			ownerID:   "dr-lee",
			want:      "https://scribe.example.com/mobile-record?sessionId=s1&userId=dr-lee",
		},
		{
			name:      "without owner",
			base:      "https://scribe.example.com",
			sessionID: "s1",
			want:      "https://scribe.example.com/mobile-record?sessionId=s1",
		},
		{
			name:      "trailing slash trimmed",
			base:      "https://scribe.example.com/",
			sessionID: "s1",
			want:      "https://scribe.example.com/mobile-record?sessionId=s1",
		},
		{
			name:    "missing session id",
			base:    "https://scribe.example.com",
			wantErr: true,
		},
		{
			name:      "relative base rejected",
			base:      "scribe.example.com",
			sessionID: "s1",
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BuildScanURL(tt.base, tt.sessionID, tt.ownerID)
			if (err != nil) != tt.wantErr {
				t.Fatalf("BuildScanURL() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if got != tt.want {
				t.Fatalf("BuildScanURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseScanURLRoundTrip(t *testing.T) {
	built, err := BuildScanURL("https://scribe.example.com", "sess-42", "dr-lee")
	if err != nil {
		t.Fatalf("BuildScanURL() error = %v", err)
	}

	sessionID, ownerID, err := ParseScanURL(built)
	if err != nil {
		t.Fatalf("ParseScanURL() error = %v", err)
	}
	if sessionID != "sess-42" || ownerID != "dr-lee" {
		t.Fatalf("ParseScanURL() = (%q, %q), want (sess-42, dr-lee)", sessionID, ownerID)
	}
}

func TestParseScanURLMissingSession(t *testing.T) {
	_, _, err := ParseScanURL("https://scribe.example.com/mobile-record?userId=dr-lee")
	if err == nil {
		t.Fatal("ParseScanURL() expected error for missing sessionId")
	}
	if !strings.Contains(err.Error(), "sessionId") {
		t.Fatalf("ParseScanURL() error %q should name the missing parameter", err)
	}
}
