package docgen

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func sttJSON(transcript string) string {
	return `{"results":{"channels":[{"alternatives":[{"transcript":"` + transcript + `","confidence":0.98}]}]}}`
}

func TestHTTPTranscriber(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/listen" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Token test-key" {
			t.Errorf("authorization = %q", got)
		}
		if got := r.URL.Query().Get("model"); got != "nova-2" {
			t.Errorf("model = %q", got)
		}
		if got := r.Header.Get("Content-Type"); got != "audio/webm" {
			t.Errorf("content type = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(sttJSON("patient reports sensitivity in tooth 30")))
	}))
	defer srv.Close()

	tr := NewHTTPTranscriber(WithAPIKey("test-key"), WithBaseURL(srv.URL))
	got, err := tr.Transcribe(context.Background(), []byte("audio"), "audio/webm")
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if got != "patient reports sensitivity in tooth 30" {
		t.Fatalf("Transcribe() = %q", got)
	}
}

func TestHTTPTranscriberEmptyTranscript(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "no channels", body: `{"results":{"channels":[]}}`},
		{name: "blank transcript", body: sttJSON("   ")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			tr := NewHTTPTranscriber(WithBaseURL(srv.URL))
			_, err := tr.Transcribe(context.Background(), []byte("audio"), "")
			if !errors.Is(err, ErrEmptyTranscript) {
				t.Fatalf("Transcribe() error = %v, want ErrEmptyTranscript", err)
			}
		})
	}
}

func TestHTTPTranscriberRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"err_code":"INVALID_AUDIO","err_msg":"corrupt container"}`))
	}))
	defer srv.Close()

	tr := NewHTTPTranscriber(WithBaseURL(srv.URL))
	_, err := tr.Transcribe(context.Background(), []byte("audio"), "")
	if err == nil || !strings.Contains(err.Error(), "corrupt container") {
		t.Fatalf("Transcribe() error = %v, want provider message surfaced", err)
	}
}

func TestHTTPTranscriberRequiresAudio(t *testing.T) {
	tr := NewHTTPTranscriber()
	if _, err := tr.Transcribe(context.Background(), nil, ""); err == nil {
		t.Fatal("Transcribe() should reject empty audio")
	}
}
