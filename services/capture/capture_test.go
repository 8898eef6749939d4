package capture

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFileDeviceErrorMapping(t *testing.T) {
	dir := t.TempDir()

	locked := filepath.Join(dir, "locked.wav")
	if err := os.WriteFile(locked, []byte("audio"), 0o000); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		path    string
		wantErr error
	}{
		{name: "empty path", path: "", wantErr: ErrDeviceUnavailable},
		{name: "missing file", path: filepath.Join(dir, "absent.wav"), wantErr: ErrDeviceUnavailable},
		{name: "permission denied", path: locked, wantErr: ErrPermissionDenied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.name == "permission denied" && os.Geteuid() == 0 {
				t.Skip("root bypasses file permissions")
			}
			_, _, err := FileDevice{Path: tt.path}.Open(context.Background())
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Open() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestFileDeviceDefaultContentType(t *testing.T) {
	path := filepath.Join(t.TempDir(), "note.wav")
	if err := os.WriteFile(path, []byte("audio"), 0o600); err != nil {
		t.Fatal(err)
	}

	rc, contentType, err := FileDevice{Path: path}.Open(context.Background())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	rc.Close()
	if contentType != "audio/wav" {
		t.Fatalf("content type = %q, want audio/wav", contentType)
	}
}

func TestCaptureMinSizeGate(t *testing.T) {
	dir := t.TempDir()

	small := filepath.Join(dir, "small.webm")
	if err := os.WriteFile(small, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	big := filepath.Join(dir, "big.webm")
	payload := bytes.Repeat([]byte("a"), 2048)
	if err := os.WriteFile(big, payload, 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := Capture(context.Background(), FileDevice{Path: small}, 1024); !errors.Is(err, ErrEmptyCapture) {
		t.Fatalf("Capture(small) error = %v, want ErrEmptyCapture", err)
	}

	rec, err := Capture(context.Background(), FileDevice{Path: big, ContentType: "audio/webm"}, 1024)
	if err != nil {
		t.Fatalf("Capture(big) error = %v", err)
	}
	if !bytes.Equal(rec.Bytes, payload) {
		t.Fatal("Capture() returned different bytes than the device produced")
	}
	if rec.ContentType != "audio/webm" {
		t.Fatalf("ContentType = %q, want audio/webm", rec.ContentType)
	}
}

func TestCaptureNilDevice(t *testing.T) {
	if _, err := Capture(context.Background(), nil, 0); !errors.Is(err, ErrDeviceUnavailable) {
		t.Fatalf("Capture(nil) error = %v, want ErrDeviceUnavailable", err)
	}
}
