package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
)

var (
	// ErrPermissionDenied means access to the capture device was refused.
	// User-correctable; not retried automatically.
	ErrPermissionDenied = errors.New("capture: device access denied")
	// ErrDeviceUnavailable means no capture device exists on this host.
	ErrDeviceUnavailable = errors.New("capture: no capture device available")
	// ErrEmptyCapture flags recordings below the minimum usable size, even
	// when the transport upload would succeed.
	ErrEmptyCapture = errors.New("capture: recording contains no usable audio")
)

// DefaultMinBytes is the smallest recording accepted as usable audio.
const DefaultMinBytes = 1024

// Device yields encoded audio. The default implementation drains a device
// node or file; tests substitute in-memory devices.
type Device interface {
	// Open acquires the device, mapping permission and existence failures to
	// ErrPermissionDenied and ErrDeviceUnavailable.
	Open(ctx context.Context) (io.ReadCloser, string, error)
}

// FileDevice captures from a device node or pre-encoded audio file.
type FileDevice struct {
	// Path to the device node or file.
	Path string
	// ContentType of the produced audio; defaults to audio/wav.
	ContentType string
}

// Open implements Device.
func (d FileDevice) Open(_ context.Context) (io.ReadCloser, string, error) {
	if d.Path == "" {
		return nil, "", ErrDeviceUnavailable
	}

	f, err := os.Open(d.Path)
	switch {
	case errors.Is(err, os.ErrPermission):
		return nil, "", fmt.Errorf("%w: %s", ErrPermissionDenied, d.Path)
	case errors.Is(err, os.ErrNotExist):
		return nil, "", fmt.Errorf("%w: %s", ErrDeviceUnavailable, d.Path)
	case err != nil:
		return nil, "", fmt.Errorf("open capture device: %w", err)
	}

	contentType := d.ContentType
	if contentType == "" {
		contentType = "audio/wav"
	}
	return f, contentType, nil
}

// Recording is an in-memory encoded audio buffer.
type Recording struct {
	Bytes       []byte
	ContentType string
}

// Capture acquires the device and reads the full recording into memory.
// Captures below minBytes fail with ErrEmptyCapture; zero or negative
// minBytes applies DefaultMinBytes.
func Capture(ctx context.Context, dev Device, minBytes int64) (Recording, error) {
	if dev == nil {
		return Recording{}, ErrDeviceUnavailable
	}
	if minBytes <= 0 {
		minBytes = DefaultMinBytes
	}

	rc, contentType, err := dev.Open(ctx)
	if err != nil {
		return Recording{}, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return Recording{}, fmt.Errorf("read capture device: %w", err)
	}
	if int64(len(data)) < minBytes {
		return Recording{}, fmt.Errorf("%w: %d bytes", ErrEmptyCapture, len(data))
	}

	return Recording{Bytes: data, ContentType: contentType}, nil
}
