package handoff

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"
)

// Status tracks a session through its lifecycle. Removal is terminal and
// implicit: a consumed or swept session is simply gone.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

var (
	// ErrSessionNotFound covers ids never created, already consumed, or evicted.
	ErrSessionNotFound = errors.New("handoff: session not found")
	// ErrSessionExpired marks sessions that aged past the expiry window.
	// Callers treat it the same as ErrSessionNotFound.
	ErrSessionExpired = errors.New("handoff: session expired")
	// ErrSessionNotPending is returned when completing or failing a session
	// that already left the pending state.
	ErrSessionNotPending = errors.New("handoff: session is not pending")
)

// ArtifactRef points at an uploaded recording in blob storage.
type ArtifactRef struct {
	Key         string `json:"key"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// Session coordinates one hand-off attempt between two devices.
type Session struct {
	ID        string       `json:"id"`
	OwnerID   string       `json:"owner_id,omitempty"`
	Status    Status       `json:"status"`
	Artifact  *ArtifactRef `json:"artifact,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// ExpiredAt reports whether the session aged past the expiry window.
// Expiry is measured from creation; a late upload does not extend it.
func (s Session) ExpiredAt(now time.Time, window time.Duration) bool {
	return now.Sub(s.CreatedAt) > window
}

// NewSessionID generates an opaque unique id: the creation instant in
// millisecond base-36 plus a random hex suffix.
func NewSessionID() string {
	suffix := make([]byte, 8)
	if _, err := rand.Read(suffix); err != nil {
		// crypto/rand failing means the platform is broken; fall back to the
		// clock so ids stay usable, if weaker.
		return strconv.FormatInt(time.Now().UnixMilli(), 36) + "-" + strconv.FormatInt(time.Now().UnixNano(), 36)
	}
	return strconv.FormatInt(time.Now().UnixMilli(), 36) + "-" + hex.EncodeToString(suffix)
}

// RecordingKey builds the blob storage key for a session's recording.
func RecordingKey(sessionID, contentType string) string {
	return "recordings/" + sessionID + "." + ExtensionForMIME(contentType)
}

// ExtensionForMIME maps an audio media type to its file extension.
// Unknown types default to webm, the encoding mobile browsers produce.
func ExtensionForMIME(contentType string) string {
	if idx := strings.Index(contentType, ";"); idx >= 0 {
		contentType = contentType[:idx]
	}
	switch strings.ToLower(strings.TrimSpace(contentType)) {
	case "audio/mp4":
		return "mp4"
	case "audio/mpeg":
		return "mp3"
	case "audio/ogg":
		return "ogg"
	case "audio/wav":
		return "wav"
	case "audio/webm":
		return "webm"
	default:
		return "webm"
	}
}
