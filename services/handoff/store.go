package handoff

import (
	"context"
	"io"
)

// Store is the durable bookkeeping layer for in-flight hand-off sessions.
// Two implementations exist: a Postgres-backed store for multi-tenant
// deployments and a file-backed store for standalone practices.
type Store interface {
	// CreateSession inserts a pending session scoped to ownerID (optional)
	// and returns its id.
	CreateSession(ctx context.Context, ownerID string) (string, error)

	// GetSession returns a live session. Expired sessions report
	// ErrSessionExpired, unknown or consumed ones ErrSessionNotFound.
	GetSession(ctx context.Context, id string) (Session, error)

	// IsReady reports whether the session exists, has not expired, and holds
	// a completed recording. It never fails: lookup errors are logged by the
	// implementation and resolve to false.
	IsReady(ctx context.Context, id, ownerID string) bool

	// GetArtifact consumes the session's artifact reference. Consumption is
	// at-most-once: the first successful call removes the session, later
	// calls return ErrSessionNotFound. Expired sessions, completed or not,
	// return ErrSessionExpired.
	GetArtifact(ctx context.Context, id string) (ArtifactRef, error)

	// MarkCompleted transitions pending -> completed and stores the artifact
	// reference. Sessions outside pending return ErrSessionNotPending.
	MarkCompleted(ctx context.Context, id string, ref ArtifactRef) error

	// MarkError transitions pending -> error. Completed sessions keep their
	// artifact reference until consumed or swept; marking one errored returns
	// ErrSessionNotPending.
	MarkError(ctx context.Context, id string) error

	// SweepExpired evicts every session older than the expiry window and
	// returns the evicted records so callers can release blob storage.
	SweepExpired(ctx context.Context) ([]Session, error)
}

// BlobStore holds recording bytes keyed by ArtifactRef.Key.
type BlobStore interface {
	Put(ctx context.Context, ref ArtifactRef, r io.Reader) error
	Get(ctx context.Context, ref ArtifactRef) ([]byte, error)
	Delete(ctx context.Context, ref ArtifactRef) error
}
