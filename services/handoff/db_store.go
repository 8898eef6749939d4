package handoff

import (
	"context"
	"errors"
	"io"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"gorm.io/gorm"

	"scribed/pkg/db"
	gos3 "scribed/pkg/s3"
)

// DBStore keeps sessions in Postgres for multi-tenant deployments. Reads on
// the consume path go through pgx so eviction and retrieval are a single
// statement; inserts and status transitions use the ORM.
type DBStore struct {
	pool   *pgxpool.Pool
	orm    *gorm.DB
	window time.Duration
	logger *log.Logger
}

// NewDBStore wires a DBStore over an open pool and ORM handle.
func NewDBStore(pool *pgxpool.Pool, orm *gorm.DB, window time.Duration, logger *log.Logger) (*DBStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	if orm == nil {
		return nil, errors.New("orm is required")
	}
	if window <= 0 {
		return nil, errors.New("expiry window must be positive")
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &DBStore{pool: pool, orm: orm, window: window, logger: logger}, nil
}

func (d *DBStore) cutoff() time.Time {
	return time.Now().UTC().Add(-d.window)
}

// CreateSession implements Store.
func (d *DBStore) CreateSession(ctx context.Context, ownerID string) (string, error) {
	now := time.Now().UTC()
	model := sessionModel{
		ID:        NewSessionID(),
		OwnerID:   ownerID,
		Status:    string(StatusPending),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := d.orm.WithContext(ctx).Create(&model).Error; err != nil {
		return "", err
	}
	return model.ID, nil
}

// GetSession implements Store.
func (d *DBStore) GetSession(ctx context.Context, id string) (Session, error) {
	var model sessionModel
	err := d.orm.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Session{}, ErrSessionNotFound
	}
	if err != nil {
		return Session{}, err
	}

	session := model.toAPI()
	if session.ExpiredAt(time.Now().UTC(), d.window) {
		// The row stays put until the sweep evicts it and releases the blob,
		// so later lookups still see expired rather than not-found.
		return Session{}, ErrSessionExpired
	}
	return session, nil
}

// IsReady implements Store. Query failures are logged and resolve false so
// the polling side can keep going through transient outages.
func (d *DBStore) IsReady(ctx context.Context, id, ownerID string) bool {
	var ready bool
	err := db.Get(ctx, d.pool, &ready, `
        SELECT EXISTS (
            SELECT 1 FROM handoff_sessions
            WHERE id = $1
              AND status = $2
              AND created_at > $3
              AND ($4 = '' OR owner_id = $4)
        )`, id, string(StatusCompleted), d.cutoff(), ownerID)
	if err != nil {
		d.logger.Printf("WARN readiness check for session %s: %v", id, err)
		return false
	}
	return ready
}

// GetArtifact implements Store. The delete-returning statement makes
// consumption atomic: concurrent consumers race on the row and exactly one
// receives the reference.
func (d *DBStore) GetArtifact(ctx context.Context, id string) (ArtifactRef, error) {
	var row struct {
		ArtifactKey string `db:"artifact_key"`
		ContentType string `db:"content_type"`
		SizeBytes   int64  `db:"size_bytes"`
	}
	err := db.Get(ctx, d.pool, &row, `
        DELETE FROM handoff_sessions
        WHERE id = $1 AND status = $2 AND created_at > $3
        RETURNING artifact_key, content_type, size_bytes`,
		id, string(StatusCompleted), d.cutoff())
	if err == nil {
		return ArtifactRef{Key: row.ArtifactKey, ContentType: row.ContentType, Size: row.SizeBytes}, nil
	}

	// No deliverable row: distinguish expired from gone for the caller's
	// error message, both are terminal.
	if _, lookupErr := d.GetSession(ctx, id); errors.Is(lookupErr, ErrSessionExpired) {
		return ArtifactRef{}, ErrSessionExpired
	}
	return ArtifactRef{}, ErrSessionNotFound
}

// MarkCompleted implements Store.
func (d *DBStore) MarkCompleted(ctx context.Context, id string, ref ArtifactRef) error {
	if ref.Key == "" {
		return errors.New("artifact key is required")
	}

	res := d.orm.WithContext(ctx).Model(&sessionModel{}).
		Where("id = ? AND status = ? AND created_at > ?", id, string(StatusPending), d.cutoff()).
		Updates(map[string]any{
			"status":       string(StatusCompleted),
			"artifact_key": ref.Key,
			"content_type": ref.ContentType,
			"size_bytes":   ref.Size,
			"updated_at":   time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return d.classifyMiss(ctx, id)
	}
	return nil
}

// MarkError implements Store.
func (d *DBStore) MarkError(ctx context.Context, id string) error {
	res := d.orm.WithContext(ctx).Model(&sessionModel{}).
		Where("id = ? AND status = ? AND created_at > ?", id, string(StatusPending), d.cutoff()).
		Updates(map[string]any{
			"status":     string(StatusError),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return d.classifyMiss(ctx, id)
	}
	return nil
}

// classifyMiss explains why a guarded update touched no rows.
func (d *DBStore) classifyMiss(ctx context.Context, id string) error {
	session, err := d.GetSession(ctx, id)
	if err != nil {
		return err
	}
	if session.Status != StatusPending {
		return ErrSessionNotPending
	}
	return ErrSessionNotFound
}

// SweepExpired implements Store.
func (d *DBStore) SweepExpired(ctx context.Context) ([]Session, error) {
	var rows []sessionModel
	if err := db.Select(ctx, d.pool, &rows, `
        SELECT id, owner_id, status, artifact_key, content_type, size_bytes, created_at, updated_at
        FROM handoff_sessions
        WHERE created_at <= $1`, d.cutoff()); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(rows))
	evicted := make([]Session, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
		evicted = append(evicted, row.toAPI())
	}

	if err := d.orm.WithContext(ctx).Delete(&sessionModel{}, "id IN ?", ids).Error; err != nil {
		return nil, err
	}
	return evicted, nil
}

// S3BlobStore keeps recording blobs in an S3 bucket.
type S3BlobStore struct {
	client *gos3.Client
	bucket string
}

// NewS3BlobStore wires an S3BlobStore over the shared S3 client.
func NewS3BlobStore(client *gos3.Client, bucket string) (*S3BlobStore, error) {
	if client == nil {
		return nil, errors.New("s3 client is required")
	}
	if bucket == "" {
		return nil, errors.New("bucket is required")
	}
	return &S3BlobStore{client: client, bucket: bucket}, nil
}

// Put implements BlobStore.
func (s *S3BlobStore) Put(ctx context.Context, ref ArtifactRef, r io.Reader) error {
	return s.client.PutObject(ctx, s.bucket, ref.Key, r, ref.Size, ref.ContentType)
}

// Get implements BlobStore.
func (s *S3BlobStore) Get(ctx context.Context, ref ArtifactRef) ([]byte, error) {
	return s.client.GetObject(ctx, s.bucket, ref.Key)
}

// Delete implements BlobStore.
func (s *S3BlobStore) Delete(ctx context.Context, ref ArtifactRef) error {
	return s.client.DeleteObject(ctx, s.bucket, ref.Key)
}
