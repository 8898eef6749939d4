package handoff

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileStore persists the session set as a flat JSON list, atomically replaced
// on every mutation. A corrupt or unreadable file is treated as an empty
// store and never surfaced to callers.
type FileStore struct {
	path   string
	window time.Duration
	logger *log.Logger
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewFileStore loads (or initialises) the session file at path. Sessions
// already past the expiry window are pruned during load.
func NewFileStore(path string, window time.Duration, logger *log.Logger) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("session file path is required")
	}
	if window <= 0 {
		return nil, errors.New("expiry window must be positive")
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	fs := &FileStore{
		path:     path,
		window:   window,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
	fs.load()
	return fs, nil
}

func (fs *FileStore) load() {
	data, err := os.ReadFile(fs.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			fs.logger.Printf("WARN session file unreadable, starting empty: %v", err)
		}
		return
	}

	var list []Session
	if err := json.Unmarshal(data, &list); err != nil {
		fs.logger.Printf("WARN session file corrupt, starting empty: %v", err)
		return
	}

	now := fs.now()
	for i := range list {
		s := list[i]
		if s.ID == "" || s.ExpiredAt(now, fs.window) {
			continue
		}
		fs.sessions[s.ID] = &s
	}
}

// persistLocked writes the session set to disk via a temp file rename.
// Serialization failures are logged and swallowed: a stale file on disk is
// recoverable, a failed hand-off call is not.
func (fs *FileStore) persistLocked() {
	list := make([]Session, 0, len(fs.sessions))
	for _, s := range fs.sessions {
		list = append(list, *s)
	}

	data, err := json.Marshal(list)
	if err != nil {
		fs.logger.Printf("ERROR marshal session file: %v", err)
		return
	}

	tmp := fs.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		fs.logger.Printf("ERROR write session file: %v", err)
		return
	}
	if err := os.Rename(tmp, fs.path); err != nil {
		fs.logger.Printf("ERROR replace session file: %v", err)
	}
}

// CreateSession implements Store.
func (fs *FileStore) CreateSession(_ context.Context, ownerID string) (string, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	now := fs.now().UTC()
	id := NewSessionID()
	for fs.sessions[id] != nil {
		id = NewSessionID()
	}

	fs.sessions[id] = &Session{
		ID:        id,
		OwnerID:   ownerID,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	fs.persistLocked()
	return id, nil
}

// GetSession implements Store.
func (fs *FileStore) GetSession(_ context.Context, id string) (Session, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	s, err := fs.liveLocked(id)
	if err != nil {
		return Session{}, err
	}
	return *s, nil
}

// liveLocked resolves a session. Expired sessions are reported but not
// evicted here: they stay in place so every later lookup still distinguishes
// expired from never-existed, until the sweep removes them.
func (fs *FileStore) liveLocked(id string) (*Session, error) {
	s, ok := fs.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if s.ExpiredAt(fs.now(), fs.window) {
		return nil, ErrSessionExpired
	}
	return s, nil
}

// IsReady implements Store.
func (fs *FileStore) IsReady(_ context.Context, id, ownerID string) bool {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	s, err := fs.liveLocked(id)
	if err != nil {
		return false
	}
	if ownerID != "" && s.OwnerID != ownerID {
		return false
	}
	return s.Status == StatusCompleted
}

// GetArtifact implements Store.
func (fs *FileStore) GetArtifact(_ context.Context, id string) (ArtifactRef, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	s, err := fs.liveLocked(id)
	if err != nil {
		return ArtifactRef{}, err
	}
	if s.Status != StatusCompleted || s.Artifact == nil {
		return ArtifactRef{}, ErrSessionNotFound
	}

	ref := *s.Artifact
	delete(fs.sessions, id)
	fs.persistLocked()
	return ref, nil
}

// MarkCompleted implements Store.
func (fs *FileStore) MarkCompleted(_ context.Context, id string, ref ArtifactRef) error {
	if ref.Key == "" {
		return errors.New("artifact key is required")
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	s, err := fs.liveLocked(id)
	if err != nil {
		return err
	}
	if s.Status != StatusPending {
		return fmt.Errorf("%w: %s", ErrSessionNotPending, s.Status)
	}

	s.Status = StatusCompleted
	s.Artifact = &ref
	s.UpdatedAt = fs.now().UTC()
	fs.persistLocked()
	return nil
}

// MarkError implements Store.
func (fs *FileStore) MarkError(_ context.Context, id string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	s, err := fs.liveLocked(id)
	if err != nil {
		return err
	}
	if s.Status != StatusPending {
		return fmt.Errorf("%w: %s", ErrSessionNotPending, s.Status)
	}

	s.Status = StatusError
	s.UpdatedAt = fs.now().UTC()
	fs.persistLocked()
	return nil
}

// SweepExpired implements Store.
func (fs *FileStore) SweepExpired(_ context.Context) ([]Session, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	now := fs.now()
	var evicted []Session
	for id, s := range fs.sessions {
		if s.ExpiredAt(now, fs.window) {
			evicted = append(evicted, *s)
			delete(fs.sessions, id)
		}
	}
	if len(evicted) > 0 {
		fs.persistLocked()
	}
	return evicted, nil
}

// DirBlobStore keeps recording blobs under a local directory, mirroring the
// blob keys used by the S3 store.
type DirBlobStore struct {
	root string
}

// NewDirBlobStore ensures root exists and returns a DirBlobStore.
func NewDirBlobStore(root string) (*DirBlobStore, error) {
	if root == "" {
		return nil, errors.New("blob root is required")
	}
	if err := os.MkdirAll(root, 0o700); err != nil {
		return nil, fmt.Errorf("create blob root: %w", err)
	}
	return &DirBlobStore{root: root}, nil
}

func (d *DirBlobStore) blobPath(ref ArtifactRef) string {
	return filepath.Join(d.root, filepath.FromSlash(ref.Key))
}

// Put implements BlobStore.
func (d *DirBlobStore) Put(_ context.Context, ref ArtifactRef, r io.Reader) error {
	path := d.blobPath(ref)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create blob dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("create blob: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("write blob: %w", err)
	}
	return f.Close()
}

// Get implements BlobStore.
func (d *DirBlobStore) Get(_ context.Context, ref ArtifactRef) ([]byte, error) {
	return os.ReadFile(d.blobPath(ref))
}

// Delete implements BlobStore.
func (d *DirBlobStore) Delete(_ context.Context, ref ArtifactRef) error {
	err := os.Remove(d.blobPath(ref))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
