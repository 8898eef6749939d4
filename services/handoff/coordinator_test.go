package handoff

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"
)

// stubStore counts calls so tests can assert polling behaviour.
type stubStore struct {
	mu            sync.Mutex
	readyAfter    int
	readyChecks   int
	artifactCalls int
	errorCalls    int
	ref           ArtifactRef
}

func (s *stubStore) CreateSession(context.Context, string) (string, error) {
	return NewSessionID(), nil
}

func (s *stubStore) GetSession(context.Context, string) (Session, error) {
	return Session{}, ErrSessionNotFound
}

func (s *stubStore) IsReady(context.Context, string, string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readyChecks++
	return s.readyChecks > s.readyAfter
}

func (s *stubStore) GetArtifact(context.Context, string) (ArtifactRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.artifactCalls++
	if s.artifactCalls > 1 {
		return ArtifactRef{}, ErrSessionNotFound
	}
	return s.ref, nil
}

func (s *stubStore) MarkCompleted(context.Context, string, ArtifactRef) error { return nil }

func (s *stubStore) MarkError(context.Context, string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errorCalls++
	return nil
}

func (s *stubStore) SweepExpired(context.Context) ([]Session, error) { return nil, nil }

func (s *stubStore) counts() (ready, artifact, errored int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readyChecks, s.artifactCalls, s.errorCalls
}

// memBlobStore serves a single blob from memory.
type memBlobStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemBlobStore() *memBlobStore {
	return &memBlobStore{data: make(map[string][]byte)}
}

func (m *memBlobStore) Put(_ context.Context, ref ArtifactRef, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[ref.Key] = data
	return nil
}

func (m *memBlobStore) Get(_ context.Context, ref ArtifactRef) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[ref.Key], nil
}

func (m *memBlobStore) Delete(_ context.Context, ref ArtifactRef) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, ref.Key)
	return nil
}

func newTestCoordinator(t *testing.T, store Store, blobs BlobStore, maxPolls int) *Coordinator {
	t.Helper()
	c, err := NewCoordinator(store, blobs, CoordinatorConfig{
		PublicBase:   "https://scribe.example.com",
		PollInterval: 5 * time.Millisecond,
		MaxPolls:     maxPolls,
	}, nil)
	if err != nil {
		t.Fatalf("NewCoordinator() error = %v", err)
	}
	return c
}

func TestCoordinatorDeliversArtifactOnce(t *testing.T) {
	ref := ArtifactRef{Key: "recordings/s1.webm", ContentType: "audio/webm", Size: 5}
	store := &stubStore{readyAfter: 3, ref: ref}
	blobs := newMemBlobStore()
	blobs.data[ref.Key] = []byte("audio")

	c := newTestCoordinator(t, store, blobs, 300)

	results := make(chan Outcome, 2)
	h, err := c.Start(context.Background(), "dr-lee", func(o Outcome) { results <- o })
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if h.SessionID == "" || h.ScanURL == "" || len(h.QRPNG) == 0 {
		t.Fatalf("Start() returned incomplete handoff: %+v", h)
	}

	var outcome Outcome
	select {
	case outcome = <-results:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for hand-off result")
	}

	if !outcome.Received {
		t.Fatal("outcome should report the recording as received")
	}
	if outcome.Artifact == nil || !bytes.Equal(outcome.Artifact.Bytes, []byte("audio")) {
		t.Fatalf("outcome artifact = %+v, want audio bytes", outcome.Artifact)
	}

	// The store hands the artifact out exactly once and the blob is released.
	if _, artifactCalls, _ := store.counts(); artifactCalls != 1 {
		t.Fatalf("GetArtifact called %d times, want 1", artifactCalls)
	}
	if data, _ := blobs.Get(context.Background(), ref); len(data) != 0 {
		t.Fatal("blob should be deleted after delivery")
	}

	select {
	case extra := <-results:
		t.Fatalf("result callback invoked again: %+v", extra)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCoordinatorAwaitExistingSession(t *testing.T) {
	ref := ArtifactRef{Key: "recordings/s2.webm", ContentType: "audio/webm", Size: 5}
	store := &stubStore{readyAfter: 2, ref: ref}
	blobs := newMemBlobStore()
	blobs.data[ref.Key] = []byte("audio")

	c := newTestCoordinator(t, store, blobs, 300)

	outcome := c.Await(context.Background(), "s2", "dr-lee")
	if !outcome.Received {
		t.Fatal("Await() should report the recording as received")
	}
	if outcome.Artifact == nil || !bytes.Equal(outcome.Artifact.Bytes, []byte("audio")) {
		t.Fatalf("Await() artifact = %+v, want audio bytes", outcome.Artifact)
	}
}

func TestCoordinatorAwaitCancelled(t *testing.T) {
	store := &stubStore{readyAfter: 1 << 30}
	c := newTestCoordinator(t, store, newMemBlobStore(), 300)

	ctx, cancel := context.WithTimeout(context.Background(), 25*time.Millisecond)
	defer cancel()

	outcome := c.Await(ctx, "s3", "")
	if outcome.Received {
		t.Fatal("a cancelled Await() must not report a recording")
	}
	if outcome.SessionID != "s3" {
		t.Fatalf("Await() session id = %q, want s3", outcome.SessionID)
	}
}

func TestCoordinatorCancelStopsPolling(t *testing.T) {
	store := &stubStore{readyAfter: 1 << 30}
	c := newTestCoordinator(t, store, newMemBlobStore(), 300)

	delivered := make(chan Outcome, 1)
	if _, err := c.Start(context.Background(), "", func(o Outcome) { delivered <- o }); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	time.Sleep(30 * time.Millisecond)
	c.Cancel()
	readsAtCancel, _, _ := store.counts()

	time.Sleep(50 * time.Millisecond)
	readsAfter, _, errored := store.counts()
	if readsAfter != readsAtCancel {
		t.Fatalf("store polled after Cancel: %d reads grew to %d", readsAtCancel, readsAfter)
	}
	if errored != 0 {
		t.Fatalf("Cancel must not mutate the session, MarkError called %d times", errored)
	}

	select {
	case o := <-delivered:
		t.Fatalf("result callback invoked after Cancel: %+v", o)
	default:
	}

	// Idempotent.
	c.Cancel()
}

func TestCoordinatorBudgetExhausted(t *testing.T) {
	store := &stubStore{readyAfter: 1 << 30}
	c := newTestCoordinator(t, store, newMemBlobStore(), 4)

	results := make(chan Outcome, 1)
	if _, err := c.Start(context.Background(), "", func(o Outcome) { results <- o }); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	select {
	case outcome := <-results:
		if outcome.Received {
			t.Fatal("exhausted budget must report Received=false")
		}
		if outcome.Artifact != nil {
			t.Fatalf("exhausted budget must carry no artifact, got %+v", outcome.Artifact)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for budget exhaustion result")
	}

	ready, _, _ := store.counts()
	if ready != 4 {
		t.Fatalf("readiness checked %d times, want exactly 4", ready)
	}
}
