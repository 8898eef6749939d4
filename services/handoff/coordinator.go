package handoff

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"time"
)

const (
	// DefaultPollInterval is the cadence of readiness checks.
	DefaultPollInterval = 2 * time.Second
	// DefaultMaxPolls bounds the loop: 300 attempts at 2s covers the default
	// 10 minute expiry window.
	DefaultMaxPolls = 300
)

// Outcome is delivered to the result callback exactly once per hand-off.
// Received is false when the attempt budget ran out without an upload.
type Outcome struct {
	SessionID string
	Received  bool
	Artifact  *ReceivedArtifact
}

// ReceivedArtifact is a consumed recording with its bytes loaded.
type ReceivedArtifact struct {
	Ref   ArtifactRef
	Bytes []byte
}

// ResultFunc receives the hand-off outcome. It is never invoked after Cancel.
type ResultFunc func(Outcome)

// Handoff describes a started session for presentation to the user.
type Handoff struct {
	SessionID string `json:"session_id"`
	ScanURL   string `json:"scan_url"`
	QRPNG     []byte `json:"-"`
}

// CoordinatorConfig tunes the polling loop.
type CoordinatorConfig struct {
	PublicBase   string
	PollInterval time.Duration
	MaxPolls     int
}

// Coordinator orchestrates the receiving side of a hand-off: create a
// session, present it as a scannable URL, poll until resolved. At most one
// poll loop is active per Coordinator; starting a new hand-off cancels the
// previous loop first.
type Coordinator struct {
	store  Store
	blobs  BlobStore
	cfg    CoordinatorConfig
	logger *log.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewCoordinator wires a Coordinator over the session and blob stores.
func NewCoordinator(store Store, blobs BlobStore, cfg CoordinatorConfig, logger *log.Logger) (*Coordinator, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if blobs == nil {
		return nil, errors.New("blob store is required")
	}
	if cfg.PublicBase == "" {
		return nil, errors.New("public base url is required")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.MaxPolls <= 0 {
		cfg.MaxPolls = DefaultMaxPolls
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Coordinator{store: store, blobs: blobs, cfg: cfg, logger: logger}, nil
}

// Start creates a session, begins polling for its recording, and returns the
// scannable hand-off. A loop already in flight is cancelled first.
func (c *Coordinator) Start(ctx context.Context, ownerID string, onResult ResultFunc) (*Handoff, error) {
	if onResult == nil {
		return nil, errors.New("result callback is required")
	}

	c.Cancel()

	sessionID, err := c.store.CreateSession(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	scanURL, err := BuildScanURL(c.cfg.PublicBase, sessionID, ownerID)
	if err != nil {
		return nil, err
	}
	png, err := EncodeQR(scanURL)
	if err != nil {
		return nil, err
	}

	pollCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	c.mu.Lock()
	c.cancel = cancel
	c.done = done
	c.mu.Unlock()

	go c.poll(pollCtx, done, sessionID, ownerID, onResult)

	return &Handoff{SessionID: sessionID, ScanURL: scanURL, QRPNG: png}, nil
}

// Await runs the poll loop synchronously for an existing session and returns
// its outcome. It creates nothing and touches no loop bookkeeping, so
// concurrent waits on distinct sessions are safe. A cancelled context yields
// a not-received outcome.
func (c *Coordinator) Await(ctx context.Context, sessionID, ownerID string) Outcome {
	outcomes := make(chan Outcome, 1)
	c.poll(ctx, make(chan struct{}), sessionID, ownerID, func(o Outcome) { outcomes <- o })
	select {
	case o := <-outcomes:
		return o
	default:
		return Outcome{SessionID: sessionID, Received: false}
	}
}

// Cancel stops the in-flight poll loop, if any, and waits for it to exit.
// It is idempotent and performs no session mutation: the abandoned session is
// left to expire so a late upload is still tolerated.
func (c *Coordinator) Cancel() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// poll issues strictly serialized readiness checks: the next attempt is not
// started until the previous one resolves.
func (c *Coordinator) poll(ctx context.Context, done chan struct{}, sessionID, ownerID string, onResult ResultFunc) {
	defer close(done)

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for attempt := 0; attempt < c.cfg.MaxPolls; attempt++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		// The ticker case can win a race against cancellation; re-check so a
		// cancelled loop never touches the store again.
		if ctx.Err() != nil {
			return
		}

		if !c.store.IsReady(ctx, sessionID, ownerID) {
			continue
		}

		ref, err := c.store.GetArtifact(ctx, sessionID)
		if err != nil {
			// Consumed elsewhere or expired between the check and the fetch;
			// keep polling until the budget runs out.
			c.logger.Printf("WARN consume session %s: %v", sessionID, err)
			continue
		}

		data, err := c.blobs.Get(ctx, ref)
		if err != nil {
			c.logger.Printf("ERROR fetch recording %s: %v", ref.Key, err)
			onResult(Outcome{SessionID: sessionID, Received: false})
			return
		}
		if err := c.blobs.Delete(ctx, ref); err != nil {
			c.logger.Printf("WARN release recording %s: %v", ref.Key, err)
		}

		onResult(Outcome{
			SessionID: sessionID,
			Received:  true,
			Artifact:  &ReceivedArtifact{Ref: ref, Bytes: data},
		})
		return
	}

	onResult(Outcome{SessionID: sessionID, Received: false})
}
