package handoff

import (
	"context"
	"errors"
	"io"
	"log"
	"time"

	"scribed/pkg/bus"
)

// DefaultSweepInterval is how often the expiry sweep runs.
const DefaultSweepInterval = 60 * time.Second

// Sweeper periodically evicts expired sessions and releases their blobs.
// Expiry is also enforced lazily on every read; the sweep keeps abandoned
// sessions from accumulating storage.
type Sweeper struct {
	store    Store
	blobs    BlobStore
	eventBus *bus.Bus
	interval time.Duration
	logger   *log.Logger
}

// NewSweeper wires a Sweeper. The bus may be nil.
func NewSweeper(store Store, blobs BlobStore, eventBus *bus.Bus, interval time.Duration, logger *log.Logger) (*Sweeper, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if blobs == nil {
		return nil, errors.New("blob store is required")
	}
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Sweeper{store: store, blobs: blobs, eventBus: eventBus, interval: interval, logger: logger}, nil
}

// Run sweeps until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	evicted, err := s.store.SweepExpired(ctx)
	if err != nil {
		s.logger.Printf("ERROR expiry sweep: %v", err)
		return
	}
	if len(evicted) == 0 {
		return
	}

	for _, session := range evicted {
		sessionsExpired.Inc()
		if session.Artifact != nil {
			if err := s.blobs.Delete(ctx, *session.Artifact); err != nil {
				s.logger.Printf("WARN release recording %s: %v", session.Artifact.Key, err)
			}
		}
		if s.eventBus != nil {
			err := s.eventBus.Publish(ctx, bus.Event{
				Subject:   bus.SubjectSessionExpired,
				SessionID: session.ID,
				OwnerID:   session.OwnerID,
			})
			if err != nil {
				s.logger.Printf("WARN publish expiry for %s: %v", session.ID, err)
			}
		}
	}

	s.logger.Printf("INFO expiry sweep evicted %d session(s)", len(evicted))
}
