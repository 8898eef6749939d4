package handoff

import (
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"scribed/pkg/bus"
	"scribed/pkg/render"
)

const (
	// DefaultExpiryWindow is the single configurable session lifetime.
	DefaultExpiryWindow = 10 * time.Minute
	// DefaultMinUploadBytes rejects captures too small to hold usable audio.
	DefaultMinUploadBytes = 1024
	// maxUploadBytes bounds a recording body; dictations are minutes, not hours.
	maxUploadBytes = 64 << 20
)

// Deps holds the external collaborators the API layer needs.
type Deps struct {
	Sessions Store
	Blobs    BlobStore
	Renderer *render.Engine
	Bus      *bus.Bus
	Logger   *log.Logger
}

// Config controls runtime behaviour for the hand-off handlers.
type Config struct {
	PublicBase     string
	ExpiryWindow   time.Duration
	MinUploadBytes int64
	PollInterval   time.Duration
	MaxPolls       int
}

// API wires the session store, blob store, renderer, and bus into HTTP handlers.
type API struct {
	deps     Deps
	config   Config
	receiver *Coordinator
}

// New initialises the API layer with defaults applied to the configuration.
func New(deps Deps, cfg Config) (*API, error) {
	if deps.Sessions == nil {
		return nil, errors.New("session store is required")
	}
	if deps.Blobs == nil {
		return nil, errors.New("blob store is required")
	}
	if deps.Renderer == nil {
		return nil, errors.New("renderer is required")
	}
	if deps.Logger == nil {
		deps.Logger = log.New(io.Discard, "", 0)
	}

	if cfg.PublicBase == "" {
		return nil, errors.New("public base url is required")
	}
	if cfg.ExpiryWindow <= 0 {
		cfg.ExpiryWindow = DefaultExpiryWindow
	}
	if cfg.MinUploadBytes <= 0 {
		cfg.MinUploadBytes = DefaultMinUploadBytes
	}

	receiver, err := NewCoordinator(deps.Sessions, deps.Blobs, CoordinatorConfig{
		PublicBase:   cfg.PublicBase,
		PollInterval: cfg.PollInterval,
		MaxPolls:     cfg.MaxPolls,
	}, deps.Logger)
	if err != nil {
		return nil, err
	}

	return &API{deps: deps, config: cfg, receiver: receiver}, nil
}

// Register attaches the hand-off endpoints to the router. The /mobile-record
// page lives outside /v1: its path is the wire contract scanned by phones.
func (a *API) Register(r chi.Router) {
	r.Route("/v1/handoff", func(r chi.Router) {
		r.Post("/sessions", a.handleCreateSession)
		r.Get("/sessions/{sessionID}/qr.png", a.handleSessionQR)
		r.Get("/sessions/{sessionID}/ready", a.handleSessionReady)
		r.Get("/sessions/{sessionID}/artifact", a.handleConsumeArtifact)
		r.Get("/sessions/{sessionID}/await", a.handleAwaitArtifact)
		r.Post("/sessions/{sessionID}/recording", a.handleUploadRecording)
		r.Post("/sessions/{sessionID}/error", a.handleMarkError)
	})
	r.Get(scanPath, a.handleMobileRecord)
}

// Handler builds a standalone http.Handler for the hand-off API.
func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	a.Register(r)
	return r
}
