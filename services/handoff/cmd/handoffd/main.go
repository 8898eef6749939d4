package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"scribed/pkg/bus"
	"scribed/pkg/db"
	"scribed/pkg/render"
	gos3 "scribed/pkg/s3"
	"scribed/pkg/telemetry"
	"scribed/services/docgen"
	"scribed/services/handoff"
	"scribed/services/handoff/internal/config"
)

func main() {
	if err := run("handoffd"); err != nil {
		log.New(os.Stderr, "", log.LstdFlags).Fatal(err)
	}
}

func run(serviceName string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, middleware, logger, err := telemetry.Init(ctx, serviceName)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownTelemetry != nil {
			if err := shutdownTelemetry(shutdownCtx); err != nil {
				fmt.Fprintf(os.Stderr, "%s: telemetry shutdown error: %v\n", serviceName, err)
			}
		}
	}()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	renderer, err := render.New()
	if err != nil {
		return fmt.Errorf("init renderer: %w", err)
	}

	var eventBus *bus.Bus
	if cfg.Bus.URL != "" {
		eventBus, err = bus.New(cfg.Bus.URL)
		if err != nil {
			return fmt.Errorf("connect bus: %w", err)
		}
		defer eventBus.Close()
	} else {
		logger.Printf("WARN NATS_URL not set, events disabled")
	}

	sessions, blobs, orm, cleanup, err := buildStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	api, err := handoff.New(handoff.Deps{
		Sessions: sessions,
		Blobs:    blobs,
		Renderer: renderer,
		Bus:      eventBus,
		Logger:   logger,
	}, handoff.Config{
		PublicBase:     cfg.Server.PublicBase,
		ExpiryWindow:   cfg.Handoff.ExpiryWindow,
		MinUploadBytes: cfg.Handoff.MinUploadBytes,
		PollInterval:   cfg.Handoff.PollInterval,
		MaxPolls:       cfg.Handoff.MaxPolls,
	})
	if err != nil {
		return fmt.Errorf("init handoff api: %w", err)
	}

	var transcriber docgen.Transcriber
	if cfg.STT.APIKey != "" {
		opts := []docgen.TranscriberOption{docgen.WithAPIKey(cfg.STT.APIKey)}
		if cfg.STT.BaseURL != "" {
			opts = append(opts, docgen.WithBaseURL(cfg.STT.BaseURL))
		}
		if cfg.STT.Model != "" {
			opts = append(opts, docgen.WithModel(cfg.STT.Model))
		}
		transcriber = docgen.NewHTTPTranscriber(opts...)
	} else {
		logger.Printf("WARN STT_API_KEY not set, transcription disabled")
	}

	documents, err := docgen.NewService(orm, renderer, transcriber, eventBus, logger)
	if err != nil {
		return fmt.Errorf("init docgen service: %w", err)
	}

	sweeper, err := handoff.NewSweeper(sessions, blobs, eventBus, cfg.Handoff.SweepInterval, logger)
	if err != nil {
		return fmt.Errorf("init sweeper: %w", err)
	}
	go sweeper.Run(ctx)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	r.Get("/healthz", healthHandler)
	r.Get("/readyz", readyHandler)
	r.Handle("/metrics", promhttp.Handler())

	api.Register(r)
	documents.Register(r)

	server := &http.Server{
		Addr:    cfg.Server.ListenAddr,
		Handler: middleware(r),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(os.Stderr, "%s: server shutdown error: %v\n", serviceName, err)
		}
	}()

	logger.Printf("INFO listening on %s", server.Addr)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Printf("ERROR server failed: %v", err)
		return err
	}

	return nil
}

// buildStores selects the postgres-backed store when DATABASE_URL is set and
// falls back to durable local files otherwise. The returned cleanup closes
// whatever was opened.
func buildStores(ctx context.Context, cfg config.Config, logger *log.Logger) (handoff.Store, handoff.BlobStore, *gorm.DB, func(), error) {
	noop := func() {}

	if cfg.Store.DatabaseURL == "" {
		if err := os.MkdirAll(cfg.Store.DataDir, 0o755); err != nil {
			return nil, nil, nil, noop, fmt.Errorf("create data dir: %w", err)
		}
		sessions, err := handoff.NewFileStore(filepath.Join(cfg.Store.DataDir, "sessions.json"), cfg.Handoff.ExpiryWindow, logger)
		if err != nil {
			return nil, nil, nil, noop, fmt.Errorf("init file store: %w", err)
		}
		blobs, err := handoff.NewDirBlobStore(filepath.Join(cfg.Store.DataDir, "blobs"))
		if err != nil {
			return nil, nil, nil, noop, fmt.Errorf("init blob dir: %w", err)
		}
		logger.Printf("INFO using file store at %s", cfg.Store.DataDir)
		return sessions, blobs, nil, noop, nil
	}

	pool, err := db.Open(ctx, cfg.Store.DatabaseURL)
	if err != nil {
		return nil, nil, nil, noop, fmt.Errorf("open database: %w", err)
	}
	cleanup := func() { pool.Close() }

	if err := db.Migrate(ctx, pool); err != nil {
		cleanup()
		return nil, nil, nil, noop, fmt.Errorf("run migrations: %w", err)
	}

	orm, err := gorm.Open(postgres.Open(cfg.Store.DatabaseURL), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		cleanup()
		return nil, nil, nil, noop, fmt.Errorf("open orm: %w", err)
	}

	sessions, err := handoff.NewDBStore(pool, orm, cfg.Handoff.ExpiryWindow, logger)
	if err != nil {
		cleanup()
		return nil, nil, nil, noop, fmt.Errorf("init db store: %w", err)
	}

	s3Client, err := gos3.NewClientFromEnv()
	if err != nil {
		cleanup()
		return nil, nil, nil, noop, fmt.Errorf("init s3 client: %w", err)
	}
	blobs, err := handoff.NewS3BlobStore(s3Client, cfg.Store.S3Bucket)
	if err != nil {
		cleanup()
		return nil, nil, nil, noop, fmt.Errorf("init s3 blob store: %w", err)
	}

	logger.Printf("INFO using postgres store, bucket %s", cfg.Store.S3Bucket)
	return sessions, blobs, orm, cleanup, nil
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func readyHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
