package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/asynkron/protoactor-go/actor"

	"memories/internal/config"
	"memories/internal/database"
	"memories/internal/engine"
	"memories/internal/events"
	"memories/internal/handlers"
	"memories/internal/logger"
	"memories/internal/tracing"
	"memories/internal/utils"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(c)
	}()

	metrics := utils.NewMetricsCollector()

	store, err := openStore(ctx, cfg.Database, metrics)
	if err != nil {
		return err
	}
	defer func() {
		c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.Close(c); err != nil {
			log.Warn("failed to close store", "error", err)
		}
	}()

	publisher := events.NewPublisher(cfg.Kafka)
	defer publisher.Close()

	server := handlers.NewServer(store, publisher, metrics, log)
	srv := &http.Server{
		Addr:              cfg.Server.Address(),
		Handler:           handlers.NewRouter(server, cfg),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", "addr", srv.Addr, "backend", cfg.Database.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// openStore selects the post store for cfg.Backend.
func openStore(ctx context.Context, cfg *config.DatabaseConfig, metrics *utils.MetricsCollector) (database.Store, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		slog.Warn("using in-memory post store, data is lost on restart")
		return engine.NewEngine(actor.NewActorSystem(), metrics), nil
	case config.BackendMongo:
		db, err := database.NewMongoDB(ctx, cfg, metrics)
		if err != nil {
			return nil, err
		}
		if err := db.EnsureIndexes(ctx); err != nil {
			slog.Warn("could not ensure indexes", "error", err)
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unsupported store backend %q", cfg.Backend)
	}
}
