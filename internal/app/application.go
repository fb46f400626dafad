// Package app assembles the coordinator: configuration, logging, storage,
// the room supervisor, and the HTTP surface, with ordered startup and
// shutdown.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"syncroom/internal/api"
	"syncroom/internal/config"
	"syncroom/internal/logger"
	"syncroom/internal/merge"
	"syncroom/internal/room"
	"syncroom/internal/store"
	"syncroom/internal/ws"
)

// Application owns every long-lived component. Construction wires them in
// dependency order: storage, merge engine, room supervisor, HTTP surface.
type Application struct {
	cfg        *config.Config
	log        *slog.Logger
	kv         store.KV
	rooms      *room.Supervisor
	httpServer *http.Server
}

// New builds a fully wired application from cfg. A nil cfg uses defaults.
func New(cfg *config.Config) (*Application, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log := logger.New(cfg.Debug)

	kv, err := store.OpenSQLite(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	rooms := room.NewSupervisor(merge.NewLogEngine(), kv, room.Config{
		FlushInterval: cfg.Room.FlushInterval,
		EventBuffer:   cfg.Room.EventBuffer,
	}, log)

	mux := http.NewServeMux()
	mux.Handle("/ws", ws.NewHandler(rooms, cfg.WebSocket, log))
	mux.Handle("/", api.NewServer(rooms, kv, log))

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      mux,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	return &Application{
		cfg:        cfg,
		log:        log,
		kv:         kv,
		rooms:      rooms,
		httpServer: httpServer,
	}, nil
}

// Log returns the application's root logger.
func (app *Application) Log() *slog.Logger { return app.log }

// Addr returns the address the HTTP server binds.
func (app *Application) Addr() string { return app.httpServer.Addr }

// Start brings the HTTP server up and confirms it is accepting.
func (app *Application) Start(ctx context.Context) error {
	app.log.Info("starting", "addr", app.httpServer.Addr, "db", app.cfg.Database.Path)

	errCh := make(chan error, 1)
	go func() {
		if err := app.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		_ = app.kv.Close()
		return fmt.Errorf("http server: %w", err)
	case <-time.After(100 * time.Millisecond):
		app.log.Info("started")
		return nil
	case <-ctx.Done():
		_ = app.kv.Close()
		return ctx.Err()
	}
}

// Stop shuts components down in reverse order: stop accepting HTTP, stop
// rooms (each flushes pending state), then close storage.
func (app *Application) Stop(ctx context.Context) error {
	app.log.Info("shutting down")

	if err := app.httpServer.Shutdown(ctx); err != nil {
		app.log.Warn("http shutdown error", "error", err)
	}
	app.rooms.Shutdown(ctx)
	if err := app.kv.Close(); err != nil {
		app.log.Warn("store close error", "error", err)
	}

	app.log.Info("shutdown complete")
	return nil
}
