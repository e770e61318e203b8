// Package internal provides the main application initialization and runtime logic.
package internal

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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/itemdesk/internal/api"
	"github.com/starford/itemdesk/internal/itemstore"
	"github.com/starford/itemdesk/internal/mcpserver"
	"github.com/starford/itemdesk/internal/sse"
	"github.com/starford/itemdesk/internal/storage"
	"github.com/starford/itemdesk/internal/watcher"
)

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := newApplication(opts)
	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	cfg := app.config

	logger := app.logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: cfg.App.LogLevel,
		}))
	}
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("storage_driver", cfg.Storage.Driver),
		slog.String("storage_path", cfg.Storage.Path),
		slog.String("storage_key", cfg.Storage.Key),
		slog.String("log_level", cfg.App.LogLevel.String()))

	broker := sse.NewBroker(cfg.Events.Throttle)
	defer broker.Close()

	items, err := OpenItems(ctx, cfg.Storage,
		itemstore.WithLogger(logger),
		itemstore.WithOnChange(broker.Notify),
	)
	if err != nil {
		return err
	}
	defer items.Close()

	logger.Info("Items loaded", slog.Int("count", items.Store.Len()))

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           newHTTPHandler(cfg, items, broker),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	// Reload on external edits of the slot file.
	if fs, ok := items.Provider.(*storage.FS); ok && cfg.Watch.Enabled {
		w := watcher.New(fs, items.Slot, items.Store,
			watcher.WithLogger(logger),
			watcher.WithOnReload(func(key string) {
				logger.Info("Items reloaded from disk",
					slog.String("key", key),
					slog.Int("count", items.Store.Len()))
			}),
		)
		g.Go(func() error {
			return w.Run(gCtx)
		})
	} else if cfg.Watch.Enabled {
		logger.Info("Watcher disabled: storage driver is not file", slog.String("driver", cfg.Storage.Driver))
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		// Open SSE streams never finish on their own.
		broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

const apiPrefix = "/api"

// errShutdown cancels the group so the watcher stops with the server.
var errShutdown = errors.New("shutdown")

func newHTTPHandler(cfg *Config, items *Items, broker *sse.Broker) http.Handler {
	var events http.Handler
	if broker != nil {
		events = broker
	}
	apiRouter := api.NewRouter(items.Store, cfg.Auth.AuthEnabled(), cfg.Auth.Token, events,
		api.WithPageSize(cfg.List.PageSize), api.WithBasePath(apiPrefix))

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		w.Header().Set("Content-Type", "application/json")
		if err := items.Ping(ctx); err != nil {
			slog.Warn("readiness check failed", slog.String("error", err.Error()))
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount(apiPrefix, apiRouter)
	return r
}

// RunMCP serves the item tools over stdio until the client disconnects.
// Logs go to stderr because stdout carries the protocol.
func RunMCP(ctx context.Context, opts ...Option) error {
	app := newApplication(opts)
	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	cfg := app.config

	logger := app.logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: cfg.App.LogLevel,
		}))
	}
	slog.SetDefault(logger)

	items, err := OpenItems(ctx, cfg.Storage, itemstore.WithLogger(logger))
	if err != nil {
		return err
	}
	defer items.Close()

	logger.Info("MCP server starting", slog.String("storage_driver", cfg.Storage.Driver))
	return mcpserver.New(items.Store, app.version, mcpserver.WithPageSize(cfg.List.PageSize)).ServeStdio()
}
