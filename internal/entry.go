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
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
	"golang.org/x/sync/errgroup"

	"github.com/starford/paperlink/internal/api"
	"github.com/starford/paperlink/internal/index"
	"github.com/starford/paperlink/internal/lsp"
	"github.com/starford/paperlink/internal/mcpserver"
	"github.com/starford/paperlink/internal/noteservice"
	"github.com/starford/paperlink/internal/paperless"
	"github.com/starford/paperlink/internal/settings"
	"github.com/starford/paperlink/internal/sse"
	"github.com/starford/paperlink/internal/storage"
)

// App holds the wired application services.
type App struct {
	Config   *Config
	Logger   *slog.Logger
	Store    *storage.FS
	DB       *index.DB
	Settings *settings.Manager
	Service  *noteservice.Service
}

// Close releases the index database.
func (a *App) Close() error {
	return a.DB.Close()
}

// Open initializes logging, storage, the index and the note service
// without starting any server.
func Open(opts ...Option) (*App, error) {
	return open(nil, opts...)
}

func open(events noteservice.Publisher, opts ...Option) (*App, error) {
	app := &application{logOut: os.Stdout}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(app.logOut, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("settings_path", cfg.Settings.Path),
		slog.Duration("paperless_timeout", cfg.Paperless.Timeout),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Ensure vault directory exists.
	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create vault dir: %w", err)
	}

	// Initialize storage.
	store, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	// Initialize SQLite index.
	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}

	// Run initial sync.
	if err := index.Sync(db, store, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	// Load user settings.
	mgr, err := settings.Load(store, cfg.Settings.Path, logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("load settings: %w", err)
	}

	svcOpts := []noteservice.Option{noteservice.WithLogger(logger)}
	if app.notifier != nil {
		svcOpts = append(svcOpts, noteservice.WithNotifier(app.notifier))
	}
	if events != nil {
		svcOpts = append(svcOpts, noteservice.WithEvents(events))
	}
	svc := noteservice.NewService(store, db, mgr, paperless.NewClient(cfg.Paperless.Timeout), svcOpts...)

	return &App{
		Config:   cfg,
		Logger:   logger,
		Store:    store,
		DB:       db,
		Settings: mgr,
		Service:  svc,
	}, nil
}

// Run starts the HTTP server and the vault watcher with the given options.
func Run(ctx context.Context, opts ...Option) error {
	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	a, err := open(broker, opts...)
	if err != nil {
		return err
	}
	defer a.Close()

	cfg, logger := a.Config, a.Logger

	apiRouter := api.NewRouter(a.Service, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
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
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := a.DB.ListPlaceholders(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"index unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Start file watcher with SSE callback.
	g.Go(func() error {
		return index.Watch(gCtx, a.DB, a.Store, cfg.Vault.Path, logger, watchEvents(broker))
	})

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

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// watchEvents forwards watcher-driven index changes to the SSE broker.
func watchEvents(broker *sse.Broker) index.EventCallback {
	return func(kind, path string) {
		if kind == index.PlaceholderRemoved {
			broker.Publish(sse.Event{Type: sse.PlaceholderRemoved, Data: map[string]string{"path": path}})
			return
		}
		broker.PublishNoteEvent(kind, path)
	}
}

// RunMCP serves the MCP tools on stdin/stdout. Logs go to stderr.
func RunMCP(_ context.Context, opts ...Option) error {
	a, err := open(nil, append([]Option{WithLogOutput(os.Stderr)}, opts...)...)
	if err != nil {
		return err
	}
	defer a.Close()

	a.Logger.Info("MCP server starting on stdio")
	return mcpserver.New(a.Service).ServeStdio()
}

// RunLSP serves the Language Server on stdin/stdout while the vault
// watcher keeps the index current. Logs go to stderr.
func RunLSP(ctx context.Context, opts ...Option) error {
	commonlog.Configure(2, nil) // Logger used by glsp

	notifier := lsp.NewNotifier()
	base := []Option{WithLogOutput(os.Stderr), WithNotifier(notifier)}
	a, err := open(nil, append(base, opts...)...)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := lsp.NewServer(a.Service.Linker(), notifier, a.Logger)

	g, gCtx := errgroup.WithContext(ctx)
	watchCtx, stopWatch := context.WithCancel(gCtx)
	defer stopWatch()

	g.Go(func() error {
		return index.Watch(watchCtx, a.DB, a.Store, a.Config.Vault.Path, a.Logger, nil)
	})
	g.Go(func() error {
		defer stopWatch()
		a.Logger.Info("LSP server starting on stdio")
		return srv.RunStdio()
	})

	return g.Wait()
}
