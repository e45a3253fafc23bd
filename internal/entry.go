// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/outliner/internal/api"
	"github.com/starford/outliner/internal/docservice"
	"github.com/starford/outliner/internal/export"
	"github.com/starford/outliner/internal/history"
	"github.com/starford/outliner/internal/index"
	"github.com/starford/outliner/internal/mcpserver"
	"github.com/starford/outliner/internal/migrate"
	"github.com/starford/outliner/internal/session"
	"github.com/starford/outliner/internal/sse"
	"github.com/starford/outliner/internal/storage"
)

func newApplication(opts []Option) (*application, error) {
	app := &application{logOutput: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// logger builds the structured JSON logger and installs it as default.
func (a *application) logger() *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(a.logOutput, &slog.HandlerOptions{
		Level: a.config.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// library is the storage, index and document service shared by every
// command that touches stored documents.
type library struct {
	store *storage.FS
	db    *index.DB
	svc   *docservice.Service
}

func (l *library) Close() {
	l.svc.Close()
	_ = l.db.Close()
}

func openLibrary(cfg *Config, logger *slog.Logger, svcOpts ...docservice.Option) (*library, error) {
	if err := os.MkdirAll(cfg.Library.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create library dir: %w", err)
	}

	store, err := storage.NewFS(cfg.Library.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}

	if err := index.Sync(db, store, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	opts := append([]docservice.Option{
		docservice.WithLogger(logger),
		docservice.WithSessionOptions(
			session.WithLogger(logger),
			session.WithHistory(
				history.WithMaxDepth(cfg.History.MaxDepth),
				history.WithQuietPeriod(cfg.History.QuietPeriod),
			),
		),
	}, svcOpts...)

	return &library{
		store: store,
		db:    db,
		svc:   docservice.NewService(store, db, opts...),
	}, nil
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.logger()

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("library_path", cfg.Library.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	broker := sse.NewBroker(cfg.SSE.Throttle)
	defer broker.Close()

	lib, err := openLibrary(cfg, logger, docservice.WithPublisher(broker))
	if err != nil {
		return err
	}
	defer lib.Close()

	apiRouter := api.NewRouter(lib.svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

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
		if err := lib.db.Ping(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	g, gCtx := errgroup.WithContext(ctx)

	// Re-index documents edited on disk and drop stale sessions.
	g.Go(func() error {
		if err := index.Watch(gCtx, lib.db, lib.store, lib.store.Root(), logger, lib.svc.HandleIndexEvent); err != nil {
			return fmt.Errorf("watcher: %w", err)
		}
		return nil
	})

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

// errShutdown cancels the group once the server has been shut down so the
// watcher stops too.
var errShutdown = errors.New("shutdown")

// RunMCP serves the library as MCP tools over stdin/stdout until the client
// disconnects.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := app.logger()

	lib, err := openLibrary(app.config, logger)
	if err != nil {
		return err
	}
	defer lib.Close()

	g, gCtx := errgroup.WithContext(ctx)
	gCtx, cancel := context.WithCancel(gCtx)

	g.Go(func() error {
		return index.Watch(gCtx, lib.db, lib.store, lib.store.Root(), logger, lib.svc.HandleIndexEvent)
	})
	g.Go(func() error {
		defer cancel()
		logger.Info("Starting MCP server on stdio", slog.String("library_path", app.config.Library.Path))
		return mcpserver.New(lib.svc).ServeStdio()
	})

	return g.Wait()
}

// ExportDocument writes the named document to w in format f. It reads the
// stored file directly and needs no index.
func ExportDocument(w io.Writer, name string, f export.Format, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	store, err := storage.NewFS(app.config.Library.Path)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	data, err := store.Read(name)
	if err != nil {
		return err
	}
	doc, err := migrate.Decode(data)
	if err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	out, err := export.Render(doc, f)
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}

// ImportDocument migrates data into a new library document and indexes it.
func ImportDocument(name string, data []byte, opts ...Option) (*index.DocumentRow, error) {
	app, err := newApplication(opts)
	if err != nil {
		return nil, err
	}
	lib, err := openLibrary(app.config, app.logger())
	if err != nil {
		return nil, err
	}
	defer lib.Close()
	return lib.svc.Import(name, data)
}
