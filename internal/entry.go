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

	"github.com/starford/promptvault/internal/api"
	"github.com/starford/promptvault/internal/cache"
	"github.com/starford/promptvault/internal/mcpserver"
	"github.com/starford/promptvault/internal/remote"
	"github.com/starford/promptvault/internal/repository"
	"github.com/starford/promptvault/internal/sse"
)

// Identity of the tree used by the memory backend.
const memoryIdentity = "local/prompts"

func newApplication(opts []Option) (*application, error) {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// openTree selects the remote backend. A nil tree with a nil error means the
// remote is not configured.
func (a *application) openTree(logger *slog.Logger) (remote.Tree, error) {
	if a.tree != nil {
		return a.tree, nil
	}
	rc := a.config.Remote
	switch rc.Backend {
	case BackendMemory:
		logger.Warn("Using in-memory remote; proposals are lost on exit")
		return remote.NewMemory(memoryIdentity, rc.DefaultBranch), nil
	default:
		if rc.Repo == "" {
			logger.Warn("Remote repository is not configured; reads are empty and writes are rejected")
			return nil, nil
		}
		gh, err := remote.NewGitHub(remote.GitHubConfig{
			Repo:          rc.Repo,
			Token:         rc.Token,
			DefaultBranch: rc.DefaultBranch,
			APIURL:        rc.APIURL,
		}, a.httpClient)
		if err != nil {
			return nil, fmt.Errorf("init github remote: %w", err)
		}
		return gh, nil
	}
}

func (a *application) newRepository(logger *slog.Logger) (*repository.Repository, error) {
	tree, err := a.openTree(logger)
	if err != nil {
		return nil, err
	}
	stores := cache.NewStores(cache.WithTTL(a.config.Remote.CacheTTL))
	return repository.New(tree, stores, a.config.Remote.Layout(), logger), nil
}

// newRouter builds the HTTP handler: middleware, health checks, and the API under /api.
func newRouter(cfg *Config, repo *repository.Repository, broker *sse.Broker) http.Handler {
	h := api.NewHandler(repo, broker, cfg.Branch.Prefix)
	apiRouter := api.NewRouter(h, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

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
		w.WriteHeader(http.StatusOK)
		if repo.Configured() {
			_, _ = w.Write([]byte(`{"status":"ok","remote":"configured"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok","remote":"unconfigured"}`))
	})

	r.Mount("/api", apiRouter)
	return r
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger := newLogger(os.Stdout, cfg.App.LogLevel)
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("remote_backend", cfg.Remote.Backend),
		slog.String("remote_repo", cfg.Remote.Repo),
		slog.String("remote_root", cfg.Remote.Root),
		slog.Duration("cache_ttl", cfg.Remote.CacheTTL),
		slog.String("auth_mode", cfg.Auth.Mode),
		slog.String("log_level", cfg.App.LogLevel.String()))

	repo, err := app.newRepository(logger)
	if err != nil {
		return err
	}

	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           newRouter(cfg, repo, broker),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

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

		// Streaming clients would otherwise hold Shutdown open.
		broker.Close()

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

// RunMCP serves the MCP tools on stdin/stdout. Logs go to stderr because
// stdout carries the protocol.
func RunMCP(_ context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger := newLogger(os.Stderr, cfg.App.LogLevel)
	slog.SetDefault(logger)

	repo, err := app.newRepository(logger)
	if err != nil {
		return err
	}

	logger.Info("Starting MCP server on stdio",
		slog.String("remote_backend", cfg.Remote.Backend),
		slog.String("remote_repo", cfg.Remote.Repo))
	if err := mcpserver.New(repo, cfg.Branch.Prefix, "mcp").ServeStdio(); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}
