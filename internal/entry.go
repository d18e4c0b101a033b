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
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/mie-tools/mie/internal/batch"
	"github.com/mie-tools/mie/internal/rewrite"
	"github.com/mie-tools/mie/internal/server"
)

func newApplication(opts []Option) (*application, error) {
	app := &application{
		stdin:     os.Stdin,
		stdout:    os.Stdout,
		logOutput: os.Stderr,
	}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// newLogger builds the structured JSON logger. Diagnostics go to
// stderr; stdout carries the rewritten document in pipe mode.
func (a *application) newLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(a.logOutput, &slog.HandlerOptions{
		Level: a.config.App.LogLevel,
	}))
}

// Run rewrites a single document: input file or stdin in, output file
// or stdout out.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := app.newLogger()

	doc, err := app.readInput()
	if err != nil {
		return err
	}

	// Relative image paths resolve against the input file's directory
	// unless the config pins a base path.
	basePath := app.config.Embed.BasePath
	if basePath == "" && app.inputPath != "" {
		basePath = filepath.Dir(app.inputPath)
	}

	rw := rewrite.New(app.config.Embed.Options(basePath), logger)
	out, _, err := rw.Rewrite(ctx, string(doc))
	if err != nil {
		return fmt.Errorf("rewrite: %w", err)
	}

	return app.writeOutput(out)
}

func (a *application) readInput() ([]byte, error) {
	if a.inputPath == "" {
		data, err := io.ReadAll(a.stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(a.inputPath)
	if err != nil {
		return nil, fmt.Errorf("read input file: %w", err)
	}
	return data, nil
}

func (a *application) writeOutput(doc string) error {
	if a.outputPath == "" {
		if _, err := io.WriteString(a.stdout, doc); err != nil {
			return fmt.Errorf("write stdout: %w", err)
		}
		return nil
	}
	if err := os.WriteFile(a.outputPath, []byte(doc), 0o644); err != nil {
		return fmt.Errorf("write output file: %w", err)
	}
	return nil
}

// RunBatch rewrites every file matching pattern in place.
func RunBatch(ctx context.Context, pattern string, backup bool, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := app.newLogger()

	runner := batch.New(app.config.Embed.Options(""), backup, logger)
	sum, err := runner.Run(ctx, pattern)
	if err != nil {
		return err
	}
	if sum.Failed > 0 {
		return fmt.Errorf("%d of %d files failed", sum.Failed, sum.OK+sum.Unchanged+sum.Failed)
	}
	return nil
}

// RunServe starts the HTTP embedding service and blocks until ctx is
// cancelled or a shutdown signal arrives.
func RunServe(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.newLogger()

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("log_level", cfg.App.LogLevel.String()),
		slog.Bool("auth_enabled", cfg.Auth.AuthEnabled()))

	apiRouter := server.NewRouter(cfg.Embed.Options(""), cfg.Auth.AuthEnabled(), cfg.Auth.Token, logger)

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
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	g, gCtx := errgroup.WithContext(ctx)

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

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}
