package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/dom/bookshelf-api/internal/api"
	"github.com/dom/bookshelf-api/internal/config"
	"github.com/dom/bookshelf-api/internal/logging"
	"github.com/dom/bookshelf-api/internal/metrics"
	"github.com/dom/bookshelf-api/internal/repository/postgres"
	"github.com/dom/bookshelf-api/internal/service"
)

const shutdownTimeout = 30 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Start the HTTP API server. Settings come from flags, the environment
(a .env file is read if present) and the optional --config file.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd.Flags(), configFile)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	config.Flags(cmd.Flags())

	return cmd
}

func runServe(ctx context.Context, cfg *config.Config) error {
	logger := logging.Setup(logging.Options{
		Service: "bookshelf",
		Version: version,
		Format:  cfg.LogFormat,
		Level:   cfg.LogLevel,
	})
	slog.SetDefault(logger)

	// Spans are not exported; they give request and store logs shared ids.
	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			slog.Error("failed to stop tracer provider", "error", err)
		}
	}()

	if cfg.WeakSecret() {
		slog.Warn("JWT_SECRET is shorter than 32 bytes; use a longer random secret")
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.NewConnection(ctx, cfg.DatabaseURL, cfg.DBConnectRetries)
	if err != nil {
		return err
	}

	m := metrics.New()

	pool, err := postgres.NewPool(db, postgres.PoolConfig{
		MaxConns:         cfg.DBMaxConns,
		AcquireTimeout:   cfg.DBAcquireTimeout,
		StatementTimeout: cfg.DBStatementTimeout,
	}, m)
	if err != nil {
		return err
	}

	repos := postgres.NewRepositories(pool)
	services := service.NewServices(repos, cfg, m)
	router := api.NewRouter(services, m)

	if !services.Suggest.Configured() {
		slog.Info("GEMINI_API_KEY not set; /generate-book will answer 503")
	}

	srv := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.Port, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			_ = pool.Close(context.Background())
			return oops.Code("SERVER_LISTEN").With("port", cfg.Port).Wrap(err)
		}
	case <-ctx.Done():
	}

	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}
	if err := pool.Close(shutdownCtx); err != nil {
		slog.Error("failed to close store connections", "error", err)
	}

	slog.Info("server stopped")
	return nil
}
