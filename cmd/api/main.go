package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/crucial707/irrigation/internal/config"
	"github.com/crucial707/irrigation/internal/db"
	"github.com/crucial707/irrigation/internal/handlers"
	"github.com/crucial707/irrigation/internal/middleware"
	"github.com/crucial707/irrigation/internal/repo"
	"github.com/crucial707/irrigation/internal/scheduler"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg := config.Load()
	logger := newLogger(cfg.LogFormat)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		logger.Error("failed to open store", "driver", cfg.StoreDriver, "error", err)
		os.Exit(1)
	}
	defer closeStore()
	logger.Info("store ready", "driver", cfg.StoreDriver)

	if cfg.StatusSweep != "" {
		sweeper := scheduler.NewSweeper(store, cfg.Location, logger)
		go func() {
			if err := scheduler.Run(ctx, cfg.StatusSweep, sweeper); err != nil {
				logger.Error("status sweeper not started", "error", err)
			}
		}()
	}

	srv := &http.Server{
		Handler:           newRouter(store, cfg, logger),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Bind before serving so a port conflict is reported and exits non-zero.
	ln, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		logger.Error("failed to bind", "addr", cfg.Addr(), "error", err)
		os.Exit(1)
	}

	tls := cfg.TLSCertFile != "" && cfg.TLSKeyFile != ""
	go func() {
		logger.Info("HTTP server listening", "addr", ln.Addr().String(), "tls", tls)
		var err error
		if tls {
			err = srv.ServeTLS(ln, cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = srv.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
}

// newRouter wires every route onto a chi router. store is injected so tests can run
// against an in-memory store.
func newRouter(store repo.IrrigationStore, cfg config.Config, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	hsts := cfg.TLSCertFile != "" && cfg.TLSKeyFile != ""

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLog(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Prometheus)
	r.Use(middleware.SecurityHeaders(middleware.APIContentSecurityPolicy, hsts))
	r.Use(middleware.CORS(cfg.CORSAllowedOrigins))

	r.Get("/health", handlers.Health)
	r.Get("/ready", handlers.Ready(store))
	r.Handle("/metrics", promhttp.Handler())

	h := handlers.NewIrrigationHandler(store, logger)
	limiter := middleware.WriteRateLimiter(cfg.WriteRatePerMinute)
	writes := chi.Chain(limiter.Middleware, middleware.MaxBytes(cfg.MaxBodyBytes))

	r.Route("/irrigation", func(r chi.Router) {
		r.Get("/", h.ListIrrigation)
		r.With(writes...).Post("/", h.CreateIrrigation)
		r.Get("/{id}", h.GetIrrigation)
		r.With(writes...).Put("/{id}", h.UpdateIrrigation)
		r.With(limiter.Middleware).Delete("/{id}", h.DeleteIrrigation)
	})

	return r
}

// openStore builds the store selected by STORE_DRIVER. The returned func releases it.
func openStore(ctx context.Context, cfg config.Config) (repo.IrrigationStore, func(), error) {
	switch cfg.StoreDriver {
	case config.StoreMemory, "":
		return repo.NewMemoryIrrigationRepo(), func() {}, nil

	case config.StorePostgres:
		opts := db.Options{
			Host: cfg.DBHost, Port: cfg.DBPort, Name: cfg.DBName,
			User: cfg.DBUser, Password: cfg.DBPass,
			MaxOpenConns: cfg.DBMaxOpenConns, MaxIdleConns: cfg.DBMaxIdleConns,
		}
		database, err := db.Connect(opts)
		if err != nil {
			return nil, nil, fmt.Errorf("connect: %w", err)
		}
		if err := db.Migrate(opts); err != nil {
			database.Close()
			return nil, nil, err
		}
		return repo.NewIrrigationRepo(database), func() { database.Close() }, nil

	case config.StoreFirebase:
		store, err := repo.NewFirebaseIrrigationRepo(ctx, repo.FirebaseConfig{
			DatabaseURL:     cfg.FirebaseDatabaseURL,
			CredentialsFile: cfg.FirebaseCredentialsFile,
			Path:            cfg.FirebaseRef,
			BreakerFailures: cfg.FirebaseBreakerFailures,
			BreakerOpen:     cfg.FirebaseBreakerOpen,
			ReadRetries:     cfg.FirebaseReadRetries,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}

func newLogger(format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
