package main

import (
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/crucial707/irrigation/internal/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

const (
	defaultPort = "3000"
	defaultAPI  = "http://localhost:3333"
	envWebPort  = "IRRIGATION_WEB_PORT"
	envAPIURL   = "IRRIGATION_API_URL"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	port := getEnv(envWebPort, defaultPort)
	apiBase := strings.TrimRight(getEnv(envAPIURL, defaultAPI), "/")

	d := &dashboard{
		api:    &apiClient{base: apiBase, http: &http.Client{Timeout: 10 * time.Second}},
		logger: logger,
	}

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           newRouter(d),
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("web UI listening", "addr", "http://localhost:"+port, "api", apiBase)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("web UI stopped", "error", err)
		os.Exit(1)
	}
}

func newRouter(d *dashboard) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.RequestLog(d.logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.SecurityHeaders(middleware.DashboardContentSecurityPolicy, false))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	r.Get("/", d.list)
	r.Get("/irrigation/new", d.createForm)
	r.Post("/irrigation", d.create)
	r.Get("/irrigation/{id}/edit", d.editForm)
	r.Post("/irrigation/{id}/edit", d.update)
	r.Get("/irrigation/{id}/delete", d.deleteConfirm)
	r.Post("/irrigation/{id}/delete", d.delete)
	return r
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
