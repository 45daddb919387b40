package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/halverapp/halver-backend/internal/config"
	"github.com/halverapp/halver-backend/internal/notify"
	"github.com/halverapp/halver-backend/internal/paystack"
	"github.com/halverapp/halver-backend/internal/settlement"
	"github.com/halverapp/halver-backend/internal/storage/sqlite"
	"github.com/halverapp/halver-backend/internal/webhook"
	"github.com/halverapp/halver-backend/pkg/logging"
)

func main() {
	_ = godotenv.Load() // Load .env file if exists
	logging.Setup()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("Storage initialized", "database", cfg.DBPath)

	gateway := paystack.New(cfg.PaystackBaseURL, cfg.PaystackSecretKey)
	notifier := notify.NewService(notify.NewPushTransport(cfg.PushURL))
	engine := settlement.NewEngine(store, gateway, notifier)

	dispatcher := webhook.NewDispatcher(engine, cfg.WebhookWorkers)
	defer dispatcher.Close()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Method(http.MethodPost, "/webhooks/paystack", webhook.NewHandler(cfg.PaystackSecretKey, dispatcher))
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server listening", "port", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	case sig := <-stop:
		slog.Info("Shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			slog.Error("Shutdown did not complete cleanly", "error", err)
		}
	}
}
