package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/chirplabs/chirp/internal/adapters/http"
	"github.com/chirplabs/chirp/internal/bootstrap"
	"github.com/chirplabs/chirp/internal/config"
	"github.com/chirplabs/chirp/internal/observability/logging"
	"github.com/chirplabs/chirp/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	logging.Setup("api", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	httpMetrics := metrics.NewHTTPServerMetrics("api")
	app.Retriever.SetObserver(func(contextCount int, elapsed time.Duration) {
		httpMetrics.RecordRetrieval("api", contextCount, elapsed)
	})

	router := httpadapter.NewRouter(
		app.ChatUC,
		app.IngestUC,
		app.IngestUC,
		app.Bots,
		app.Sources,
		httpMetrics,
		"api",
		func() error { return app.Ready(ctx) },
	)

	mux := http.NewServeMux()
	mux.Handle("/metrics", httpMetrics.Handler())
	mux.Handle("/", router.Handler())

	server := &http.Server{
		Addr:        ":" + cfg.APIPort,
		Handler:     mux,
		ReadTimeout: 30 * time.Second,
		// No WriteTimeout: chat responses are long-lived SSE streams.
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		slog.Info("api listening", "port", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("api server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("api shutdown", "error", err)
	}
}
