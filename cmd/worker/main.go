package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chirplabs/chirp/internal/bootstrap"
	"github.com/chirplabs/chirp/internal/config"
	"github.com/chirplabs/chirp/internal/observability/logging"
	"github.com/chirplabs/chirp/internal/observability/metrics"
)

const processTimeout = 5 * time.Minute

func main() {
	cfg := config.Load()
	logging.Setup("worker", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics("worker")
	go serveMetrics(cfg.WorkerMetricsPort, workerMetrics)

	slog.Info("worker subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeSourceAccepted(ctx, func(handlerCtx context.Context, sourceID string, acceptedAt time.Time) error {
		processCtx, cancel := context.WithTimeout(handlerCtx, processTimeout)
		defer cancel()
		workerMetrics.ObserveQueueLag("worker", time.Since(acceptedAt))
		return processSource(processCtx, app, workerMetrics, sourceID)
	})
	if err != nil {
		slog.Error("worker subscribe failed", "error", err)
		os.Exit(1)
	}
}

func processSource(ctx context.Context, app *bootstrap.App, m *metrics.WorkerMetrics, sourceID string) error {
	m.StartSource()
	start := time.Now()
	err := app.IngestUC.ProcessByID(ctx, sourceID)
	m.FinishSource("worker", time.Since(start), err)
	if err != nil {
		return err
	}

	if src, loadErr := app.Sources.GetByID(ctx, sourceID); loadErr == nil {
		m.ObserveChunksCreated("worker", src.ChunksCreated)
	}
	return nil
}

func serveMetrics(port string, m *metrics.WorkerMetrics) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	if err := http.ListenAndServe(":"+port, mux); err != nil {
		slog.Error("worker metrics server failed", "error", err)
	}
}
