package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/joseph-ayodele/purchase-sync/internal/app"
	"github.com/joseph-ayodele/purchase-sync/internal/async"
	"github.com/joseph-ayodele/purchase-sync/internal/common"
	"github.com/joseph-ayodele/purchase-sync/internal/mailbox"
	"github.com/joseph-ayodele/purchase-sync/internal/metrics"
	"github.com/joseph-ayodele/purchase-sync/internal/pipeline"
	"github.com/joseph-ayodele/purchase-sync/internal/scheduler"
)

const healthInterval = 30 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := common.LoadConfig()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return 1
	}
	if err := cfg.Validate(true); err != nil {
		logger.Error("invalid config", "error", err)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mb := mailbox.NewDir(cfg.Sync.MailboxDir, logger)
	a, err := app.Build(ctx, cfg, app.Options{Mailbox: mb}, logger)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		return 1
	}
	defer a.Close()

	if err := a.HealthCheck(ctx); err != nil {
		logger.Error("startup health check failed", "error", err)
		return 1
	}

	queue := async.NewSyncQueue(a.Service, logger,
		async.WithWorkers(cfg.Sync.Concurrency),
		async.WithOnDone(func(job async.Job, r pipeline.Report, err error) {
			if err != nil {
				logger.Warn("syncd.job.failed", "user_id", job.UserID, "trace_id", job.TraceID, "error", err)
				return
			}
			logger.Info("syncd.job.done",
				"user_id", job.UserID,
				"trace_id", job.TraceID,
				"synced", r.Synced,
				"failed", r.Failed,
			)
		}),
	)

	sched := scheduler.New(cfg.Sync.Schedule, cfg.Sync.Lookback, mb.Users, queue, logger)
	if err := sched.Start(); err != nil {
		logger.Error("failed to start scheduler", "error", err)
		return 1
	}

	// gRPC health service
	grpcServer := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)
	reflection.Register(grpcServer)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	go watchHealth(ctx, a, hs, logger)

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Error("failed to listen", "addr", cfg.Server.GRPCAddr, "error", err)
		return 1
	}
	go func() {
		logger.Info("grpc health serving", "addr", cfg.Server.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("grpc serve failed", "error", err)
			stop()
		}
	}()

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	metricsServer := &http.Server{
		Addr:              cfg.Metrics.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("metrics serving", "addr", cfg.Metrics.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics serve failed", "error", err)
			stop()
		}
	}()

	// Run one pass right away instead of waiting for the first tick.
	sched.Tick(ctx)

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	hs.Shutdown()
	sched.Stop(shutdownCtx)
	queue.Shutdown(shutdownCtx)
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("metrics shutdown failed", "error", err)
	}
	grpcServer.GracefulStop()
	logger.Info("stopped")
	return 0
}

// watchHealth flips the gRPC serving status when the database or redis
// stops answering.
func watchHealth(ctx context.Context, a *app.App, hs *health.Server, logger *slog.Logger) {
	ticker := time.NewTicker(healthInterval)
	defer ticker.Stop()
	serving := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		err := a.HealthCheck(ctx)
		switch {
		case err != nil && serving:
			logger.Warn("syncd.health.not_serving", "error", err)
			hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
			serving = false
		case err == nil && !serving:
			logger.Info("syncd.health.serving")
			hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
			serving = true
		}
	}
}
