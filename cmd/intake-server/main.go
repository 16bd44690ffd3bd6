// cmd/intake-server/main.go
package main

import (
	"context"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"lead-intake/internal/api"
	"lead-intake/internal/app"
	"lead-intake/internal/common/auth"
	"lead-intake/internal/common/camunda"
	"lead-intake/internal/common/config"
	"lead-intake/internal/common/logger"
	"lead-intake/internal/common/observability"

	sd "lead-intake/internal/workers/diagnosis/score-diagnosis"
	cl "lead-intake/internal/workers/lead/convert-lead"
	sdr "lead-intake/internal/workers/lead/submit-direct"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logger.New("info", "console")
		boot.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format).
		With(zap.String("service", cfg.App.Name), zap.String("version", cfg.App.Version))
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)
	zapLog.Info("Starting intake server...", zap.String("environment", cfg.App.Environment))

	obs, err := observability.New(cfg.App.Name, nil)
	if err != nil {
		zapLog.Fatal("observability init failed", zap.Error(err))
	}
	defer obs.Shutdown()

	ctx := context.Background()

	a, err := app.Build(ctx, cfg, log, app.Options{
		ConnectAttempts: 15,
		ConnectDelay:    2 * time.Second,
		Migrate:         true,
	})
	if err != nil {
		zapLog.Fatal("startup failed", zap.Error(err))
	}

	checks := a.HealthChecks()

	// --- Camunda workers ---
	var zeebe *camunda.Client
	var workers []*camunda.Worker
	if cfg.Camunda.Enabled {
		zeebe, err = camunda.NewClient(ctx, cfg.Camunda)
		if err != nil {
			zapLog.Fatal("zeebe client failed", zap.Error(err))
		}
		checks["zeebe"] = zeebe.HealthCheck
		zapLog.Info("Zeebe client connected successfully")

		jobs := camunda.NewJobs(a.Validator, obs, log)
		client := zeebe.Zeebe()

		scoreCfg := config.GetWorkerConfig(cfg, sd.TaskType)
		convertCfg := config.GetWorkerConfig(cfg, cl.TaskType)
		directCfg := config.GetWorkerConfig(cfg, sdr.TaskType)

		workers = append(workers,
			camunda.StartWorker(client, sd.TaskType, scoreCfg,
				sd.NewHandler(sd.LoadConfig(scoreCfg), a.Service, jobs, log), log),
			camunda.StartWorker(client, cl.TaskType, convertCfg,
				cl.NewHandler(cl.LoadConfig(convertCfg), a.Service, jobs, log), log),
			camunda.StartWorker(client, sdr.TaskType, directCfg,
				sdr.NewHandler(sdr.LoadConfig(directCfg), a.Service, jobs, log), log),
		)
		zapLog.Info("All workers started", zap.Int("count", len(workers)))
	}

	// --- HTTP ---
	server := api.NewServer(api.Deps{
		Intake:        a.Service,
		Admin:         a.Store,
		Validator:     a.Validator,
		Auth:          auth.JWTConfig{Secret: []byte(cfg.Auth.JWTSecret), Issuer: cfg.Auth.Issuer},
		Observability: obs,
		Checks:        checks,
		Logger:        log,
		Version:       cfg.App.Version,
	})

	go func() {
		if err := server.Start(cfg.Server.Address); err != nil {
			zapLog.Fatal("http server failed", zap.Error(err))
		}
	}()

	if addr := os.Getenv("PPROF_ADDRESS"); addr != "" {
		go func() {
			zapLog.Info("pprof listening", zap.String("address", addr))
			if err := http.ListenAndServe(addr, nil); err != nil {
				zapLog.Error("pprof server failed", zap.Error(err))
			}
		}()
	}

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	for _, w := range workers {
		w.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("http server shutdown failed", zap.Error(err))
	}
	if zeebe != nil {
		if err := zeebe.Close(); err != nil {
			zapLog.Error("zeebe client close failed", zap.Error(err))
		}
	}
	if err := a.Close(shutdownCtx); err != nil {
		zapLog.Error("shutdown incomplete", zap.Error(err))
	}

	zapLog.Info("Intake server stopped")
}
