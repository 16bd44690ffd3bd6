// Package app assembles the intake pipeline from configuration. Both the
// server and intakectl build on it.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lead-intake/internal/api"
	"lead-intake/internal/common/config"
	"lead-intake/internal/common/crm"
	"lead-intake/internal/common/database"
	"lead-intake/internal/common/logger"
	"lead-intake/internal/common/retrier"
	"lead-intake/internal/common/validation"
	"lead-intake/internal/intake/conversion"
	"lead-intake/internal/intake/crmsync"
	"lead-intake/internal/intake/duplicate"
	"lead-intake/internal/intake/errorlog"
	"lead-intake/internal/intake/notify"
	"lead-intake/internal/intake/pipeline"
	"lead-intake/internal/intake/sequence"
	"lead-intake/internal/intake/store"
	"lead-intake/pkg/registry"
)

type App struct {
	Config    *config.Config
	Logger    logger.Logger
	Postgres  *database.PostgresClient
	Redis     *database.RedisClient // nil when not configured
	Local     *store.LocalStore
	Store     *store.Store
	Service   *conversion.Service
	Runner    *pipeline.Runner
	Validator *validation.Validator
}

// Options tune startup; the zero value connects once with no retries.
type Options struct {
	ConnectAttempts int
	ConnectDelay    time.Duration
	Migrate         bool
}

func Build(ctx context.Context, cfg *config.Config, log logger.Logger, opts Options) (*App, error) {
	a := &App{Config: cfg, Logger: log}
	built := false
	defer func() {
		if !built {
			_ = a.closeClients()
		}
	}()

	attempts := max(opts.ConnectAttempts, 1)

	if err := retryWithBackoff(func() error {
		pg, err := database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		if err := pg.Ping(ctx); err != nil {
			_ = pg.Close()
			return err
		}
		a.Postgres = pg
		return nil
	}, attempts, opts.ConnectDelay, log, "PostgreSQL connection"); err != nil {
		return nil, err
	}
	log.Info("PostgreSQL connected", nil)

	if opts.Migrate {
		applied, err := a.Postgres.Migrate(ctx)
		if err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		if len(applied) > 0 {
			log.Info("migrations applied", map[string]interface{}{"versions": applied})
		}
	}

	if cfg.Database.Redis.Address != "" {
		if err := retryWithBackoff(func() error {
			rc, err := database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			if err := rc.Ping(ctx); err != nil {
				_ = rc.Close()
				return err
			}
			a.Redis = rc
			return nil
		}, attempts, opts.ConnectDelay, log, "Redis connection"); err != nil {
			return nil, err
		}
		log.Info("Redis connected", nil)
	}

	local, err := store.OpenLocal(cfg.Database.Local.Path)
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}
	a.Local = local

	a.Validator = validation.NewValidator()
	reg, err := registry.Default()
	if err != nil {
		return nil, err
	}
	if err := reg.RegisterInputSchemas(a.Validator); err != nil {
		return nil, err
	}

	transport, err := notify.NewTransport(ctx, cfg.Notifications, log)
	if err != nil {
		return nil, fmt.Errorf("notification transport: %w", err)
	}
	notifier := notify.New(transport, log)

	a.Runner = pipeline.NewRunner(log)
	sink := errorlog.NewPostgresSink(a.Postgres, log)
	policy := retrier.NewPolicy(cfg.Retry.Attempts, config.GetDuration(cfg.Retry.Delay))

	a.Store = store.New(store.Deps{
		Local:    a.Local,
		Remote:   store.NewRemoteStore(a.Postgres),
		Runner:   a.Runner,
		Retry:    policy, // attempts pinned to store.MirrorAttempts
		ErrorLog: sink,
		Alerts:   notifier,
		Logger:   log,
	})

	var backend sequence.Backend = sequence.NewPostgresBackend(a.Postgres)
	if cfg.Sequence.Backend == "redis" {
		backend = sequence.NewRedisBackend(a.Redis, cfg.Sequence.RedisKey)
	}
	seqCfg := sequence.Config{Prefix: cfg.Sequence.Prefix}
	if cfg.Sequence.ScanFallback {
		seqCfg.Scan = a.Store
	}

	crmClient := crm.NewClient(cfg.CRM.BaseURL, cfg.CRM.APIToken, config.GetDuration(cfg.CRM.Timeout))

	var claims conversion.Claimer
	if cfg.Conversion.ClaimEnabled {
		claims = conversion.NewRedisClaimer(a.Redis, config.GetDuration(cfg.Conversion.ClaimTTL), log)
	}

	a.Service = conversion.NewService(conversion.Deps{
		Store:                   a.Store,
		Duplicates:              duplicate.NewReconciler(crmClient, sink, log),
		Numbers:                 sequence.NewAllocator(backend, seqCfg, sink, log),
		CRM:                     crmsync.NewClient(crmClient, cfg.CRM.CaseType, policy, log),
		Notifier:                notifier,
		ErrorLog:                sink,
		Runner:                  a.Runner,
		Claims:                  claims,
		Logger:                  log,
		DefaultConsultationType: cfg.CRM.CaseType,
	})
	built = true
	return a, nil
}

// HealthChecks lists the dependencies /healthz reports on.
func (a *App) HealthChecks() map[string]api.HealthCheck {
	checks := map[string]api.HealthCheck{
		"local":    a.Local.Ping,
		"postgres": a.Postgres.Ping,
	}
	if a.Redis != nil {
		checks["redis"] = a.Redis.Ping
	}
	return checks
}

// Close drains background work and closes every client.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Runner != nil {
		if err := a.Runner.Wait(ctx); err != nil {
			errs = append(errs, fmt.Errorf("drain background tasks: %w", err))
		}
	}
	errs = append(errs, a.closeClients())
	return errors.Join(errs...)
}

func (a *App) closeClients() error {
	var errs []error
	if a.Local != nil {
		errs = append(errs, a.Local.Close())
	}
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if a.Postgres != nil {
		errs = append(errs, a.Postgres.Close())
	}
	return errors.Join(errs...)
}

// retryWithBackoff retries a startup connection with doubling delays.
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log logger.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(operationName+" failed, retrying", map[string]interface{}{
				"error":       err.Error(),
				"attempt":     i + 1,
				"maxRetries":  maxRetries,
				"nextRetryIn": delay.String(),
			})
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}
