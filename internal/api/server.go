// Package api serves the intake pipeline and the admin views over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lead-intake/internal/common/auth"
	"lead-intake/internal/common/logger"
	"lead-intake/internal/common/observability"
	"lead-intake/internal/common/validation"
	"lead-intake/internal/intake/conversion"
	"lead-intake/internal/intake/store"
	"lead-intake/internal/models"
)

// Intake is the public pipeline surface.
type Intake interface {
	Score(answers models.Answers) conversion.Diagnosis
	SubmitQuiz(ctx context.Context, answers models.Answers) (*models.DiagnosisRecord, error)
	SubmitDirect(ctx context.Context, contact models.Contact, channel models.Channel, answers models.Answers) (*conversion.Result, error)
	Convert(ctx context.Context, id string, contact models.Contact) (*conversion.Result, error)
	Get(ctx context.Context, id string) (*models.DiagnosisRecord, error)
}

// Admin is the operator surface over the remote mirror.
type Admin interface {
	Query(ctx context.Context, f store.Filter) (*store.Page, error)
	Purge(ctx context.Context, ids []string) (store.PurgeResult, error)
}

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) error

type Deps struct {
	Intake        Intake
	Admin         Admin
	Validator     *validation.Validator
	Auth          auth.JWTConfig
	Observability *observability.Observability
	Checks        map[string]HealthCheck
	Logger        logger.Logger
	Version       string
}

type Server struct {
	echo    *echo.Echo
	handler *Handler
	logger  logger.Logger
}

func NewServer(d Deps) *Server {
	log := d.Logger.WithFields(map[string]interface{}{"component": "api"})

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler(log)

	e.Use(Recovery(log))
	e.Use(echomw.RequestID())
	e.Use(RequestLogger(log))
	e.Use(Instrument(d.Observability))
	e.Use(echomw.BodyLimit("1M"))

	h := &Handler{
		intake:    d.Intake,
		admin:     d.Admin,
		validator: d.Validator,
		checks:    d.Checks,
		version:   d.Version,
		logger:    log,
	}

	e.GET("/healthz", h.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	apiV1 := e.Group("/api/v1")
	h.RegisterRoutes(apiV1)

	admin := apiV1.Group("/admin", auth.JWTMiddleware(d.Auth), auth.RequireRole(auth.RoleAdmin))
	h.RegisterAdminRoutes(admin)

	return &Server{echo: e, handler: h, logger: log}
}

// ServeHTTP lets tests drive the router without a listener.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Start blocks until the listener stops. A graceful Shutdown is not an
// error.
func (s *Server) Start(addr string) error {
	s.logger.Info("http server listening", map[string]interface{}{"address": addr})
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Health runs every registered check with a short deadline.
func (h *Handler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	deps := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			status = http.StatusServiceUnavailable
			deps[name] = err.Error()
			continue
		}
		deps[name] = "ok"
	}

	overall := "ok"
	if status != http.StatusOK {
		overall = "degraded"
	}
	return c.JSON(status, map[string]interface{}{
		"status":       overall,
		"version":      h.version,
		"dependencies": deps,
	})
}
