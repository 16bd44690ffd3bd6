package api

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/labstack/echo/v4"

	apperrors "lead-intake/internal/common/errors"
	"lead-intake/internal/common/logger"
	"lead-intake/internal/common/observability"
	"lead-intake/internal/intake/store"
)

func Recovery(log logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					var stack [4096]byte
					n := runtime.Stack(stack[:], false)

					log.Error("panic recovered", map[string]interface{}{
						"requestId": c.Response().Header().Get(echo.HeaderXRequestID),
						"panic":     fmt.Sprintf("%v", r),
						"stack":     string(stack[:n]),
					})
					err = echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
				}
			}()
			return next(c)
		}
	}
}

func RequestLogger(log logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()

			err := next(c)
			if err != nil {
				// resolve the status before logging it
				c.Error(err)
			}

			fields := map[string]interface{}{
				"requestId": c.Response().Header().Get(echo.HeaderXRequestID),
				"method":    req.Method,
				"path":      req.URL.Path,
				"status":    c.Response().Status,
				"latency":   time.Since(start).String(),
				"remoteIp":  c.RealIP(),
			}
			if err != nil {
				fields["error"] = err.Error()
				log.Warn("request", fields)
				return nil
			}
			log.Info("request", fields)
			return nil
		}
	}
}

// Instrument records each request against its route pattern.
func Instrument(obs *observability.Observability) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := "ok"
			if err != nil || c.Response().Status >= http.StatusBadRequest {
				status = "error"
			}
			obs.Record(c.Request().Context(), observability.SurfaceHTTP, c.Request().Method+" "+c.Path(), status, time.Since(start))
			return err
		}
	}
}

// statusFor maps a pipeline error code to an HTTP status.
func statusFor(code apperrors.ErrorCode) int {
	switch code {
	case apperrors.ErrCodeInputValidationFailed:
		return http.StatusBadRequest
	case apperrors.ErrCodeRecordNotFound:
		return http.StatusNotFound
	case apperrors.ErrCodeConversionInProgress:
		return http.StatusConflict
	case apperrors.ErrCodeLocalStorageUnavailable, apperrors.ErrCodeDatabaseConnectionFailed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// errorHandler renders StandardError bodies. Echo errors keep their status.
func errorHandler(log logger.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var (
			status int
			body   interface{}
		)
		var httpErr *echo.HTTPError
		var stdErr *apperrors.StandardError
		switch {
		case errors.As(err, &httpErr):
			status = httpErr.Code
			body = map[string]interface{}{"message": httpErr.Message}
		case errors.Is(err, store.ErrNoRemote):
			status = http.StatusServiceUnavailable
			body = map[string]interface{}{"message": "admin queries need the remote database"}
		case errors.As(err, &stdErr):
			status = statusFor(stdErr.Code)
			body = stdErr
		default:
			stdErr = apperrors.NewInternalError(err)
			status = http.StatusInternalServerError
			body = map[string]interface{}{"code": stdErr.Code, "message": stdErr.Message}
		}

		if status >= http.StatusInternalServerError {
			log.Error("request failed", map[string]interface{}{
				"path":   c.Request().URL.Path,
				"status": status,
				"error":  err.Error(),
			})
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, body)
		}
		if err != nil {
			log.Error("failed to write error response", map[string]interface{}{"error": err.Error()})
		}
	}
}
