// Package errorlog records degraded and exhausted pipeline events in the
// error_logs table so operators can reconcile them later.
package errorlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"lead-intake/internal/common/database"
	apperrors "lead-intake/internal/common/errors"
	"lead-intake/internal/common/logger"
	"lead-intake/internal/common/metrics"
)

// Entry is one error_logs row.
type Entry struct {
	ErrorType          apperrors.ErrorCode
	ConsultationNumber string
	Phone              string
	Residence          string
	AcquisitionSource  string
	Message            string
	Details            map[string]interface{}
	RetryCount         int
}

// Sink accepts entries. Implementations must not fail the caller.
type Sink interface {
	Record(ctx context.Context, e Entry)
}

// PostgresSink inserts entries into error_logs; an insert failure is logged.
type PostgresSink struct {
	db     *database.PostgresClient
	logger logger.Logger
}

func NewPostgresSink(db *database.PostgresClient, log logger.Logger) *PostgresSink {
	return &PostgresSink{db: db, logger: log}
}

const insertEntry = `
	INSERT INTO error_logs
		(error_type, consultation_number, phone, residence, acquisition_source, message, details, retry_count)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

func (s *PostgresSink) Record(ctx context.Context, e Entry) {
	metrics.DegradedEvents.WithLabelValues(string(e.ErrorType)).Inc()

	if err := s.insert(ctx, e); err != nil {
		s.logger.Error("failed to write error log entry", map[string]interface{}{
			"errorType":          string(e.ErrorType),
			"consultationNumber": e.ConsultationNumber,
			"message":            e.Message,
			"error":              err.Error(),
		})
	}
}

func (s *PostgresSink) insert(ctx context.Context, e Entry) error {
	var details interface{}
	if len(e.Details) > 0 {
		raw, err := json.Marshal(e.Details)
		if err != nil {
			return fmt.Errorf("marshal details: %w", err)
		}
		details = string(raw)
	}

	_, err := s.db.Exec(ctx, insertEntry,
		string(e.ErrorType),
		nullable(e.ConsultationNumber),
		nullable(e.Phone),
		nullable(e.Residence),
		nullable(e.AcquisitionSource),
		e.Message,
		details,
		e.RetryCount,
	)
	return err
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// LogSink writes entries to the structured log only. Used when no remote
// database is configured.
type LogSink struct {
	logger logger.Logger
}

func NewLogSink(log logger.Logger) *LogSink {
	return &LogSink{logger: log}
}

func (s *LogSink) Record(_ context.Context, e Entry) {
	metrics.DegradedEvents.WithLabelValues(string(e.ErrorType)).Inc()
	s.logger.Warn("pipeline error", map[string]interface{}{
		"errorType":          string(e.ErrorType),
		"consultationNumber": e.ConsultationNumber,
		"acquisitionSource":  e.AcquisitionSource,
		"message":            e.Message,
		"details":            e.Details,
		"retryCount":         e.RetryCount,
	})
}
