package errorlog

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lead-intake/internal/common/database"
	apperrors "lead-intake/internal/common/errors"
	"lead-intake/internal/common/logger"
)

func TestPostgresSink_Record(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO error_logs").
		WithArgs(
			"REMOTE_MIRROR_EXHAUSTED",
			sql.NullString{String: "상담1001", Valid: true},
			sql.NullString{String: "01012345678", Valid: true},
			sql.NullString{},
			sql.NullString{String: "converted", Valid: true},
			"connection refused",
			`{"operation":"insert"}`,
			3,
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	sink := NewPostgresSink(database.NewPostgresFromDB(db), logger.NewTestLogger(t))
	sink.Record(context.Background(), Entry{
		ErrorType:          apperrors.ErrCodeRemoteMirrorExhausted,
		ConsultationNumber: "상담1001",
		Phone:              "01012345678",
		AcquisitionSource:  "converted",
		Message:            "connection refused",
		Details:            map[string]interface{}{"operation": "insert"},
		RetryCount:         3,
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSink_InsertFailureIsSwallowed(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO error_logs").WillReturnError(errors.New("db down"))

	sink := NewPostgresSink(database.NewPostgresFromDB(db), logger.NewTestLogger(t))
	assert.NotPanics(t, func() {
		sink.Record(context.Background(), Entry{
			ErrorType: apperrors.ErrCodeNumberGenerationDegraded,
			Message:   "counter unavailable",
		})
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}
