package store

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lead-intake/internal/common/database"
	"lead-intake/internal/models"
)

func newMockRemote(t *testing.T) (*RemoteStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRemoteStore(database.NewPostgresFromDB(db)), mock
}

func TestRemoteStore_InsertQuestionnaireRecord(t *testing.T) {
	r, mock := newMockRemote(t)
	rec := testRecord("7d0f3d52-5c1b-4c4e-9a36-0a0c4f1e9a01", models.SourceTest, time.Now())

	mock.ExpectExec("INSERT INTO diagnosis_records").
		WithArgs(
			rec.ID,
			sqlmock.AnyArg(),
			sqlmock.AnyArg(),
			"pending",
			models.PlaceholderName,
			"",
			"",
			"",
			nil,
			"test",
			sqlmock.AnyArg(),
			sqlmock.AnyArg(),
			false,
			1,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, r.Insert(context.Background(), rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRemoteStore_InsertDirectLeadHasNullQuestionnaire(t *testing.T) {
	r, mock := newMockRemote(t)
	rec := &models.DiagnosisRecord{
		ID:                 "7d0f3d52-5c1b-4c4e-9a36-0a0c4f1e9a02",
		Status:             models.StatusRegistered,
		AcquisitionSource:  models.ChannelHeaderButton.Source(),
		ConsultationNumber: "상담1002",
		Contact:            models.Contact{Name: "상담1002", Phone: "01012345678", ConsultationType: "개인회생"},
		DuplicateCount:     1,
	}

	mock.ExpectExec("INSERT INTO diagnosis_records").
		WithArgs(
			rec.ID, sqlmock.AnyArg(), sqlmock.AnyArg(), "registered",
			"상담1002", "01012345678", "", "개인회생", "상담1002", "header_button",
			nil, nil, false, 1,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, r.Insert(context.Background(), rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRemoteStore_UpdateByID(t *testing.T) {
	r, mock := newMockRemote(t)
	rec := testRecord("id-1", models.SourceConverted, time.Now())

	mock.ExpectExec(`UPDATE diagnosis_records .* WHERE id = \$11`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, r.Update(context.Background(), rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRemoteStore_UpdateFallsBackToMostRecentTest(t *testing.T) {
	r, mock := newMockRemote(t)
	rec := testRecord("id-1", models.SourceConverted, time.Now())

	mock.ExpectExec(`UPDATE diagnosis_records .* WHERE id = \$11`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`UPDATE diagnosis_records .* acquisition_source = 'test'`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, r.Update(context.Background(), rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRemoteStore_UpdateInsertsWhenNothingMatches(t *testing.T) {
	r, mock := newMockRemote(t)
	rec := testRecord("id-1", models.SourceConverted, time.Now())

	mock.ExpectExec(`UPDATE diagnosis_records`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`UPDATE diagnosis_records`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO diagnosis_records").WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, r.Update(context.Background(), rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRemoteStore_UpdateError(t *testing.T) {
	r, mock := newMockRemote(t)
	mock.ExpectExec(`UPDATE diagnosis_records`).WillReturnError(errors.New("connection reset"))

	err := r.Update(context.Background(), testRecord("id-1", models.SourceConverted, time.Now()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestRemoteStore_Delete(t *testing.T) {
	r, mock := newMockRemote(t)
	ids := []string{"a", "b"}

	mock.ExpectExec(`DELETE FROM diagnosis_records WHERE id = ANY`).
		WithArgs(pq.Array(ids)).
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := r.Delete(context.Background(), ids)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

var remoteColumns = []string{
	"id", "created_at", "updated_at", "status", "customer_name", "phone", "residence",
	"consultation_type", "consultation_number", "acquisition_source", "test_answers", "debt_info",
	"is_duplicate", "duplicate_count",
}

func TestRemoteStore_Query(t *testing.T) {
	r, mock := newMockRemote(t)
	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	created := time.Date(2024, 3, 5, 1, 30, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM diagnosis_records WHERE created_at >= \$1 AND debt_info->>'recommendation' = \$2 AND debt_info->'reduction'->>'comparison' = \$3`).
		WithArgs(from, "bankruptcy", "high").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	mock.ExpectQuery(`SELECT .* FROM diagnosis_records WHERE .* ORDER BY created_at DESC NULLS LAST, id LIMIT \$4 OFFSET \$5`).
		WithArgs(from, "bankruptcy", "high", DefaultPageSize, 0).
		WillReturnRows(sqlmock.NewRows(remoteColumns).AddRow(
			"id-1", created, created, "registered", "상담1001", "01012345678", "서울",
			"개인회생", "상담1001", "converted",
			[]byte(`{"originalAnswers":{"1":"미혼"},"codedAnswers":{"maritalStatus":2,"hasMinorChildren":false,"numberOfChildren":0,"incomeType":1,"monthlyIncome":0,"assets":[],"totalDebt":3000}}`),
			[]byte(`{"recommendation":"bankruptcy","reduction":{"currentDebt":3000,"percentage":100,"comparison":"high"}}`),
			false, 1,
		))

	page, err := r.Query(context.Background(), Filter{
		From:           from,
		Recommendation: models.RecommendBankruptcy,
		Band:           models.BandHigh,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, 1, page.Total)
	assert.Equal(t, DefaultPageSize, page.Limit)
	require.Len(t, page.Records, 1)
	rec := page.Records[0]
	assert.Equal(t, "상담1001", rec.ConsultationNumber)
	assert.Equal(t, models.SourceConverted, rec.AcquisitionSource)
	assert.Equal(t, "미혼", rec.OriginalAnswers.Text("1"))
	require.NotNil(t, rec.CodedAnswers)
	assert.Equal(t, 3000, rec.CodedAnswers.TotalDebt)
	require.NotNil(t, rec.Result)
	assert.Equal(t, 100, rec.Result.Reduction.Percentage)
}

func TestRemoteStore_QueryNullQuestionnaire(t *testing.T) {
	r, mock := newMockRemote(t)
	created := time.Date(2024, 3, 5, 1, 30, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM diagnosis_records`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`ORDER BY consultation_number ASC NULLS LAST, id LIMIT \$1 OFFSET \$2`).
		WithArgs(MaxPageSize, 10).
		WillReturnRows(sqlmock.NewRows(remoteColumns).AddRow(
			"id-2", created, created, "registered", "상담1002", "01012345678", "",
			"", nil, "footer_bar", nil, nil, false, 1,
		))

	page, err := r.Query(context.Background(), Filter{
		Sort:      "consultation_number",
		Ascending: true,
		Limit:     10_000,
		Offset:    10,
	})
	require.NoError(t, err)
	require.Len(t, page.Records, 1)
	assert.Nil(t, page.Records[0].CodedAnswers)
	assert.Nil(t, page.Records[0].Result)
	assert.Empty(t, page.Records[0].ConsultationNumber)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFilter_UnknownSortFallsBackToCreatedAt(t *testing.T) {
	assert.Equal(t, " ORDER BY created_at DESC NULLS LAST, id", Filter{Sort: "name; DROP TABLE"}.orderBy())
}

func TestWriteCSV(t *testing.T) {
	created := time.Date(2024, 3, 5, 1, 30, 0, 0, time.UTC)
	withResult := testRecord("a", models.SourceConverted, created)
	withResult.ConsultationNumber = "상담1001"
	withResult.Status = models.StatusRegistered
	withResult.Contact = models.Contact{Name: "상담1001", Phone: "01012345678", Residence: "서울", ConsultationType: "개인회생"}

	direct := models.DiagnosisRecord{
		ID:                "b",
		CreatedAt:         created,
		AcquisitionSource: models.ChannelFooterBar.Source(),
		DuplicateCount:    2,
		IsDuplicate:       true,
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, []models.DiagnosisRecord{*withResult, direct}))

	out := buf.String()
	require.True(t, strings.HasPrefix(out, "\ufeff"))

	rows, err := csv.NewReader(strings.NewReader(strings.TrimPrefix(out, "\ufeff"))).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, csvHeader, rows[0])

	assert.Equal(t, "상담1001", rows[1][0])
	assert.Equal(t, "2024-03-05 10:30:00", rows[1][1])
	assert.Equal(t, "bankruptcy", rows[1][8])
	assert.Equal(t, "3000", rows[1][9])
	assert.Equal(t, "100", rows[1][10])
	assert.Equal(t, "high", rows[1][11])

	assert.Equal(t, "footer_bar", rows[2][6])
	assert.Equal(t, "", rows[2][8])
	assert.Equal(t, "true", rows[2][14])
	assert.Equal(t, "2", rows[2][15])
}
