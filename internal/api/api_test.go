package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"lead-intake/internal/common/auth"
	"lead-intake/internal/common/crm"
	apperrors "lead-intake/internal/common/errors"
	"lead-intake/internal/common/logger"
	"lead-intake/internal/common/validation"
	"lead-intake/internal/intake/conversion"
	"lead-intake/internal/intake/store"
	"lead-intake/internal/models"
	"lead-intake/pkg/registry"
)

type mockIntake struct {
	mock.Mock
}

func (m *mockIntake) Score(answers models.Answers) conversion.Diagnosis {
	return m.Called(answers).Get(0).(conversion.Diagnosis)
}

func (m *mockIntake) SubmitQuiz(ctx context.Context, answers models.Answers) (*models.DiagnosisRecord, error) {
	args := m.Called(ctx, answers)
	rec, _ := args.Get(0).(*models.DiagnosisRecord)
	return rec, args.Error(1)
}

func (m *mockIntake) SubmitDirect(ctx context.Context, contact models.Contact, channel models.Channel, answers models.Answers) (*conversion.Result, error) {
	args := m.Called(ctx, contact, channel, answers)
	res, _ := args.Get(0).(*conversion.Result)
	return res, args.Error(1)
}

func (m *mockIntake) Convert(ctx context.Context, id string, contact models.Contact) (*conversion.Result, error) {
	args := m.Called(ctx, id, contact)
	res, _ := args.Get(0).(*conversion.Result)
	return res, args.Error(1)
}

func (m *mockIntake) Get(ctx context.Context, id string) (*models.DiagnosisRecord, error) {
	args := m.Called(ctx, id)
	rec, _ := args.Get(0).(*models.DiagnosisRecord)
	return rec, args.Error(1)
}

type fakeAdmin struct {
	records  []models.DiagnosisRecord
	err      error
	filters  []store.Filter
	purged   []string
	purgeRes store.PurgeResult
}

func (f *fakeAdmin) Query(_ context.Context, flt store.Filter) (*store.Page, error) {
	f.filters = append(f.filters, flt)
	if f.err != nil {
		return nil, f.err
	}
	limit := flt.Limit
	if limit <= 0 {
		limit = store.DefaultPageSize
	}
	end := min(flt.Offset+limit, len(f.records))
	start := min(flt.Offset, end)
	return &store.Page{Total: len(f.records), Limit: limit, Offset: flt.Offset, Records: f.records[start:end]}, nil
}

func (f *fakeAdmin) Purge(_ context.Context, ids []string) (store.PurgeResult, error) {
	f.purged = ids
	return f.purgeRes, f.err
}

var testAuth = auth.JWTConfig{Secret: []byte("api-test-secret"), Issuer: "lead-intake"}

func newTestServer(t *testing.T, intake *mockIntake, admin *fakeAdmin, checks map[string]HealthCheck) *Server {
	t.Helper()
	reg, err := registry.Default()
	require.NoError(t, err)
	v := validation.NewValidator()
	require.NoError(t, reg.RegisterInputSchemas(v))

	return NewServer(Deps{
		Intake:    intake,
		Admin:     admin,
		Validator: v,
		Auth:      testAuth,
		Checks:    checks,
		Logger:    logger.NewTestLogger(t),
		Version:   "test",
	})
}

func do(t *testing.T, s *Server, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func adminHeader(t *testing.T) []string {
	t.Helper()
	token, err := auth.Issue(testAuth, "ops", []string{auth.RoleAdmin}, time.Hour)
	require.NoError(t, err)
	return []string{"Authorization", "Bearer " + token}
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body.Code
}

func TestScore(t *testing.T) {
	intake := &mockIntake{}
	intake.On("Score", models.Answers{"1": models.Text("미혼")}).Return(conversion.Diagnosis{
		Result: models.EligibilityResult{Recommendation: models.RecommendRecovery},
	})
	s := newTestServer(t, intake, &fakeAdmin{}, nil)

	rec := do(t, s, http.MethodPost, "/api/v1/diagnosis/score", `{"answers":{"1":"미혼"}}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"recommendation":"recovery"`)
	intake.AssertExpectations(t)
}

func TestScore_SchemaViolation(t *testing.T) {
	s := newTestServer(t, &mockIntake{}, &fakeAdmin{}, nil)

	rec := do(t, s, http.MethodPost, "/api/v1/diagnosis/score", `{"answers":{"1":42}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(apperrors.ErrCodeInputValidationFailed), errorCode(t, rec))

	rec = do(t, s, http.MethodPost, "/api/v1/diagnosis/score", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitQuiz(t *testing.T) {
	intake := &mockIntake{}
	intake.On("SubmitQuiz", mock.Anything, mock.Anything).Return(&models.DiagnosisRecord{
		ID:                "rec-1",
		AcquisitionSource: models.SourceTest,
	}, nil)
	s := newTestServer(t, intake, &fakeAdmin{}, nil)

	rec := do(t, s, http.MethodPost, "/api/v1/diagnosis", `{"answers":{"5":["부동산","예금"]}}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"rec-1"`)
}

func TestSubmitQuiz_LocalStorageUnavailable(t *testing.T) {
	intake := &mockIntake{}
	intake.On("SubmitQuiz", mock.Anything, mock.Anything).
		Return(nil, apperrors.NewLocalStorageUnavailableError(errors.New("disk I/O error")))
	s := newTestServer(t, intake, &fakeAdmin{}, nil)

	rec := do(t, s, http.MethodPost, "/api/v1/diagnosis", `{"answers":{}}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, string(apperrors.ErrCodeLocalStorageUnavailable), errorCode(t, rec))
	assert.Contains(t, rec.Body.String(), "could not be saved")
}

func TestSubmitDirect(t *testing.T) {
	intake := &mockIntake{}
	contact := models.Contact{Name: "홍길동", Phone: "010-1234-5678"}
	intake.On("SubmitDirect", mock.Anything, contact, models.ChannelFooterBar, models.Answers(nil)).
		Return(&conversion.Result{ConsultationNumber: "상담1001", Registered: true}, nil)
	s := newTestServer(t, intake, &fakeAdmin{}, nil)

	rec := do(t, s, http.MethodPost, "/api/v1/leads",
		`{"channel":"footer_bar","contact":{"name":"홍길동","phone":"010-1234-5678"}}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"consultationNumber":"상담1001"`)
	intake.AssertExpectations(t)

	rec = do(t, s, http.MethodPost, "/api/v1/leads",
		`{"channel":"banner","contact":{"name":"홍길동","phone":"010-1234-5678"}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConvert(t *testing.T) {
	intake := &mockIntake{}
	contact := models.Contact{Name: "홍길동", Phone: "01012345678", Residence: "서울"}
	intake.On("Convert", mock.Anything, "rec-1", contact).
		Return(&conversion.Result{ConsultationNumber: "상담1002", Registered: false}, nil)
	intake.On("Convert", mock.Anything, "rec-2", mock.Anything).
		Return(nil, apperrors.NewConversionInProgressError("rec-2"))
	s := newTestServer(t, intake, &fakeAdmin{}, nil)

	body := `{"contact":{"name":"홍길동","phone":"01012345678","residence":"서울"}}`
	rec := do(t, s, http.MethodPost, "/api/v1/records/rec-1/convert", body)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"registered":false`)

	rec = do(t, s, http.MethodPost, "/api/v1/records/rec-2/convert", body)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, s, http.MethodPost, "/api/v1/records/rec-1/convert", `{"contact":{"phone":"01012345678"}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "name is required")
	intake.AssertNumberOfCalls(t, "Convert", 2)
}

func TestGetRecord(t *testing.T) {
	intake := &mockIntake{}
	intake.On("Get", mock.Anything, "rec-1").Return(&models.DiagnosisRecord{ID: "rec-1"}, nil)
	intake.On("Get", mock.Anything, "missing").Return(nil, apperrors.NewRecordNotFoundError("missing"))
	s := newTestServer(t, intake, &fakeAdmin{}, nil)

	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/api/v1/records/rec-1", "").Code)

	rec := do(t, s, http.MethodGet, "/api/v1/records/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, string(apperrors.ErrCodeRecordNotFound), errorCode(t, rec))
}

func TestAdmin_RequiresToken(t *testing.T) {
	s := newTestServer(t, &mockIntake{}, &fakeAdmin{}, nil)

	assert.Equal(t, http.StatusUnauthorized, do(t, s, http.MethodGet, "/api/v1/admin/records", "").Code)

	viewer, err := auth.Issue(testAuth, "viewer", []string{"viewer"}, time.Hour)
	require.NoError(t, err)
	rec := do(t, s, http.MethodGet, "/api/v1/admin/records", "", "Authorization", "Bearer "+viewer)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAdmin_ListRecordsParsesFilter(t *testing.T) {
	admin := &fakeAdmin{records: []models.DiagnosisRecord{{ID: "a"}, {ID: "b"}}}
	s := newTestServer(t, &mockIntake{}, admin, nil)

	rec := do(t, s, http.MethodGet,
		"/api/v1/admin/records?from=2024-03-01&to=2024-03-31&source=converted&recommendation=both&sort=reduction&order=asc&limit=10&offset=0",
		"", adminHeader(t)...)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var page store.Page
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 2, page.Total)

	require.Len(t, admin.filters, 1)
	f := admin.filters[0]
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, crm.Seoul()), f.From)
	assert.Equal(t, time.Date(2024, 4, 1, 0, 0, 0, 0, crm.Seoul()), f.To)
	assert.Equal(t, models.SourceConverted, f.Source)
	assert.Equal(t, models.RecommendBoth, f.Recommendation)
	assert.Equal(t, "reduction", f.Sort)
	assert.True(t, f.Ascending)
	assert.Equal(t, 10, f.Limit)
}

func TestAdmin_ListRecordsRejectsBadParams(t *testing.T) {
	s := newTestServer(t, &mockIntake{}, &fakeAdmin{}, nil)
	h := adminHeader(t)

	for _, q := range []string{"from=03/01/2024", "sort=name", "source=web", "limit=-1"} {
		rec := do(t, s, http.MethodGet, "/api/v1/admin/records?"+q, "", h...)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestAdmin_NoRemote(t *testing.T) {
	s := newTestServer(t, &mockIntake{}, &fakeAdmin{err: store.ErrNoRemote}, nil)

	rec := do(t, s, http.MethodGet, "/api/v1/admin/records", "", adminHeader(t)...)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAdmin_ExportPagesThroughAllRecords(t *testing.T) {
	records := make([]models.DiagnosisRecord, store.MaxPageSize+3)
	for i := range records {
		records[i] = models.DiagnosisRecord{ID: "r", ConsultationNumber: "상담1", AcquisitionSource: models.SourceTest}
	}
	admin := &fakeAdmin{records: records}
	s := newTestServer(t, &mockIntake{}, admin, nil)

	rec := do(t, s, http.MethodGet, "/api/v1/admin/records.csv", "", adminHeader(t)...)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")

	require.Len(t, admin.filters, 2)
	assert.Equal(t, store.MaxPageSize, admin.filters[1].Offset)

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	assert.Len(t, lines, len(records)+1)
}

func TestAdmin_Purge(t *testing.T) {
	admin := &fakeAdmin{purgeRes: store.PurgeResult{Local: 2, Remote: 1}}
	s := newTestServer(t, &mockIntake{}, admin, nil)
	h := adminHeader(t)

	rec := do(t, s, http.MethodDelete, "/api/v1/admin/records", `{"ids":["a","b"]}`, h...)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"local":2,"remote":1}`, rec.Body.String())
	assert.Equal(t, []string{"a", "b"}, admin.purged)

	rec = do(t, s, http.MethodDelete, "/api/v1/admin/records", `{"ids":[]}`, h...)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, &mockIntake{}, &fakeAdmin{}, map[string]HealthCheck{
		"local": func(context.Context) error { return nil },
	})
	rec := do(t, s, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)

	s = newTestServer(t, &mockIntake{}, &fakeAdmin{}, map[string]HealthCheck{
		"local":  func(context.Context) error { return nil },
		"remote": func(context.Context) error { return errors.New("connection refused") },
	})
	rec = do(t, s, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, &mockIntake{}, &fakeAdmin{}, nil)
	rec := do(t, s, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
