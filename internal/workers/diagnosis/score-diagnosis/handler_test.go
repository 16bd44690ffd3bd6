package scorediagnosis

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"lead-intake/internal/common/camunda"
	"lead-intake/internal/common/config"
	apperrors "lead-intake/internal/common/errors"
	"lead-intake/internal/common/logger"
	"lead-intake/internal/intake/conversion"
	"lead-intake/internal/models"
)

type mockService struct {
	mock.Mock
}

func (m *mockService) Score(answers models.Answers) conversion.Diagnosis {
	return m.Called(answers).Get(0).(conversion.Diagnosis)
}

func (m *mockService) SubmitQuiz(ctx context.Context, answers models.Answers) (*models.DiagnosisRecord, error) {
	args := m.Called(ctx, answers)
	rec, _ := args.Get(0).(*models.DiagnosisRecord)
	return rec, args.Error(1)
}

func newTestHandler(t *testing.T, svc Service) *Handler {
	log := logger.NewTestLogger(t)
	return NewHandler(LoadConfig(config.WorkerConfig{}), svc, camunda.NewJobs(nil, nil, log), log)
}

func TestExecute_ScoreOnly(t *testing.T) {
	svc := &mockService{}
	answers := models.Answers{models.QuestionMaritalStatus: models.Text("미혼")}
	svc.On("Score", answers).Return(conversion.Diagnosis{
		Coded:     models.CodedAnswers{MaritalStatus: models.MaritalSingle},
		Result:    models.EligibilityResult{Recommendation: models.RecommendNone},
		Defaulted: []string{"6"},
	})

	out, err := newTestHandler(t, svc).Execute(context.Background(), &Input{Answers: answers})
	require.NoError(t, err)
	assert.Equal(t, models.MaritalSingle, out.CodedAnswers.MaritalStatus)
	assert.Equal(t, []string{"6"}, out.Defaulted)
	assert.Empty(t, out.RecordID)
	svc.AssertNotCalled(t, "SubmitQuiz", mock.Anything, mock.Anything)
}

func TestExecute_Persist(t *testing.T) {
	svc := &mockService{}
	svc.On("SubmitQuiz", mock.Anything, mock.Anything).Return(&models.DiagnosisRecord{
		ID:           "rec-1",
		CodedAnswers: &models.CodedAnswers{TotalDebt: 20000},
		Result:       &models.EligibilityResult{Recommendation: models.RecommendBoth},
	}, nil)

	out, err := newTestHandler(t, svc).Execute(context.Background(), &Input{Persist: true})
	require.NoError(t, err)
	assert.Equal(t, "rec-1", out.RecordID)
	assert.Equal(t, 20000, out.CodedAnswers.TotalDebt)
	assert.Equal(t, models.RecommendBoth, out.Result.Recommendation)
}

func TestExecute_PersistFailure(t *testing.T) {
	svc := &mockService{}
	svc.On("SubmitQuiz", mock.Anything, mock.Anything).
		Return(nil, apperrors.NewLocalStorageUnavailableError(errors.New("disk full")))

	_, err := newTestHandler(t, svc).Execute(context.Background(), &Input{Persist: true})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeLocalStorageUnavailable))
}
