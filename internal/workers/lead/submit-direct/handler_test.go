package submitdirect

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

type mockSubmitter struct {
	mock.Mock
}

func (m *mockSubmitter) SubmitDirect(ctx context.Context, contact models.Contact, channel models.Channel, answers models.Answers) (*conversion.Result, error) {
	args := m.Called(ctx, contact, channel, answers)
	res, _ := args.Get(0).(*conversion.Result)
	return res, args.Error(1)
}

func newTestHandler(t *testing.T, s Submitter) *Handler {
	log := logger.NewTestLogger(t)
	return NewHandler(LoadConfig(config.WorkerConfig{}), s, camunda.NewJobs(nil, nil, log), log)
}

func TestExecute(t *testing.T) {
	contact := models.Contact{Name: "김민수", Phone: "01098765432"}
	sub := &mockSubmitter{}
	sub.On("SubmitDirect", mock.Anything, contact, models.ChannelHeaderButton, models.Answers(nil)).
		Return(&conversion.Result{
			Record:             &models.DiagnosisRecord{ID: "rec-9", DuplicateCount: 1},
			ConsultationNumber: "상담1003",
			Registered:         true,
		}, nil)

	out, err := newTestHandler(t, sub).Execute(context.Background(), &Input{
		Channel: models.ChannelHeaderButton,
		Contact: contact,
	})
	require.NoError(t, err)
	assert.Equal(t, "rec-9", out.RecordID)
	assert.Equal(t, "상담1003", out.ConsultationNumber)
	assert.True(t, out.Registered)
	assert.Equal(t, 1, out.DuplicateCount)
}

func TestExecute_LocalFailure(t *testing.T) {
	sub := &mockSubmitter{}
	sub.On("SubmitDirect", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, apperrors.NewLocalStorageUnavailableError(errors.New("read-only file system")))

	_, err := newTestHandler(t, sub).Execute(context.Background(), &Input{Channel: models.ChannelFooterBar})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeLocalStorageUnavailable))
}
