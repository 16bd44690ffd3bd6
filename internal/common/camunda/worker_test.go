package camunda

import (
	"testing"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "lead-intake/internal/common/errors"
	"lead-intake/internal/common/logger"
	"lead-intake/internal/common/validation"
	"lead-intake/pkg/registry"
)

func jobWith(variables string) entities.Job {
	return entities.Job{ActivatedJob: &pb.ActivatedJob{Key: 42, Variables: variables}}
}

func newTestJobs(t *testing.T) *Jobs {
	t.Helper()
	reg, err := registry.Default()
	require.NoError(t, err)
	v := validation.NewValidator()
	require.NoError(t, reg.RegisterInputSchemas(v))
	return NewJobs(v, nil, logger.NewTestLogger(t))
}

func TestJobs_Decode(t *testing.T) {
	jobs := newTestJobs(t)

	var input struct {
		RecordID string `json:"recordId"`
		Contact  struct {
			Name  string `json:"name"`
			Phone string `json:"phone"`
		} `json:"contact"`
	}
	err := jobs.Decode(jobWith(`{"recordId":"rec-1","contact":{"name":"홍길동","phone":"01012345678"},"extra":1}`), "lead.convert", &input)
	require.NoError(t, err)
	assert.Equal(t, "rec-1", input.RecordID)
	assert.Equal(t, "홍길동", input.Contact.Name)
}

func TestJobs_DecodeRejects(t *testing.T) {
	jobs := newTestJobs(t)
	var out map[string]interface{}

	err := jobs.Decode(jobWith(`{"recordId":"rec-1"}`), "lead.convert", &out)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInputValidationFailed))

	err = jobs.Decode(jobWith(`not json`), "lead.convert", &out)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInputValidationFailed))

	err = jobs.Decode(jobWith(`{"channel":"banner","contact":{"name":"a","phone":"01012345678"}}`), "lead.submit-direct", &out)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInputValidationFailed))
}
