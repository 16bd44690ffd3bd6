package submitdirect

import (
	"context"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"lead-intake/internal/common/camunda"
	"lead-intake/internal/common/logger"
	"lead-intake/internal/intake/conversion"
	"lead-intake/internal/models"
)

const TaskType = "lead.submit-direct"

type Submitter interface {
	SubmitDirect(ctx context.Context, contact models.Contact, channel models.Channel, answers models.Answers) (*conversion.Result, error)
}

type Handler struct {
	config    *Config
	submitter Submitter
	jobs      *camunda.Jobs
	logger    logger.Logger
}

func NewHandler(config *Config, submitter Submitter, jobs *camunda.Jobs, log logger.Logger) *Handler {
	return &Handler{
		config:    config,
		submitter: submitter,
		jobs:      jobs,
		logger:    log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":             job.Key,
		"processInstanceKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	var input Input
	if err := h.jobs.Decode(job, TaskType, &input); err != nil {
		h.jobs.Finish(ctx, client, job, TaskType, start, nil, err)
		return
	}

	output, err := h.Execute(ctx, &input)
	h.jobs.Finish(ctx, client, job, TaskType, start, output, err)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	res, err := h.submitter.SubmitDirect(ctx, input.Contact, input.Channel, input.Answers)
	if err != nil {
		return nil, err
	}
	return &Output{
		RecordID:           res.Record.ID,
		ConsultationNumber: res.ConsultationNumber,
		Registered:         res.Registered,
		IsDuplicate:        res.Record.IsDuplicate,
		DuplicateCount:     res.Record.DuplicateCount,
	}, nil
}
