package convertlead

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

const TaskType = "lead.convert"

type Converter interface {
	Convert(ctx context.Context, id string, contact models.Contact) (*conversion.Result, error)
}

type Handler struct {
	config    *Config
	converter Converter
	jobs      *camunda.Jobs
	logger    logger.Logger
}

func NewHandler(config *Config, converter Converter, jobs *camunda.Jobs, log logger.Logger) *Handler {
	return &Handler{
		config:    config,
		converter: converter,
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

// Execute converts the record. A CRM failure still completes the job with
// registered=false so the process can branch on it.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	res, err := h.converter.Convert(ctx, input.RecordID, input.Contact)
	if err != nil {
		return nil, err
	}

	out := &Output{
		ConsultationNumber: res.ConsultationNumber,
		Registered:         res.Registered,
		AlreadyConverted:   res.AlreadyConverted,
	}
	if res.Record != nil {
		out.RecordID = res.Record.ID
		out.IsDuplicate = res.Record.IsDuplicate
		out.DuplicateCount = res.Record.DuplicateCount
	}
	return out, nil
}
