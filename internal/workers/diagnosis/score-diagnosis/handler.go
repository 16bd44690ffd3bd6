package scorediagnosis

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

const TaskType = "diagnosis.score"

type Service interface {
	Score(answers models.Answers) conversion.Diagnosis
	SubmitQuiz(ctx context.Context, answers models.Answers) (*models.DiagnosisRecord, error)
}

type Handler struct {
	config  *Config
	service Service
	jobs    *camunda.Jobs
	logger  logger.Logger
}

func NewHandler(config *Config, service Service, jobs *camunda.Jobs, log logger.Logger) *Handler {
	return &Handler{
		config:  config,
		service: service,
		jobs:    jobs,
		logger:  log.WithFields(map[string]interface{}{"taskType": TaskType}),
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

// Execute scores the answers and, when asked, stores them as a test record.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if !input.Persist {
		diag := h.service.Score(input.Answers)
		return &Output{CodedAnswers: diag.Coded, Result: diag.Result, Defaulted: diag.Defaulted}, nil
	}

	rec, err := h.service.SubmitQuiz(ctx, input.Answers)
	if err != nil {
		return nil, err
	}
	out := &Output{RecordID: rec.ID}
	if rec.CodedAnswers != nil {
		out.CodedAnswers = *rec.CodedAnswers
	}
	if rec.Result != nil {
		out.Result = *rec.Result
	}
	return out, nil
}
