package camunda

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"

	"lead-intake/internal/common/config"
	apperrors "lead-intake/internal/common/errors"
	"lead-intake/internal/common/logger"
	"lead-intake/internal/common/metrics"
	"lead-intake/internal/common/observability"
	"lead-intake/internal/common/validation"
)

type JobHandler interface {
	Handle(client worker.JobClient, job entities.Job)
}

type Worker struct {
	worker   worker.JobWorker
	logger   logger.Logger
	taskType string
}

// StartWorker opens a job worker for taskType. It returns nil when the
// worker is disabled.
func StartWorker(client zbc.Client, taskType string, wcfg config.WorkerConfig, handler JobHandler, log logger.Logger) *Worker {
	log = log.WithFields(map[string]interface{}{"taskType": taskType})
	if !wcfg.Enabled {
		log.Info("worker disabled", nil)
		return nil
	}

	jobWorker := client.NewJobWorker().
		JobType(taskType).
		Handler(handler.Handle).
		MaxJobsActive(wcfg.MaxJobsActive).
		Timeout(config.GetDuration(wcfg.Timeout)).
		Open()

	log.Info("worker started", map[string]interface{}{
		"maxJobsActive": wcfg.MaxJobsActive,
		"timeoutMs":     wcfg.Timeout,
	})
	return &Worker{worker: jobWorker, logger: log, taskType: taskType}
}

// Stop closes the worker and waits for in-flight jobs.
func (w *Worker) Stop() {
	if w == nil {
		return
	}
	w.logger.Info("stopping worker", nil)
	w.worker.Close()
	w.worker.AwaitClose()
}

// Jobs holds the plumbing shared by every job handler: input validation,
// completion, failure mapping and metrics.
type Jobs struct {
	validator *validation.Validator
	errors    *apperrors.ErrorHandler
	obs       *observability.Observability
	logger    logger.Logger
}

func NewJobs(v *validation.Validator, obs *observability.Observability, log logger.Logger) *Jobs {
	return &Jobs{
		validator: v,
		errors:    apperrors.NewErrorHandler(log),
		obs:       obs,
		logger:    log,
	}
}

// Decode validates the job variables against the schema registered under
// taskType and unmarshals them into out.
func (j *Jobs) Decode(job entities.Job, taskType string, out interface{}) error {
	raw := []byte(job.Variables)

	var doc map[string]interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return apperrors.NewInputValidationError(fmt.Sprintf("parse variables: %v", err))
	}

	if j.validator != nil {
		result, err := j.validator.Validate(taskType, doc)
		if err != nil {
			return apperrors.NewInternalError(err)
		}
		if !result.Valid {
			return apperrors.NewInputValidationError(fmt.Sprintf("%v", result.GetErrorMessages()))
		}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return apperrors.NewInputValidationError(fmt.Sprintf("parse variables: %v", err))
	}
	return nil
}

// Finish completes the job with output, or hands err to the BPMN error
// handler.
func (j *Jobs) Finish(ctx context.Context, client worker.JobClient, job entities.Job, taskType string, start time.Time, output interface{}, err error) {
	elapsed := time.Since(start)
	metrics.WorkerJobDuration.WithLabelValues(taskType).Observe(elapsed.Seconds())

	if err != nil {
		code := apperrors.Normalize(err).Code
		metrics.WorkerJobsFailed.WithLabelValues(taskType, string(code)).Inc()
		j.obs.Record(ctx, observability.SurfaceJob, taskType, "error", elapsed)
		j.errors.HandleJobError(ctx, client, job, err)
		return
	}

	if err := completeJob(ctx, client, job, output); err != nil {
		j.logger.Error("failed to complete job", map[string]interface{}{
			"taskType": taskType,
			"jobKey":   job.Key,
			"error":    err.Error(),
		})
		j.obs.Record(ctx, observability.SurfaceJob, taskType, "error", elapsed)
		return
	}

	metrics.WorkerJobsCompleted.WithLabelValues(taskType).Inc()
	j.obs.Record(ctx, observability.SurfaceJob, taskType, "ok", elapsed)
	j.logger.Info("job completed", map[string]interface{}{
		"taskType":  taskType,
		"jobKey":    job.Key,
		"elapsedMs": elapsed.Milliseconds(),
	})
}

func completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output interface{}) error {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		return fmt.Errorf("build complete command: %w", err)
	}
	_, err = cmd.Send(ctx)
	return err
}
