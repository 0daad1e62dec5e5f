package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/vertigo/eventtimeline/internal/model"
	"github.com/vertigo/eventtimeline/internal/scheduler"
	"github.com/vertigo/eventtimeline/internal/service"
	"github.com/vertigo/eventtimeline/pkg/response"
)

// JobTracker records job state. *service.JobService implements it.
type JobTracker interface {
	Job(ctx context.Context, jobID string) (*model.Job, error)
	UpdateProgress(ctx context.Context, jobID string, progress int, step string) error
	Complete(ctx context.Context, jobID string, result *model.PlanResponse) error
	Fail(ctx context.Context, jobID, code, msg string, detail interface{}) error
	RecordRetry(ctx context.Context, jobID string, retries int) error
}

// Broadcaster pushes job events to subscribers. *websocket.Hub implements it.
type Broadcaster interface {
	BroadcastProgress(jobID string, progress int, status model.JobStatus, stage string)
	BroadcastComplete(jobID string, result interface{})
	BroadcastError(jobID string, code, message string)
}

// Planner runs the engine. *service.TimelineService implements it.
type Planner interface {
	PlanWithProgress(ctx context.Context, req *model.PlanRequest, progress func(scheduler.Stage)) (*model.PlanResponse, error)
}

// PlanWorker processes planning tasks
type PlanWorker struct {
	planner Planner
	jobs    JobTracker
	hub     Broadcaster
	logger  *slog.Logger
}

// NewPlanWorker creates a new plan worker
func NewPlanWorker(planner Planner, jobs JobTracker, hub Broadcaster, logger *slog.Logger) *PlanWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &PlanWorker{planner: planner, jobs: jobs, hub: hub, logger: logger}
}

// ProcessTask handles a timeline:plan task. Planning failures are permanent
// and skip retries; job store failures are returned for asynq to retry.
func (w *PlanWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload model.PlanTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %v: %w", err, asynq.SkipRetry)
	}
	jobID := payload.JobID
	log := w.logger.With("job_id", jobID)

	job, err := w.jobs.Job(ctx, jobID)
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			log.Warn("Job record expired, dropping task")
			return fmt.Errorf("job %s: %v: %w", jobID, err, asynq.SkipRetry)
		}
		return fmt.Errorf("failed to load job %s: %w", jobID, err)
	}
	if job.Status == model.JobStatusCanceled {
		log.Info("Job canceled before it started")
		return nil
	}
	if retries, ok := asynq.GetRetryCount(ctx); ok && retries > 0 {
		if err := w.jobs.RecordRetry(ctx, jobID, retries); err != nil {
			log.Warn("Failed to record retry", "error", err)
		}
	}

	log.Info("Starting planning job", "performers", len(payload.Request.Performers))

	canceled := false
	result, err := w.planner.PlanWithProgress(ctx, &payload.Request, func(stage scheduler.Stage) {
		if canceled {
			return
		}
		progress := stageProgress(stage)
		if err := w.jobs.UpdateProgress(ctx, jobID, progress, string(stage)); err != nil {
			if errors.Is(err, service.ErrJobCanceled) {
				canceled = true
				return
			}
			log.Warn("Failed to update progress", "stage", stage, "error", err)
		}
		w.hub.BroadcastProgress(jobID, progress, model.JobStatusRunning, string(stage))
	})
	if canceled {
		log.Info("Job canceled while planning, discarding result")
		return nil
	}
	if err != nil {
		info, ok := service.DescribeError(err)
		if !ok {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			info = service.ErrorInfo{Code: response.CodeJobFailed, Message: err.Error()}
		}
		if errors.Is(w.failJob(ctx, jobID, info), service.ErrJobCanceled) {
			log.Info("Job canceled while planning, discarding error", "code", info.Code)
			return nil
		}
		log.Info("Planning job failed", "code", info.Code, "error", err)
		return fmt.Errorf("plan job %s: %v: %w", jobID, err, asynq.SkipRetry)
	}

	if err := w.jobs.Complete(ctx, jobID, result); err != nil {
		if errors.Is(err, service.ErrJobCanceled) {
			log.Info("Job canceled while planning, discarding result")
			return nil
		}
		return fmt.Errorf("failed to save result of job %s: %w", jobID, err)
	}
	w.hub.BroadcastComplete(jobID, result)

	log.Info("Planning job completed", "entries", len(result.Schedule), "warnings", len(result.Warnings))
	return nil
}

// failJob records and broadcasts a failure unless the job was canceled, in
// which case service.ErrJobCanceled is returned and nothing is sent.
func (w *PlanWorker) failJob(ctx context.Context, jobID string, info service.ErrorInfo) error {
	err := w.jobs.Fail(ctx, jobID, info.Code, info.Message, info.Details)
	if errors.Is(err, service.ErrJobCanceled) {
		return err
	}
	if err != nil {
		w.logger.Error("Failed to mark job as failed", "job_id", jobID, "error", err)
	}
	w.hub.BroadcastError(jobID, info.Code, info.Message)
	return nil
}

// stageProgress spreads the stages evenly below 100, which is reserved for
// the stored result.
func stageProgress(stage scheduler.Stage) int {
	for i, s := range scheduler.Stages {
		if s == stage {
			return (i + 1) * 100 / (len(scheduler.Stages) + 1)
		}
	}
	return 0
}
