package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/vertigo/eventtimeline/internal/model"
	"github.com/vertigo/eventtimeline/pkg/response"
)

const (
	TaskTypePlan = "timeline:plan"
	QueuePlan    = "timeline"
)

var (
	ErrJobNotCompleted = errors.New("job not completed")
	ErrJobFinished     = errors.New("job already finished")
	// ErrJobCanceled is returned by the worker-side updates once a job has
	// been canceled. The record is left untouched.
	ErrJobCanceled = errors.New("job canceled")
)

// JobFailedError is returned for the result of a job whose plan failed
type JobFailedError struct {
	Code    string
	Message string
	Detail  json.RawMessage
}

func (e *JobFailedError) Error() string {
	return fmt.Sprintf("job failed: %s", e.Message)
}

// TaskEnqueuer is satisfied by *asynq.Client
type TaskEnqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// JobOptions tune how planning tasks are queued
type JobOptions struct {
	MaxRetry  int
	Retention time.Duration
}

// JobService manages asynchronous planning jobs
type JobService struct {
	store  JobStore
	queue  TaskEnqueuer
	opts   JobOptions
	logger *slog.Logger
	now    func() time.Time
}

func NewJobService(store JobStore, queue TaskEnqueuer, opts JobOptions, logger *slog.Logger) *JobService {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Retention <= 0 {
		opts.Retention = 24 * time.Hour
	}
	return &JobService{store: store, queue: queue, opts: opts, logger: logger, now: time.Now}
}

// Start records a queued job and enqueues its planning task
func (s *JobService) Start(ctx context.Context, req *model.PlanRequest) (*model.JobStartResponse, error) {
	jobID := uuid.New().String()
	now := s.now()

	job := &model.Job{
		ID:        jobID,
		Type:      model.JobTypePlan,
		Status:    model.JobStatusQueued,
		CreatedAt: now,
	}
	if err := s.store.Save(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to save job: %w", err)
	}

	task, err := NewPlanTask(jobID, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	_, err = s.queue.Enqueue(task,
		asynq.Queue(QueuePlan),
		asynq.MaxRetry(s.opts.MaxRetry),
		asynq.Retention(s.opts.Retention),
		asynq.TaskID(jobID),
	)
	if err != nil {
		s.abandon(ctx, job, err)
		return nil, fmt.Errorf("failed to enqueue task: %w", err)
	}

	s.logger.Info("Planning job queued", "job_id", jobID, "performers", len(req.Performers))
	return &model.JobStartResponse{
		JobID:     jobID,
		Status:    model.JobStatusQueued,
		CreatedAt: now,
	}, nil
}

// abandon marks a job that never reached the queue as failed so it does not
// sit in queued until it expires.
func (s *JobService) abandon(ctx context.Context, job *model.Job, cause error) {
	msg := "failed to enqueue planning task"
	now := s.now()
	job.Status = model.JobStatusFailed
	job.ErrorCode = response.CodeServiceError
	job.Error = &msg
	job.CompletedAt = &now
	if err := s.store.Save(ctx, job); err != nil {
		s.logger.Error("Failed to mark unqueued job as failed", "job_id", job.ID, "error", err, "cause", cause)
	}
}

// Status returns the current state of a job
func (s *JobService) Status(ctx context.Context, jobID string) (*model.JobStatusResponse, error) {
	job, err := s.store.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}

	return &model.JobStatusResponse{
		JobID:       job.ID,
		Status:      job.Status,
		Progress:    job.Progress,
		CurrentStep: job.CurrentStep,
		ErrorCode:   job.ErrorCode,
		Error:       job.Error,
		CreatedAt:   job.CreatedAt,
		StartedAt:   job.StartedAt,
		CompletedAt: job.CompletedAt,
		RetryCount:  job.RetryCount,
	}, nil
}

// Result returns the plan of a succeeded job
func (s *JobService) Result(ctx context.Context, jobID string) (*model.PlanResponse, error) {
	job, err := s.store.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}

	switch job.Status {
	case model.JobStatusSucceeded:
	case model.JobStatusFailed:
		msg := "planning failed"
		if job.Error != nil {
			msg = *job.Error
		}
		return nil, &JobFailedError{Code: job.ErrorCode, Message: msg, Detail: job.ErrorDetail}
	default:
		return nil, ErrJobNotCompleted
	}

	var result model.PlanResponse
	if err := json.Unmarshal(job.Result, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result: %w", err)
	}
	return &result, nil
}

// Cancel marks a job canceled. The worker skips canceled jobs.
func (s *JobService) Cancel(ctx context.Context, jobID string) (*model.JobCancelResponse, error) {
	job, err := s.store.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status.Finished() {
		return nil, ErrJobFinished
	}

	now := s.now()
	job.Status = model.JobStatusCanceled
	job.CompletedAt = &now
	if err := s.store.Save(ctx, job); err != nil {
		return nil, err
	}

	return &model.JobCancelResponse{Success: true, JobID: jobID, Status: model.JobStatusCanceled}, nil
}

// Job returns the raw job record (called by worker)
func (s *JobService) Job(ctx context.Context, jobID string) (*model.Job, error) {
	return s.store.Get(ctx, jobID)
}

// UpdateProgress records the running stage (called by worker)
func (s *JobService) UpdateProgress(ctx context.Context, jobID string, progress int, step string) error {
	job, err := s.store.Get(ctx, jobID)
	if err != nil {
		return err
	}

	if job.Status == model.JobStatusCanceled {
		return ErrJobCanceled
	}

	job.Progress = progress
	job.CurrentStep = step
	if job.Status == model.JobStatusQueued {
		job.Status = model.JobStatusRunning
		now := s.now()
		job.StartedAt = &now
	}
	return s.store.Save(ctx, job)
}

// Complete stores the plan and marks the job succeeded (called by worker)
func (s *JobService) Complete(ctx context.Context, jobID string, result *model.PlanResponse) error {
	job, err := s.store.Get(ctx, jobID)
	if err != nil {
		return err
	}

	if job.Status == model.JobStatusCanceled {
		return ErrJobCanceled
	}

	data, err := json.Marshal(result)
	if err != nil {
		return err
	}

	now := s.now()
	job.Status = model.JobStatusSucceeded
	job.Progress = 100
	job.Result = data
	job.CompletedAt = &now
	return s.store.Save(ctx, job)
}

// Fail marks the job failed with an error code (called by worker)
func (s *JobService) Fail(ctx context.Context, jobID, code, msg string, detail interface{}) error {
	job, err := s.store.Get(ctx, jobID)
	if err != nil {
		return err
	}

	if job.Status == model.JobStatusCanceled {
		return ErrJobCanceled
	}

	if detail != nil {
		if data, err := json.Marshal(detail); err == nil {
			job.ErrorDetail = data
		}
	}
	now := s.now()
	job.Status = model.JobStatusFailed
	job.ErrorCode = code
	job.Error = &msg
	job.CompletedAt = &now
	return s.store.Save(ctx, job)
}

// RecordRetry stores how many times the task has been retried (called by worker)
func (s *JobService) RecordRetry(ctx context.Context, jobID string, retries int) error {
	job, err := s.store.Get(ctx, jobID)
	if err != nil {
		return err
	}
	job.RetryCount = retries
	return s.store.Save(ctx, job)
}

// NewPlanTask builds the asynq task for a planning job
func NewPlanTask(jobID string, req *model.PlanRequest) (*asynq.Task, error) {
	data, err := json.Marshal(model.PlanTaskPayload{JobID: jobID, Request: *req})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypePlan, data), nil
}
