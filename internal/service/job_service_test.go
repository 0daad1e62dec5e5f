package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vertigo/eventtimeline/internal/model"
	"github.com/vertigo/eventtimeline/internal/scheduler"
)

func newJobService(t *testing.T) (*JobService, *memStore, *fakeQueue) {
	t.Helper()
	store := newMemStore()
	queue := &fakeQueue{}
	svc := NewJobService(store, queue, JobOptions{MaxRetry: 3}, nil)
	svc.now = func() time.Time { return at(12, 0) }
	return svc, store, queue
}

func TestJobService_Start(t *testing.T) {
	svc, store, queue := newJobService(t)
	ctx := context.Background()

	resp, err := svc.Start(ctx, sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusQueued, resp.Status)
	assert.NotEmpty(t, resp.JobID)

	job, err := store.Get(ctx, resp.JobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobTypePlan, job.Type)
	assert.Equal(t, at(12, 0), job.CreatedAt)

	require.Len(t, queue.tasks, 1)
	assert.Equal(t, TaskTypePlan, queue.tasks[0].Type())

	var payload model.PlanTaskPayload
	require.NoError(t, json.Unmarshal(queue.tasks[0].Payload(), &payload))
	assert.Equal(t, resp.JobID, payload.JobID)
	assert.Len(t, payload.Request.Performers, 2)
}

func TestJobService_StartEnqueueFailure(t *testing.T) {
	svc, store, queue := newJobService(t)
	queue.err = errors.New("redis down")

	_, err := svc.Start(context.Background(), sampleRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to enqueue task")

	require.Len(t, store.jobs, 1)
	for id := range store.jobs {
		job, err := store.Get(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusFailed, job.Status, "unqueued job must not stay queued")
		assert.Equal(t, "SERVICE_ERROR", job.ErrorCode)
		assert.NotNil(t, job.CompletedAt)
	}
}

func TestJobService_Lifecycle(t *testing.T) {
	svc, _, _ := newJobService(t)
	ctx := context.Background()

	started, err := svc.Start(ctx, sampleRequest())
	require.NoError(t, err)
	id := started.JobID

	_, err = svc.Result(ctx, id)
	assert.ErrorIs(t, err, ErrJobNotCompleted)

	require.NoError(t, svc.UpdateProgress(ctx, id, 40, string(scheduler.StageOrder)))
	status, err := svc.Status(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusRunning, status.Status)
	assert.Equal(t, 40, status.Progress)
	assert.Equal(t, "order", status.CurrentStep)
	require.NotNil(t, status.StartedAt)

	plan, err := NewTimelineService(scheduler.DefaultOptions(), nil).Plan(ctx, sampleRequest())
	require.NoError(t, err)
	require.NoError(t, svc.Complete(ctx, id, plan))

	status, err = svc.Status(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusSucceeded, status.Status)
	assert.Equal(t, 100, status.Progress)

	result, err := svc.Result(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, plan.Order, result.Order)
	assert.Equal(t, plan.Summary.TotalRuntimeMinutes, result.Summary.TotalRuntimeMinutes)
	assert.True(t, plan.Summary.FirstCall.Equal(result.Summary.FirstCall))
}

func TestJobService_FailedResult(t *testing.T) {
	svc, _, _ := newJobService(t)
	ctx := context.Background()

	started, err := svc.Start(ctx, sampleRequest())
	require.NoError(t, err)
	require.NoError(t, svc.Fail(ctx, started.JobID, "CYCLIC_DEPENDENCY", "cyclic precedence: a -> b -> a", map[string][]string{"cycle": {"a", "b", "a"}}))

	_, err = svc.Result(ctx, started.JobID)
	var failed *JobFailedError
	require.True(t, errors.As(err, &failed))
	assert.Equal(t, "CYCLIC_DEPENDENCY", failed.Code)
	assert.JSONEq(t, `{"cycle":["a","b","a"]}`, string(failed.Detail))
}

func TestJobService_Cancel(t *testing.T) {
	svc, _, _ := newJobService(t)
	ctx := context.Background()

	started, err := svc.Start(ctx, sampleRequest())
	require.NoError(t, err)

	resp, err := svc.Cancel(ctx, started.JobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCanceled, resp.Status)

	_, err = svc.Cancel(ctx, started.JobID)
	assert.ErrorIs(t, err, ErrJobFinished)
}

func TestJobService_CanceledWhileRunning(t *testing.T) {
	svc, _, _ := newJobService(t)
	ctx := context.Background()

	started, err := svc.Start(ctx, sampleRequest())
	require.NoError(t, err)
	require.NoError(t, svc.UpdateProgress(ctx, started.JobID, 14, "validate"))
	_, err = svc.Cancel(ctx, started.JobID)
	require.NoError(t, err)

	plan, err := NewTimelineService(scheduler.DefaultOptions(), nil).Plan(ctx, sampleRequest())
	require.NoError(t, err)

	assert.ErrorIs(t, svc.UpdateProgress(ctx, started.JobID, 28, "graph"), ErrJobCanceled)
	assert.ErrorIs(t, svc.Complete(ctx, started.JobID, plan), ErrJobCanceled)
	assert.ErrorIs(t, svc.Fail(ctx, started.JobID, "JOB_FAILED", "boom", nil), ErrJobCanceled)

	status, err := svc.Status(ctx, started.JobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCanceled, status.Status)
	assert.Equal(t, 14, status.Progress)
	assert.Equal(t, "validate", status.CurrentStep)

	_, err = svc.Result(ctx, started.JobID)
	assert.ErrorIs(t, err, ErrJobNotCompleted)
}

func TestJobService_NotFound(t *testing.T) {
	svc, _, _ := newJobService(t)
	_, err := svc.Status(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestJobService_RecordRetry(t *testing.T) {
	svc, _, _ := newJobService(t)
	ctx := context.Background()
	started, err := svc.Start(ctx, sampleRequest())
	require.NoError(t, err)

	require.NoError(t, svc.RecordRetry(ctx, started.JobID, 2))
	status, err := svc.Status(ctx, started.JobID)
	require.NoError(t, err)
	assert.Equal(t, 2, status.RetryCount)
}

type fakeKV struct {
	values map[string]string
	ttls   map[string]time.Duration
}

func (f *fakeKV) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeKV) Set(_ context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	f.values[key] = string(value.([]byte))
	f.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func TestRedisJobStore(t *testing.T) {
	kv := &fakeKV{values: map[string]string{}, ttls: map[string]time.Duration{}}
	store := NewRedisJobStore(kv, 6*time.Hour)
	ctx := context.Background()

	job := &model.Job{ID: "abc", Type: model.JobTypePlan, Status: model.JobStatusQueued, CreatedAt: at(9, 0)}
	require.NoError(t, store.Save(ctx, job))
	assert.Equal(t, 6*time.Hour, kv.ttls["timeline:job:abc"])

	got, err := store.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, job.Status, got.Status)
	assert.True(t, job.CreatedAt.Equal(got.CreatedAt))

	_, err = store.Get(ctx, "nope")
	assert.ErrorIs(t, err, ErrJobNotFound)
}
