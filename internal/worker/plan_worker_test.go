package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vertigo/eventtimeline/internal/model"
	"github.com/vertigo/eventtimeline/internal/scheduler"
	"github.com/vertigo/eventtimeline/internal/service"
	"github.com/vertigo/eventtimeline/pkg/response"
)

type memStore struct {
	mu   sync.Mutex
	jobs map[string][]byte
	err  error
}

func (m *memStore) Save(_ context.Context, job *model.Job) error {
	if m.err != nil {
		return m.err
	}
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = data
	return nil
}

func (m *memStore) Get(_ context.Context, jobID string) (*model.Job, error) {
	m.mu.Lock()
	data, ok := m.jobs[jobID]
	m.mu.Unlock()
	if !ok {
		return nil, service.ErrJobNotFound
	}
	var job model.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

type nopQueue struct{}

func (nopQueue) Enqueue(task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	return &asynq.TaskInfo{ID: "task", Type: task.Type()}, nil
}

type event struct {
	kind     string
	progress int
	stage    string
	code     string
}

type recordingHub struct {
	events []event
}

func (h *recordingHub) BroadcastProgress(_ string, progress int, _ model.JobStatus, stage string) {
	h.events = append(h.events, event{kind: "progress", progress: progress, stage: stage})
}

func (h *recordingHub) BroadcastComplete(string, interface{}) {
	h.events = append(h.events, event{kind: "complete", progress: 100})
}

func (h *recordingHub) BroadcastError(_ string, code, _ string) {
	h.events = append(h.events, event{kind: "error", code: code})
}

func at(h, m int) time.Time {
	return time.Date(2026, time.June, 20, h, m, 0, 0, time.UTC)
}

func planRequest() *model.PlanRequest {
	return &model.PlanRequest{
		EventWindow: model.EventWindow{Start: at(18, 0), End: at(23, 0)},
		Performers: []model.Performer{
			{ID: "magician", Category: "magic", SetupMinutes: 20, PerformMinutes: 30, BreakdownMinutes: 10},
			{ID: "band", Category: "music", SetupMinutes: 30, PerformMinutes: 45, BreakdownMinutes: 20, SucceedsIDs: []string{"magician"}},
		},
		Constraints: model.Constraints{BreakMinutes: 10},
	}
}

type fixture struct {
	worker *PlanWorker
	jobs   *service.JobService
	store  *memStore
	hub    *recordingHub
}

func newFixture() *fixture {
	store := &memStore{jobs: map[string][]byte{}}
	jobs := service.NewJobService(store, nopQueue{}, service.JobOptions{MaxRetry: 3}, nil)
	hub := &recordingHub{}
	planner := service.NewTimelineService(scheduler.DefaultOptions(), nil)
	return &fixture{worker: NewPlanWorker(planner, jobs, hub, nil), jobs: jobs, store: store, hub: hub}
}

func (f *fixture) start(t *testing.T, req *model.PlanRequest) (string, *asynq.Task) {
	t.Helper()
	started, err := f.jobs.Start(context.Background(), req)
	require.NoError(t, err)
	task, err := service.NewPlanTask(started.JobID, req)
	require.NoError(t, err)
	return started.JobID, task
}

func TestPlanWorker_Succeeds(t *testing.T) {
	f := newFixture()
	jobID, task := f.start(t, planRequest())

	require.NoError(t, f.worker.ProcessTask(context.Background(), task))

	status, err := f.jobs.Status(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusSucceeded, status.Status)
	assert.Equal(t, 100, status.Progress)
	assert.NotNil(t, status.StartedAt)
	assert.NotNil(t, status.CompletedAt)

	result, err := f.jobs.Result(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, []string{"magician", "band"}, result.Order)
	assert.Nil(t, result.Overrun)

	require.Len(t, f.hub.events, len(scheduler.Stages)+1)
	last := 0
	for i, stage := range scheduler.Stages {
		ev := f.hub.events[i]
		assert.Equal(t, "progress", ev.kind)
		assert.Equal(t, string(stage), ev.stage)
		assert.Greater(t, ev.progress, last)
		assert.Less(t, ev.progress, 100)
		last = ev.progress
	}
	assert.Equal(t, "complete", f.hub.events[len(f.hub.events)-1].kind)
}

func TestPlanWorker_EngineFailure(t *testing.T) {
	f := newFixture()
	req := planRequest()
	req.Performers[0].SucceedsIDs = []string{"band"}
	jobID, task := f.start(t, req)

	err := f.worker.ProcessTask(context.Background(), task)
	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))

	_, err = f.jobs.Result(context.Background(), jobID)
	var failed *service.JobFailedError
	require.True(t, errors.As(err, &failed))
	assert.Equal(t, response.CodeCyclicDependency, failed.Code)
	assert.Contains(t, string(failed.Detail), "cycle")

	last := f.hub.events[len(f.hub.events)-1]
	assert.Equal(t, "error", last.kind)
	assert.Equal(t, response.CodeCyclicDependency, last.code)
}

func TestPlanWorker_RejectedOverrun(t *testing.T) {
	f := newFixture()
	req := planRequest()
	req.EventWindow.End = at(19, 0)
	req.RejectOnOverrun = true
	jobID, task := f.start(t, req)

	err := f.worker.ProcessTask(context.Background(), task)
	assert.True(t, errors.Is(err, asynq.SkipRetry))

	_, err = f.jobs.Result(context.Background(), jobID)
	var failed *service.JobFailedError
	require.True(t, errors.As(err, &failed))
	assert.Equal(t, response.CodeWindowOverrun, failed.Code)
}

func TestPlanWorker_CanceledJob(t *testing.T) {
	f := newFixture()
	jobID, task := f.start(t, planRequest())
	_, err := f.jobs.Cancel(context.Background(), jobID)
	require.NoError(t, err)

	require.NoError(t, f.worker.ProcessTask(context.Background(), task))
	assert.Empty(t, f.hub.events)

	status, err := f.jobs.Status(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCanceled, status.Status)
}

// cancelingPlanner cancels the job right after the given stage has been
// reported, as a client would mid-run.
type cancelingPlanner struct {
	inner Planner
	jobs  *service.JobService
	jobID string
	after scheduler.Stage
}

func (p *cancelingPlanner) PlanWithProgress(ctx context.Context, req *model.PlanRequest, progress func(scheduler.Stage)) (*model.PlanResponse, error) {
	return p.inner.PlanWithProgress(ctx, req, func(stage scheduler.Stage) {
		progress(stage)
		if stage == p.after {
			if _, err := p.jobs.Cancel(ctx, p.jobID); err != nil {
				panic(err)
			}
		}
	})
}

func TestPlanWorker_CanceledWhileRunning(t *testing.T) {
	tests := []struct {
		name string
		req  func() *model.PlanRequest
	}{
		{name: "successful plan", req: planRequest},
		{name: "failing plan", req: func() *model.PlanRequest {
			req := planRequest()
			req.Performers[1].SucceedsIDs = []string{"ghost"}
			return req
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			jobID, task := f.start(t, tt.req())
			planner := &cancelingPlanner{
				inner: service.NewTimelineService(scheduler.DefaultOptions(), nil),
				jobs:  f.jobs,
				jobID: jobID,
				after: scheduler.StageValidate,
			}
			w := NewPlanWorker(planner, f.jobs, f.hub, nil)

			require.NoError(t, w.ProcessTask(context.Background(), task))

			status, err := f.jobs.Status(context.Background(), jobID)
			require.NoError(t, err)
			assert.Equal(t, model.JobStatusCanceled, status.Status)
			_, err = f.jobs.Result(context.Background(), jobID)
			assert.ErrorIs(t, err, service.ErrJobNotCompleted)

			require.Len(t, f.hub.events, 1, "only the stage before the cancel is broadcast")
			assert.Equal(t, "progress", f.hub.events[0].kind)
		})
	}
}

func TestPlanWorker_BadTasks(t *testing.T) {
	f := newFixture()

	err := f.worker.ProcessTask(context.Background(), asynq.NewTask(service.TaskTypePlan, []byte("{")))
	assert.True(t, errors.Is(err, asynq.SkipRetry))

	task, err := service.NewPlanTask("missing", planRequest())
	require.NoError(t, err)
	err = f.worker.ProcessTask(context.Background(), task)
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}

func TestPlanWorker_StoreFailureRetries(t *testing.T) {
	f := newFixture()
	_, task := f.start(t, planRequest())
	f.store.err = errors.New("redis down")

	err := f.worker.ProcessTask(context.Background(), task)
	require.Error(t, err)
	assert.False(t, errors.Is(err, asynq.SkipRetry))
	assert.Equal(t, "progress", f.hub.events[0].kind)
}

func TestStageProgress(t *testing.T) {
	assert.Equal(t, 14, stageProgress(scheduler.StageValidate))
	assert.Equal(t, 85, stageProgress(scheduler.StageCompose))
	assert.Equal(t, 0, stageProgress("unknown"))
}
