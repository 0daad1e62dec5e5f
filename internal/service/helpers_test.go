package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/hibiken/asynq"

	"github.com/vertigo/eventtimeline/internal/model"
)

type memStore struct {
	mu   sync.Mutex
	jobs map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{jobs: map[string][]byte{}}
}

func (m *memStore) Save(_ context.Context, job *model.Job) error {
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
		return nil, ErrJobNotFound
	}
	var job model.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

type fakeQueue struct {
	tasks []*asynq.Task
	err   error
}

func (q *fakeQueue) Enqueue(task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if q.err != nil {
		return nil, q.err
	}
	q.tasks = append(q.tasks, task)
	return &asynq.TaskInfo{ID: "task", Type: task.Type(), Queue: QueuePlan}, nil
}

func at(h, m int) time.Time {
	return time.Date(2026, time.June, 20, h, m, 0, 0, time.UTC)
}

func sampleRequest() *model.PlanRequest {
	return &model.PlanRequest{
		EventWindow: model.EventWindow{Start: at(18, 0), End: at(23, 0)},
		Venue:       model.Venue{AccessTime: at(18, 0), Curfew: at(23, 30)},
		Performers: []model.Performer{
			{ID: "fire-act", Category: "open-flame", SetupMinutes: 20, PerformMinutes: 15, BreakdownMinutes: 10, RequiresSafetyDistance: 5},
			{ID: "band", Category: "music", SetupMinutes: 30, PerformMinutes: 45, BreakdownMinutes: 20, SucceedsIDs: []string{"fire-act"}},
		},
		Milestones:  []model.Milestone{{Name: "speeches", Time: at(21, 0), DurationMinutes: 20, Flexible: true}},
		Constraints: model.Constraints{BreakMinutes: 10, SimultaneousPerformersMax: 2},
	}
}
