package model

import (
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/vertigo/eventtimeline/internal/scheduler"
)

const requestYAML = `
eventWindow:
  start: 2026-06-20T18:00:00Z
  end: 2026-06-20T23:00:00Z
venue:
  accessTime: 2026-06-20T17:00:00Z
  outdoor: true
performers:
  - id: fire-act
    category: open-flame
    setupMinutes: 20
    performMinutes: 15
    breakdownMinutes: 10
    requiresSafetyDistance: 5
  - id: band
    performMinutes: 45
    succeedsIds: [fire-act]
milestones:
  - name: speeches
    time: 2026-06-20T20:00:00Z
    durationMinutes: 20
    flexible: true
    toleranceMinutes: 10
constraints:
  breakMinutes: 10
  simultaneousPerformersMax: 2
options:
  leadSetupMinutes: 30
`

func TestPlanRequest_FromYAML(t *testing.T) {
	var req PlanRequest
	require.NoError(t, yaml.Unmarshal([]byte(requestYAML), &req))
	require.NoError(t, validator.New().Struct(&req))

	out := req.ToRequest()
	assert.Equal(t, time.Date(2026, time.June, 20, 18, 0, 0, 0, time.UTC), out.EventWindow.Start)
	assert.True(t, out.Venue.Outdoor)
	require.Len(t, out.Performers, 2)
	assert.Equal(t, 5, out.Performers[0].SafetyDistance)
	assert.Equal(t, []string{"fire-act"}, out.Performers[1].SucceedsIDs)
	require.Len(t, out.Milestones, 1)
	assert.Equal(t, 10, out.Milestones[0].ToleranceMinutes)
	assert.Equal(t, 2, out.Constraints.SimultaneousPerformersMax)

	opts := req.Options.Apply(scheduler.DefaultOptions())
	assert.Equal(t, 30, opts.LeadSetupMinutes)
	assert.Equal(t, 30, opts.CallBufferMinutes, "unset override keeps the default")
}

func TestPlanOverrides_NilApply(t *testing.T) {
	var o *PlanOverrides
	assert.Equal(t, scheduler.DefaultOptions().LeadSetupMinutes, o.Apply(scheduler.DefaultOptions()).LeadSetupMinutes)
}

func TestPlanRequest_Validation(t *testing.T) {
	start := time.Date(2026, time.June, 20, 18, 0, 0, 0, time.UTC)
	valid := func() PlanRequest {
		return PlanRequest{
			EventWindow: EventWindow{Start: start, End: start.Add(5 * time.Hour)},
			Performers:  []Performer{{ID: "band", PerformMinutes: 45}},
		}
	}

	tests := []struct {
		name   string
		mutate func(*PlanRequest)
		ok     bool
	}{
		{name: "valid", mutate: func(*PlanRequest) {}, ok: true},
		{name: "end before start", mutate: func(r *PlanRequest) { r.EventWindow.End = start.Add(-time.Hour) }},
		{name: "no performers", mutate: func(r *PlanRequest) { r.Performers = nil }},
		{name: "zero performance", mutate: func(r *PlanRequest) { r.Performers[0].PerformMinutes = 0 }},
		{name: "negative setup", mutate: func(r *PlanRequest) { r.Performers[0].SetupMinutes = -5 }},
		{name: "blank precedence id", mutate: func(r *PlanRequest) { r.Performers[0].PrecedesIDs = []string{""} }},
		{name: "milestone without time", mutate: func(r *PlanRequest) {
			r.Milestones = []Milestone{{Name: "toast", DurationMinutes: 5}}
		}},
		{name: "negative override", mutate: func(r *PlanRequest) {
			lead := -1
			r.Options = &PlanOverrides{LeadSetupMinutes: &lead}
		}},
	}

	v := validator.New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid()
			tt.mutate(&req)
			err := v.Struct(&req)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestNewOverrun(t *testing.T) {
	assert.Nil(t, NewOverrun(nil))

	limit := time.Date(2026, time.June, 20, 23, 0, 0, 0, time.UTC)
	o := NewOverrun(&scheduler.WindowOverrunError{OverrunMinutes: 50, Limit: limit, LatestEnd: limit.Add(50 * time.Minute), PerformerIDs: []string{"epic"}})
	assert.Equal(t, 50, o.Minutes)
	assert.Equal(t, []string{"epic"}, o.PerformerIDs)
}

func TestJobStatus_Finished(t *testing.T) {
	assert.False(t, JobStatusQueued.Finished())
	assert.False(t, JobStatusRunning.Finished())
	assert.True(t, JobStatusSucceeded.Finished())
	assert.True(t, JobStatusFailed.Finished())
	assert.True(t, JobStatusCanceled.Finished())
}
