package model

import (
	"time"

	"github.com/vertigo/eventtimeline/internal/scheduler"
)

// PlanRequest is the body of the planning, export and job endpoints and the
// format of planner request files
type PlanRequest struct {
	EventWindow EventWindow    `json:"eventWindow" yaml:"eventWindow" validate:"required"`
	Venue       Venue          `json:"venue" yaml:"venue"`
	Performers  []Performer    `json:"performers" yaml:"performers" validate:"required,min=1,dive"`
	Activities  []Activity     `json:"activities,omitempty" yaml:"activities" validate:"omitempty,dive"`
	Milestones  []Milestone    `json:"milestones,omitempty" yaml:"milestones" validate:"omitempty,dive"`
	Constraints Constraints    `json:"constraints" yaml:"constraints"`
	Options     *PlanOverrides `json:"options,omitempty" yaml:"options" validate:"omitempty"`

	// RejectOnOverrun turns a window overrun into an error instead of a
	// best-effort plan.
	RejectOnOverrun bool `json:"rejectOnOverrun,omitempty" yaml:"rejectOnOverrun"`
}

// EventWindow is the guest-facing time frame
type EventWindow struct {
	Start time.Time `json:"start" yaml:"start" validate:"required"`
	End   time.Time `json:"end" yaml:"end" validate:"required,gtfield=Start"`
}

// Venue holds crew access and curfew times
type Venue struct {
	AccessTime   time.Time `json:"accessTime,omitempty" yaml:"accessTime"`
	Curfew       time.Time `json:"curfew,omitempty" yaml:"curfew"`
	Restrictions []string  `json:"restrictions,omitempty" yaml:"restrictions"`
	Outdoor      bool      `json:"outdoor,omitempty" yaml:"outdoor"`
}

// Performer is one act on the bill
type Performer struct {
	ID                     string   `json:"id" yaml:"id" validate:"required,max=64"`
	Category               string   `json:"category" yaml:"category" validate:"max=64"`
	SetupMinutes           int      `json:"setupMinutes" yaml:"setupMinutes" validate:"min=0,max=1440"`
	PerformMinutes         int      `json:"performMinutes" yaml:"performMinutes" validate:"required,min=1,max=1440"`
	BreakdownMinutes       int      `json:"breakdownMinutes" yaml:"breakdownMinutes" validate:"min=0,max=1440"`
	RequiresSafetyDistance int      `json:"requiresSafetyDistance,omitempty" yaml:"requiresSafetyDistance" validate:"min=0"`
	PrecedesIDs            []string `json:"precedesIds,omitempty" yaml:"precedesIds" validate:"omitempty,dive,required"`
	SucceedsIDs            []string `json:"succeedsIds,omitempty" yaml:"succeedsIds" validate:"omitempty,dive,required"`
}

// Activity is a filler item for idle gaps
type Activity struct {
	ID              string `json:"id" yaml:"id" validate:"required,max=64"`
	DurationMinutes int    `json:"durationMinutes" yaml:"durationMinutes" validate:"required,min=1,max=1440"`
	Repeatable      bool   `json:"repeatable,omitempty" yaml:"repeatable"`
}

// Milestone is a programme anchor
type Milestone struct {
	Name             string    `json:"name" yaml:"name" validate:"required,max=64"`
	Time             time.Time `json:"time" yaml:"time" validate:"required"`
	DurationMinutes  int       `json:"durationMinutes" yaml:"durationMinutes" validate:"required,min=1,max=1440"`
	Flexible         bool      `json:"flexible,omitempty" yaml:"flexible"`
	ToleranceMinutes int       `json:"toleranceMinutes,omitempty" yaml:"toleranceMinutes" validate:"min=0,max=1440"`
}

// Constraints are the per-request scheduling knobs
type Constraints struct {
	BreakMinutes              int  `json:"breakMinutes" yaml:"breakMinutes" validate:"min=0,max=1440"`
	SimultaneousPerformersMax int  `json:"simultaneousPerformersMax" yaml:"simultaneousPerformersMax" validate:"min=0,max=100"`
	WeatherSensitive          bool `json:"weatherSensitive,omitempty" yaml:"weatherSensitive"`
}

// PlanOverrides replaces configured engine defaults for one request
type PlanOverrides struct {
	LeadSetupMinutes          *int `json:"leadSetupMinutes,omitempty" yaml:"leadSetupMinutes" validate:"omitempty,min=0,max=1440"`
	CallBufferMinutes         *int `json:"callBufferMinutes,omitempty" yaml:"callBufferMinutes" validate:"omitempty,min=0,max=1440"`
	MilestoneToleranceMinutes *int `json:"milestoneToleranceMinutes,omitempty" yaml:"milestoneToleranceMinutes" validate:"omitempty,min=0,max=1440"`
	GapThresholdMinutes       *int `json:"gapThresholdMinutes,omitempty" yaml:"gapThresholdMinutes" validate:"omitempty,min=0,max=1440"`
}

// Apply returns opts with every set override copied in.
func (o *PlanOverrides) Apply(opts scheduler.Options) scheduler.Options {
	if o == nil {
		return opts
	}
	if o.LeadSetupMinutes != nil {
		opts.LeadSetupMinutes = *o.LeadSetupMinutes
	}
	if o.CallBufferMinutes != nil {
		opts.CallBufferMinutes = *o.CallBufferMinutes
	}
	if o.MilestoneToleranceMinutes != nil {
		opts.MilestoneToleranceMinutes = *o.MilestoneToleranceMinutes
	}
	if o.GapThresholdMinutes != nil {
		opts.GapThresholdMinutes = *o.GapThresholdMinutes
	}
	return opts
}

// ToRequest converts the DTO into an engine request.
func (r *PlanRequest) ToRequest() scheduler.Request {
	out := scheduler.Request{
		EventWindow: scheduler.EventWindow{Start: r.EventWindow.Start, End: r.EventWindow.End},
		Venue: scheduler.Venue{
			AccessTime:   r.Venue.AccessTime,
			Curfew:       r.Venue.Curfew,
			Restrictions: r.Venue.Restrictions,
			Outdoor:      r.Venue.Outdoor,
		},
		Performers: make([]scheduler.Performer, len(r.Performers)),
		Constraints: scheduler.Constraints{
			BreakMinutes:              r.Constraints.BreakMinutes,
			SimultaneousPerformersMax: r.Constraints.SimultaneousPerformersMax,
			WeatherSensitive:          r.Constraints.WeatherSensitive,
		},
	}
	for i, p := range r.Performers {
		out.Performers[i] = scheduler.Performer{
			ID:               p.ID,
			Category:         p.Category,
			SetupMinutes:     p.SetupMinutes,
			PerformMinutes:   p.PerformMinutes,
			BreakdownMinutes: p.BreakdownMinutes,
			SafetyDistance:   p.RequiresSafetyDistance,
			PrecedesIDs:      p.PrecedesIDs,
			SucceedsIDs:      p.SucceedsIDs,
		}
	}
	for _, a := range r.Activities {
		out.Activities = append(out.Activities, scheduler.Activity{ID: a.ID, DurationMinutes: a.DurationMinutes, Repeatable: a.Repeatable})
	}
	for _, m := range r.Milestones {
		out.Milestones = append(out.Milestones, scheduler.Milestone{
			Name:             m.Name,
			Time:             m.Time,
			DurationMinutes:  m.DurationMinutes,
			Flexible:         m.Flexible,
			ToleranceMinutes: m.ToleranceMinutes,
		})
	}
	return out
}

// PlanResponse is a planning result. Overrun is set when the best-effort plan
// runs past the curfew or window end.
type PlanResponse struct {
	*scheduler.Result
	Overrun *Overrun `json:"overrun,omitempty"`
}

// Overrun describes how far a plan runs past its limit
type Overrun struct {
	Minutes        int       `json:"minutes"`
	Limit          time.Time `json:"limit"`
	LatestEnd      time.Time `json:"latestEnd"`
	PerformerIDs   []string  `json:"performerIds"`
	MilestoneNames []string  `json:"milestoneNames,omitempty"`
}

// NewOverrun converts an engine overrun error, returning nil for nil.
func NewOverrun(err *scheduler.WindowOverrunError) *Overrun {
	if err == nil {
		return nil
	}
	return &Overrun{
		Minutes:        err.OverrunMinutes,
		Limit:          err.Limit,
		LatestEnd:      err.LatestEnd,
		PerformerIDs:   err.PerformerIDs,
		MilestoneNames: err.MilestoneNames,
	}
}
