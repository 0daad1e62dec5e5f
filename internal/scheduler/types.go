package scheduler

import "time"

// EntryKind classifies a schedule entry
type EntryKind string

const (
	KindSetup       EntryKind = "setup"
	KindPerformance EntryKind = "performance"
	KindBreakdown   EntryKind = "breakdown"
	KindActivity    EntryKind = "activity"
	KindMilestone   EntryKind = "milestone"
	KindBreak       EntryKind = "break"
)

// EventWindow is the guest-facing time frame of the event
type EventWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Venue bounds when crews may enter and when everything must be cleared
type Venue struct {
	AccessTime   time.Time `json:"accessTime"`
	Curfew       time.Time `json:"curfew"`
	Restrictions []string  `json:"restrictions,omitempty"`
	Outdoor      bool      `json:"outdoor"`
}

// Performer is a single act on the bill. SafetyDistance is in meters.
type Performer struct {
	ID               string   `json:"id"`
	Category         string   `json:"category"`
	SetupMinutes     int      `json:"setupMinutes"`
	PerformMinutes   int      `json:"performMinutes"`
	BreakdownMinutes int      `json:"breakdownMinutes"`
	SafetyDistance   int      `json:"requiresSafetyDistance,omitempty"`
	PrecedesIDs      []string `json:"precedesIds,omitempty"`
	SucceedsIDs      []string `json:"succeedsIds,omitempty"`
}

// Activity is a roaming or filler item used to cover idle gaps
type Activity struct {
	ID              string `json:"id"`
	DurationMinutes int    `json:"durationMinutes"`
	Repeatable      bool   `json:"repeatable"`
}

// Milestone is a programme anchor such as a speech or the cake cutting.
// An immovable milestone never shifts; a flexible one may move forward by at
// most ToleranceMinutes.
type Milestone struct {
	Name             string    `json:"name"`
	Time             time.Time `json:"time"`
	DurationMinutes  int       `json:"durationMinutes"`
	Flexible         bool      `json:"flexible"`
	ToleranceMinutes int       `json:"toleranceMinutes,omitempty"`
}

// Constraints are the per-request scheduling knobs
type Constraints struct {
	BreakMinutes              int  `json:"breakMinutes"`
	SimultaneousPerformersMax int  `json:"simultaneousPerformersMax"`
	WeatherSensitive          bool `json:"weatherSensitive"`
}

// Request is everything the engine needs for one planning run
type Request struct {
	EventWindow EventWindow `json:"eventWindow"`
	Venue       Venue       `json:"venue"`
	Performers  []Performer `json:"performers"`
	Activities  []Activity  `json:"activities,omitempty"`
	Milestones  []Milestone `json:"milestones,omitempty"`
	Constraints Constraints `json:"constraints"`
}

// ScheduleEntry is the atomic unit of the output timeline
type ScheduleEntry struct {
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Kind        EntryKind `json:"kind"`
	RefID       string    `json:"refId"`
	GuestFacing bool      `json:"guestFacing"`
}

// Minutes returns the entry length in whole minutes.
func (e ScheduleEntry) Minutes() int { return minutesBetween(e.Start, e.End) }

// CallSheetRow tells one performer when to arrive and when each phase runs
type CallSheetRow struct {
	PerformerID  string    `json:"performerId"`
	CallTime     time.Time `json:"callTime"`
	SetupStart   time.Time `json:"setupStart"`
	PerformStart time.Time `json:"performStart"`
	PerformEnd   time.Time `json:"performEnd"`
	LoadOut      time.Time `json:"loadOut"`
}

// WarningCode identifies the kind of adjustment or risk a warning reports
type WarningCode string

const (
	WarnMilestoneShifted   WarningCode = "milestone_shifted"
	WarnPerformerShifted   WarningCode = "performer_shifted"
	WarnFillerTrimmed      WarningCode = "filler_trimmed"
	WarnFillerDropped      WarningCode = "filler_dropped"
	WarnPerformancePastEnd WarningCode = "performance_past_window"
	WarnWindowOverrun      WarningCode = "window_overrun"
	WarnMilestoneOverlap   WarningCode = "milestone_overlap"
	WarnMilestonePastEnd   WarningCode = "milestone_past_window"
)

// Warning records something a human scheduler should look at
type Warning struct {
	Code    WarningCode `json:"code"`
	Message string      `json:"message"`
	RefIDs  []string    `json:"refIds,omitempty"`
	Minutes int         `json:"minutes,omitempty"`
}

// Summary holds the staffing and runtime figures derived from a schedule
type Summary struct {
	TotalRuntimeMinutes     int       `json:"totalRuntime"`
	ScheduleSpanMinutes     int       `json:"scheduleSpanMinutes"`
	PerformanceMinutes      int       `json:"performanceMinutes"`
	SetupMinutesRequired    int       `json:"setupMinutesRequired"`
	MaxConcurrentPerformers int       `json:"maxConcurrentPerformers"`
	PeakStaffNeeded         int       `json:"peakStaffNeeded"`
	PerformerCount          int       `json:"performerCount"`
	MilestoneCount          int       `json:"milestoneCount"`
	ActivityCount           int       `json:"activityCount"`
	BreakCount              int       `json:"breakCount"`
	FirstCall               time.Time `json:"firstCall"`
	LastLoadOut             time.Time `json:"lastLoadOut"`
}

// Marker is a guest-experience highlight placed at a fixed share of runtime
type Marker struct {
	Label    string    `json:"label"`
	At       time.Time `json:"at"`
	Fraction float64   `json:"fraction"`
}

// ContingencyPlan is a templated fallback naming the items it affects
type ContingencyPlan struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Trigger        string   `json:"trigger"`
	Actions        []string `json:"actions"`
	AffectedRefIDs []string `json:"affectedRefIds"`
}

// Result is the full planning response
type Result struct {
	Schedule         []ScheduleEntry   `json:"schedule"`
	CallSheet        []CallSheetRow    `json:"callSheet"`
	Order            []string          `json:"order"`
	Summary          Summary           `json:"summary"`
	Markers          []Marker          `json:"markers"`
	ContingencyPlans []ContingencyPlan `json:"contingencyPlans"`
	Warnings         []Warning         `json:"warnings"`
}

func addMinutes(t time.Time, m int) time.Time {
	return t.Add(time.Duration(m) * time.Minute)
}

func minutesBetween(from, to time.Time) int {
	return int(to.Sub(from) / time.Minute)
}

func maxTime(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}

func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}
