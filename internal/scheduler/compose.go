package scheduler

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// Contingency plan identifiers
const (
	PlanNoShow    = "performer-no-show"
	PlanWeather   = "weather-deterioration"
	PlanTechnical = "technical-failure"
)

// Compose summarizes a finalized allocation: call sheet, runtime and staffing
// figures, peak markers and the contingency catalogue. It does no scheduling.
func Compose(a *Allocation, req Request, opts Options) Result {
	byID := make(map[string]Performer, len(req.Performers))
	for _, p := range req.Performers {
		byID[p.ID] = p
	}

	entries := a.Entries()
	order := make([]string, len(a.Slots))
	for i, s := range a.Slots {
		order[i] = s.PerformerID
	}

	return Result{
		Schedule:         entries,
		CallSheet:        a.CallSheet(opts.CallBufferMinutes),
		Order:            order,
		Summary:          summarize(a, entries, byID, opts),
		Markers:          markers(entries, opts.Heuristic),
		ContingencyPlans: contingencies(a, entries, req, byID, opts),
		Warnings:         []Warning{},
	}
}

func summarize(a *Allocation, entries []ScheduleEntry, byID map[string]Performer, opts Options) Summary {
	sum := Summary{
		PerformerCount:       len(a.Slots),
		MilestoneCount:       len(a.Milestones),
		SetupMinutesRequired: opts.LeadSetupMinutes,
	}
	for _, s := range a.Slots {
		p := byID[s.PerformerID]
		sum.SetupMinutesRequired += p.SetupMinutes
		sum.PerformanceMinutes += p.PerformMinutes
	}
	for _, f := range a.Fillers {
		switch f.Entry.Kind {
		case KindActivity:
			sum.ActivityCount++
		case KindBreak:
			sum.BreakCount++
		}
	}

	if start, end, ok := guestSpan(entries); ok {
		sum.TotalRuntimeMinutes = minutesBetween(start, end)
	}
	if len(entries) > 0 {
		first, last := entries[0].Start, entries[0].End
		for _, e := range entries {
			last = maxTime(last, e.End)
		}
		sum.ScheduleSpanMinutes = minutesBetween(first, last)
	}
	if len(a.Slots) > 0 {
		rows := a.CallSheet(opts.CallBufferMinutes)
		sum.FirstCall = rows[0].CallTime
		sum.LastLoadOut = rows[0].LoadOut
		for _, r := range rows {
			if r.CallTime.Before(sum.FirstCall) {
				sum.FirstCall = r.CallTime
			}
			sum.LastLoadOut = maxTime(sum.LastLoadOut, r.LoadOut)
		}
	}

	sum.MaxConcurrentPerformers = maxConcurrent(a.Slots)
	sum.PeakStaffNeeded = int(math.Ceil(float64(sum.MaxConcurrentPerformers)/2)) + opts.BaselineStaff
	return sum
}

// maxConcurrent sweeps the [SetupStart, LoadOut) intervals. Ends sort before
// starts at the same instant, so back-to-back slots do not count as overlap.
func maxConcurrent(slots []Slot) int {
	type point struct {
		at    time.Time
		delta int
	}
	points := make([]point, 0, len(slots)*2)
	for _, s := range slots {
		points = append(points, point{s.SetupStart, 1}, point{s.LoadOut, -1})
	}
	sort.Slice(points, func(i, j int) bool {
		if !points[i].at.Equal(points[j].at) {
			return points[i].at.Before(points[j].at)
		}
		return points[i].delta < points[j].delta
	})
	cur, best := 0, 0
	for _, p := range points {
		cur += p.delta
		if cur > best {
			best = cur
		}
	}
	return best
}

func guestSpan(entries []ScheduleEntry) (time.Time, time.Time, bool) {
	var start, end time.Time
	found := false
	for _, e := range entries {
		if !e.GuestFacing {
			continue
		}
		if !found || e.Start.Before(start) {
			start = e.Start
		}
		if !found || e.End.After(end) {
			end = e.End
		}
		found = true
	}
	return start, end, found
}

// markers places the two peak moments at the peak window edges of the
// guest-facing runtime, whatever is on stage at the time.
func markers(entries []ScheduleEntry, h Heuristic) []Marker {
	start, end, ok := guestSpan(entries)
	if !ok {
		return []Marker{}
	}
	runtime := minutesBetween(start, end)
	at := func(f float64) time.Time {
		return addMinutes(start, int(math.Round(f*float64(runtime))))
	}
	return []Marker{
		{Label: "first-peak", At: at(h.PeakStart), Fraction: h.PeakStart},
		{Label: "second-peak", At: at(h.PeakEnd), Fraction: h.PeakEnd},
	}
}

func contingencies(a *Allocation, entries []ScheduleEntry, req Request, byID map[string]Performer, opts Options) []ContingencyPlan {
	performers := make([]string, len(a.Slots))
	longest := ""
	longestMinutes := 0
	var hazardous []string
	for i, s := range a.Slots {
		performers[i] = s.PerformerID
		p := byID[s.PerformerID]
		if p.PerformMinutes > longestMinutes {
			longest, longestMinutes = p.ID, p.PerformMinutes
		}
		if opts.Heuristic.Weight(p.Category) > 0 || p.SafetyDistance > 0 {
			hazardous = append(hazardous, p.ID)
		}
	}

	var fillers []string
	for _, act := range req.Activities {
		fillers = append(fillers, act.ID)
	}
	cover := "a filler activity"
	if len(fillers) > 0 {
		cover = strings.Join(fillers, " or ")
	}

	plans := []ContingencyPlan{{
		ID:      PlanNoShow,
		Title:   "Performer no-show",
		Trigger: fmt.Sprintf("a performer has not checked in %d minutes before their call time", opts.CallBufferMinutes),
		Actions: []string{
			fmt.Sprintf("cover the empty slot with %s", cover),
			"advance the next act only when its precedence constraints still hold",
			fmt.Sprintf("worst case is %s: keep %d minutes of cover material ready", longest, longestMinutes),
		},
		AffectedRefIDs: performers,
	}}

	if req.Venue.Outdoor || req.Constraints.WeatherSensitive {
		var affected []string
		for _, e := range entries {
			if e.GuestFacing {
				affected = appendUnique(affected, e.RefID)
			}
		}
		actions := []string{
			"confirm the wet-weather cover area with the venue before the first call time",
			"move guest-facing items under cover in running order, keeping milestone times",
		}
		if len(hazardous) > 0 {
			actions = append(actions, fmt.Sprintf("suspend %s if wind or rain breaks their safety distance", strings.Join(hazardous, ", ")))
		}
		plans = append(plans, ContingencyPlan{
			ID:             PlanWeather,
			Title:          "Weather deterioration",
			Trigger:        "forecast or on-site conditions make outdoor areas unsafe",
			Actions:        actions,
			AffectedRefIDs: nonNil(affected),
		})
	}

	var tech []string
	for _, e := range entries {
		if e.Kind == KindPerformance || e.Kind == KindMilestone {
			tech = appendUnique(tech, e.RefID)
		}
	}
	plans = append(plans, ContingencyPlan{
		ID:      PlanTechnical,
		Title:   "Technical failure",
		Trigger: "sound, lighting or power fails during a guest-facing item",
		Actions: []string{
			"switch to the backup sound system and hand-held microphones",
			fmt.Sprintf("hold the programme with %s while the crew restores power", cover),
			"push later items forward only, never earlier",
		},
		AffectedRefIDs: nonNil(tech),
	})
	return plans
}

func appendUnique(list []string, id string) []string {
	for _, v := range list {
		if v == id {
			return list
		}
	}
	return append(list, id)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
