package scheduler

import (
	"fmt"
	"sort"
	"time"
)

// Slot is one performer's placement on the shared timeline.
// SafetyBufferMinutes is the enforced separation after the performance;
// together with the performance it forms the act's safety zone.
type Slot struct {
	PerformerID         string
	SetupStart          time.Time
	PerformStart        time.Time
	PerformEnd          time.Time
	LoadOut             time.Time
	SafetyBufferMinutes int
}

// ZoneEnd is the end of the performance plus its safety buffer.
func (s Slot) ZoneEnd() time.Time { return addMinutes(s.PerformEnd, s.SafetyBufferMinutes) }

func (s Slot) shift(m int) Slot {
	s.SetupStart = addMinutes(s.SetupStart, m)
	s.PerformStart = addMinutes(s.PerformStart, m)
	s.PerformEnd = addMinutes(s.PerformEnd, m)
	s.LoadOut = addMinutes(s.LoadOut, m)
	return s
}

// PlacedMilestone is a milestone anchored on the timeline
type PlacedMilestone struct {
	Milestone      Milestone
	Start          time.Time
	End            time.Time
	ShiftedMinutes int
	Tolerance      int
}

// Filler is an activity or break covering the gap after Slots[AfterSlot]
type Filler struct {
	AfterSlot int
	Entry     ScheduleEntry
}

// Allocation is the timeline produced by Allocate and refined by Resolve.
// Slots are in running order.
type Allocation struct {
	Slots      []Slot
	Fillers    []Filler
	Milestones []PlacedMilestone
	WindowEnd  time.Time
	Limit      time.Time
}

func (a *Allocation) clone() *Allocation {
	return &Allocation{
		Slots:      append([]Slot(nil), a.Slots...),
		Fillers:    append([]Filler(nil), a.Fillers...),
		Milestones: append([]PlacedMilestone(nil), a.Milestones...),
		WindowEnd:  a.WindowEnd,
		Limit:      a.Limit,
	}
}

// shiftFrom moves slot k, every later slot and the fillers that follow them
// forward by m minutes.
func (a *Allocation) shiftFrom(k, m int) {
	for i := k; i < len(a.Slots); i++ {
		a.Slots[i] = a.Slots[i].shift(m)
	}
	for i := range a.Fillers {
		f := &a.Fillers[i]
		if f.AfterSlot >= k {
			f.Entry.Start = addMinutes(f.Entry.Start, m)
			f.Entry.End = addMinutes(f.Entry.End, m)
		}
	}
}

var kindRank = map[EntryKind]int{
	KindMilestone:   0,
	KindSetup:       1,
	KindPerformance: 2,
	KindActivity:    3,
	KindBreak:       4,
	KindBreakdown:   5,
}

// Entries flattens the allocation into chronologically sorted entries.
func (a *Allocation) Entries() []ScheduleEntry {
	entries := make([]ScheduleEntry, 0, len(a.Slots)*3+len(a.Fillers)+len(a.Milestones))
	for _, m := range a.Milestones {
		entries = append(entries, ScheduleEntry{
			Start: m.Start, End: m.End, Kind: KindMilestone, RefID: m.Milestone.Name, GuestFacing: true,
		})
	}
	for _, s := range a.Slots {
		entries = append(entries, ScheduleEntry{Start: s.SetupStart, End: s.PerformStart, Kind: KindSetup, RefID: s.PerformerID})
		entries = append(entries, ScheduleEntry{Start: s.PerformStart, End: s.PerformEnd, Kind: KindPerformance, RefID: s.PerformerID, GuestFacing: true})
		entries = append(entries, ScheduleEntry{Start: s.PerformEnd, End: s.LoadOut, Kind: KindBreakdown, RefID: s.PerformerID})
	}
	for _, f := range a.Fillers {
		entries = append(entries, f.Entry)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		if kindRank[a.Kind] != kindRank[b.Kind] {
			return kindRank[a.Kind] < kindRank[b.Kind]
		}
		if !a.End.Equal(b.End) {
			return a.End.Before(b.End)
		}
		return a.RefID < b.RefID
	})
	return entries
}

// CallSheet derives one row per performer in running order.
func (a *Allocation) CallSheet(callBufferMinutes int) []CallSheetRow {
	rows := make([]CallSheetRow, len(a.Slots))
	for i, s := range a.Slots {
		rows[i] = CallSheetRow{
			PerformerID:  s.PerformerID,
			CallTime:     addMinutes(s.SetupStart, -callBufferMinutes),
			SetupStart:   s.SetupStart,
			PerformStart: s.PerformStart,
			PerformEnd:   s.PerformEnd,
			LoadOut:      s.LoadOut,
		}
	}
	return rows
}

// Overrun returns a *WindowOverrunError when any load-out or milestone end
// passes the limit.
func (a *Allocation) Overrun() *WindowOverrunError {
	latest := a.Limit
	var late, lateMilestones []string
	for _, s := range a.Slots {
		latest = maxTime(latest, s.LoadOut)
		if s.LoadOut.After(a.Limit) {
			late = append(late, s.PerformerID)
		}
	}
	for _, m := range a.Milestones {
		latest = maxTime(latest, m.End)
		if m.End.After(a.Limit) {
			lateMilestones = append(lateMilestones, m.Milestone.Name)
		}
	}
	if !latest.After(a.Limit) {
		return nil
	}
	return &WindowOverrunError{
		OverrunMinutes: minutesBetween(a.Limit, latest),
		Limit:          a.Limit,
		LatestEnd:      latest,
		PerformerIDs:   nonNil(late),
		MilestoneNames: lateMilestones,
	}
}

// pastWindow warns about performances and milestones that end after the
// event window.
func (a *Allocation) pastWindow() []Warning {
	var warnings []Warning
	for _, s := range a.Slots {
		if s.PerformEnd.After(a.WindowEnd) {
			over := minutesBetween(a.WindowEnd, s.PerformEnd)
			warnings = append(warnings, Warning{
				Code:    WarnPerformancePastEnd,
				Message: fmt.Sprintf("performance of %s ends %d minutes after the event window", s.PerformerID, over),
				RefIDs:  []string{s.PerformerID},
				Minutes: over,
			})
		}
	}
	for _, m := range a.Milestones {
		if m.End.After(a.WindowEnd) {
			over := minutesBetween(a.WindowEnd, m.End)
			warnings = append(warnings, Warning{
				Code:    WarnMilestonePastEnd,
				Message: fmt.Sprintf("milestone %q ends %d minutes after the event window", m.Milestone.Name, over),
				RefIDs:  []string{m.Milestone.Name},
				Minutes: over,
			})
		}
	}
	return warnings
}
