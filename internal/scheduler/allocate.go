package scheduler

import (
	"fmt"
	"sort"
	"time"
)

// allocState is threaded through the allocator walk by value. Each step
// returns a new state; slices are copied before they grow or change.
type allocState struct {
	cursor  time.Time
	slots   []Slot
	fillers []Filler
	next    int    // round-robin position in the activity list
	used    []bool // activities already placed
	breaks  int
}

// Allocate walks the ordered roster on a single timeline. It anchors the
// milestones first, then places setup, performance and breakdown for each
// performer behind a moving cursor, honouring breaks, safety buffers and the
// cap on simultaneously active performers. Gaps longer than the threshold get
// an activity or a break.
//
// When the last load-out or milestone passes the curfew (or the window end without a
// curfew) the allocation and call sheet are still returned together with a
// *WindowOverrunError.
func Allocate(ordered []string, req Request, opts Options) (*Allocation, []CallSheetRow, error) {
	byID := make(map[string]Performer, len(req.Performers))
	for _, p := range req.Performers {
		byID[p.ID] = p
	}

	alloc := &Allocation{
		Milestones: anchorMilestones(req.Milestones, opts),
		WindowEnd:  req.EventWindow.End,
		Limit:      req.EventWindow.End,
	}
	if !req.Venue.Curfew.IsZero() {
		alloc.Limit = req.Venue.Curfew
	}

	floor := req.EventWindow.Start
	if !req.Venue.AccessTime.IsZero() {
		floor = req.Venue.AccessTime
	}
	capacity := opts.simultaneousMax(req.Constraints)

	st := allocState{
		cursor: addMinutes(maxTime(req.EventWindow.Start, floor), opts.LeadSetupMinutes),
		used:   make([]bool, len(req.Activities)),
	}
	for i, id := range ordered {
		p, ok := byID[id]
		if !ok {
			return nil, nil, &ValidationError{Field: "order", Message: "performer not in roster", IDs: []string{id}}
		}
		buffer := opts.safetyBuffer(p.SafetyDistance)
		if i+1 < len(ordered) {
			if b := opts.safetyBuffer(byID[ordered[i+1]].SafetyDistance); b > buffer {
				buffer = b
			}
		}
		st = st.place(p, floor, capacity, buffer)
		if i > 0 {
			st = st.fill(i-1, req.Activities, opts.GapThresholdMinutes)
		}
		st = st.advance(req.Constraints.BreakMinutes)
	}

	alloc.Slots = st.slots
	alloc.Fillers = st.fillers
	rows := alloc.CallSheet(opts.CallBufferMinutes)
	if over := alloc.Overrun(); over != nil {
		return alloc, rows, over
	}
	return alloc, rows, nil
}

// anchorMilestones places every milestone at its requested time, sorted by
// time with roster order breaking ties.
func anchorMilestones(milestones []Milestone, opts Options) []PlacedMilestone {
	placed := make([]PlacedMilestone, len(milestones))
	for i, m := range milestones {
		placed[i] = PlacedMilestone{
			Milestone: m,
			Start:     m.Time,
			End:       addMinutes(m.Time, m.DurationMinutes),
			Tolerance: opts.tolerance(m),
		}
	}
	sort.SliceStable(placed, func(i, j int) bool { return placed[i].Start.Before(placed[j].Start) })
	return placed
}

// place puts p at the cursor. Setup runs up to the cursor but never before
// floor; if more than capacity performers would be active at once, the slot
// is deferred to the next load-out that frees room.
func (s allocState) place(p Performer, floor time.Time, capacity, buffer int) allocState {
	setupStart := addMinutes(s.cursor, -p.SetupMinutes)
	if setupStart.Before(floor) {
		setupStart = floor
	}
	performStart := maxTime(s.cursor, addMinutes(setupStart, p.SetupMinutes))

	for {
		loadOut := addMinutes(performStart, p.PerformMinutes+p.BreakdownMinutes)
		var active []Slot
		for _, o := range s.slots {
			if overlaps(o.SetupStart, o.LoadOut, setupStart, loadOut) {
				active = append(active, o)
			}
		}
		if len(active) < capacity {
			break
		}
		freed := active[0].LoadOut
		for _, o := range active[1:] {
			if o.LoadOut.Before(freed) {
				freed = o.LoadOut
			}
		}
		setupStart = freed
		performStart = maxTime(performStart, addMinutes(setupStart, p.SetupMinutes))
	}

	performEnd := addMinutes(performStart, p.PerformMinutes)
	slot := Slot{
		PerformerID:         p.ID,
		SetupStart:          setupStart,
		PerformStart:        performStart,
		PerformEnd:          performEnd,
		LoadOut:             addMinutes(performEnd, p.BreakdownMinutes),
		SafetyBufferMinutes: buffer,
	}
	s.slots = append(s.slots[:len(s.slots):len(s.slots)], slot)
	s.cursor = performStart
	return s
}

// advance moves the cursor past the last placed performance plus the larger
// of the break and its safety buffer.
func (s allocState) advance(breakMinutes int) allocState {
	last := s.slots[len(s.slots)-1]
	gap := breakMinutes
	if last.SafetyBufferMinutes > gap {
		gap = last.SafetyBufferMinutes
	}
	s.cursor = addMinutes(last.PerformEnd, gap)
	return s
}

// fill covers the gap between slot prev and the slot after it when the gap
// exceeds threshold: the next unused (or repeatable) activity round-robin,
// otherwise a break spanning the gap.
func (s allocState) fill(prev int, activities []Activity, threshold int) allocState {
	from := s.slots[prev].PerformEnd
	to := s.slots[prev+1].PerformStart
	gap := minutesBetween(from, to)
	if gap <= threshold {
		return s
	}

	var entry ScheduleEntry
	if i, ok := s.pickActivity(activities); ok {
		d := activities[i].DurationMinutes
		if d > gap {
			d = gap
		}
		entry = ScheduleEntry{Start: from, End: addMinutes(from, d), Kind: KindActivity, RefID: activities[i].ID, GuestFacing: true}
		used := append([]bool(nil), s.used...)
		used[i] = true
		s.used = used
		s.next = (i + 1) % len(activities)
	} else {
		s.breaks++
		entry = ScheduleEntry{Start: from, End: to, Kind: KindBreak, RefID: fmt.Sprintf("break-%d", s.breaks)}
	}
	s.fillers = append(s.fillers[:len(s.fillers):len(s.fillers)], Filler{AfterSlot: prev, Entry: entry})
	return s
}

func (s allocState) pickActivity(activities []Activity) (int, bool) {
	n := len(activities)
	for k := 0; k < n; k++ {
		i := (s.next + k) % n
		if activities[i].Repeatable || !s.used[i] {
			return i, true
		}
	}
	return 0, false
}
