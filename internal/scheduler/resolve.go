package scheduler

import (
	"fmt"
	"sort"
	"time"
)

// Resolve removes overlaps between performer safety zones (performance plus
// safety buffer) and milestones. Slots are scanned in running order. A
// flexible milestone moves forward just past the zone if its remaining
// tolerance allows and it lands clear of other milestones; otherwise the
// performer and everything after it moves forward to the milestone's end.
// Fillers left overlapping a milestone are trimmed or dropped.
//
// Before any slot is considered, a flexible milestone overlapping another
// milestone moves past it within its tolerance. Overlaps that no move can
// clear are reported with a milestone_overlap warning.
//
// Every shift is forward, so each slot settles after at most one move per
// milestone. The input allocation is not modified.
func Resolve(a *Allocation) (*Allocation, []Warning) {
	out := a.clone()
	warnings := separateMilestones(out.Milestones, nil)

	for i := range out.Slots {
		for {
			s := out.Slots[i]
			mi := firstConflict(out.Milestones, s)
			if mi < 0 {
				break
			}
			m := &out.Milestones[mi]

			need := minutesBetween(m.Start, s.ZoneEnd())
			if m.Milestone.Flexible && m.ShiftedMinutes+need <= m.Tolerance &&
				!clashesWithMilestones(out.Milestones, mi, addMinutes(m.Start, need), addMinutes(m.End, need)) {
				m.Start = addMinutes(m.Start, need)
				m.End = addMinutes(m.End, need)
				m.ShiftedMinutes += need
				warnings = append(warnings, Warning{
					Code:    WarnMilestoneShifted,
					Message: fmt.Sprintf("milestone %q moved %d minutes later to clear %s", m.Milestone.Name, need, s.PerformerID),
					RefIDs:  []string{m.Milestone.Name, s.PerformerID},
					Minutes: need,
				})
				sortMilestones(out.Milestones)
				continue
			}

			residual := minutesBetween(s.PerformStart, m.End)
			out.shiftFrom(i, residual)
			warnings = append(warnings, Warning{
				Code:    WarnPerformerShifted,
				Message: fmt.Sprintf("%s and every later item moved %d minutes to clear milestone %q", s.PerformerID, residual, m.Milestone.Name),
				RefIDs:  []string{s.PerformerID, m.Milestone.Name},
				Minutes: residual,
			})
		}
	}

	out.Fillers, warnings = trimFillers(out.Fillers, out.Milestones, warnings)
	return out, warnings
}

// separateMilestones settles milestone against milestone overlaps in place.
// Every move is forward and bounded by tolerance, and a pair that cannot be
// separated is recorded once, so the loop ends.
func separateMilestones(ms []PlacedMilestone, warnings []Warning) []Warning {
	stuck := make(map[[2]string]bool)
	for {
		i, j := overlappingPair(ms, stuck)
		if i < 0 {
			return warnings
		}
		if k, need, ok := milestoneMover(ms, i, j); ok {
			other := ms[i+j-k].Milestone.Name
			m := &ms[k]
			m.Start = addMinutes(m.Start, need)
			m.End = addMinutes(m.End, need)
			m.ShiftedMinutes += need
			warnings = append(warnings, Warning{
				Code:    WarnMilestoneShifted,
				Message: fmt.Sprintf("milestone %q moved %d minutes later to clear milestone %q", m.Milestone.Name, need, other),
				RefIDs:  []string{m.Milestone.Name, other},
				Minutes: need,
			})
			sortMilestones(ms)
			continue
		}

		a, b := ms[i], ms[j]
		stuck[pairKey(a, b)] = true
		overlap := minutesBetween(b.Start, a.End)
		if b.End.Before(a.End) {
			overlap = minutesBetween(b.Start, b.End)
		}
		warnings = append(warnings, Warning{
			Code:    WarnMilestoneOverlap,
			Message: fmt.Sprintf("milestones %q and %q overlap by %d minutes beyond their tolerance", a.Milestone.Name, b.Milestone.Name, overlap),
			RefIDs:  []string{a.Milestone.Name, b.Milestone.Name},
			Minutes: overlap,
		})
	}
}

// overlappingPair returns the first overlapping pair i < j of the sorted
// milestones not yet known to be stuck, or -1, -1.
func overlappingPair(ms []PlacedMilestone, stuck map[[2]string]bool) (int, int) {
	for i := range ms {
		for j := i + 1; j < len(ms); j++ {
			if stuck[pairKey(ms[i], ms[j])] {
				continue
			}
			if overlaps(ms[i].Start, ms[i].End, ms[j].Start, ms[j].End) {
				return i, j
			}
		}
	}
	return -1, -1
}

func pairKey(a, b PlacedMilestone) [2]string {
	if b.Milestone.Name < a.Milestone.Name {
		a, b = b, a
	}
	return [2]string{a.Milestone.Name, b.Milestone.Name}
}

// milestoneMover picks which of the overlapping milestones i and j moves and
// by how much: the later one first, then the earlier one past the later.
func milestoneMover(ms []PlacedMilestone, i, j int) (int, int, bool) {
	candidates := [][2]int{
		{j, minutesBetween(ms[j].Start, ms[i].End)},
		{i, minutesBetween(ms[i].Start, ms[j].End)},
	}
	for _, c := range candidates {
		k, need := c[0], c[1]
		m := ms[k]
		if !m.Milestone.Flexible || m.ShiftedMinutes+need > m.Tolerance {
			continue
		}
		if clashesWithMilestones(ms, k, addMinutes(m.Start, need), addMinutes(m.End, need)) {
			continue
		}
		return k, need, true
	}
	return 0, 0, false
}

func firstConflict(milestones []PlacedMilestone, s Slot) int {
	for i, m := range milestones {
		if overlaps(s.PerformStart, s.ZoneEnd(), m.Start, m.End) {
			return i
		}
	}
	return -1
}

func clashesWithMilestones(milestones []PlacedMilestone, skip int, start, end time.Time) bool {
	for i, m := range milestones {
		if i != skip && overlaps(start, end, m.Start, m.End) {
			return true
		}
	}
	return false
}

func sortMilestones(ms []PlacedMilestone) {
	sort.SliceStable(ms, func(i, j int) bool { return ms[i].Start.Before(ms[j].Start) })
}

// trimFillers cuts each filler short at the first milestone it runs into and
// drops fillers that start inside one.
func trimFillers(fillers []Filler, milestones []PlacedMilestone, warnings []Warning) ([]Filler, []Warning) {
	kept := make([]Filler, 0, len(fillers))
	for _, f := range fillers {
		dropped := false
		for _, m := range milestones {
			if !overlaps(f.Entry.Start, f.Entry.End, m.Start, m.End) {
				continue
			}
			if !f.Entry.Start.Before(m.Start) {
				warnings = append(warnings, Warning{
					Code:    WarnFillerDropped,
					Message: fmt.Sprintf("%s %s dropped: it would run during milestone %q", f.Entry.Kind, f.Entry.RefID, m.Milestone.Name),
					RefIDs:  []string{f.Entry.RefID, m.Milestone.Name},
					Minutes: f.Entry.Minutes(),
				})
				dropped = true
				break
			}
			cut := minutesBetween(m.Start, f.Entry.End)
			f.Entry.End = m.Start
			warnings = append(warnings, Warning{
				Code:    WarnFillerTrimmed,
				Message: fmt.Sprintf("%s %s shortened by %d minutes before milestone %q", f.Entry.Kind, f.Entry.RefID, cut, m.Milestone.Name),
				RefIDs:  []string{f.Entry.RefID, m.Milestone.Name},
				Minutes: cut,
			})
		}
		if !dropped {
			kept = append(kept, f)
		}
	}
	return kept, warnings
}
