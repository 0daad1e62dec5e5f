package scheduler

import (
	"strings"
	"time"
)

// Normalize returns a copy of req with every timestamp truncated to the
// minute and every slice copied, so later stages never alias caller memory.
func Normalize(req Request) Request {
	out := req
	out.EventWindow.Start = truncate(req.EventWindow.Start)
	out.EventWindow.End = truncate(req.EventWindow.End)
	out.Venue.AccessTime = truncate(req.Venue.AccessTime)
	out.Venue.Curfew = truncate(req.Venue.Curfew)
	out.Venue.Restrictions = append([]string(nil), req.Venue.Restrictions...)

	out.Performers = make([]Performer, len(req.Performers))
	for i, p := range req.Performers {
		p.ID = strings.TrimSpace(p.ID)
		p.PrecedesIDs = trimAll(p.PrecedesIDs)
		p.SucceedsIDs = trimAll(p.SucceedsIDs)
		out.Performers[i] = p
	}
	out.Activities = append([]Activity(nil), req.Activities...)
	out.Milestones = make([]Milestone, len(req.Milestones))
	for i, m := range req.Milestones {
		m.Time = truncate(m.Time)
		out.Milestones[i] = m
	}
	return out
}

func truncate(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.Truncate(time.Minute)
}

func trimAll(ids []string) []string {
	if ids == nil {
		return nil
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = strings.TrimSpace(id)
	}
	return out
}

// Validate rejects malformed requests with a *ValidationError. Precedence
// references are checked later by Build.
func Validate(req Request) error {
	w := req.EventWindow
	if w.Start.IsZero() || w.End.IsZero() {
		return &ValidationError{Field: "eventWindow", Message: "start and end are required"}
	}
	if !w.Start.Before(w.End) {
		return &ValidationError{Field: "eventWindow", Message: "start must be before end"}
	}

	v := req.Venue
	if !v.AccessTime.IsZero() && !v.Curfew.IsZero() && !v.AccessTime.Before(v.Curfew) {
		return &ValidationError{Field: "venue", Message: "accessTime must be before curfew"}
	}
	if !v.Curfew.IsZero() && !v.Curfew.After(w.Start) {
		return &ValidationError{Field: "venue.curfew", Message: "curfew must be after the event window start"}
	}

	if len(req.Performers) == 0 {
		return &ValidationError{Field: "performers", Message: "at least one performer is required"}
	}
	seen := make(map[string]bool, len(req.Performers))
	for _, p := range req.Performers {
		if p.ID == "" {
			return &ValidationError{Field: "performers.id", Message: "id is required"}
		}
		if seen[p.ID] {
			return &ValidationError{Field: "performers.id", Message: "duplicate performer id", IDs: []string{p.ID}}
		}
		seen[p.ID] = true
		if p.PerformMinutes <= 0 {
			return &ValidationError{Field: "performers.performMinutes", Message: "must be positive", IDs: []string{p.ID}}
		}
		if p.SetupMinutes < 0 || p.BreakdownMinutes < 0 {
			return &ValidationError{Field: "performers.setupMinutes", Message: "setup and breakdown must not be negative", IDs: []string{p.ID}}
		}
		if p.SafetyDistance < 0 {
			return &ValidationError{Field: "performers.requiresSafetyDistance", Message: "must not be negative", IDs: []string{p.ID}}
		}
	}

	acts := make(map[string]bool, len(req.Activities))
	for _, a := range req.Activities {
		if a.ID == "" {
			return &ValidationError{Field: "activities.id", Message: "id is required"}
		}
		if acts[a.ID] {
			return &ValidationError{Field: "activities.id", Message: "duplicate activity id", IDs: []string{a.ID}}
		}
		acts[a.ID] = true
		if a.DurationMinutes <= 0 {
			return &ValidationError{Field: "activities.durationMinutes", Message: "must be positive", IDs: []string{a.ID}}
		}
	}

	names := make(map[string]bool, len(req.Milestones))
	for _, m := range req.Milestones {
		if m.Name == "" {
			return &ValidationError{Field: "milestones.name", Message: "name is required"}
		}
		if names[m.Name] {
			return &ValidationError{Field: "milestones.name", Message: "duplicate milestone name", IDs: []string{m.Name}}
		}
		names[m.Name] = true
		if m.Time.IsZero() {
			return &ValidationError{Field: "milestones.time", Message: "time is required", IDs: []string{m.Name}}
		}
		if m.DurationMinutes <= 0 {
			return &ValidationError{Field: "milestones.durationMinutes", Message: "must be positive", IDs: []string{m.Name}}
		}
		if m.ToleranceMinutes < 0 {
			return &ValidationError{Field: "milestones.toleranceMinutes", Message: "must not be negative", IDs: []string{m.Name}}
		}
	}

	if err := immovableOverlap(req.Milestones); err != nil {
		return err
	}

	c := req.Constraints
	if c.BreakMinutes < 0 {
		return &ValidationError{Field: "constraints.breakMinutes", Message: "must not be negative"}
	}
	if c.SimultaneousPerformersMax < 0 {
		return &ValidationError{Field: "constraints.simultaneousPerformersMax", Message: "must not be negative"}
	}
	return nil
}

// immovableOverlap rejects two immovable milestones sharing guest time.
// Nothing can move either of them apart.
func immovableOverlap(milestones []Milestone) error {
	for i, a := range milestones {
		if a.Flexible {
			continue
		}
		aEnd := addMinutes(a.Time, a.DurationMinutes)
		for _, b := range milestones[i+1:] {
			if b.Flexible {
				continue
			}
			if overlaps(a.Time, aEnd, b.Time, addMinutes(b.Time, b.DurationMinutes)) {
				return &ValidationError{Field: "milestones.time", Message: "immovable milestones overlap", IDs: []string{a.Name, b.Name}}
			}
		}
	}
	return nil
}
