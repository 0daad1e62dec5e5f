package scheduler

// Options tunes the engine. The zero value is not useful; start from
// DefaultOptions and override fields.
type Options struct {
	LeadSetupMinutes          int
	CallBufferMinutes         int
	MilestoneToleranceMinutes int
	GapThresholdMinutes       int

	// SafetyMetersPerBufferMinute converts a safety distance into enforced
	// separation: buffer = ceil(distance / SafetyMetersPerBufferMinute).
	SafetyMetersPerBufferMinute int

	BaselineStaff          int
	DefaultSimultaneousMax int

	Heuristic Heuristic

	// Comparator overrides Heuristic.Compare when set.
	Comparator Comparator
}

// DefaultOptions returns the engine defaults.
func DefaultOptions() Options {
	return Options{
		LeadSetupMinutes:            60,
		CallBufferMinutes:           30,
		MilestoneToleranceMinutes:   15,
		GapThresholdMinutes:         15,
		SafetyMetersPerBufferMinute: 10,
		BaselineStaff:               2,
		DefaultSimultaneousMax:      1,
		Heuristic:                   DefaultHeuristic(),
	}
}

func (o Options) comparator() Comparator {
	if o.Comparator != nil {
		return o.Comparator
	}
	return o.Heuristic.Compare
}

// safetyBuffer converts a safety distance in meters into buffer minutes.
func (o Options) safetyBuffer(distance int) int {
	if distance <= 0 {
		return 0
	}
	per := o.SafetyMetersPerBufferMinute
	if per <= 0 {
		per = 10
	}
	return (distance + per - 1) / per
}

func (o Options) simultaneousMax(c Constraints) int {
	if c.SimultaneousPerformersMax > 0 {
		return c.SimultaneousPerformersMax
	}
	if o.DefaultSimultaneousMax > 0 {
		return o.DefaultSimultaneousMax
	}
	return 1
}

func (o Options) tolerance(m Milestone) int {
	if !m.Flexible {
		return 0
	}
	if m.ToleranceMinutes > 0 {
		return m.ToleranceMinutes
	}
	return o.MilestoneToleranceMinutes
}
