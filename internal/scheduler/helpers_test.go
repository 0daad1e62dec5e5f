package scheduler

import "time"

func clock(h, m int) time.Time {
	return time.Date(2026, time.June, 20, h, m, 0, 0, time.UTC)
}

func evening() EventWindow {
	return EventWindow{Start: clock(18, 0), End: clock(23, 0)}
}

func act(id string, setup, perform, breakdown int) Performer {
	return Performer{ID: id, Category: "music", SetupMinutes: setup, PerformMinutes: perform, BreakdownMinutes: breakdown}
}

func slotFor(t []Slot, id string) Slot {
	for _, s := range t {
		if s.PerformerID == id {
			return s
		}
	}
	return Slot{}
}
