package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func perform(id, category string, minutes int) Performer {
	return Performer{ID: id, Category: category, SetupMinutes: 10, PerformMinutes: minutes, BreakdownMinutes: 5}
}

func orderOf(t *testing.T, opts Options, performers ...Performer) []string {
	t.Helper()
	g, err := Build(performers)
	require.NoError(t, err)
	return Order(g, performers, opts)
}

func TestOrder_RespectsPrecedence(t *testing.T) {
	first := perform("first", "music", 10)
	second := perform("second", "music", 10)
	third := perform("third", "music", 10)
	third.PrecedesIDs = []string{"first"}
	second.SucceedsIDs = []string{"first"}

	got := orderOf(t, DefaultOptions(), first, second, third)
	assert.Equal(t, []string{"third", "first", "second"}, got)
}

func TestOrder_HazardKeptOutOfOpening(t *testing.T) {
	got := orderOf(t, DefaultOptions(),
		perform("fire", "open-flame", 10),
		perform("band", "music", 10),
		perform("headliner", "music", 60),
	)
	assert.Equal(t, []string{"band", "headliner", "fire"}, got)
}

func TestOrder_HazardPreferredInClosing(t *testing.T) {
	got := orderOf(t, DefaultOptions(),
		perform("opener", "music", 50),
		perform("dj", "music", 10),
		perform("fire", "fire", 10),
	)
	assert.Equal(t, []string{"opener", "fire", "dj"}, got)
}

func TestOrder_LongerActsWinThePeak(t *testing.T) {
	got := orderOf(t, DefaultOptions(),
		perform("a", "music", 10),
		perform("short", "music", 5),
		perform("medium", "music", 10),
		perform("long", "music", 20),
	)
	assert.Equal(t, []string{"a", "short", "long", "medium"}, got)
}

func TestOrder_CustomComparator(t *testing.T) {
	opts := DefaultOptions()
	opts.Comparator = func(a, b Candidate, _ Position) int { return b.Index - a.Index }

	got := orderOf(t, opts,
		perform("a", "music", 10),
		perform("b", "music", 10),
		perform("c", "music", 10),
	)
	assert.Equal(t, []string{"c", "b", "a"}, got)
}

func TestOrder_Deterministic(t *testing.T) {
	performers := []Performer{
		perform("a", "aerial", 15),
		perform("b", "music", 15),
		perform("c", "magic", 15),
		perform("d", "fire", 15),
		perform("e", "music", 15),
	}
	first := orderOf(t, DefaultOptions(), performers...)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, orderOf(t, DefaultOptions(), performers...))
	}
}

func TestHeuristic_PhaseAt(t *testing.T) {
	h := DefaultHeuristic()
	assert.Equal(t, PhaseOpening, h.PhaseAt(0))
	assert.Equal(t, PhaseOpening, h.PhaseAt(0.29))
	assert.Equal(t, PhasePeak, h.PhaseAt(0.30))
	assert.Equal(t, PhasePeak, h.PhaseAt(0.69))
	assert.Equal(t, PhaseClosing, h.PhaseAt(0.70))
	assert.Equal(t, "peak", PhasePeak.String())
}

func TestNewHeuristic_NormalizesCategories(t *testing.T) {
	h := NewHeuristic([]string{" Pyro ", "AERIAL"}, 0.25, 0.75)
	assert.Equal(t, 1, h.Weight("pyro"))
	assert.Equal(t, 1, h.Weight("Aerial"))
	assert.Equal(t, 0, h.Weight("music"))
}
