package scheduler

import "strings"

// Phase is where in the running order the next slot falls
type Phase int

const (
	PhaseOpening Phase = iota
	PhasePeak
	PhaseClosing
)

func (p Phase) String() string {
	switch p {
	case PhaseOpening:
		return "opening"
	case PhasePeak:
		return "peak"
	default:
		return "closing"
	}
}

// Candidate is a performer whose predecessors have all been placed
type Candidate struct {
	Performer Performer
	Index     int // position in the request roster
}

// Position describes the slot being filled: Elapsed performance minutes
// already ordered out of Total.
type Position struct {
	Elapsed int
	Total   int
	Phase   Phase
}

// Comparator ranks two ready candidates for the slot at pos. A negative
// result puts a first, positive puts b first, zero defers to roster order.
type Comparator func(a, b Candidate, pos Position) int

// Heuristic is the default weighted comparator. Hazard weight pushes a
// category away from the opening and toward the closing; inside the peak
// window longer acts win.
type Heuristic struct {
	CategoryWeights map[string]int
	PeakStart       float64
	PeakEnd         float64
}

// DefaultHazardCategories are weighted 1 by DefaultHeuristic.
var DefaultHazardCategories = []string{"open-flame", "fire", "pyrotechnics", "aerial"}

// DefaultHeuristic weights the usual hazardous categories at 1.
func DefaultHeuristic() Heuristic {
	return NewHeuristic(DefaultHazardCategories, 0.30, 0.70)
}

// NewHeuristic weights each hazard category at 1. Categories are matched
// case-insensitively.
func NewHeuristic(hazards []string, peakStart, peakEnd float64) Heuristic {
	w := make(map[string]int, len(hazards))
	for _, h := range hazards {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			w[h] = 1
		}
	}
	return Heuristic{CategoryWeights: w, PeakStart: peakStart, PeakEnd: peakEnd}
}

// Weight returns the hazard weight of a category, 0 when not hazardous.
func (h Heuristic) Weight(category string) int {
	return h.CategoryWeights[strings.ToLower(category)]
}

// PhaseAt classifies a runtime fraction against the peak window.
func (h Heuristic) PhaseAt(fraction float64) Phase {
	switch {
	case fraction < h.PeakStart:
		return PhaseOpening
	case fraction < h.PeakEnd:
		return PhasePeak
	default:
		return PhaseClosing
	}
}

// Compare implements Comparator.
func (h Heuristic) Compare(a, b Candidate, pos Position) int {
	wa, wb := h.Weight(a.Performer.Category), h.Weight(b.Performer.Category)
	switch pos.Phase {
	case PhaseOpening:
		if wa != wb {
			return wa - wb
		}
	case PhaseClosing:
		if wa != wb {
			return wb - wa
		}
	case PhasePeak:
		if a.Performer.PerformMinutes != b.Performer.PerformMinutes {
			return b.Performer.PerformMinutes - a.Performer.PerformMinutes
		}
	}
	return 0
}

// Order linearizes the graph. At each step the ready candidates are ranked
// by the options' comparator for the current position; ties fall back to
// roster order, so the same input always yields the same order.
func Order(g *Graph, performers []Performer, opts Options) []string {
	cmp := opts.comparator()

	roster := make([]Performer, len(g.nodes))
	for _, p := range performers {
		if i, ok := g.index[p.ID]; ok {
			roster[i] = p
		}
	}
	total := 0
	for _, p := range roster {
		total += p.PerformMinutes
	}

	indeg := make([]int, len(g.nodes))
	var ready []int
	for i := range g.nodes {
		indeg[i] = len(g.in[i])
		if indeg[i] == 0 {
			ready = append(ready, i)
		}
	}

	ordered := make([]string, 0, len(g.nodes))
	elapsed := 0
	for len(ready) > 0 {
		pos := Position{
			Elapsed: elapsed,
			Total:   total,
			Phase:   opts.Heuristic.PhaseAt(fraction(elapsed, total)),
		}

		best := 0
		for k := 1; k < len(ready); k++ {
			a := Candidate{Performer: roster[ready[k]], Index: ready[k]}
			b := Candidate{Performer: roster[ready[best]], Index: ready[best]}
			if c := cmp(a, b, pos); c < 0 || (c == 0 && a.Index < b.Index) {
				best = k
			}
		}

		n := ready[best]
		ready = append(ready[:best], ready[best+1:]...)
		ordered = append(ordered, g.nodes[n])
		elapsed += roster[n].PerformMinutes

		for _, m := range g.out[n] {
			indeg[m]--
			if indeg[m] == 0 {
				ready = append(ready, m)
			}
		}
	}
	return ordered
}

func fraction(elapsed, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(elapsed) / float64(total)
}
