package scheduler

// EdgeSource records which precedence field produced an edge
type EdgeSource string

const (
	SourcePrecedes EdgeSource = "precedes"
	SourceSucceeds EdgeSource = "succeeds"
)

// Edge From -> To means From must perform before To.
type Edge struct {
	From   string     `json:"from"`
	To     string     `json:"to"`
	Source EdgeSource `json:"source"`
}

// Graph is the acyclic precedence graph over a performer roster. Node order
// and adjacency order follow input order so every traversal is deterministic.
type Graph struct {
	nodes []string
	index map[string]int
	out   [][]int
	in    [][]int
	edges []Edge
}

// Build turns precedence hints into a graph. precedesIds yield forward edges,
// succeedsIds yield reversed ones; a hint stated from both sides becomes a
// single edge tagged with the side seen first. Unknown IDs fail with
// *UnknownReferenceError, cycles with *CyclicDependencyError.
func Build(performers []Performer) (*Graph, error) {
	g := &Graph{
		nodes: make([]string, len(performers)),
		index: make(map[string]int, len(performers)),
		out:   make([][]int, len(performers)),
		in:    make([][]int, len(performers)),
	}
	for i, p := range performers {
		g.nodes[i] = p.ID
		g.index[p.ID] = i
	}

	var dangling []DanglingReference
	for _, p := range performers {
		for _, ref := range p.PrecedesIDs {
			if _, ok := g.index[ref]; !ok {
				dangling = append(dangling, DanglingReference{PerformerID: p.ID, Field: "precedesIds", RefID: ref})
			}
		}
		for _, ref := range p.SucceedsIDs {
			if _, ok := g.index[ref]; !ok {
				dangling = append(dangling, DanglingReference{PerformerID: p.ID, Field: "succeedsIds", RefID: ref})
			}
		}
	}
	if len(dangling) > 0 {
		return nil, &UnknownReferenceError{References: dangling}
	}

	seen := make(map[[2]int]bool)
	addEdge := func(from, to int, src EdgeSource) {
		key := [2]int{from, to}
		if seen[key] {
			return
		}
		seen[key] = true
		g.out[from] = append(g.out[from], to)
		g.in[to] = append(g.in[to], from)
		g.edges = append(g.edges, Edge{From: g.nodes[from], To: g.nodes[to], Source: src})
	}
	for i, p := range performers {
		for _, ref := range p.PrecedesIDs {
			addEdge(i, g.index[ref], SourcePrecedes)
		}
		for _, ref := range p.SucceedsIDs {
			addEdge(g.index[ref], i, SourceSucceeds)
		}
	}

	if cycle := g.findCycle(); cycle != nil {
		return nil, &CyclicDependencyError{Cycle: cycle}
	}
	return g, nil
}

// findCycle runs a depth-first search with an explicit recursion stack and
// returns the IDs on the first back edge's cycle, or nil.
func (g *Graph) findCycle() []string {
	const (
		white = iota
		grey
		black
	)
	color := make([]int, len(g.nodes))
	var stack []int

	var visit func(n int) []string
	visit = func(n int) []string {
		color[n] = grey
		stack = append(stack, n)
		for _, m := range g.out[n] {
			switch color[m] {
			case grey:
				start := len(stack) - 1
				for stack[start] != m {
					start--
				}
				cycle := make([]string, 0, len(stack)-start)
				for _, k := range stack[start:] {
					cycle = append(cycle, g.nodes[k])
				}
				return cycle
			case white:
				if c := visit(m); c != nil {
					return c
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[n] = black
		return nil
	}

	for n := range g.nodes {
		if color[n] == white {
			if c := visit(n); c != nil {
				return c
			}
		}
	}
	return nil
}

// Nodes returns performer IDs in input order.
func (g *Graph) Nodes() []string { return append([]string(nil), g.nodes...) }

// Edges returns every edge in insertion order.
func (g *Graph) Edges() []Edge { return append([]Edge(nil), g.edges...) }

// Len is the number of performers in the graph.
func (g *Graph) Len() int { return len(g.nodes) }

// Successors returns the IDs that must come after id.
func (g *Graph) Successors(id string) []string {
	i, ok := g.index[id]
	if !ok {
		return nil
	}
	return g.names(g.out[i])
}

// Predecessors returns the IDs that must come before id.
func (g *Graph) Predecessors(id string) []string {
	i, ok := g.index[id]
	if !ok {
		return nil
	}
	return g.names(g.in[i])
}

// HasEdge reports whether from must directly precede to.
func (g *Graph) HasEdge(from, to string) bool {
	i, ok := g.index[from]
	if !ok {
		return false
	}
	j, ok := g.index[to]
	if !ok {
		return false
	}
	for _, k := range g.out[i] {
		if k == j {
			return true
		}
	}
	return false
}

func (g *Graph) names(idx []int) []string {
	out := make([]string, len(idx))
	for i, k := range idx {
		out[i] = g.nodes[k]
	}
	return out
}
