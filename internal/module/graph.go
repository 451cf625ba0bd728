package module

import "sort"

// graph is the module dependency graph: deps maps each module to the
// modules it loads, and the topological order loads dependencies first.
type graph struct {
	entries []*Entry
	index   map[string]int // name -> declaration order
	deps    map[string][]string
}

func buildGraph(entries []*Entry) *graph {
	g := &graph{
		entries: entries,
		index:   map[string]int{},
		deps:    map[string][]string{},
	}
	for i, e := range entries {
		if _, seen := g.index[e.Name]; !seen {
			g.index[e.Name] = i
		}
	}
	for _, e := range entries {
		for _, d := range e.Deps {
			if _, known := g.index[d]; known {
				g.deps[e.Name] = append(g.deps[e.Name], d)
			}
		}
	}
	return g
}

const (
	white = iota // unvisited
	grey         // on the current DFS path
	black        // finished
)

// findCycle runs a three-colour DFS and returns the first back-edge's
// cycle path, or nil. Roots are tried in declaration order so the cited
// path is deterministic.
func (g *graph) findCycle() []string {
	colour := map[string]int{}
	var stack []string
	var cycle []string

	var visit func(name string) bool
	visit = func(name string) bool {
		colour[name] = grey
		stack = append(stack, name)
		for _, dep := range g.deps[name] {
			switch colour[dep] {
			case grey:
				// back edge: slice the current path from dep onward
				start := 0
				for i, s := range stack {
					if s == dep {
						start = i
						break
					}
				}
				cycle = append(append([]string{}, stack[start:]...), dep)
				return true
			case white:
				if visit(dep) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		colour[name] = black
		return false
	}

	for _, e := range g.entries {
		if colour[e.Name] == white {
			if visit(e.Name) {
				return cycle
			}
		}
	}
	return nil
}

// topoSort runs Kahn's algorithm, breaking ties by declaration order in
// the source module block. It returns the flat order (original paths)
// and the per-level batches for parallel loading.
func (g *graph) topoSort() ([]string, [][]string) {
	indegree := map[string]int{}
	dependents := map[string][]string{}
	for _, e := range g.entries {
		indegree[e.Name] += 0
		for _, d := range g.deps[e.Name] {
			indegree[e.Name]++
			dependents[d] = append(dependents[d], e.Name)
		}
	}

	byName := map[string]*Entry{}
	for _, e := range g.entries {
		byName[e.Name] = e
	}

	ready := []string{}
	for _, e := range g.entries {
		if indegree[e.Name] == 0 {
			ready = append(ready, e.Name)
		}
	}
	sortByDecl := func(names []string) {
		sort.SliceStable(names, func(i, j int) bool {
			return g.index[names[i]] < g.index[names[j]]
		})
	}
	sortByDecl(ready)

	var order []string
	var batches [][]string
	for len(ready) > 0 {
		level := ready
		ready = nil
		var paths []string
		for _, name := range level {
			order = append(order, byName[name].OriginalPath)
			paths = append(paths, byName[name].OriginalPath)
			for _, dep := range dependents[name] {
				indegree[dep]--
				if indegree[dep] == 0 {
					ready = append(ready, dep)
				}
			}
		}
		sortByDecl(ready)
		batches = append(batches, paths)
	}
	return order, batches
}
