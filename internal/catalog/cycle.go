package catalog

import (
	"fmt"
	"sort"
	"strings"
)

// CycleWarning describes NODE references that expand into themselves.
// The registry refuses such tables at lookup time.
type CycleWarning struct {
	Database string   `json:"database"`
	Path     []string `json:"path"`    // e.g. ["{DB}_A", "{DB}_B", "{DB}_A"]
	Message  string   `json:"message"` // Human-readable description
}

// dependencyGraph maps origin → origins its NODE fields expand into.
type dependencyGraph map[string][]string

// AnalyzeCycles reports every NODE expansion cycle in the catalog. It builds
// one origin graph per database and reports each strongly connected
// component with more than one member, or with a self-loop.
func AnalyzeCycles(c *Catalog) []CycleWarning {
	var warnings []CycleWarning
	for _, db := range c.Databases {
		graph := buildDependencyGraph(c.Aliases, db)
		for _, scc := range tarjanSCC(graph) {
			if len(scc) > 1 || (len(scc) == 1 && hasSelfLoop(scc[0], graph)) {
				w := cycleSCCToWarning(scc, graph)
				w.Database = db.Name
				warnings = append(warnings, w)
			}
		}
	}
	return warnings
}

func buildDependencyGraph(aliases map[string]string, db Database) dependencyGraph {
	graph := make(dependencyGraph)
	for _, t := range db.Tables {
		if graph[t.Origin] == nil {
			graph[t.Origin] = []string{}
		}
		for _, f := range t.Doc.Fields {
			if !f.IsNode() {
				continue
			}
			target := f.Ref
			if origin, ok := aliases[f.Ref]; ok && origin != "" {
				target = origin
			}
			graph[t.Origin] = append(graph[t.Origin], target)
		}
	}
	return graph
}

// hasSelfLoop checks if a node has an edge to itself.
func hasSelfLoop(node string, graph dependencyGraph) bool {
	for _, neighbor := range graph[node] {
		if neighbor == node {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
// Nodes are visited in sorted order so results are stable.
func tarjanSCC(graph dependencyGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sort.Strings(scc)
			sccs = append(sccs, scc)
		}
	}

	nodes := make([]string, 0, len(graph))
	for node := range graph {
		nodes = append(nodes, node)
	}
	sort.Strings(nodes)
	for _, node := range nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	return sccs
}

func cycleSCCToWarning(scc []string, graph dependencyGraph) CycleWarning {
	if len(scc) == 1 {
		return CycleWarning{
			Path:    []string{scc[0], scc[0]},
			Message: fmt.Sprintf("table expands into itself: %s -> %s", scc[0], scc[0]),
		}
	}

	path := reconstructCyclePath(scc, graph)
	return CycleWarning{
		Path:    path,
		Message: fmt.Sprintf("NODE expansion cycle: %s", strings.Join(path, " -> ")),
	}
}

// reconstructCyclePath follows edges inside the SCC from its first member
// until it returns to the start.
func reconstructCyclePath(scc []string, graph dependencyGraph) []string {
	if len(scc) == 0 {
		return []string{}
	}

	members := make(map[string]bool, len(scc))
	for _, node := range scc {
		members[node] = true
	}

	start := scc[0]
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	for {
		visited[current] = true

		var next string
		for _, neighbor := range graph[current] {
			if members[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}
		if next == "" {
			break
		}

		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}

	return path
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
