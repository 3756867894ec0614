package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/distance/internal/rule"
)

// CycleWarning reports rules that can feed their own conditions.
//
// Positive cycles are warnings, not errors. Fire-once per tuple and set
// semantics in working memory bound them: a cycle can only re-derive facts
// that already exist. Cycles through a negation are rejected by
// CompileRules with E127 and never reach this analysis.
type CycleWarning struct {
	Path    []string `json:"path"`    // ["rule-a", "rule-b", "rule-a"]
	Message string   `json:"message"`
	Level   string   `json:"level"` // "warning" or "info"
}

// AnalyzeCycles reports every strongly connected component of the rule
// dependency graph. A rule depends on another when it matches a type the
// other produces. Output order follows rule declaration order.
func AnalyzeCycles(set *rule.Set) []CycleWarning {
	if set == nil || set.Len() == 0 {
		return []CycleWarning{}
	}

	g := buildDependencyGraph(set.Rules())

	warnings := []CycleWarning{}
	for _, scc := range tarjanSCC(g) {
		if len(scc) > 1 || (len(scc) == 1 && g.hasSelfLoop(scc[0])) {
			warnings = append(warnings, cycleSCCToWarning(scc, g))
		}
	}
	return warnings
}

// dependencyGraph maps a rule to the rules its products can activate.
// Nodes keeps declaration order so traversal is deterministic.
type dependencyGraph struct {
	nodes []string
	edges map[string][]string
}

func buildDependencyGraph(rules []*rule.Compiled) dependencyGraph {
	consumers := make(map[string][]string)
	for _, r := range rules {
		seen := make(map[string]bool)
		for _, s := range r.Steps {
			if s.Type == nil || seen[s.Type.Name()] {
				continue
			}
			seen[s.Type.Name()] = true
			consumers[s.Type.Name()] = append(consumers[s.Type.Name()], r.Name)
		}
	}

	g := dependencyGraph{edges: make(map[string][]string)}
	for _, r := range rules {
		g.nodes = append(g.nodes, r.Name)
		seen := make(map[string]bool)
		g.edges[r.Name] = []string{}
		for _, p := range r.Produces {
			for _, c := range consumers[p] {
				if !seen[c] {
					seen[c] = true
					g.edges[r.Name] = append(g.edges[r.Name], c)
				}
			}
		}
	}
	return g
}

func (g dependencyGraph) hasSelfLoop(node string) bool {
	for _, n := range g.edges[node] {
		if n == node {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
// Members of each component are listed in declaration order.
func tarjanSCC(g dependencyGraph) [][]string {
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

		for _, w := range g.edges[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			members := make(map[string]bool)
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				members[w] = true
				if w == v {
					break
				}
			}
			sccs = append(sccs, g.ordered(members))
		}
	}

	for _, node := range g.nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	// Tarjan emits components in reverse topological order; report them
	// by the position of their first member instead.
	pos := make(map[string]int, len(g.nodes))
	for i, n := range g.nodes {
		pos[n] = i
	}
	for i := 1; i < len(sccs); i++ {
		for j := i; j > 0 && pos[sccs[j][0]] < pos[sccs[j-1][0]]; j-- {
			sccs[j], sccs[j-1] = sccs[j-1], sccs[j]
		}
	}
	return sccs
}

func (g dependencyGraph) ordered(members map[string]bool) []string {
	out := make([]string, 0, len(members))
	for _, n := range g.nodes {
		if members[n] {
			out = append(out, n)
		}
	}
	return out
}

func cycleSCCToWarning(scc []string, g dependencyGraph) CycleWarning {
	if len(scc) == 1 {
		name := scc[0]
		return CycleWarning{
			Path:    []string{name, name},
			Message: fmt.Sprintf("Rule matches its own products: %s → %s", name, name),
			Level:   "info",
		}
	}

	path := reconstructCyclePath(scc, g)
	return CycleWarning{
		Path:    path,
		Message: fmt.Sprintf("Potential cycle detected: %s", strings.Join(path, " → ")),
		Level:   "warning",
	}
}

// reconstructCyclePath walks edges inside the component from its first
// member until it returns there or runs out of unvisited members.
func reconstructCyclePath(scc []string, g dependencyGraph) []string {
	if len(scc) == 0 {
		return []string{}
	}

	inSCC := make(map[string]bool, len(scc))
	for _, n := range scc {
		inSCC[n] = true
	}

	start := scc[0]
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	for {
		visited[current] = true

		next := ""
		for _, n := range g.edges[current] {
			if inSCC[n] && !visited[n] {
				next = n
				break
			}
		}
		if next == "" {
			for _, n := range g.edges[current] {
				if n == start {
					next = n
					break
				}
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
