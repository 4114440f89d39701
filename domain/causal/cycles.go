package causal

import (
	"sort"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// ComputeCycleFlags marks every node that can reach itself by following
// outgoing edges. A node that only leads into a cycle elsewhere is not marked;
// membership is strictly self-reachability.
//
// Each start node gets its own path and visited sets, so the result does not
// depend on iteration order. Cost is O(V*(V+E)), fine for hand-built graphs.
func ComputeCycleFlags(nodeIDs []string, edges []Edge) map[string]bool {
	adj := adjacency(nodeIDs, edges)
	flags := make(map[string]bool, len(nodeIDs))
	for _, id := range nodeIDs {
		flags[id] = reachesSelf(id, adj)
	}
	return flags
}

// HasCycle reports whether any node is flagged.
func HasCycle(flags map[string]bool) bool {
	for _, v := range flags {
		if v {
			return true
		}
	}
	return false
}

func adjacency(nodeIDs []string, edges []Edge) map[string][]string {
	adj := make(map[string][]string, len(nodeIDs))
	for _, id := range nodeIDs {
		adj[id] = nil
	}
	for _, e := range edges {
		if _, ok := adj[e.Source]; !ok {
			continue
		}
		if _, ok := adj[e.Target]; !ok {
			continue
		}
		adj[e.Source] = append(adj[e.Source], e.Target)
	}
	return adj
}

func reachesSelf(start string, adj map[string][]string) bool {
	onPath := map[string]bool{start: true}
	done := make(map[string]bool)

	var visit func(id string) bool
	visit = func(id string) bool {
		for _, next := range adj[id] {
			if next == start {
				return true
			}
			if onPath[next] || done[next] {
				continue
			}
			onPath[next] = true
			if visit(next) {
				return true
			}
			delete(onPath, next)
			done[next] = true
		}
		return false
	}
	return visit(start)
}

// CycleGroups lists the strongly connected groups that contain a cycle,
// each sorted by name, groups ordered by their first member. It is only used
// to describe cycles to the user; gating relies on ComputeCycleFlags.
func CycleGroups(nodeIDs []string, edges []Edge) [][]string {
	index := make(map[string]int64, len(nodeIDs))
	names := make(map[int64]string, len(nodeIDs))
	g := simple.NewDirectedGraph()
	for i, id := range nodeIDs {
		index[id] = int64(i)
		names[int64(i)] = id
		g.AddNode(simple.Node(i))
	}

	selfLoop := make(map[string]bool)
	for _, e := range edges {
		from, ok1 := index[e.Source]
		to, ok2 := index[e.Target]
		if !ok1 || !ok2 {
			continue
		}
		if from == to {
			selfLoop[e.Source] = true
			continue
		}
		g.SetEdge(g.NewEdge(simple.Node(from), simple.Node(to)))
	}

	var groups [][]string
	for _, component := range topo.TarjanSCC(g) {
		members := make([]string, 0, len(component))
		for _, n := range component {
			members = append(members, names[n.ID()])
		}
		if len(members) == 1 && !selfLoop[members[0]] {
			continue
		}
		sort.Strings(members)
		groups = append(groups, members)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i][0] < groups[j][0] })
	return groups
}
