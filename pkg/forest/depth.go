package forest

import (
	"slices"

	"github.com/nestfold/nestfold/pkg/graph"
)

// DepthStats summarizes one depth calculation pass.
type DepthStats struct {
	Roots     int      // Nodes with no structural parent
	MaxDepth  int      // Deepest nesting level reached
	Unreached []string // Nodes never reached from any root (cycle members, sorted)
}

// calculateDepths recomputes the nesting depth of every node from scratch.
//
// Every depth is first reset to the sentinel, then assigned by an explicit
// worklist traversal from each root down through structural children:
// roots get 0, every child gets its parent's depth plus one. A node whose
// depth is already final is never pushed again, so the traversal terminates
// even if the children index contains a cycle.
//
// Nodes left unreached (members of a parent cycle - each has a parent, so
// none is a root) fall back to depth 0 and are reported in Unreached so the
// condition is detectable without failing the build.
//
// The pass is idempotent: re-running on an unchanged forest produces
// identical depths.
func calculateDepths(tx *graph.Tx) DepthStats {
	ids := tx.Nodes()
	for _, id := range ids {
		_ = tx.SetDepth(id, graph.DepthUnset)
	}

	type frame struct {
		id    string
		depth int
	}

	var stats DepthStats
	var stack []frame
	for _, id := range ids {
		if n, ok := tx.Node(id); ok && n.Parent == "" {
			stats.Roots++
			stack = append(stack, frame{id: id, depth: 0})
		}
	}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		n, ok := tx.Node(f.id)
		if !ok || n.Depth != graph.DepthUnset {
			// Already finalized: revisiting means the children index holds a
			// cycle or duplicate - stop descending on this path.
			continue
		}
		_ = tx.SetDepth(f.id, f.depth)
		if f.depth > stats.MaxDepth {
			stats.MaxDepth = f.depth
		}

		for _, child := range tx.Children(f.id) {
			stack = append(stack, frame{id: child, depth: f.depth + 1})
		}
	}

	for _, id := range ids {
		if n, ok := tx.Node(id); ok && n.Depth == graph.DepthUnset {
			_ = tx.SetDepth(id, 0)
			stats.Unreached = append(stats.Unreached, id)
		}
	}
	slices.Sort(stats.Unreached)

	return stats
}
