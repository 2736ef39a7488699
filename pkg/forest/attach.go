package forest

import (
	"github.com/nestfold/nestfold/pkg/graph"

	nferrors "github.com/nestfold/nestfold/pkg/errors"
)

// attach sets a node's structural parent inside the given batch.
//
// Preconditions enforced here:
//   - the target parent must already exist in the graph (resolved note or
//     freshly ensured placeholder)
//   - a node never parents itself
//   - the attachment must not make the node its own ancestor; the ancestor
//     chain of the target is walked before mutating, so an A↔B declaration
//     pair breaks at the second attach instead of corrupting the forest
//
// On success the parent relation is set and the parent gains the compound
// tag. All failures are per-node recoverable: the caller logs and moves on
// to the next node.
func attach(tx *graph.Tx, nodeID, parentID string) error {
	if _, ok := tx.Node(parentID); !ok {
		return nferrors.New(nferrors.ErrCodeNodeNotFound, "parent %q does not exist", parentID)
	}
	if nodeID == parentID {
		return nferrors.New(nferrors.ErrCodeSelfParent, "note %q declares itself as parent", nodeID)
	}
	if onAncestorChain(tx, parentID, nodeID) {
		return nferrors.New(nferrors.ErrCodeParentCycle, "attaching %q under %q would create a cycle", nodeID, parentID)
	}

	if err := tx.SetParent(nodeID, parentID); err != nil {
		return nferrors.Wrap(nferrors.ErrCodeAttachFailed, err, "attach %q under %q", nodeID, parentID)
	}
	if err := tx.Tag(parentID, graph.TagCompound); err != nil {
		return nferrors.Wrap(nferrors.ErrCodeAttachFailed, err, "mark %q compound", parentID)
	}
	return nil
}

// onAncestorChain reports whether target appears on the structural ancestor
// chain starting at from (inclusive). The walk is bounded by a visited set so
// it terminates even if a preexisting cycle is encountered.
func onAncestorChain(tx *graph.Tx, from, target string) bool {
	visited := make(map[string]bool)
	for id := from; id != "" && !visited[id]; {
		if id == target {
			return true
		}
		visited[id] = true
		n, ok := tx.Node(id)
		if !ok {
			return false
		}
		id = n.Parent
	}
	return false
}

// tagStructuralEdges marks every existing edge from node to parent with the
// structural-parent-edge tag, so rendering can suppress links that merely
// duplicate the nesting. A declaration without a matching edge is common
// (the parent relation can exist purely in frontmatter) and a no-op here.
func tagStructuralEdges(tx *graph.Tx, nodeID, parentID string) int {
	edges := tx.EdgesBetween(nodeID, parentID)
	for _, e := range edges {
		tx.TagEdge(e, graph.TagStructuralParentEdge)
	}
	return len(edges)
}
