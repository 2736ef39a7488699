package forest

import (
	"github.com/nestfold/nestfold/pkg/graph"

	nferrors "github.com/nestfold/nestfold/pkg/errors"
)

// ensurePlaceholder returns the node with the given ID, creating a minimal
// placeholder when it does not exist. The second result reports whether this
// call created the node, so one build never reports the same placeholder
// twice. Creation is idempotent within a pass: repeated calls with the same
// ID return the same node without duplication.
//
// An existing node is returned as-is: a real note can legitimately be the
// target of a reference that the resolver missed, and must not be branded a
// placeholder. A node created earlier in the pass keeps its placeholder
// marker.
//
// On mutation failure the partially created node is rolled back and a
// PLACEHOLDER_FAILED error is returned; the caller must not reparent onto
// the failed target.
func ensurePlaceholder(tx *graph.Tx, id string) (*graph.Node, bool, error) {
	if n, ok := tx.Node(id); ok {
		return n, false, nil
	}

	if err := tx.AddNode(graph.Node{ID: id, Label: id}); err != nil {
		return nil, false, nferrors.Wrap(nferrors.ErrCodePlaceholderFailed, err, "create placeholder %q", id)
	}
	if err := tx.Tag(id, graph.TagPlaceholder); err != nil {
		// Roll back the half-created node so no unmarked synthetic node
		// survives a failed creation.
		_ = tx.RemoveNode(id)
		return nil, false, nferrors.Wrap(nferrors.ErrCodePlaceholderFailed, err, "mark placeholder %q", id)
	}

	n, _ := tx.Node(id)
	return n, true, nil
}
