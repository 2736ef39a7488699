// Package graph provides the live mutable note graph that the rest of
// nestfold builds on.
//
// # Overview
//
// nestfold represents a vault as a flat graph: one node per note, one edge
// per wikilink. The forest derivation then layers a structural parent/child
// relation on top of the flat graph, so that each note can be rendered nested
// inside its declared parent. This package owns both layers: the node/edge
// set and the structural parent relation with its children index.
//
// # Basic Usage
//
// Create a store with [New], add nodes with [Store.AddNode], and edges with
// [Store.AddEdge]. Nodes must have unique IDs, and edges can only connect
// existing nodes:
//
//	s := graph.New()
//	s.AddNode(graph.Node{ID: "Projects", Path: "Projects.md"})
//	s.AddNode(graph.Node{ID: "Go Notes", Path: "Go Notes.md"})
//	s.AddEdge(graph.Edge{From: "Go Notes", To: "Projects"})
//
// Query the structure with [Store.Node], [Store.Edges], [Store.Children],
// [Store.Roots], and related methods.
//
// # Batched Mutation
//
// The store is a shared resource: a build mutates it while the HTTP API or a
// renderer may be reading it. All mutations run inside [Store.Batch], which
// holds the write lock for the whole group so readers never observe a
// half-applied state. The [Tx] handle passed to the batch function exposes
// the mutation set: AddNode, RemoveNode, AddEdge, SetParent, SetDepth,
// SetLabel, Tag/Untag, and TagEdge/UntagEdge.
//
// # Readiness
//
// A store starts not ready. The vault loader flips the signal with
// [Store.SetReady] once the initial population is complete; the forest
// processor polls [Store.Ready] (with a deadline) before touching anything.
//
// # Serialization
//
// The codec half of the package ([MarshalGraph], [WriteGraphFile],
// [ReadGraphFile]) provides a canonical JSON form with sorted nodes and
// round-trip fidelity, used by the CLI and the HTTP API.
package graph
