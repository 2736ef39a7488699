package graph

import (
	"errors"
	"maps"
	"slices"
	"sync"
)

var (
	// ErrInvalidNodeID is returned by [Tx.AddNode] when the node ID is empty.
	// All nodes must have non-empty identifiers.
	ErrInvalidNodeID = errors.New("node ID must not be empty")

	// ErrDuplicateNodeID is returned by [Tx.AddNode] when a node with the same
	// ID already exists in the graph. Node IDs must be unique.
	ErrDuplicateNodeID = errors.New("duplicate node ID")

	// ErrUnknownNode is returned by mutation operations that reference a node
	// ID not present in the graph.
	ErrUnknownNode = errors.New("unknown node")

	// ErrUnknownSourceNode is returned by [Tx.AddEdge] when the From node
	// does not exist in the graph.
	ErrUnknownSourceNode = errors.New("unknown source node")

	// ErrUnknownTargetNode is returned by [Tx.AddEdge] when the To node
	// does not exist in the graph.
	ErrUnknownTargetNode = errors.New("unknown target node")
)

// DepthUnset is the sentinel depth of a node whose nesting depth has not been
// calculated yet. Depth calculation resets every node to this value before
// traversal so that stale depths from a previous build never leak through.
const DepthUnset = -1

// Tags applied to nodes and edges during forest derivation.
const (
	// TagPlaceholder marks synthetic nodes created for parent references that
	// resolve to no real note. Placeholder nodes carry a display label equal
	// to their ID.
	TagPlaceholder = "placeholder"

	// TagCompound marks nodes that have at least one structural child,
	// including placeholders. Rendering uses it to draw container shapes.
	TagCompound = "compound"

	// TagStructuralParentEdge marks edges that duplicate an established
	// structural parent relation. Such edges are retained for data purposes
	// but suppressed in rendering.
	TagStructuralParentEdge = "structural-parent-edge"
)

// Metadata stores arbitrary key-value pairs attached to nodes or edges.
// Metadata maps are never nil - they are automatically initialized to empty
// maps when needed.
type Metadata map[string]any

// Node represents a note in the live graph.
//
// Parent holds the structural parent ID ("" = root); it is independent of
// ordinary edges and is the relation the forest derivation establishes.
// Depth is the number of structural-parent hops to the nearest root, or
// [DepthUnset] before calculation.
//
// The zero value is not usable - ID must be set before adding to a Store.
type Node struct {
	ID     string   // Unique identifier (note name)
	Path   string   // Source file path ("" for placeholder nodes)
	Label  string   // Display label (defaults to ID when empty)
	Parent string   // Structural parent ID ("" = root)
	Depth  int      // Nesting depth, DepthUnset before calculation
	Meta   Metadata // Arbitrary key-value metadata (never nil after AddNode)

	tags map[string]struct{}
}

// DisplayLabel returns the label if set, otherwise the ID.
func (n *Node) DisplayLabel() string {
	if n.Label != "" {
		return n.Label
	}
	return n.ID
}

// HasTag reports whether the node carries the given tag.
func (n *Node) HasTag(tag string) bool {
	_, ok := n.tags[tag]
	return ok
}

// Tags returns the node's tags in sorted order.
// Returns an empty slice for an untagged node.
func (n *Node) Tags() []string {
	return slices.Sorted(maps.Keys(n.tags))
}

// IsPlaceholder reports whether the node is a synthetic placeholder.
func (n *Node) IsPlaceholder() bool { return n.HasTag(TagPlaceholder) }

// IsRoot reports whether the node has no structural parent.
func (n *Node) IsRoot() bool { return n.Parent == "" }

// Edge represents a directed link between two notes.
type Edge struct {
	From string   // Source node ID
	To   string   // Target node ID
	Meta Metadata // Arbitrary key-value metadata (never nil after AddEdge)

	tags map[string]struct{}
}

// HasTag reports whether the edge carries the given tag.
func (e *Edge) HasTag(tag string) bool {
	_, ok := e.tags[tag]
	return ok
}

// Tags returns the edge's tags in sorted order.
// Returns an empty slice for an untagged edge.
func (e *Edge) Tags() []string {
	return slices.Sorted(maps.Keys(e.tags))
}

// Store is the live mutable note graph shared between the vault loader, the
// forest processor, and concurrent readers (HTTP API, renderers).
//
// All mutations go through [Store.Batch], which applies a group of operations
// atomically with respect to readers: a reader never observes a half-applied
// batch. Single-operation convenience wrappers exist for the common cases.
//
// The zero value is not usable - use New to create a valid Store instance.
type Store struct {
	mu       sync.RWMutex
	ready    bool
	nodes    map[string]*Node
	edges    []*Edge
	outgoing map[string][]*Edge  // nodeID -> edges leaving it
	incoming map[string][]*Edge  // nodeID -> edges entering it
	children map[string][]string // parentID -> structural child IDs
}

// New creates an empty Store. The store starts not ready; the owner calls
// SetReady(true) once the initial node/edge population is complete and the
// graph is safe to read and mutate.
func New() *Store {
	return &Store{
		nodes:    make(map[string]*Node),
		outgoing: make(map[string][]*Edge),
		incoming: make(map[string][]*Edge),
		children: make(map[string][]string),
	}
}

// Ready reports whether the graph is safe to read and mutate.
func (s *Store) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

// SetReady updates the readiness signal.
func (s *Store) SetReady(ready bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = ready
}

// Batch applies fn as a single atomic mutation group. Readers block until fn
// returns, so intermediate states are never visible. If fn returns an error
// the batch is NOT rolled back automatically - callers that need rollback
// (e.g. placeholder creation) issue compensating operations inside fn.
func (s *Store) Batch(fn func(tx *Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&Tx{s: s})
}

// AddNode adds a single node. See [Tx.AddNode].
func (s *Store) AddNode(n Node) error {
	return s.Batch(func(tx *Tx) error { return tx.AddNode(n) })
}

// AddEdge adds a single edge. See [Tx.AddEdge].
func (s *Store) AddEdge(e Edge) error {
	return s.Batch(func(tx *Tx) error { return tx.AddEdge(e) })
}

// RemoveNode removes a single node. See [Tx.RemoveNode].
func (s *Store) RemoveNode(id string) error {
	return s.Batch(func(tx *Tx) error { return tx.RemoveNode(id) })
}

// Tx is a handle for mutations inside a [Store.Batch] group.
// A Tx must not be retained after the batch function returns.
type Tx struct {
	s *Store
}

// AddNode adds a node to the graph. Returns ErrInvalidNodeID if the node ID
// is empty, or ErrDuplicateNodeID if a node with the same ID already exists.
// The node's Meta field is automatically initialized to an empty map if nil,
// and its Depth to [DepthUnset] when zero-valued structs are passed with no
// explicit depth.
func (tx *Tx) AddNode(n Node) error {
	if n.ID == "" {
		return ErrInvalidNodeID
	}
	if _, exists := tx.s.nodes[n.ID]; exists {
		return ErrDuplicateNodeID
	}
	if n.Meta == nil {
		n.Meta = Metadata{}
	}
	if n.Depth == 0 {
		n.Depth = DepthUnset
	}
	node := &n
	if node.tags == nil {
		node.tags = make(map[string]struct{})
	}
	tx.s.nodes[node.ID] = node
	if node.Parent != "" {
		tx.s.children[node.Parent] = append(tx.s.children[node.Parent], node.ID)
	}
	return nil
}

// RemoveNode removes a node, its edges, and its structural relations.
// Children of the removed node become roots. Returns ErrUnknownNode if no
// node with the given ID exists.
func (tx *Tx) RemoveNode(id string) error {
	node, ok := tx.s.nodes[id]
	if !ok {
		return ErrUnknownNode
	}

	tx.s.edges = slices.DeleteFunc(tx.s.edges, func(e *Edge) bool { return e.From == id || e.To == id })
	for _, e := range tx.s.outgoing[id] {
		tx.s.incoming[e.To] = slices.DeleteFunc(tx.s.incoming[e.To], func(x *Edge) bool { return x == e })
	}
	for _, e := range tx.s.incoming[id] {
		tx.s.outgoing[e.From] = slices.DeleteFunc(tx.s.outgoing[e.From], func(x *Edge) bool { return x == e })
	}
	delete(tx.s.outgoing, id)
	delete(tx.s.incoming, id)

	if node.Parent != "" {
		tx.s.children[node.Parent] = slices.DeleteFunc(tx.s.children[node.Parent], func(c string) bool { return c == id })
	}
	for _, child := range tx.s.children[id] {
		if c, ok := tx.s.nodes[child]; ok {
			c.Parent = ""
		}
	}
	delete(tx.s.children, id)

	delete(tx.s.nodes, id)
	return nil
}

// AddEdge adds a directed edge between two existing nodes.
// Returns ErrUnknownSourceNode if the From node doesn't exist, or
// ErrUnknownTargetNode if the To node doesn't exist. The edge's Meta field is
// automatically initialized to an empty map if nil. Multiple edges between
// the same nodes are allowed (repeated links in a note body).
func (tx *Tx) AddEdge(e Edge) error {
	if _, ok := tx.s.nodes[e.From]; !ok {
		return ErrUnknownSourceNode
	}
	if _, ok := tx.s.nodes[e.To]; !ok {
		return ErrUnknownTargetNode
	}
	if e.Meta == nil {
		e.Meta = Metadata{}
	}
	edge := &e
	if edge.tags == nil {
		edge.tags = make(map[string]struct{})
	}
	tx.s.edges = append(tx.s.edges, edge)
	tx.s.outgoing[edge.From] = append(tx.s.outgoing[edge.From], edge)
	tx.s.incoming[edge.To] = append(tx.s.incoming[edge.To], edge)
	return nil
}

// SetParent sets the structural parent of a node and updates the structural
// children index. An empty parentID clears the relation, making the node a
// root. Returns ErrUnknownNode if either endpoint doesn't exist.
//
// SetParent does not check the forest invariant - that is the attach logic's
// responsibility, exercised before the mutation is issued.
func (tx *Tx) SetParent(id, parentID string) error {
	node, ok := tx.s.nodes[id]
	if !ok {
		return ErrUnknownNode
	}
	if parentID != "" {
		if _, ok := tx.s.nodes[parentID]; !ok {
			return ErrUnknownNode
		}
	}

	if node.Parent != "" {
		tx.s.children[node.Parent] = slices.DeleteFunc(tx.s.children[node.Parent], func(c string) bool { return c == id })
	}
	node.Parent = parentID
	if parentID != "" {
		tx.s.children[parentID] = append(tx.s.children[parentID], id)
	}
	return nil
}

// SetDepth sets the nesting depth of a node.
// Returns ErrUnknownNode if the node doesn't exist.
func (tx *Tx) SetDepth(id string, depth int) error {
	node, ok := tx.s.nodes[id]
	if !ok {
		return ErrUnknownNode
	}
	node.Depth = depth
	return nil
}

// SetLabel sets the display label of a node.
// Returns ErrUnknownNode if the node doesn't exist.
func (tx *Tx) SetLabel(id, label string) error {
	node, ok := tx.s.nodes[id]
	if !ok {
		return ErrUnknownNode
	}
	node.Label = label
	return nil
}

// Tag adds a tag to a node. Tagging an already-tagged node is a no-op.
// Returns ErrUnknownNode if the node doesn't exist.
func (tx *Tx) Tag(id, tag string) error {
	node, ok := tx.s.nodes[id]
	if !ok {
		return ErrUnknownNode
	}
	node.tags[tag] = struct{}{}
	return nil
}

// Untag removes a tag from a node. Removing an absent tag is a no-op.
// Returns ErrUnknownNode if the node doesn't exist.
func (tx *Tx) Untag(id, tag string) error {
	node, ok := tx.s.nodes[id]
	if !ok {
		return ErrUnknownNode
	}
	delete(node.tags, tag)
	return nil
}

// TagEdge adds a tag to an edge.
func (tx *Tx) TagEdge(e *Edge, tag string) {
	e.tags[tag] = struct{}{}
}

// UntagEdge removes a tag from an edge.
func (tx *Tx) UntagEdge(e *Edge, tag string) {
	delete(e.tags, tag)
}

// Node returns the node with the given ID inside the batch.
func (tx *Tx) Node(id string) (*Node, bool) {
	n, ok := tx.s.nodes[id]
	return n, ok
}

// EdgesBetween returns all edges with the given source and target inside the
// batch. Returns nil when no such edge exists.
func (tx *Tx) EdgesBetween(from, to string) []*Edge {
	var result []*Edge
	for _, e := range tx.s.outgoing[from] {
		if e.To == to {
			result = append(result, e)
		}
	}
	return result
}

// Nodes returns all node IDs inside the batch, unordered.
func (tx *Tx) Nodes() []string {
	return slices.Collect(maps.Keys(tx.s.nodes))
}

// Children returns the structural child IDs of a node inside the batch.
func (tx *Tx) Children(id string) []string {
	return tx.s.children[id]
}

// =============================================================================
// Read API
// =============================================================================

// Node returns the node with the given ID and true, or nil and false if not
// found. The returned pointer refers to the actual node in the graph; treat
// it as read-only outside a batch. Callers that read node fields while
// batches may run concurrently use [Store.Snapshot] instead.
func (s *Store) Node(id string) (*Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id]
	return n, ok
}

// Nodes returns all nodes in the graph. The order is not guaranteed.
func (s *Store) Nodes() []*Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	nodes := make([]*Node, 0, len(s.nodes))
	for _, n := range s.nodes {
		nodes = append(nodes, n)
	}
	return nodes
}

// NodeIDs returns all node IDs in sorted order.
func (s *Store) NodeIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.nodes))
}

// Edges returns a copy of the edge slice. The order matches insertion order.
// The edge pointers refer to the actual edges; treat them as read-only
// outside a batch. Concurrent readers use [Store.Snapshot] instead.
func (s *Store) Edges() []*Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.edges)
}

// EdgesBetween returns all edges with the given source and target.
// Returns nil when no such edge exists.
func (s *Store) EdgesBetween(from, to string) []*Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*Edge
	for _, e := range s.outgoing[from] {
		if e.To == to {
			result = append(result, e)
		}
	}
	return result
}

// NodeCount returns the number of nodes in the graph.
func (s *Store) NodeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes)
}

// EdgeCount returns the number of edges in the graph.
func (s *Store) EdgeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.edges)
}

// Children returns the structural child IDs of a node, in attach order.
// Returns nil if the node has no structural children or doesn't exist.
// The returned slice is a copy and safe to modify.
func (s *Store) Children(id string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.children[id])
}

// Roots returns the IDs of all nodes without a structural parent, sorted.
// For an unprocessed graph this is every node.
func (s *Store) Roots() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var roots []string
	for id, n := range s.nodes {
		if n.Parent == "" {
			roots = append(roots, id)
		}
	}
	slices.Sort(roots)
	return roots
}
