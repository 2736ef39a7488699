package graph

import (
	"bytes"
	"cmp"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
)

// =============================================================================
// Graph Serialization API
// =============================================================================

// Graph is the canonical serialization format for processed note graphs.
// Used for API responses, CLI output, and cross-tool compatibility.
//
// The format is human-readable and designed for round-trip fidelity:
// export → re-import produces an identical store (up to edge tag order).
type Graph struct {
	Nodes []NodeData `json:"nodes"`
	Edges []EdgeData `json:"edges"`
}

// NodeData is the serialized form of a node.
type NodeData struct {
	ID     string         `json:"id"`
	Path   string         `json:"path,omitempty"`
	Label  string         `json:"label,omitempty"`
	Parent string         `json:"parent,omitempty"`
	Depth  int            `json:"depth"`
	Tags   []string       `json:"tags,omitempty"`
	Meta   map[string]any `json:"meta,omitempty"`
}

// EdgeData is the serialized form of an edge.
type EdgeData struct {
	From string   `json:"from"`
	To   string   `json:"to"`
	Tags []string `json:"tags,omitempty"`
}

// HasTag reports whether the serialized node carries the given tag.
func (n NodeData) HasTag(tag string) bool { return slices.Contains(n.Tags, tag) }

// IsPlaceholder reports whether the serialized node is a synthetic placeholder.
func (n NodeData) IsPlaceholder() bool { return n.HasTag(TagPlaceholder) }

// DisplayLabel returns the label if set, otherwise the ID.
func (n NodeData) DisplayLabel() string {
	if n.Label != "" {
		return n.Label
	}
	return n.ID
}

// HasTag reports whether the serialized edge carries the given tag.
func (e EdgeData) HasTag(tag string) bool { return slices.Contains(e.Tags, tag) }

// NodeIndex returns the snapshot's nodes keyed by ID.
func (g Graph) NodeIndex() map[string]NodeData {
	idx := make(map[string]NodeData, len(g.Nodes))
	for _, n := range g.Nodes {
		idx[n.ID] = n
	}
	return idx
}

// Roots returns the IDs of nodes without a structural parent, sorted.
func (g Graph) Roots() []string {
	var roots []string
	for _, n := range g.Nodes {
		if n.Parent == "" {
			roots = append(roots, n.ID)
		}
	}
	slices.Sort(roots)
	return roots
}

// ChildIndex returns the structural child IDs per parent, derived from the
// nodes' Parent fields. Each list is sorted.
func (g Graph) ChildIndex() map[string][]string {
	idx := make(map[string][]string)
	for _, n := range g.Nodes {
		if n.Parent != "" {
			idx[n.Parent] = append(idx[n.Parent], n.ID)
		}
	}
	for _, kids := range idx {
		slices.Sort(kids)
	}
	return idx
}

// MarshalGraph converts a Store to JSON bytes.
// Nodes are sorted by ID for deterministic output.
func MarshalGraph(s *Store) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeGraphTo(s, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteGraphFile writes a Store to a JSON file.
// The file is created with 0644 permissions.
func WriteGraphFile(s *Store, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return writeGraphTo(s, f)
}

// WriteGraph writes a Store as JSON to an io.Writer.
// Use MarshalGraph for in-memory serialization or WriteGraphFile for files.
func WriteGraph(s *Store, w io.Writer) error {
	return writeGraphTo(s, w)
}

// ReadGraphFile reads a JSON file and returns the decoded Store.
// The returned store is marked ready.
func ReadGraphFile(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return readGraphFrom(f)
}

// ReadGraph decodes a JSON graph from an io.Reader into a Store.
// Use ReadGraphFile for files or pass bytes.NewReader for in-memory data.
func ReadGraph(r io.Reader) (*Store, error) {
	return readGraphFrom(r)
}

// FromStore converts a Store into its serialization form.
// Nodes are sorted by ID and edges retain insertion order.
func FromStore(s *Store) Graph { return s.Snapshot() }

// Snapshot copies the graph into its serialization form while holding the
// store's read lock, so the result reflects exactly one point between
// batches. Concurrent readers (the HTTP API, renderers, the tree browser)
// consume snapshots instead of retaining node pointers across the lock
// boundary, where a batch could mutate them mid-read.
func (s *Store) Snapshot() Graph {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := Graph{
		Nodes: make([]NodeData, 0, len(s.nodes)),
		Edges: make([]EdgeData, 0, len(s.edges)),
	}

	for _, n := range s.nodes {
		nd := NodeData{
			ID:     n.ID,
			Path:   n.Path,
			Label:  n.Label,
			Parent: n.Parent,
			Depth:  n.Depth,
			Tags:   n.Tags(),
		}
		if len(n.Meta) > 0 {
			nd.Meta = maps.Clone(n.Meta)
		}
		if len(nd.Tags) == 0 {
			nd.Tags = nil
		}
		out.Nodes = append(out.Nodes, nd)
	}
	slices.SortFunc(out.Nodes, func(a, b NodeData) int { return cmp.Compare(a.ID, b.ID) })

	for _, e := range s.edges {
		ed := EdgeData{From: e.From, To: e.To, Tags: e.Tags()}
		if len(ed.Tags) == 0 {
			ed.Tags = nil
		}
		out.Edges = append(out.Edges, ed)
	}

	return out
}

// ToStore converts a serialized Graph back into a live Store.
// Structural parents referencing unknown nodes are rejected, so a graph that
// round-trips is guaranteed to satisfy the store's integrity rules.
// The returned store is marked ready.
func ToStore(g Graph) (*Store, error) {
	s := New()

	err := s.Batch(func(tx *Tx) error {
		for _, nd := range g.Nodes {
			n := Node{
				ID:    nd.ID,
				Path:  nd.Path,
				Label: nd.Label,
				Depth: nd.Depth,
				Meta:  nd.Meta,
			}
			if err := tx.AddNode(n); err != nil {
				return fmt.Errorf("node %s: %w", nd.ID, err)
			}
			// Depth 0 is meaningful here; AddNode treats 0 as unset.
			if err := tx.SetDepth(nd.ID, nd.Depth); err != nil {
				return fmt.Errorf("node %s: %w", nd.ID, err)
			}
			for _, tag := range nd.Tags {
				if err := tx.Tag(nd.ID, tag); err != nil {
					return fmt.Errorf("node %s: %w", nd.ID, err)
				}
			}
		}

		// Parents in a second pass so order in the file doesn't matter.
		for _, nd := range g.Nodes {
			if nd.Parent == "" {
				continue
			}
			if err := tx.SetParent(nd.ID, nd.Parent); err != nil {
				return fmt.Errorf("node %s: parent %s: %w", nd.ID, nd.Parent, err)
			}
		}

		for _, ed := range g.Edges {
			e := Edge{From: ed.From, To: ed.To}
			if err := tx.AddEdge(e); err != nil {
				return fmt.Errorf("edge %s -> %s: %w", ed.From, ed.To, err)
			}
			edges := tx.EdgesBetween(ed.From, ed.To)
			for _, tag := range ed.Tags {
				tx.TagEdge(edges[len(edges)-1], tag)
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.SetReady(true)
	return s, nil
}

// =============================================================================
// Internal Implementation
// =============================================================================

func writeGraphTo(s *Store, w io.Writer) error {
	out := FromStore(s)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

func readGraphFrom(r io.Reader) (*Store, error) {
	var data Graph
	if err := json.NewDecoder(r).Decode(&data); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return ToStore(data)
}
