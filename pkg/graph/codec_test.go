package graph

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func buildProcessed(t *testing.T) *Store {
	t.Helper()
	s := New()
	s.AddNode(Node{ID: "Projects", Path: "Projects.md"})
	s.AddNode(Node{ID: "Go Notes", Path: "go/Go Notes.md"})
	s.AddNode(Node{ID: "Missing", Label: "Missing"})
	s.AddEdge(Edge{From: "Go Notes", To: "Projects"})
	err := s.Batch(func(tx *Tx) error {
		if err := tx.SetParent("Go Notes", "Projects"); err != nil {
			return err
		}
		if err := tx.Tag("Projects", TagCompound); err != nil {
			return err
		}
		if err := tx.Tag("Missing", TagPlaceholder); err != nil {
			return err
		}
		for _, e := range tx.EdgesBetween("Go Notes", "Projects") {
			tx.TagEdge(e, TagStructuralParentEdge)
		}
		if err := tx.SetDepth("Projects", 0); err != nil {
			return err
		}
		if err := tx.SetDepth("Missing", 0); err != nil {
			return err
		}
		return tx.SetDepth("Go Notes", 1)
	})
	if err != nil {
		t.Fatalf("build store: %v", err)
	}
	s.SetReady(true)
	return s
}

func TestMarshalGraph(t *testing.T) {
	tests := []struct {
		name      string
		build     func(t *testing.T) *Store
		wantNodes int
		wantEdges int
		check     func(t *testing.T, g Graph)
	}{
		{
			name:      "Empty",
			build:     func(t *testing.T) *Store { return New() },
			wantNodes: 0,
			wantEdges: 0,
		},
		{
			name:      "Processed",
			build:     buildProcessed,
			wantNodes: 3,
			wantEdges: 1,
			check: func(t *testing.T, g Graph) {
				// Sorted by ID: Go Notes, Missing, Projects.
				if g.Nodes[0].ID != "Go Notes" || g.Nodes[0].Parent != "Projects" || g.Nodes[0].Depth != 1 {
					t.Errorf("unexpected first node: %+v", g.Nodes[0])
				}
				if g.Nodes[1].Tags[0] != TagPlaceholder {
					t.Errorf("Missing tags = %v, want placeholder", g.Nodes[1].Tags)
				}
				if g.Edges[0].Tags[0] != TagStructuralParentEdge {
					t.Errorf("edge tags = %v, want structural-parent-edge", g.Edges[0].Tags)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := MarshalGraph(tt.build(t))
			if err != nil {
				t.Fatalf("MarshalGraph: %v", err)
			}

			var g Graph
			if err := json.Unmarshal(data, &g); err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			if len(g.Nodes) != tt.wantNodes {
				t.Errorf("nodes = %d, want %d", len(g.Nodes), tt.wantNodes)
			}
			if len(g.Edges) != tt.wantEdges {
				t.Errorf("edges = %d, want %d", len(g.Edges), tt.wantEdges)
			}
			if tt.check != nil {
				tt.check(t, g)
			}
		})
	}
}

func TestRoundTrip(t *testing.T) {
	s := buildProcessed(t)

	data, err := MarshalGraph(s)
	if err != nil {
		t.Fatalf("MarshalGraph: %v", err)
	}

	restored, err := ReadGraph(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("ReadGraph: %v", err)
	}

	if !restored.Ready() {
		t.Error("restored store not ready")
	}
	if restored.NodeCount() != s.NodeCount() {
		t.Errorf("NodeCount = %d, want %d", restored.NodeCount(), s.NodeCount())
	}
	if restored.EdgeCount() != s.EdgeCount() {
		t.Errorf("EdgeCount = %d, want %d", restored.EdgeCount(), s.EdgeCount())
	}

	n, ok := restored.Node("Go Notes")
	if !ok {
		t.Fatal("Go Notes missing after round trip")
	}
	if n.Parent != "Projects" || n.Depth != 1 || n.Path != "go/Go Notes.md" {
		t.Errorf("Go Notes = %+v, parent/depth/path not preserved", n)
	}

	m, _ := restored.Node("Missing")
	if !m.IsPlaceholder() || m.Depth != 0 {
		t.Errorf("Missing placeholder state not preserved: %+v", m)
	}

	// Depth 0 must survive the round trip and not decay to the sentinel.
	p, _ := restored.Node("Projects")
	if p.Depth != 0 {
		t.Errorf("Projects.Depth = %d, want 0", p.Depth)
	}

	edges := restored.EdgesBetween("Go Notes", "Projects")
	if len(edges) != 1 || !edges[0].HasTag(TagStructuralParentEdge) {
		t.Error("edge tag not preserved")
	}

	// Second marshal must be byte-identical.
	data2, err := MarshalGraph(restored)
	if err != nil {
		t.Fatalf("MarshalGraph(restored): %v", err)
	}
	if !bytes.Equal(data, data2) {
		t.Error("round trip is not byte-stable")
	}
}

func TestSnapshotIndexes(t *testing.T) {
	s := buildProcessed(t)
	snap := s.Snapshot()

	idx := snap.NodeIndex()
	if len(idx) != 3 {
		t.Fatalf("NodeIndex size = %d, want 3", len(idx))
	}
	if n := idx["Go Notes"]; n.Parent != "Projects" || n.Depth != 1 {
		t.Errorf("Go Notes = %+v, want parent Projects depth 1", n)
	}
	if !idx["Missing"].IsPlaceholder() {
		t.Error("Missing should report placeholder from tags")
	}

	roots := snap.Roots()
	if len(roots) != 2 || roots[0] != "Missing" || roots[1] != "Projects" {
		t.Errorf("Roots = %v, want [Missing Projects]", roots)
	}

	children := snap.ChildIndex()
	if kids := children["Projects"]; len(kids) != 1 || kids[0] != "Go Notes" {
		t.Errorf("children of Projects = %v, want [Go Notes]", kids)
	}
}

func TestSnapshotCopiesMeta(t *testing.T) {
	s := New()
	s.AddNode(Node{ID: "a", Path: "a.md", Meta: Metadata{"status": "active"}})

	snap := s.Snapshot()
	snap.Nodes[0].Meta["status"] = "mutated"

	n, _ := s.Node("a")
	if n.Meta["status"] != "active" {
		t.Errorf("store meta = %v, snapshot mutation leaked through", n.Meta["status"])
	}
}

func TestSnapshotConsistentUnderConcurrentBatches(t *testing.T) {
	s := New()
	s.AddNode(Node{ID: "a", Path: "a.md"})
	s.AddNode(Node{ID: "b", Path: "b.md"})
	if err := s.Batch(func(tx *Tx) error { return tx.SetDepth("b", 0) }); err != nil {
		t.Fatalf("init depth: %v", err)
	}
	s.SetReady(true)

	// Each batch sets b's parent and depth together; a snapshot taken
	// between batches must never see one without the other.
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			parent, depth := "a", 1
			if i%2 == 1 {
				parent, depth = "", 0
			}
			err := s.Batch(func(tx *Tx) error {
				if err := tx.SetParent("b", parent); err != nil {
					return err
				}
				return tx.SetDepth("b", depth)
			})
			if err != nil {
				t.Errorf("batch: %v", err)
				return
			}
		}
	}()

	for i := 0; i < 500; i++ {
		snap := s.Snapshot()
		b, ok := snap.NodeIndex()["b"]
		if !ok {
			t.Fatal("b missing from snapshot")
		}
		want := 0
		if b.Parent == "a" {
			want = 1
		}
		if b.Depth != want {
			t.Fatalf("snapshot mixed batches: parent %q with depth %d", b.Parent, b.Depth)
		}
	}
	wg.Wait()
}

func TestToStoreBadParent(t *testing.T) {
	g := Graph{
		Nodes: []NodeData{{ID: "a", Parent: "ghost"}},
	}
	if _, err := ToStore(g); err == nil {
		t.Error("ToStore() accepted parent referencing unknown node")
	}
}

func TestWriteAndReadGraphFile(t *testing.T) {
	s := buildProcessed(t)
	path := filepath.Join(t.TempDir(), "graph.json")

	if err := WriteGraphFile(s, path); err != nil {
		t.Fatalf("WriteGraphFile: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), `"structural-parent-edge"`) {
		t.Error("serialized file missing edge tag")
	}

	restored, err := ReadGraphFile(path)
	if err != nil {
		t.Fatalf("ReadGraphFile: %v", err)
	}
	if restored.NodeCount() != 3 {
		t.Errorf("NodeCount = %d, want 3", restored.NodeCount())
	}
}
