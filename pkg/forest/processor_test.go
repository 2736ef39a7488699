package forest

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	nferrors "github.com/nestfold/nestfold/pkg/errors"
	"github.com/nestfold/nestfold/pkg/graph"
	"github.com/nestfold/nestfold/pkg/resolve"
)

// vaultNote is a shorthand note description for building test stores.
type vaultNote struct {
	id     string
	parent any // raw frontmatter declaration
}

// buildStore creates a ready store with one node per note and a resolver
// index over the note names.
func buildStore(t *testing.T, notes []vaultNote, edges ...[2]string) (*graph.Store, resolve.Resolver) {
	t.Helper()
	s := graph.New()
	entries := make([]resolve.Entry, 0, len(notes))
	for _, n := range notes {
		meta := graph.Metadata{}
		if n.parent != nil {
			meta["parent"] = n.parent
		}
		if err := s.AddNode(graph.Node{ID: n.id, Path: n.id + ".md", Meta: meta}); err != nil {
			t.Fatalf("AddNode(%s): %v", n.id, err)
		}
		entries = append(entries, resolve.Entry{ID: n.id, Path: n.id + ".md"})
	}
	for _, e := range edges {
		if err := s.AddEdge(graph.Edge{From: e[0], To: e[1]}); err != nil {
			t.Fatalf("AddEdge(%v): %v", e, err)
		}
	}
	s.SetReady(true)
	return s, resolve.NewIndex(entries)
}

func quietOptions() Options {
	return Options{Logger: log.NewWithOptions(io.Discard, log.Options{})}
}

func process(t *testing.T, s *graph.Store, r resolve.Resolver) *Report {
	t.Helper()
	p := NewProcessor(s, r, quietOptions())
	report, err := p.Process(context.Background())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	return report
}

// checkForest verifies the forest invariant: every structural-parent chain
// terminates without revisiting a node.
func checkForest(t *testing.T, s *graph.Store) {
	t.Helper()
	for _, n := range s.Nodes() {
		visited := make(map[string]bool)
		for id := n.ID; id != ""; {
			if visited[id] {
				t.Fatalf("node %s is on a parent cycle through %s", n.ID, id)
			}
			visited[id] = true
			cur, ok := s.Node(id)
			if !ok {
				t.Fatalf("parent chain of %s leaves the graph at %s", n.ID, id)
			}
			id = cur.Parent
		}
	}
}

// checkDepths verifies depth correctness: roots at 0, children at parent+1.
func checkDepths(t *testing.T, s *graph.Store) {
	t.Helper()
	for _, n := range s.Nodes() {
		if n.Parent == "" {
			if n.Depth != 0 {
				t.Errorf("root %s depth = %d, want 0", n.ID, n.Depth)
			}
			continue
		}
		p, ok := s.Node(n.Parent)
		if !ok {
			t.Fatalf("parent %s of %s missing", n.Parent, n.ID)
		}
		if n.Depth != p.Depth+1 {
			t.Errorf("depth(%s) = %d, want depth(%s)+1 = %d", n.ID, n.Depth, p.ID, p.Depth+1)
		}
	}
}

func TestProcessNoDeclarations(t *testing.T) {
	s, r := buildStore(t, []vaultNote{{id: "A"}, {id: "B"}, {id: "C"}})

	report := process(t, s, r)

	if report.Attached != 0 || len(report.Placeholders) != 0 {
		t.Errorf("report = %+v, want nothing attached", report)
	}
	if report.Skipped != 3 {
		t.Errorf("Skipped = %d, want 3", report.Skipped)
	}
	if report.Depth.Roots != 3 {
		t.Errorf("Roots = %d, want 3", report.Depth.Roots)
	}
	for _, n := range s.Nodes() {
		if n.Parent != "" || n.Depth != 0 {
			t.Errorf("node %s = parent %q depth %d, want root at 0", n.ID, n.Parent, n.Depth)
		}
	}
}

func TestProcessResolvedParent(t *testing.T) {
	s, r := buildStore(t,
		[]vaultNote{{id: "A"}, {id: "B", parent: "[[A]]"}},
		[2]string{"B", "A"},
	)

	report := process(t, s, r)

	if report.Attached != 1 {
		t.Errorf("Attached = %d, want 1", report.Attached)
	}
	b, _ := s.Node("B")
	if b.Parent != "A" || b.Depth != 1 {
		t.Errorf("B = parent %q depth %d, want A/1", b.Parent, b.Depth)
	}
	a, _ := s.Node("A")
	if a.Depth != 0 || !a.HasTag(graph.TagCompound) {
		t.Errorf("A = depth %d compound %v, want 0/true", a.Depth, a.HasTag(graph.TagCompound))
	}

	edges := s.EdgesBetween("B", "A")
	if len(edges) != 1 || !edges[0].HasTag(graph.TagStructuralParentEdge) {
		t.Error("edge B->A not tagged structural-parent-edge")
	}
	if report.TaggedEdges != 1 {
		t.Errorf("TaggedEdges = %d, want 1", report.TaggedEdges)
	}
	checkForest(t, s)
	checkDepths(t, s)
}

func TestProcessUnresolvedParentCreatesPlaceholder(t *testing.T) {
	s, r := buildStore(t, []vaultNote{{id: "C", parent: "[[Missing]]"}})

	report := process(t, s, r)

	if len(report.Placeholders) != 1 || report.Placeholders[0] != "Missing" {
		t.Fatalf("Placeholders = %v, want [Missing]", report.Placeholders)
	}
	m, ok := s.Node("Missing")
	if !ok {
		t.Fatal("placeholder Missing not created")
	}
	if !m.IsPlaceholder() || m.Label != "Missing" || m.Depth != 0 {
		t.Errorf("placeholder = %+v, want tagged, labeled, depth 0", m)
	}
	c, _ := s.Node("C")
	if c.Parent != "Missing" || c.Depth != 1 {
		t.Errorf("C = parent %q depth %d, want Missing/1", c.Parent, c.Depth)
	}
	checkForest(t, s)
	checkDepths(t, s)
}

func TestProcessSelfParentRejected(t *testing.T) {
	s, r := buildStore(t, []vaultNote{{id: "D", parent: "[[D]]"}})

	report := process(t, s, r)

	if len(report.Errors) != 1 || !nferrors.Is(report.Errors[0].Err, nferrors.ErrCodeSelfParent) {
		t.Fatalf("Errors = %v, want one SELF_PARENT", report.Errors)
	}
	d, _ := s.Node("D")
	if d.Parent != "" || d.Depth != 0 {
		t.Errorf("D = parent %q depth %d, want root at 0", d.Parent, d.Depth)
	}
}

func TestProcessPlaceholderSharedBetweenNodes(t *testing.T) {
	s, r := buildStore(t, []vaultNote{
		{id: "E", parent: "[[Missing2]]"},
		{id: "F", parent: "[[Missing2]]"},
	})

	report := process(t, s, r)

	if len(report.Placeholders) != 1 {
		t.Fatalf("Placeholders = %v, want exactly one Missing2", report.Placeholders)
	}
	count := 0
	for _, n := range s.Nodes() {
		if n.ID == "Missing2" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("Missing2 node count = %d, want 1", count)
	}
	for _, id := range []string{"E", "F"} {
		n, _ := s.Node(id)
		if n.Parent != "Missing2" || n.Depth != 1 {
			t.Errorf("%s = parent %q depth %d, want Missing2/1", id, n.Parent, n.Depth)
		}
	}
	m, _ := s.Node("Missing2")
	if !m.HasTag(graph.TagCompound) {
		t.Error("shared placeholder not tagged compound")
	}
	checkForest(t, s)
	checkDepths(t, s)
}

func TestProcessTwoNodeCycleTerminates(t *testing.T) {
	s, r := buildStore(t, []vaultNote{
		{id: "A", parent: "[[B]]"},
		{id: "B", parent: "[[A]]"},
	})

	report := process(t, s, r)

	// One of the two attaches must be rejected as a cycle; processing order
	// is sorted node IDs, so A attaches under B and B is rejected.
	if len(report.Errors) != 1 || !nferrors.Is(report.Errors[0].Err, nferrors.ErrCodeParentCycle) {
		t.Fatalf("Errors = %v, want one PARENT_CYCLE", report.Errors)
	}
	if report.Attached != 1 {
		t.Errorf("Attached = %d, want 1", report.Attached)
	}
	checkForest(t, s)
	checkDepths(t, s)
}

func TestProcessDeepChain(t *testing.T) {
	s, r := buildStore(t, []vaultNote{
		{id: "Root"},
		{id: "L1", parent: "[[Root]]"},
		{id: "L2", parent: "[[L1]]"},
		{id: "L3", parent: "[[L2]]"},
	})

	report := process(t, s, r)

	if report.Depth.MaxDepth != 3 {
		t.Errorf("MaxDepth = %d, want 3", report.Depth.MaxDepth)
	}
	l3, _ := s.Node("L3")
	if l3.Depth != 3 {
		t.Errorf("depth(L3) = %d, want 3", l3.Depth)
	}
	checkForest(t, s)
	checkDepths(t, s)
}

func TestProcessIdempotent(t *testing.T) {
	s, r := buildStore(t,
		[]vaultNote{
			{id: "A"},
			{id: "B", parent: "[[A]]"},
			{id: "C", parent: "[[Missing]]"},
		},
		[2]string{"B", "A"},
	)

	p := NewProcessor(s, r, quietOptions())
	if _, err := p.Process(context.Background()); err != nil {
		t.Fatalf("first Process: %v", err)
	}

	first, err := graph.MarshalGraph(s)
	if err != nil {
		t.Fatalf("MarshalGraph: %v", err)
	}

	report, err := p.Process(context.Background())
	if err != nil {
		t.Fatalf("second Process: %v", err)
	}
	if len(report.Placeholders) != 0 {
		t.Errorf("second run created placeholders: %v", report.Placeholders)
	}

	second, err := graph.MarshalGraph(s)
	if err != nil {
		t.Fatalf("MarshalGraph: %v", err)
	}
	if string(first) != string(second) {
		t.Error("second build changed the graph")
	}
}

func TestProcessPerNodeIsolation(t *testing.T) {
	// One bad declaration must not stop siblings from attaching.
	s, r := buildStore(t, []vaultNote{
		{id: "A"},
		{id: "Bad", parent: "[[Bad]]"},
		{id: "Good", parent: "[[A]]"},
	})

	report := process(t, s, r)

	if len(report.Errors) != 1 {
		t.Fatalf("Errors = %v, want exactly one", report.Errors)
	}
	g, _ := s.Node("Good")
	if g.Parent != "A" {
		t.Errorf("Good.Parent = %q, want A despite sibling failure", g.Parent)
	}
}

func TestProcessNilStore(t *testing.T) {
	p := NewProcessor(nil, nil, quietOptions())
	_, err := p.Process(context.Background())
	if !nferrors.Is(err, nferrors.ErrCodeGraphUnavailable) {
		t.Errorf("Process() error = %v, want GRAPH_UNAVAILABLE", err)
	}
}

func TestProcessRelayoutSignaledOnce(t *testing.T) {
	s, r := buildStore(t, []vaultNote{{id: "A"}, {id: "B", parent: "[[A]]"}})

	calls := 0
	opts := quietOptions()
	opts.OnRelayout = func() { calls++ }

	p := NewProcessor(s, r, opts)
	if _, err := p.Process(context.Background()); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if calls != 1 {
		t.Errorf("relayout calls = %d, want 1", calls)
	}
}

func TestProcessBuildsSerialized(t *testing.T) {
	s, r := buildStore(t, []vaultNote{{id: "A"}, {id: "B", parent: "[[A]]"}})
	p := NewProcessor(s, r, quietOptions())

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := p.Process(context.Background()); err != nil {
				t.Errorf("concurrent Process: %v", err)
			}
		}()
	}
	wg.Wait()

	checkForest(t, s)
	checkDepths(t, s)
}

// fakeClock is a virtual clock for readiness tests. After() fires instantly,
// advances the virtual time by the waited duration, and invokes onPoll with
// the number of polls so far, letting tests flip external state at an exact
// point in virtual time.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	polls  int
	onPoll func(polls int)
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.polls++
	now, polls, onPoll := c.now, c.polls, c.onPoll
	c.mu.Unlock()
	if onPoll != nil {
		onPoll(polls)
	}
	ch := make(chan time.Time, 1)
	ch <- now
	return ch
}

func TestAwaitReadyTimeout(t *testing.T) {
	s := graph.New() // never becomes ready
	s.AddNode(graph.Node{ID: "A"})

	opts := quietOptions()
	opts.ReadyTimeout = time.Second
	opts.PollInterval = 100 * time.Millisecond
	opts.Clock = &fakeClock{now: time.Unix(0, 0)}

	p := NewProcessor(s, nil, opts)
	_, err := p.Process(context.Background())
	if !nferrors.Is(err, nferrors.ErrCodeReadyTimeout) {
		t.Fatalf("Process() error = %v, want READY_TIMEOUT", err)
	}

	// Fatal abort happens before any node is touched.
	n, _ := s.Node("A")
	if n.Depth != graph.DepthUnset {
		t.Errorf("depth mutated to %d during failed build", n.Depth)
	}
}

func TestAwaitReadyEventualSuccess(t *testing.T) {
	s, r := buildStore(t, []vaultNote{{id: "A"}})
	s.SetReady(false)

	// Readiness flips on the third poll, well inside the virtual deadline.
	clock := &fakeClock{now: time.Unix(0, 0)}
	clock.onPoll = func(polls int) {
		if polls == 3 {
			s.SetReady(true)
		}
	}

	opts := quietOptions()
	opts.ReadyTimeout = time.Second
	opts.PollInterval = 100 * time.Millisecond
	opts.Clock = clock

	p := NewProcessor(s, r, opts)
	if _, err := p.Process(context.Background()); err != nil {
		t.Fatalf("Process() error = %v, want success after readiness flip", err)
	}
	if clock.polls != 3 {
		t.Errorf("polls = %d, want 3", clock.polls)
	}
}

func TestProcessContextCancelled(t *testing.T) {
	s := graph.New() // not ready, forces the poll loop
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	opts := quietOptions()
	opts.ReadyTimeout = time.Hour
	p := NewProcessor(s, nil, opts)

	_, err := p.Process(ctx)
	if !nferrors.Is(err, nferrors.ErrCodeReadyTimeout) {
		t.Fatalf("Process() error = %v, want READY_TIMEOUT wrap", err)
	}
}
