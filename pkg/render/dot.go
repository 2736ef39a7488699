// Package render turns the compound note hierarchy into visual output.
//
// ToDOT produces Graphviz DOT source where every compound node becomes a
// cluster that nests its subtree, so the derived hierarchy reads as boxes
// inside boxes. RenderSVG rasterizes the DOT in-process; ToPDF and ToPNG
// convert the SVG further via rsvg-convert.
package render

import (
	"bytes"
	"context"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/nestfold/nestfold/pkg/graph"
)

// Options configures hierarchy rendering.
type Options struct {
	// Detailed includes nesting depth and frontmatter fields in labels.
	// When false, only the display label is shown.
	Detailed bool

	// ShowStructural draws edges that duplicate a parent relation instead
	// of suppressing them. The nesting already conveys those links, so the
	// default hides them.
	ShowStructural bool
}

// ToDOT converts the note graph's compound hierarchy to Graphviz DOT.
//
// Every node with children is emitted as a cluster containing its own node
// plus the subtrees of its children, so nesting depth maps directly to
// cluster depth. Placeholder nodes get dashed grey styling. Edges tagged as
// structural duplicates of a parent relation are suppressed unless
// [Options.ShowStructural] is set.
func ToDOT(s *graph.Store, opts Options) string {
	// One snapshot per render: the walk below must not interleave with a
	// concurrent rebuild batch.
	snap := s.Snapshot()
	nodes := snap.NodeIndex()
	children := snap.ChildIndex()

	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  compound=true;\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=24, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  ranksep=0.5;\n")
	buf.WriteString("  nodesep=0.3;\n")
	buf.WriteString("\n")

	cluster := 0
	for _, root := range snap.Roots() {
		writeSubtree(&buf, nodes, children, root, 1, &cluster, opts)
	}

	buf.WriteString("\n")
	for _, e := range snap.Edges {
		if !opts.ShowStructural && e.HasTag(graph.TagStructuralParentEdge) {
			continue
		}
		fmt.Fprintf(&buf, "  %q -> %q;\n", e.From, e.To)
	}

	buf.WriteString("}\n")
	return buf.String()
}

// writeSubtree emits the node with the given ID and, when it has children,
// wraps node and subtrees in a cluster. The node itself stays inside its own
// cluster so edges can target it without lhead gymnastics.
func writeSubtree(buf *bytes.Buffer, nodes map[string]graph.NodeData, children map[string][]string, id string, indent int, cluster *int, opts Options) {
	n, ok := nodes[id]
	if !ok {
		return
	}
	pad := strings.Repeat("  ", indent)
	kids := children[id]

	if len(kids) == 0 {
		fmt.Fprintf(buf, "%s%q [%s];\n", pad, n.ID, strings.Join(nodeAttrs(n, opts), ", "))
		return
	}

	fmt.Fprintf(buf, "%ssubgraph cluster_%d {\n", pad, *cluster)
	*cluster++
	fmt.Fprintf(buf, "%s  style=\"rounded\";\n", pad)
	fmt.Fprintf(buf, "%s  color=grey;\n", pad)
	fmt.Fprintf(buf, "%s  %q [%s];\n", pad, n.ID, strings.Join(nodeAttrs(n, opts), ", "))
	for _, child := range kids {
		writeSubtree(buf, nodes, children, child, indent+1, cluster, opts)
	}
	fmt.Fprintf(buf, "%s}\n", pad)
}

func nodeAttrs(n graph.NodeData, opts Options) []string {
	attrs := []string{fmt.Sprintf("label=%q", nodeLabel(n, opts.Detailed))}
	if n.IsPlaceholder() {
		attrs = append(attrs, "style=\"rounded,filled,dashed\"", "fillcolor=lightgrey", "fontcolor=black")
	}
	return attrs
}

func nodeLabel(n graph.NodeData, detailed bool) string {
	if !detailed {
		return n.DisplayLabel()
	}

	parts := []string{fmt.Sprintf("depth: %d", n.Depth)}
	for _, k := range slices.Sorted(maps.Keys(n.Meta)) {
		parts = append(parts, fmt.Sprintf("%s: %v", k, n.Meta[k]))
	}

	return n.DisplayLabel() + "\n" + strings.Join(parts, "\n")
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
// The returned bytes are ready for display or conversion with [ToPDF] or
// [ToPNG].
func RenderSVG(dot string) ([]byte, error) {
	ctx := context.Background()
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox rewrites the opening svg tag so the viewBox starts at the
// origin and explicit pixel dimensions are present. Some SVG consumers choke
// on Graphviz's offset viewBox.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	newSvg := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)

	return svgTagRe.ReplaceAll(svg, []byte(newSvg))
}
