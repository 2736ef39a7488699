// Package forest derives a compound hierarchy from per-note parent
// declarations on a live note graph.
//
// # Overview
//
// Each note may declare at most one parent as a wikilink in its metadata.
// A Processor walks every note in the graph, resolves the declaration
// through a resolve.Resolver, and folds the results into a forest: parent
// relations on the graph's nodes, placeholder nodes for targets that do
// not resolve to an existing note, compound tags on every node that gains
// children, structural tags on edges that duplicate a parent relation, and
// recomputed nesting depths.
//
// # Processing Model
//
// A build is a full pass. Runs on the same Processor are serialized, and
// every run recomputes the hierarchy from the current declarations, so
// stale parents from earlier passes never survive. Per-node failures
// (self-parent, cycle-forming attachments, placeholder creation errors)
// are recorded in the Report and skip only the offending note. Only an
// unavailable graph or a readiness timeout aborts a build.
//
// # Basic Usage
//
//	p := forest.NewProcessor(store, resolver, forest.Options{})
//	report, err := p.Process(ctx)
//	if err != nil {
//	    return err
//	}
//	log.Info("hierarchy built", "attached", report.Attached, "max_depth", report.Depth.MaxDepth)
//
// The forest invariant holds after every successful build: each node has
// at most one parent and no node is its own ancestor.
package forest
