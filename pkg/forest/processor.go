package forest

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	nferrors "github.com/nestfold/nestfold/pkg/errors"
	"github.com/nestfold/nestfold/pkg/graph"
	"github.com/nestfold/nestfold/pkg/observability"
	"github.com/nestfold/nestfold/pkg/resolve"
)

// Default readiness polling parameters. The poll is bounded: a store that
// never becomes ready fails the build instead of blocking forever.
const (
	DefaultReadyTimeout = 10 * time.Second
	DefaultPollInterval = 100 * time.Millisecond
)

// DefaultParentField is the frontmatter field holding the parent declaration.
const DefaultParentField = "parent"

// Clock abstracts time for the readiness poll so it is unit-testable with a
// virtual clock. The zero behavior (realClock) uses the wall clock.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Options configures a Processor.
type Options struct {
	// ParentField is the frontmatter field holding the declaration.
	// Defaults to DefaultParentField.
	ParentField string

	// ReadyTimeout bounds the readiness poll. Defaults to DefaultReadyTimeout.
	ReadyTimeout time.Duration

	// PollInterval is the readiness polling cadence. Defaults to
	// DefaultPollInterval.
	PollInterval time.Duration

	// Logger receives per-node diagnostics and build summaries.
	// Defaults to the package-level default logger.
	Logger *log.Logger

	// OnRelayout, when set, is invoked exactly once after a successful build
	// so the host can re-run its layout.
	OnRelayout func()

	// Clock overrides the wall clock for the readiness poll.
	Clock Clock
}

// NodeError records a per-node recoverable failure. Per-node failures never
// abort a build; they are collected for diagnostics.
type NodeError struct {
	NodeID string
	Err    error
}

// Report summarizes one completed build.
type Report struct {
	BuildID      string
	Nodes        int           // Nodes examined
	Attached     int           // Structural parents assigned
	Placeholders []string      // Placeholder IDs created, sorted
	TaggedEdges  int           // Edges marked structural-parent-edge
	Skipped      int           // Nodes with no usable declaration (silent skips)
	Errors       []NodeError   // Per-node recoverable failures
	Depth        DepthStats    // Depth calculation summary
	Elapsed      time.Duration // Wall time of the whole build
}

// Processor derives the compound forest for one graph instance.
//
// A Processor sequences resolution, placeholder creation, attachment, and
// edge tagging per node, then runs depth calculation exactly once, then
// signals the host to re-layout. Builds on the same Processor are serialized:
// a Process call that arrives while another is in flight waits for it to
// finish, so nodes are never reparented against a mid-mutation node set.
//
// Lifecycle: construct, run one or more builds against a stable store,
// discard. A Processor holds no state that survives its store.
type Processor struct {
	store    *graph.Store
	resolver resolve.Resolver
	opts     Options
	clock    Clock

	buildMu sync.Mutex // serializes builds per graph instance
}

// NewProcessor creates a processor for the given store and link resolver.
// Zero-valued options fall back to package defaults.
func NewProcessor(store *graph.Store, resolver resolve.Resolver, opts Options) *Processor {
	if opts.ParentField == "" {
		opts.ParentField = DefaultParentField
	}
	if opts.ReadyTimeout <= 0 {
		opts.ReadyTimeout = DefaultReadyTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	clock := opts.Clock
	if clock == nil {
		clock = realClock{}
	}
	return &Processor{
		store:    store,
		resolver: resolver,
		opts:     opts,
		clock:    clock,
	}
}

// Process runs one full build: await readiness, derive structural parentage
// for every node, compute depths, request a re-layout.
//
// Fatal conditions (missing store, readiness timeout, cancelled context)
// abort before any node is touched and are returned as the error. Per-node
// failures are logged at debug level, collected in the report, and never
// abort the build.
func (p *Processor) Process(ctx context.Context) (*Report, error) {
	if p.store == nil {
		return nil, nferrors.New(nferrors.ErrCodeGraphUnavailable, "no graph store available")
	}

	p.buildMu.Lock()
	defer p.buildMu.Unlock()

	if err := p.awaitReady(ctx); err != nil {
		return nil, err
	}

	start := p.clock.Now()
	report := &Report{BuildID: uuid.NewString()}
	logger := p.opts.Logger.With("build", report.BuildID)

	ids := p.store.NodeIDs()
	report.Nodes = len(ids)
	observability.Build().OnBuildStart(ctx, report.BuildID, len(ids))
	logger.Debug("build started", "nodes", len(ids))

	for _, id := range ids {
		p.processNode(ctx, logger, id, report)
	}

	_ = p.store.Batch(func(tx *graph.Tx) error {
		report.Depth = calculateDepths(tx)
		return nil
	})
	if len(report.Depth.Unreached) > 0 {
		logger.Warn("nodes unreached by root traversal, depth fell back to 0",
			"nodes", report.Depth.Unreached)
	}

	report.Placeholders = slices.Sorted(slices.Values(report.Placeholders))
	report.Elapsed = p.clock.Now().Sub(start)

	if p.opts.OnRelayout != nil {
		p.opts.OnRelayout()
	}

	observability.Build().OnBuildComplete(ctx, report.BuildID, report.Attached, report.Elapsed, nil)
	logger.Debug("build complete",
		"attached", report.Attached,
		"placeholders", len(report.Placeholders),
		"skipped", report.Skipped,
		"errors", len(report.Errors),
		"roots", report.Depth.Roots,
		"max_depth", report.Depth.MaxDepth,
		"elapsed", report.Elapsed)

	return report, nil
}

// processNode resolves and applies structural parentage for a single node.
// Each node runs in its own batch: a failure here rolls nothing back beyond
// its own compensations and never affects siblings.
func (p *Processor) processNode(ctx context.Context, logger *log.Logger, id string, report *Report) {
	err := p.store.Batch(func(tx *graph.Tx) error {
		node, ok := tx.Node(id)
		if !ok {
			// Removed by a concurrent host mutation between listing and
			// processing; nothing to do.
			report.Skipped++
			return nil
		}
		if node.Path == "" {
			// Placeholders and other synthetic nodes carry no declaration.
			report.Skipped++
			return nil
		}

		ref := ResolveReference(node.Meta[p.opts.ParentField], id, p.resolver)
		switch ref.State {
		case RefNone:
			report.Skipped++
			return nil

		case RefUnresolved:
			_, created, err := ensurePlaceholder(tx, ref.Target)
			if err != nil {
				return err
			}
			if created {
				report.Placeholders = append(report.Placeholders, ref.Target)
				observability.Build().OnPlaceholderCreated(ctx, report.BuildID, ref.Target)
			}
		}

		if err := attach(tx, id, ref.Target); err != nil {
			return err
		}
		report.Attached++
		report.TaggedEdges += tagStructuralEdges(tx, id, ref.Target)
		observability.Build().OnNodeAttached(ctx, report.BuildID, id, ref.Target)
		return nil
	})

	if err != nil {
		report.Errors = append(report.Errors, NodeError{NodeID: id, Err: err})
		observability.Build().OnNodeSkipped(ctx, report.BuildID, id, err)
		logger.Debug("node skipped", "node", id, "err", err)
	}
}

// awaitReady polls the store's readiness signal until it reports ready, the
// timeout elapses, or the context is cancelled. The timeout is a hard
// cancellation: the build aborts and is not retried automatically.
func (p *Processor) awaitReady(ctx context.Context) error {
	deadline := p.clock.Now().Add(p.opts.ReadyTimeout)
	for {
		if p.store.Ready() {
			return nil
		}
		if !p.clock.Now().Before(deadline) {
			return nferrors.New(nferrors.ErrCodeReadyTimeout,
				"graph not ready after %s", p.opts.ReadyTimeout)
		}
		select {
		case <-ctx.Done():
			return nferrors.Wrap(nferrors.ErrCodeReadyTimeout, ctx.Err(), "readiness wait cancelled")
		case <-p.clock.After(p.opts.PollInterval):
		}
	}
}
