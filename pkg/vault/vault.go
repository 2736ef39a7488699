// Package vault loads a directory of markdown notes into the live note graph.
//
// A vault is a directory tree of .md files. Scan parses every note, builds a
// resolution index over their names and aliases, and Graph materializes the
// flat note graph: one node per note, one edge per wikilink whose target
// resolves to another note. Watcher follows the same tree with fsnotify and
// reports which note changed so hosts can rebuild.
package vault

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	nferrors "github.com/nestfold/nestfold/pkg/errors"
	"github.com/nestfold/nestfold/pkg/graph"
	"github.com/nestfold/nestfold/pkg/note"
	"github.com/nestfold/nestfold/pkg/observability"
	"github.com/nestfold/nestfold/pkg/resolve"
)

// Options configures a vault scan.
type Options struct {
	// Include restricts the scan to notes whose vault-relative path (or
	// base name) matches one of the glob patterns. Empty means all .md
	// files.
	Include []string

	// Exclude drops notes whose vault-relative path (or base name) matches
	// one of the glob patterns. Applied after Include.
	Exclude []string

	// Logger receives per-file diagnostics. Defaults to log.Default().
	Logger *log.Logger
}

// Vault is the parsed snapshot of a note directory.
type Vault struct {
	Dir   string
	Notes []*note.Note
	Index *resolve.Index
}

// Scan walks dir for markdown notes and parses each one.
//
// Unreadable files are logged and skipped rather than failing the scan;
// a vault with one broken file is still a vault. Notes are returned in
// sorted path order so repeated scans of the same tree are identical.
func Scan(ctx context.Context, dir string, opts Options) (*Vault, error) {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if err := nferrors.ValidateVaultPath(dir); err != nil {
		return nil, err
	}

	start := time.Now()
	observability.Vault().OnScanStart(ctx, dir)

	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		err = nferrors.New(nferrors.ErrCodeInvalidVault, "vault directory %q does not exist", dir)
		observability.Vault().OnScanComplete(ctx, dir, 0, time.Since(start), err)
		return nil, err
	}

	var notes []*note.Note
	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			// Hidden directories (.git, .obsidian) hold no notes.
			if name := d.Name(); name != "." && strings.HasPrefix(name, ".") && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.EqualFold(filepath.Ext(path), ".md") {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if !included(rel, opts.Include, opts.Exclude) {
			opts.Logger.Debug("note excluded by pattern", "path", rel)
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			opts.Logger.Warn("failed to read note, skipping", "path", rel, "error", err)
			return nil
		}
		notes = append(notes, note.Parse(rel, content))
		return nil
	})
	if walkErr != nil {
		err := nferrors.Wrap(nferrors.ErrCodeInvalidVault, walkErr, "scan vault %q", dir)
		observability.Vault().OnScanComplete(ctx, dir, 0, time.Since(start), err)
		return nil, err
	}

	sort.Slice(notes, func(i, j int) bool { return notes[i].Path < notes[j].Path })
	notes = dedupeNames(notes, opts.Logger)

	entries := make([]resolve.Entry, 0, len(notes))
	for _, n := range notes {
		entries = append(entries, resolve.Entry{ID: n.Name, Path: n.Path, Aliases: n.Aliases()})
	}

	v := &Vault{Dir: dir, Notes: notes, Index: resolve.NewIndex(entries)}
	observability.Vault().OnScanComplete(ctx, dir, len(notes), time.Since(start), nil)
	opts.Logger.Debug("vault scanned", "dir", dir, "notes", len(notes), "elapsed", time.Since(start))
	return v, nil
}

// Graph materializes the flat note graph for the scanned vault and marks it
// ready. Each note becomes a node keyed by its name, carrying its path and
// raw frontmatter fields; each wikilink whose target resolves to a different
// note becomes an edge. Duplicate links between the same pair collapse into
// one edge.
func (v *Vault) Graph() (*graph.Store, error) {
	store := graph.New()
	if err := v.Repopulate(store); err != nil {
		return nil, err
	}
	return store, nil
}

// Repopulate replaces the contents of an existing store with this vault's
// notes and links. The store identity is preserved, so long-lived consumers
// holding the store (an API server, a watch loop) see the fresh state
// without re-wiring. The store is unready for the duration of the swap.
func (v *Vault) Repopulate(store *graph.Store) error {
	store.SetReady(false)

	err := store.Batch(func(tx *graph.Tx) error {
		for _, id := range tx.Nodes() {
			if err := tx.RemoveNode(id); err != nil {
				return err
			}
		}
		return v.fill(tx)
	})
	if err != nil {
		return nferrors.Wrap(nferrors.ErrCodeInternal, err, "build note graph for %q", v.Dir)
	}

	store.SetReady(true)
	return nil
}

func (v *Vault) fill(tx *graph.Tx) error {
	for _, n := range v.Notes {
		meta := make(map[string]any, len(n.Fields))
		for k, val := range n.Fields {
			meta[k] = val
		}
		if err := tx.AddNode(graph.Node{
			ID:    n.Name,
			Path:  n.Path,
			Label: n.Name,
			Meta:  meta,
		}); err != nil {
			return err
		}
	}
	for _, n := range v.Notes {
		seen := make(map[string]bool)
		for _, l := range n.Links {
			target, ok := v.Index.Resolve(l.Target, n.Name)
			if !ok || target == n.Name || seen[target] {
				continue
			}
			seen[target] = true
			if err := tx.AddEdge(graph.Edge{From: n.Name, To: target}); err != nil {
				return err
			}
		}
	}
	return nil
}

// dedupeNames collapses notes sharing a filename stem to one note per name,
// since node IDs are names. The note with the shortest path wins, then the
// lexicographically smallest, matching reference resolution's ambiguity
// tie-break. Dropped notes are logged; a name collision never fails a scan.
func dedupeNames(notes []*note.Note, logger *log.Logger) []*note.Note {
	byName := make(map[string]*note.Note, len(notes))
	collided := false
	for _, n := range notes {
		prev, ok := byName[n.Name]
		if !ok {
			byName[n.Name] = n
			continue
		}
		collided = true
		kept, dropped := prev, n
		if len(n.Path) < len(prev.Path) || (len(n.Path) == len(prev.Path) && n.Path < prev.Path) {
			kept, dropped = n, prev
			byName[n.Name] = n
		}
		logger.Warn("duplicate note name, keeping one",
			"name", n.Name, "kept", kept.Path, "dropped", dropped.Path)
	}
	if !collided {
		return notes
	}

	deduped := make([]*note.Note, 0, len(byName))
	for _, n := range notes {
		if byName[n.Name] == n {
			deduped = append(deduped, n)
		}
	}
	return deduped
}

// included reports whether a vault-relative path passes the include and
// exclude patterns. Patterns are tried against both the full relative path
// and the base name, so "daily/*.md" and "scratch.md" both work.
func included(rel string, include, exclude []string) bool {
	if len(include) > 0 && !matchAny(include, rel) {
		return false
	}
	return !matchAny(exclude, rel)
}

func matchAny(patterns []string, rel string) bool {
	base := filepath.Base(rel)
	for _, p := range patterns {
		if ok, _ := filepath.Match(p, rel); ok {
			return true
		}
		if ok, _ := filepath.Match(p, base); ok {
			return true
		}
	}
	return false
}
