package vault

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"

	nferrors "github.com/nestfold/nestfold/pkg/errors"
	"github.com/nestfold/nestfold/pkg/note"
	"github.com/nestfold/nestfold/pkg/observability"
)

// debounceWindow coalesces the burst of filesystem events editors emit for
// a single save into one notification.
const debounceWindow = 100 * time.Millisecond

// Event is a change notification for a single note.
type Event struct {
	NoteID string // Note name (filename stem)
	Path   string // Vault-relative path
}

// Watcher follows a vault directory tree and reports note changes.
//
// Only .md writes, creates, removes, and renames produce events; edits to
// anything else in the tree are ignored. Newly created subdirectories are
// added to the watch automatically.
type Watcher struct {
	dir    string
	fw     *fsnotify.Watcher
	events chan Event
	logger *log.Logger
}

// NewWatcher creates a watcher over the vault rooted at dir. The watch
// covers every subdirectory recursively. Call Run to start delivery and
// Close to release the underlying OS watches.
func NewWatcher(dir string, logger *log.Logger) (*Watcher, error) {
	if logger == nil {
		logger = log.Default()
	}
	if err := nferrors.ValidateVaultPath(dir); err != nil {
		return nil, err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nferrors.Wrap(nferrors.ErrCodeInternal, err, "create filesystem watcher")
	}
	if err := watchDirRecursive(fw, dir); err != nil {
		_ = fw.Close()
		return nil, nferrors.Wrap(nferrors.ErrCodeInvalidVault, err, "watch vault %q", dir)
	}

	return &Watcher{
		dir:    dir,
		fw:     fw,
		events: make(chan Event, 16),
		logger: logger,
	}, nil
}

// Events returns the channel change notifications are delivered on.
// The channel is closed when Run returns.
func (w *Watcher) Events() <-chan Event { return w.events }

// Run delivers change notifications until the context is cancelled.
// Watcher errors are logged, not fatal; a vault watch should survive
// transient filesystem hiccups.
func (w *Watcher) Run(ctx context.Context) error {
	defer close(w.events)

	pending := make(map[string]string) // note ID -> vault-relative path
	var flush *time.Timer
	flushed := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			if flush != nil {
				flush.Stop()
			}
			return nil

		case ev, ok := <-w.fw.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}

			// New directories need their own watch before anything
			// inside them can be seen.
			if ev.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := watchDirRecursive(w.fw, ev.Name); err != nil {
						w.logger.Warn("failed to watch new directory", "dir", ev.Name, "error", err)
					}
					continue
				}
			}

			if !strings.EqualFold(filepath.Ext(ev.Name), ".md") {
				continue
			}
			rel, err := filepath.Rel(w.dir, ev.Name)
			if err != nil {
				continue
			}
			rel = filepath.ToSlash(rel)
			pending[note.Stem(rel)] = rel

			if flush != nil {
				flush.Stop()
			}
			flush = time.AfterFunc(debounceWindow, func() {
				select {
				case flushed <- struct{}{}:
				default:
				}
			})

		case <-flushed:
			for id, rel := range pending {
				w.logger.Debug("note changed", "note", id, "path", rel)
				observability.Vault().OnNoteChanged(ctx, id)
				select {
				case w.events <- Event{NoteID: id, Path: rel}:
				case <-ctx.Done():
					return nil
				}
			}
			clear(pending)

		case err, ok := <-w.fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", "error", err)
		}
	}
}

// Close releases the underlying OS watches.
func (w *Watcher) Close() error { return w.fw.Close() }

// watchDirRecursive adds dir and all its non-hidden subdirectories to the
// watcher.
func watchDirRecursive(fw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if name := d.Name(); strings.HasPrefix(name, ".") && path != dir {
			return filepath.SkipDir
		}
		return fw.Add(path)
	})
}
