// Package cli implements the nestfold command-line interface.
//
// This package provides commands for building the compound hierarchy of a
// note vault, browsing it interactively, exporting visualizations, watching
// a vault for changes, and serving the graph over HTTP. The CLI is built
// using cobra and supports verbose logging via the charmbracelet/log
// library.
//
// # Commands
//
// The main commands are:
//   - build: Scan a vault and derive the compound hierarchy
//   - tree: Browse the derived hierarchy interactively
//   - export: Generate DOT, SVG, PDF, or PNG visualizations
//   - watch: Rebuild the hierarchy whenever a note changes
//   - serve: Expose the graph and hierarchy over HTTP
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging. Loggers are
// passed through context.Context to allow structured progress tracking.
package cli

import (
	"context"
	"io"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/nestfold/nestfold/pkg/buildinfo"
	"github.com/nestfold/nestfold/pkg/config"
	"github.com/nestfold/nestfold/pkg/forest"
	"github.com/nestfold/nestfold/pkg/graph"
	"github.com/nestfold/nestfold/pkg/resolve"
	"github.com/nestfold/nestfold/pkg/vault"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the application name used for directories and display.
const appName = "nestfold"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "Nestfold derives a nesting hierarchy from your note vault",
		Long:         `Nestfold scans a directory of markdown notes, reads each note's parent declaration, and folds the flat link graph into a compound hierarchy of nested groups.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())

	// Register all subcommands
	root.AddCommand(c.buildCommand())
	root.AddCommand(c.treeCommand())
	root.AddCommand(c.exportCommand())
	root.AddCommand(c.watchCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Workspace Loading
// =============================================================================

// workspace bundles everything a command needs to operate on one vault.
type workspace struct {
	cfg       config.Config
	vault     *vault.Vault
	store     *graph.Store
	resolver  *swappableResolver
	processor *forest.Processor
}

// swappableResolver lets watch-style commands replace the resolution index
// after a rescan while the processor and server keep their references.
type swappableResolver struct {
	mu    sync.RWMutex
	inner resolve.Resolver
}

func (r *swappableResolver) Resolve(text, fromID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.inner.Resolve(text, fromID)
}

func (r *swappableResolver) swap(inner resolve.Resolver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inner = inner
}

// openWorkspace scans the vault at dir and wires up the store and processor
// from its config. Shared by every command that operates on a vault.
func (c *CLI) openWorkspace(ctx context.Context, dir string) (*workspace, error) {
	cfg, err := config.LoadVault(dir)
	if err != nil {
		return nil, err
	}

	v, err := vault.Scan(ctx, dir, vault.Options{
		Include: cfg.Vault.Include,
		Exclude: cfg.Vault.Exclude,
		Logger:  c.Logger,
	})
	if err != nil {
		return nil, err
	}

	store, err := v.Graph()
	if err != nil {
		return nil, err
	}

	resolver := &swappableResolver{inner: v.Index}
	processor := forest.NewProcessor(store, resolver, forest.Options{
		ParentField:  cfg.ParentField,
		ReadyTimeout: cfg.Build.ReadyTimeoutDuration(),
		PollInterval: cfg.Build.PollIntervalDuration(),
		Logger:       c.Logger,
	})

	return &workspace{
		cfg:       cfg,
		vault:     v,
		store:     store,
		resolver:  resolver,
		processor: processor,
	}, nil
}

// rescan re-reads the vault from disk into the existing store and swaps the
// resolution index, so consumers holding the store or processor (the API
// server, the watch loop) keep working across rebuilds.
func (c *CLI) rescan(ctx context.Context, dir string, ws *workspace) error {
	v, err := vault.Scan(ctx, dir, vault.Options{
		Include: ws.cfg.Vault.Include,
		Exclude: ws.cfg.Vault.Exclude,
		Logger:  c.Logger,
	})
	if err != nil {
		return err
	}
	if err := v.Repopulate(ws.store); err != nil {
		return err
	}

	ws.vault = v
	ws.resolver.swap(v.Index)
	return nil
}

// vaultArg resolves the optional positional vault argument, defaulting to
// the current directory.
func vaultArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return "."
}
