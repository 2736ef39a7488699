package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nestfold/nestfold/pkg/vault"
)

// watchCommand creates the watch command for continuous rebuilds.
func (c *CLI) watchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [vault]",
		Short: "Rebuild the hierarchy whenever a note changes",
		Long: `Rebuild the hierarchy whenever a note changes.

The watch command derives the hierarchy once, then follows the vault with
a filesystem watcher. Any markdown change triggers a full rescan and
rebuild, so renamed parents, new notes, and deleted notes are always
reflected. Stop with Ctrl-C.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runWatch(cmd.Context(), vaultArg(args))
		},
	}

	return cmd
}

func (c *CLI) runWatch(ctx context.Context, dir string) error {
	ws, err := c.openWorkspace(ctx, dir)
	if err != nil {
		return err
	}

	if err := c.buildAndReport(ctx, ws); err != nil {
		return err
	}

	watcher, err := vault.NewWatcher(dir, loggerFromContext(ctx))
	if err != nil {
		return fmt.Errorf("watch vault: %w", err)
	}
	defer watcher.Close()

	go func() { _ = watcher.Run(ctx) }()

	printInfo("Watching %s for changes (Ctrl-C to stop)", dir)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events():
			if !ok {
				return nil
			}
			printDetail("%s changed", ev.NoteID)
			if err := c.rescan(ctx, dir, ws); err != nil {
				printError("rescan failed: %v", err)
				continue
			}
			if err := c.buildAndReport(ctx, ws); err != nil {
				// A fatal build error during watch is worth surfacing
				// but should not kill the loop.
				printError("rebuild failed: %v", err)
			}
		}
	}
}

// buildAndReport runs one build and prints its outcome. Process only fails
// outright on fatal conditions; per-note problems arrive in the report.
func (c *CLI) buildAndReport(ctx context.Context, ws *workspace) error {
	prog := newProgress(c.Logger)
	report, err := ws.processor.Process(ctx)
	if err != nil {
		return fmt.Errorf("derive hierarchy: %w", err)
	}
	prog.done(fmt.Sprintf("Derived hierarchy for %d notes", report.Nodes))
	printStats(report.Nodes, report.Attached, len(report.Placeholders), report.Depth.MaxDepth)
	reportProblems(report)
	return nil
}
