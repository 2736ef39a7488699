package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nestfold/nestfold/pkg/forest"
	"github.com/nestfold/nestfold/pkg/graph"
)

// buildCommand creates the build command for deriving the hierarchy.
func (c *CLI) buildCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "build [vault]",
		Short: "Scan a vault and derive its compound hierarchy",
		Long: `Scan a vault and derive its compound hierarchy.

The build command reads every markdown note in the vault, resolves each
note's parent declaration, and folds the notes into nested groups. Notes
whose declared parent does not exist become children of a placeholder
group. The result can be written out as graph.json for the export and
serve commands.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runBuild(cmd.Context(), vaultArg(args), output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write the derived graph as JSON (default: none)")

	return cmd
}

// runBuild scans the vault, derives the hierarchy, and prints a summary.
func (c *CLI) runBuild(ctx context.Context, dir, output string) error {
	ws, err := c.openWorkspace(ctx, dir)
	if err != nil {
		return err
	}

	spinner := newSpinnerWithContext(ctx, "Deriving hierarchy...")
	spinner.Start()

	report, err := ws.processor.Process(ctx)
	if err != nil {
		spinner.StopWithError("Build failed")
		return fmt.Errorf("derive hierarchy: %w", err)
	}
	spinner.Stop()

	if ctx.Err() != nil {
		return ctx.Err()
	}

	printSuccess("Hierarchy derived")
	printStats(report.Nodes, report.Attached, len(report.Placeholders), report.Depth.MaxDepth)
	reportProblems(report)

	if output != "" {
		if err := graph.WriteGraphFile(ws.store, output); err != nil {
			return fmt.Errorf("write output %s: %w", output, err)
		}
		printFile(output)
	}

	printNewline()
	printNextStep("Browse", appName+" tree "+dir)

	return nil
}

// reportProblems prints per-note failures from a build. Per-note failures
// never abort a build, so they surface here as warnings.
func reportProblems(report *forest.Report) {
	for _, ne := range report.Errors {
		printWarning("%s: %v", ne.NodeID, ne.Err)
	}
	if len(report.Depth.Unreached) > 0 {
		printWarning("%d notes unreachable from any root (parent cycle on disk?)", len(report.Depth.Unreached))
	}
}
