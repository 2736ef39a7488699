package cli

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

// treeCommand creates the tree command for browsing the hierarchy.
func (c *CLI) treeCommand() *cobra.Command {
	var plain bool

	cmd := &cobra.Command{
		Use:   "tree [vault]",
		Short: "Browse the derived hierarchy interactively",
		Long: `Browse the derived hierarchy interactively.

The tree command builds the hierarchy and opens a terminal browser where
compound groups fold and unfold. Use --plain to print the tree as
indented text instead, for piping or non-TTY use.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runTree(cmd.Context(), vaultArg(args), plain)
		},
	}

	cmd.Flags().BoolVar(&plain, "plain", false, "print indented text instead of the interactive browser")

	return cmd
}

func (c *CLI) runTree(ctx context.Context, dir string, plain bool) error {
	ws, err := c.openWorkspace(ctx, dir)
	if err != nil {
		return err
	}

	report, err := ws.processor.Process(ctx)
	if err != nil {
		return fmt.Errorf("derive hierarchy: %w", err)
	}
	reportProblems(report)

	if plain {
		fmt.Print(renderTreePlain(ws.store))
		return nil
	}

	p := tea.NewProgram(NewTreeModel(ws.store), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run tree browser: %w", err)
	}
	return nil
}
