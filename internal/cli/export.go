package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nestfold/nestfold/pkg/render"
)

// exportCommand creates the export command for visualization output.
func (c *CLI) exportCommand() *cobra.Command {
	var (
		output   string
		format   string
		detailed bool
		scale    float64
	)

	cmd := &cobra.Command{
		Use:   "export [vault]",
		Short: "Export the hierarchy as DOT, SVG, PDF, or PNG",
		Long: `Export the hierarchy as DOT, SVG, PDF, or PNG.

The export command builds the hierarchy and renders it with nested boxes:
each compound group becomes a cluster containing its children. Placeholder
groups are drawn with dashed outlines.

PDF and PNG output require librsvg (rsvg-convert) on the PATH.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runExport(cmd.Context(), vaultArg(args), output, format, detailed, scale)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: hierarchy.<format>)")
	cmd.Flags().StringVarP(&format, "format", "f", "svg", "output format: svg, dot, pdf, png")
	cmd.Flags().BoolVar(&detailed, "detailed", false, "include depth and frontmatter in labels")
	cmd.Flags().Float64Var(&scale, "scale", 2.0, "raster scale for PNG output")

	return cmd
}

func (c *CLI) runExport(ctx context.Context, dir, output, format string, detailed bool, scale float64) error {
	format = strings.ToLower(format)

	ws, err := c.openWorkspace(ctx, dir)
	if err != nil {
		return err
	}

	report, err := ws.processor.Process(ctx)
	if err != nil {
		return fmt.Errorf("derive hierarchy: %w", err)
	}
	reportProblems(report)

	dot := render.ToDOT(ws.store, render.Options{Detailed: detailed})

	var data []byte
	switch format {
	case "dot":
		data = []byte(dot)
	case "svg":
		data, err = render.RenderSVG(dot)
	case "pdf":
		var svg []byte
		if svg, err = render.RenderSVG(dot); err == nil {
			data, err = render.ToPDF(svg)
		}
	case "png":
		var svg []byte
		if svg, err = render.RenderSVG(dot); err == nil {
			data, err = render.ToPNG(svg, scale)
		}
	default:
		return fmt.Errorf("unknown format %q (want svg, dot, pdf, or png)", format)
	}
	if err != nil {
		return fmt.Errorf("render %s: %w", format, err)
	}

	if output == "" {
		output = "hierarchy." + format
	}
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		return fmt.Errorf("write output %s: %w", output, err)
	}

	printSuccess("Export complete")
	printFile(output)
	printStats(report.Nodes, report.Attached, len(report.Placeholders), report.Depth.MaxDepth)

	return nil
}
