package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nestfold/nestfold/internal/server"
	"github.com/nestfold/nestfold/pkg/vault"
)

// serveCommand creates the serve command for the HTTP API.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr  string
		watch bool
	)

	cmd := &cobra.Command{
		Use:   "serve [vault]",
		Short: "Serve the graph and hierarchy over HTTP",
		Long: `Serve the graph and hierarchy over HTTP.

The serve command builds the hierarchy and exposes it through a JSON API:
the full graph, individual nodes with their children, DOT and SVG
renderings, and a rebuild endpoint. With --watch, note changes on disk
trigger automatic rebuilds.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context(), vaultArg(args), addr, watch)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: from config, :7474)")
	cmd.Flags().BoolVar(&watch, "watch", false, "rebuild when notes change on disk")

	return cmd
}

func (c *CLI) runServe(ctx context.Context, dir, addr string, watch bool) error {
	ws, err := c.openWorkspace(ctx, dir)
	if err != nil {
		return err
	}
	if addr == "" {
		addr = ws.cfg.Server.Addr
	}

	if err := c.buildAndReport(ctx, ws); err != nil {
		return err
	}

	srv := server.New(server.Config{
		Store:     ws.store,
		Processor: ws.processor,
		Addr:      addr,
		Logger:    c.Logger,
	})

	eg, egctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return srv.Serve(egctx)
	})

	if watch {
		watcher, err := vault.NewWatcher(dir, c.Logger)
		if err != nil {
			return fmt.Errorf("watch vault: %w", err)
		}
		defer watcher.Close()

		eg.Go(func() error { return watcher.Run(egctx) })
		eg.Go(func() error {
			for {
				select {
				case <-egctx.Done():
					return nil
				case ev, ok := <-watcher.Events():
					if !ok {
						return nil
					}
					c.Logger.Info("note changed, rebuilding", "note", ev.NoteID)
					if err := c.rescan(egctx, dir, ws); err != nil {
						c.Logger.Error("rescan failed", "error", err)
						continue
					}
					if _, err := ws.processor.Process(egctx); err != nil {
						c.Logger.Error("rebuild failed", "error", err)
					}
				}
			}
		})
	}

	printInfo("Serving %s on %s", dir, addr)
	return eg.Wait()
}
