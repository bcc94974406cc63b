package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"vidash/internal/config"
	"vidash/internal/media"
	"vidash/internal/overlay"
	"vidash/internal/reconcile"
	"vidash/internal/snapshot"
)

// fixedBounds sizes the overlay when no player is attached.
type fixedBounds media.Bounds

func (b fixedBounds) Bounds() media.Bounds { return media.Bounds(b) }

func newStateCommand(ctx *commandContext) *cobra.Command {
	var (
		asJSON      bool
		showOverlay bool
		maxEvents   int
		filter      string
	)

	cmd := &cobra.Command{
		Use:   "state",
		Short: "Fetch the dashboard state once and render it",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			client, err := ctx.client()
			if err != nil {
				return err
			}
			reqCtx, cancel := context.WithTimeout(cmd.Context(), cfg.FetchTimeout())
			defer cancel()
			snap, err := client.FetchState(reqCtx)
			if err != nil {
				return wrapServerError(fmt.Errorf("fetch state: %w", err), cfg.Server.BaseURL)
			}

			if asJSON {
				fmt.Fprintln(cmd.OutOrStdout(), snap.StateDump())
				return nil
			}

			view, grid := renderSnapshot(cfg, ctx, snap, filter, showOverlay)
			opts := stateRenderOptions{
				colorize:  shouldColorize(cmd.OutOrStdout()),
				maxEvents: maxEvents,
			}
			if grid != nil {
				opts.overlay = grid.String()
			}
			renderView(cmd.OutOrStdout(), view, opts)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw state as JSON")
	cmd.Flags().BoolVar(&showOverlay, "overlay", false, "Draw detection boxes on a text grid")
	cmd.Flags().IntVar(&maxEvents, "events", 20, "Number of event log lines to show (0 for all)")
	cmd.Flags().StringVar(&filter, "filter", "", "Only show segments matching this text")
	return cmd
}

// renderSnapshot runs snap through a fresh reconciler. The grid is nil unless
// withOverlay is set.
func renderSnapshot(cfg *config.Config, ctx *commandContext, snap snapshot.Snapshot, filter string, withOverlay bool) (reconcile.View, *overlay.GridSurface) {
	opts := reconcile.Options{
		Sizes:  ctx.localCache(),
		Logger: ctx.loggerValue(),
	}
	var grid *overlay.GridSurface
	if withOverlay {
		bounds := fixedBounds{Width: cfg.Player.SurfaceCols, Height: cfg.Player.SurfaceRows}
		grid = overlay.NewGridSurface(bounds.Width, bounds.Height)
		opts.Overlay = overlay.NewRenderer(grid, bounds, ctx.loggerValue())
	}
	rec := reconcile.New(opts)
	rec.SetFilter(filter)
	return rec.Render(snap), grid
}
