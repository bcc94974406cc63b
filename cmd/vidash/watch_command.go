package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"vidash/internal/dashboard"
	"vidash/internal/reconcile"
	"vidash/internal/snapshot"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var noConsole bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run the dashboard client and follow the server state",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			client, err := ctx.client()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			printer := newViewPrinter(out)

			d, err := dashboard.New(dashboard.Options{
				Config:   cfg,
				Client:   client,
				Cache:    ctx.localCache(),
				Observer: printer.observe,
				Logger:   ctx.loggerValue(),
			})
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			runCtx, cancel := context.WithCancel(runCtx)
			defer cancel()

			fmt.Fprintf(out, "Watching %s (client %s)\n", cfg.Server.BaseURL, client.ClientID())
			if !noConsole {
				fmt.Fprintln(out, "Type help for commands.")
				go readConsole(cmd.InOrStdin(), out, d, cancel)
			}
			return d.Run(runCtx)
		},
	}

	cmd.Flags().BoolVar(&noConsole, "no-console", false, "Do not read commands from stdin")
	return cmd
}

// readConsole feeds stdin lines to the dashboard until EOF or quit.
func readConsole(in io.Reader, out io.Writer, d *dashboard.Dashboard, quit context.CancelFunc) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		action, err := parseConsoleLine(scanner.Text())
		if errors.Is(err, errQuit) {
			quit()
			return
		}
		d.Submit(func(d *dashboard.Dashboard) {
			if err != nil {
				fmt.Fprintln(out, err)
				return
			}
			if action == nil {
				return
			}
			if err := action(d, out); err != nil {
				fmt.Fprintln(out, "error:", err)
			}
		})
	}
}

// viewSummary is the part of a View worth a console line.
type viewSummary struct {
	phase    snapshot.Phase
	progress int
	status   string
	media    string
	segments int
}

// viewPrinter prints a line whenever the summary of the published view
// changes. It runs on the dashboard loop.
type viewPrinter struct {
	out  io.Writer
	last viewSummary
	seen bool
}

func newViewPrinter(out io.Writer) *viewPrinter {
	return &viewPrinter{out: out}
}

func (p *viewPrinter) observe(view reconcile.View) {
	summary := viewSummary{
		phase:    view.Phase,
		progress: int(view.Progress),
		status:   view.Controls.Status,
		media:    view.MediaKey,
		segments: len(view.Segments),
	}
	if p.seen && summary == p.last {
		return
	}
	p.seen = true
	p.last = summary
	fmt.Fprintln(p.out, summarizeView(view))
}

func summarizeView(view reconcile.View) string {
	line := phaseTitle(view.Phase)
	if view.Controls.ShowProgress {
		line += fmt.Sprintf(" %d%%", int(view.Progress))
	}
	if view.MediaKey != "" {
		line += " · " + view.MediaKey
	}
	if n := len(view.Segments); n > 0 {
		line += fmt.Sprintf(" · %d segments", n)
	}
	if view.Controls.Status != "" {
		line += " · " + view.Controls.Status
	}
	return line
}
