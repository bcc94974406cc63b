package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"vidash/internal/api"
	"vidash/internal/dashboard"
	"vidash/internal/snapshot"
)

func newActionCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newStartCommand(ctx),
		newCancelCommand(ctx),
		newResetCommand(ctx),
		newClearCommand(ctx),
		newDownloadCommand(ctx),
		newUploadCommand(ctx, "upload", api.UploadVideo, "Upload a video file"),
		newUploadCommand(ctx, "upload-protocol", api.UploadProtocol, "Upload a protocol CSV file"),
	}
}

// withClient runs fn against a fresh client bounded by the request timeout.
func (c *commandContext) withClient(cmd *cobra.Command, fn func(context.Context, *api.Client) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	client, err := c.client()
	if err != nil {
		return err
	}
	reqCtx, cancel := context.WithTimeout(cmd.Context(), cfg.RequestTimeout())
	defer cancel()
	return wrapServerError(fn(reqCtx, client), cfg.Server.BaseURL)
}

func newStartCommand(ctx *commandContext) *cobra.Command {
	defaults := snapshot.DefaultSettings()
	values := make(map[snapshot.SettingField]*string, len(snapshot.SettingFields))

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the analysis with the given settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := make(map[snapshot.SettingField]string, len(values))
			for field, value := range values {
				raw[field] = *value
			}
			settings := snapshot.ParseSettings(raw)
			if err := ctx.withClient(cmd, func(c context.Context, client *api.Client) error {
				return client.StartProcess(c, settings)
			}); err != nil {
				return fmt.Errorf("start analysis: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Analysis started (frame interval %ds, confidence limit %d, session timeout %ds, phantom timeout %ds)\n",
				settings.FrameIntervalSec, settings.ConfLimit, settings.SessionTimeoutSec, settings.PhantomTimeoutSec)
			return nil
		},
	}

	flags := []struct {
		field snapshot.SettingField
		name  string
		usage string
	}{
		{snapshot.FieldFrameInterval, "frame-interval", "Seconds between analysed frames (1-30)"},
		{snapshot.FieldConfLimit, "conf-limit", "Confidence limit (1-10)"},
		{snapshot.FieldSessionTimeout, "session-timeout", "Session timeout in seconds (10-3600)"},
		{snapshot.FieldPhantomTimeout, "phantom-timeout", "Phantom timeout in seconds (5-3600)"},
	}
	for _, f := range flags {
		value := new(string)
		values[f.field] = value
		cmd.Flags().StringVar(value, f.name, strconv.Itoa(defaults.Get(f.field)), f.usage)
	}
	return cmd
}

func newCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel",
		Short: "Cancel the running operation",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.withClient(cmd, func(c context.Context, client *api.Client) error {
				return client.CancelProcess(c)
			}); err != nil {
				return fmt.Errorf("cancel: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Cancel requested")
			return nil
		},
	}
}

func newResetCommand(ctx *commandContext) *cobra.Command {
	var clearEvents bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Reset the server state",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.withClient(cmd, func(c context.Context, client *api.Client) error {
				return client.ResetState(c, clearEvents)
			}); err != nil {
				return fmt.Errorf("reset: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "State reset")
			return nil
		},
	}
	cmd.Flags().BoolVar(&clearEvents, "clear-events", false, "Also clear the event log")
	return cmd
}

func newClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:       "clear video|protocol",
		Short:     "Remove the video or protocol file on the server",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"video", "protocol"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := args[0]
			if err := ctx.withClient(cmd, func(c context.Context, client *api.Client) error {
				if target == "protocol" {
					return client.ClearProtocol(c)
				}
				return client.ClearVideo(c)
			}); err != nil {
				return fmt.Errorf("clear %s: %w", target, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %s\n", target)
			return nil
		},
	}
}

func newDownloadCommand(ctx *commandContext) *cobra.Command {
	var start, end string
	cmd := &cobra.Command{
		Use:   "download URL",
		Short: "Ask the server to download a video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var trim *dashboard.Trim
			if cmd.Flags().Changed("start") || cmd.Flags().Changed("end") {
				trim = &dashboard.Trim{Start: start, End: end}
			}
			req, err := dashboard.BuildDownload(args[0], trim)
			if err != nil {
				return err
			}
			if err := ctx.withClient(cmd, func(c context.Context, client *api.Client) error {
				return client.Download(c, req)
			}); err != nil {
				return fmt.Errorf("download: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Download started: %s\n", req.URL)
			return nil
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "Trim start in seconds")
	cmd.Flags().StringVar(&end, "end", "", "Trim end in seconds")
	return cmd
}

func newUploadCommand(ctx *commandContext, use string, kind api.UploadKind, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " FILE",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			client, err := ctx.client()
			if err != nil {
				return err
			}
			size, err := client.CheckUpload(kind, path)
			if err != nil {
				return fmt.Errorf("upload %s: %w", filepath.Base(path), err)
			}
			if kind == api.UploadProtocol {
				ctx.localCache().RememberFileSize(filepath.Base(path), size)
			}

			progress := newProgressPrinter(cmd.ErrOrStderr())
			err = client.Upload(cmd.Context(), kind, path, progress.update)
			progress.finish()
			if err != nil {
				if errors.Is(err, api.ErrTooLarge) {
					return fmt.Errorf("upload %s: file too large for the server: %w", filepath.Base(path), err)
				}
				return wrapServerError(fmt.Errorf("upload %s: %w", filepath.Base(path), err), client.BaseURL())
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %s (%d bytes)\n", filepath.Base(path), size)
			return nil
		},
	}
}

// progressPrinter writes "Uploading: N%" once per whole percent.
type progressPrinter struct {
	w       io.Writer
	last    int
	printed bool
}

func newProgressPrinter(w io.Writer) *progressPrinter {
	return &progressPrinter{w: w, last: -1}
}

func (p *progressPrinter) update(sent, total int64) {
	if total <= 0 {
		return
	}
	percent := int(sent * 100 / total)
	if percent == p.last {
		return
	}
	p.last = percent
	p.printed = true
	fmt.Fprintf(p.w, "\rUploading: %d%%", percent)
}

func (p *progressPrinter) finish() {
	if p.printed {
		fmt.Fprintln(p.w)
	}
}
