package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"vidash/internal/api"
	"vidash/internal/dashboard"
	"vidash/internal/media"
	"vidash/internal/overlay"
	"vidash/internal/reconcile"
	"vidash/internal/snapshot"
)

// consoleAction runs on the dashboard loop.
type consoleAction func(d *dashboard.Dashboard, out io.Writer) error

var errQuit = errors.New("quit")

const consoleHelp = `Commands:
  play | pause | seek SECONDS | mute | unmute | segment N
  filter [TEXT]           filter segments (no text clears)
  notes TEXT              replace the results notes
  set FIELD VALUE         frame_interval_sec, conf_limit, session_timeout_sec, phantom_timeout_sec
  start | cancel | reset [events]
  clear video|protocol
  download URL [START END]
  upload PATH | upload-protocol PATH
  toggle|pin|hover|leave sidebar|right | dismiss
  events open|close | statedump open|close
  lock | unlock           hold the log panels
  resize COLS ROWS        change the video box
  export [PATH]           save notes (default results.txt)
  show | grid | help | quit`

// parseConsoleLine turns one console line into an action. An empty line
// yields a nil action; "quit" yields errQuit.
func parseConsoleLine(line string) (consoleAction, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, nil
	}
	name, args := strings.ToLower(fields[0]), fields[1:]
	rest := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), fields[0]))

	switch name {
	case "quit", "exit":
		return nil, errQuit
	case "help":
		return printText(consoleHelp), nil
	case "play":
		return simple((*dashboard.Dashboard).Play), nil
	case "pause":
		return simple((*dashboard.Dashboard).Pause), nil
	case "mute", "unmute":
		muted := name == "mute"
		return simple(func(d *dashboard.Dashboard) { d.SetMuted(muted) }), nil
	case "seek":
		seconds, err := floatArg(args, "seek SECONDS")
		if err != nil {
			return nil, err
		}
		return simple(func(d *dashboard.Dashboard) { d.Seek(seconds) }), nil
	case "segment":
		n, err := intArg(args, "segment N")
		if err != nil {
			return nil, err
		}
		return func(d *dashboard.Dashboard, _ io.Writer) error { return d.ActivateSegment(n - 1) }, nil
	case "filter":
		if rest == "" {
			return simple((*dashboard.Dashboard).ClearFilter), nil
		}
		return simple(func(d *dashboard.Dashboard) { d.SetFilter(rest) }), nil
	case "notes":
		return simple(func(d *dashboard.Dashboard) {
			d.FocusNotes()
			d.EditNotes(rest)
			d.CommitNotes()
		}), nil
	case "set":
		if len(args) != 2 {
			return nil, usageError("set FIELD VALUE")
		}
		field, err := settingField(args[0])
		if err != nil {
			return nil, err
		}
		value := args[1]
		return simple(func(d *dashboard.Dashboard) {
			d.FocusSetting(field)
			d.EditSetting(field, value)
			d.CommitSetting(field)
		}), nil
	case "start":
		return simple((*dashboard.Dashboard).StartAnalysis), nil
	case "cancel":
		return simple((*dashboard.Dashboard).Cancel), nil
	case "reset":
		clearEvents := len(args) > 0 && strings.EqualFold(args[0], "events")
		return simple(func(d *dashboard.Dashboard) { d.Reset(clearEvents) }), nil
	case "clear":
		if len(args) != 1 {
			return nil, usageError("clear video|protocol")
		}
		switch strings.ToLower(args[0]) {
		case "video":
			return simple((*dashboard.Dashboard).ClearVideo), nil
		case "protocol":
			return simple((*dashboard.Dashboard).ClearProtocol), nil
		}
		return nil, usageError("clear video|protocol")
	case "download":
		switch len(args) {
		case 1:
			return func(d *dashboard.Dashboard, _ io.Writer) error { return d.Download(args[0], nil) }, nil
		case 3:
			trim := &dashboard.Trim{Start: args[1], End: args[2]}
			return func(d *dashboard.Dashboard, _ io.Writer) error { return d.Download(args[0], trim) }, nil
		}
		return nil, usageError("download URL [START END]")
	case "upload", "upload-protocol":
		if rest == "" {
			return nil, usageError(name + " PATH")
		}
		kind := api.UploadVideo
		if name == "upload-protocol" {
			kind = api.UploadProtocol
		}
		return func(d *dashboard.Dashboard, _ io.Writer) error { return d.Upload(kind, rest) }, nil
	case "toggle", "pin", "hover", "leave":
		panel, err := panelArg(args, name)
		if err != nil {
			return nil, err
		}
		switch name {
		case "toggle":
			return simple(func(d *dashboard.Dashboard) { d.TogglePanel(panel) }), nil
		case "pin":
			return simple(func(d *dashboard.Dashboard) { d.TogglePin(panel) }), nil
		case "leave":
			return simple(func(d *dashboard.Dashboard) { d.HoverLeave(panel) }), nil
		default:
			return simple(func(d *dashboard.Dashboard) { d.HoverEnter(panel) }), nil
		}
	case "dismiss":
		return simple((*dashboard.Dashboard).DismissPanels), nil
	case "events", "statedump":
		if len(args) != 1 || (args[0] != "open" && args[0] != "close") {
			return nil, usageError(name + " open|close")
		}
		panel := dashboard.LogEvents
		if name == "statedump" {
			panel = dashboard.LogState
		}
		open := args[0] == "open"
		return simple(func(d *dashboard.Dashboard) { d.SetLogPanel(panel, open) }), nil
	case "lock", "unlock":
		locked := name == "lock"
		return simple(func(d *dashboard.Dashboard) { d.SetLogsLocked(locked) }), nil
	case "resize":
		if len(args) != 2 {
			return nil, usageError("resize COLS ROWS")
		}
		cols, err1 := strconv.Atoi(args[0])
		rows, err2 := strconv.Atoi(args[1])
		if err1 != nil || err2 != nil || cols <= 0 || rows <= 0 {
			return nil, usageError("resize COLS ROWS")
		}
		return simple(func(d *dashboard.Dashboard) { d.Resize(media.Bounds{Width: cols, Height: rows}) }), nil
	case "export":
		return func(d *dashboard.Dashboard, out io.Writer) error {
			path, err := d.ExportResults(rest)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Results saved to %s\n", path)
			return nil
		}, nil
	case "show":
		return func(d *dashboard.Dashboard, out io.Writer) error {
			renderView(out, d.View(), stateRenderOptions{colorize: shouldColorize(out), maxEvents: 20})
			return nil
		}, nil
	case "grid":
		return func(d *dashboard.Dashboard, out io.Writer) error {
			grid, ok := d.Surface().(*overlay.GridSurface)
			if !ok {
				return errors.New("overlay surface is not a text grid")
			}
			fmt.Fprintln(out, grid.String())
			return nil
		}, nil
	default:
		return nil, fmt.Errorf("unknown command %q (try help)", name)
	}
}

func simple(fn func(d *dashboard.Dashboard)) consoleAction {
	return func(d *dashboard.Dashboard, _ io.Writer) error {
		fn(d)
		return nil
	}
}

func printText(text string) consoleAction {
	return func(_ *dashboard.Dashboard, out io.Writer) error {
		fmt.Fprintln(out, text)
		return nil
	}
}

func usageError(usage string) error {
	return fmt.Errorf("usage: %s", usage)
}

func floatArg(args []string, usage string) (float64, error) {
	if len(args) != 1 {
		return 0, usageError(usage)
	}
	v, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return 0, usageError(usage)
	}
	return v, nil
}

func intArg(args []string, usage string) (int, error) {
	if len(args) != 1 {
		return 0, usageError(usage)
	}
	v, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, usageError(usage)
	}
	return v, nil
}

func panelArg(args []string, name string) (reconcile.Panel, error) {
	if len(args) == 1 {
		switch strings.ToLower(args[0]) {
		case "sidebar":
			return reconcile.PanelSidebar, nil
		case "right":
			return reconcile.PanelRight, nil
		}
	}
	return 0, usageError(name + " sidebar|right")
}

func settingField(raw string) (snapshot.SettingField, error) {
	for _, field := range snapshot.SettingFields {
		if strings.EqualFold(raw, string(field)) {
			return field, nil
		}
	}
	return "", fmt.Errorf("unknown setting %q", raw)
}
