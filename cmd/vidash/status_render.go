package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"vidash/internal/reconcile"
	"vidash/internal/snapshot"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 12
	statusIndent     = "  "
)

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	statusText := statusKindLabel(kind)
	if message != "" {
		statusText = fmt.Sprintf("[%s] %s", statusText, message)
	} else {
		statusText = fmt.Sprintf("[%s]", statusText)
	}
	base := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", statusText)
	if colorize {
		if color := statusKindColor(kind); color != "" {
			return color + base + ansiReset
		}
	}
	return base
}

func renderField(label, value string) string {
	return fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", value)
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func statusKindColor(kind statusKind) string {
	switch kind {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	case statusInfo:
		return ansiBlue
	default:
		return ""
	}
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if colorize {
		line = ansiBlue + line + ansiReset
		rule = ansiBlue + rule + ansiReset
	}
	return []string{line, rule}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// phaseTitle turns a raw phase into a display title, e.g. "Processing".
func phaseTitle(phase snapshot.Phase) string {
	if phase == "" {
		phase = snapshot.PhaseIdle
	}
	return cases.Title(language.Und).String(string(phase))
}

func phaseKind(view reconcile.View) statusKind {
	switch {
	case view.Phase == snapshot.PhaseError:
		return statusError
	case view.Controls.OperationActive:
		return statusInfo
	case view.Phase == snapshot.PhaseDone:
		return statusOK
	default:
		return statusInfo
	}
}

type stateRenderOptions struct {
	colorize  bool
	maxEvents int
	overlay   string
}

// renderView prints a full dashboard view as sectioned text.
func renderView(w io.Writer, view reconcile.View, opts stateRenderOptions) {
	lines := renderSectionHeader("Dashboard", opts.colorize)
	lines = append(lines, renderStatusLine("Phase", phaseKind(view), phaseSummary(view), opts.colorize))
	if view.Controls.ShowProgress {
		lines = append(lines, renderField("Progress", fmt.Sprintf("%.0f%%", view.Progress)))
	}
	if view.StatusMeta != "" {
		lines = append(lines, renderField("Operation", view.StatusMeta))
	}
	if view.Controls.ShowStatus && view.Controls.Status != "" {
		kind := statusInfo
		if view.Controls.Status == reconcile.StuckText || view.Controls.Status == reconcile.ErrorStatusText {
			kind = statusWarn
		}
		lines = append(lines, renderStatusLine("Status", kind, view.Controls.Status, opts.colorize))
	}
	lines = append(lines,
		renderField("Video", fallback(view.VideoLabel, "none")),
		renderField("Protocol", fallback(view.ProtocolLabel, "none")),
		renderField("Media", fallback(view.MediaKey, "none")),
		renderField("Can start", yesNo(view.Controls.CanStart)),
		renderField("Can cancel", yesNo(view.Controls.CanCancel)),
	)
	if view.MediaError != "" {
		lines = append(lines, renderStatusLine("Playback", statusError, view.MediaError, opts.colorize))
	}

	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Settings", opts.colorize)...)
	lines = append(lines, settingsTable(view.Settings))

	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Segments", opts.colorize)...)
	if len(view.Segments) == 0 {
		lines = append(lines, statusIndent+view.SegmentPlaceholder)
	} else {
		lines = append(lines, segmentTable(view.Segments))
	}

	if opts.overlay != "" {
		lines = append(lines, "")
		lines = append(lines, renderSectionHeader(fmt.Sprintf("Overlay (%d boxes)", view.Boxes), opts.colorize)...)
		lines = append(lines, opts.overlay)
	}

	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Events", opts.colorize)...)
	lines = append(lines, tailLines(view.EventLog, opts.maxEvents))

	if strings.TrimSpace(view.ResultsText) != "" {
		lines = append(lines, "")
		lines = append(lines, renderSectionHeader("Notes", opts.colorize)...)
		lines = append(lines, view.ResultsText)
	}

	fmt.Fprintln(w, strings.Join(lines, "\n"))
}

func phaseSummary(view reconcile.View) string {
	title := phaseTitle(view.Phase)
	if view.Description == "" {
		return title
	}
	return title + " · " + view.Description
}

func tailLines(text string, n int) string {
	if n <= 0 {
		return text
	}
	lines := strings.Split(text, "\n")
	if len(lines) <= n {
		return text
	}
	return strings.Join(lines[len(lines)-n:], "\n")
}

func fallback(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return value
}
