package snapshot

import (
	"fmt"
	"math"
	"strings"
)

// FormatBytes renders a positive byte count with one decimal above bytes.
// Zero, negative and unusable values render as an empty string.
func FormatBytes(n Number) string {
	size, ok := n.Finite()
	if !ok || size <= 0 {
		return ""
	}
	units := []string{"B", "KB", "MB", "GB"}
	unit := 0
	for size >= 1024 && unit < len(units)-1 {
		size /= 1024
		unit++
	}
	if unit == 0 {
		return fmt.Sprintf("%.0f %s", size, units[unit])
	}
	return fmt.Sprintf("%.1f %s", size, units[unit])
}

// ComposeFileLabel joins a file name with its formatted size when known.
func ComposeFileLabel(name string, size Number) string {
	if formatted := FormatBytes(size); formatted != "" {
		return name + " · " + formatted
	}
	return name
}

// FormatTimeLabel renders seconds as MM:SS; unusable or negative values
// render as 00:00.
func FormatTimeLabel(n Number) string {
	s, ok := n.Finite()
	if !ok || s < 0 {
		return "00:00"
	}
	return fmt.Sprintf("%02d:%02d", int(math.Floor(s/60)), int(math.Floor(math.Mod(s, 60))))
}

// FormatDuration renders elapsed seconds as "N min SS sec" or "N sec".
func FormatDuration(seconds float64) string {
	total := int(math.Max(0, math.Floor(seconds)))
	m := total / 60
	s := total % 60
	if m > 0 {
		return fmt.Sprintf("%d min %02d sec", m, s)
	}
	return fmt.Sprintf("%d sec", s)
}

// FormatEventLine renders one event log entry.
func FormatEventLine(evt Event) string {
	ts := strings.Replace(evt.TS, "T", " ", 1)
	ts = strings.Replace(ts, "+00:00", "Z", 1)
	kind := evt.Type
	if kind == "" {
		kind = "event"
	}
	level := evt.Level
	if level == "" {
		level = "info"
	}
	return fmt.Sprintf("[%s] [%s] [%s] %s", ts, strings.ToUpper(kind), strings.ToUpper(level), evt.Message)
}
