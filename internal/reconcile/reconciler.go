package reconcile

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"vidash/internal/logging"
	"vidash/internal/snapshot"
)

// MediaSyncer keeps the player on the snapshot's media.
type MediaSyncer interface {
	Sync(snap snapshot.Snapshot) bool
	MediaKey() string
	ErrorText() string
}

// OverlayDrawer paints detection boxes.
type OverlayDrawer interface {
	Draw(boxes []snapshot.BBox) int
	Redraw() int
}

// SizeLookup returns locally remembered file sizes.
type SizeLookup interface {
	FileSize(name string) (int64, bool)
}

// FileKind selects the video or protocol file slot.
type FileKind int

const (
	FileVideo FileKind = iota
	FileProtocol
)

// Options wires a Reconciler to its collaborators. Nil collaborators are
// skipped.
type Options struct {
	Media   MediaSyncer
	Overlay OverlayDrawer
	Sizes   SizeLookup
	Now     func() time.Time
	Logger  *slog.Logger
}

type editable struct {
	value   string
	editing bool
}

type localFile struct {
	name string
	size int64
}

// Reconciler owns the transient local state that survives snapshots: field
// edits, the segment filter, panel hover and the log selection lock.
type Reconciler struct {
	media   MediaSyncer
	overlay OverlayDrawer
	sizes   SizeLookup
	now     func() time.Time
	logger  *slog.Logger
	sampler *logging.ProgressSampler

	settings   map[snapshot.SettingField]*editable
	notes      editable
	filter     string
	logsLocked bool
	hover      [2]bool
	files      [2]localFile

	view View
}

// New constructs a Reconciler with default settings values.
func New(opts Options) *Reconciler {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	r := &Reconciler{
		media:    opts.Media,
		overlay:  opts.Overlay,
		sizes:    opts.Sizes,
		now:      now,
		logger:   logging.NewComponentLogger(opts.Logger, "reconcile"),
		sampler:  logging.NewProgressSampler(5),
		settings: make(map[snapshot.SettingField]*editable, len(snapshot.SettingFields)),
	}
	defaults := snapshot.DefaultSettings()
	for _, field := range snapshot.SettingFields {
		r.settings[field] = &editable{value: strconv.Itoa(defaults.Get(field))}
	}
	r.view.Layout.Prefs = snapshot.PrefsFrom(nil)
	r.view.Settings = r.settingValues()
	r.view.SegmentPlaceholder = NoSegmentsText
	r.view.EventLog = EmptyLogText
	return r
}

// Render applies snap and returns the resulting View.
func (r *Reconciler) Render(snap snapshot.Snapshot) View {
	v := r.view
	v.Phase = snap.Phase
	v.Description = snap.Phase.Describe()

	r.applyProgress(&v, snap)
	r.applyControls(&v, snap)
	r.applyLayout(&v, snap.Prefs())
	r.applySettings(&v, snap)
	r.applyStatusMeta(&v, snap)
	r.applyMedia(&v, snap)
	r.applySegments(&v, snap)
	r.applyOverlay(&v, snap)
	r.applyLogs(&v, snap)
	r.applyResults(&v, snap)

	if r.sampler.ShouldLog(v.Progress, string(snap.Phase)) {
		r.logger.Info("state rendered",
			logging.String(logging.FieldPhase, string(snap.Phase)),
			logging.Float64("progress", v.Progress),
			logging.Bool("active", v.Controls.OperationActive))
	}
	r.view = v
	return v
}

// View returns the last rendered View.
func (r *Reconciler) View() View {
	return r.view
}

func (r *Reconciler) applyProgress(v *View, snap snapshot.Snapshot) {
	v.Progress = snapshot.ClampProgress(snap.Progress)
}

func (r *Reconciler) applyControls(v *View, snap snapshot.Snapshot) {
	active := snap.OperationActive()
	c := Controls{
		OperationActive: active,
		CanStart:        snap.Video != "" && snap.ProtocolCSV != "" && !active,
		CanCancel:       active,
		InputsLocked:    active,
		NotesLocked:     active,
	}
	switch {
	case active:
		c.ShowStatus = true
		c.Status = snap.Phase.StatusLabel()
		if c.Status == "" {
			c.Status = snap.Phase.Describe()
		}
		if snap.Phase == snapshot.PhaseDownloading {
			c.ShowSpinner = true
		} else {
			c.ShowProgress = true
		}
	case snap.Phase == snapshot.PhaseError:
		c.ShowStatus = true
		c.Status = ErrorStatusText
	}
	v.Controls = c

	v.VideoLabel = r.fileLabel(FileVideo, snap.Video, snap.VideoBytes)
	v.ProtocolLabel = r.fileLabel(FileProtocol, snap.ProtocolCSV, snap.ProtocolCSVBytes)
}

func (r *Reconciler) fileLabel(kind FileKind, name string, size snapshot.Number) string {
	if name == "" {
		local := r.files[kind]
		if local.name == "" {
			return ""
		}
		return snapshot.ComposeFileLabel(local.name, snapshot.Num(float64(local.size)))
	}
	if bytes, ok := size.Finite(); ok && bytes > 0 {
		return snapshot.ComposeFileLabel(name, size)
	}
	if kind == FileProtocol && r.sizes != nil {
		if cached, ok := r.sizes.FileSize(name); ok {
			return snapshot.ComposeFileLabel(name, snapshot.Num(float64(cached)))
		}
	}
	return name
}

func (r *Reconciler) applyLayout(v *View, prefs snapshot.UIPrefs) {
	v.Layout = Layout{
		Prefs:            prefs,
		SidebarHoverOpen: r.hover[PanelSidebar],
		RightHoverOpen:   r.hover[PanelRight],
	}
}

func (r *Reconciler) applySettings(v *View, snap snapshot.Snapshot) {
	settings := snap.EffectiveSettings()
	for _, field := range snapshot.SettingFields {
		entry := r.settings[field]
		if entry.editing {
			continue
		}
		entry.value = strconv.Itoa(settings.Get(field))
	}
	v.Settings = r.settingValues()
}

func (r *Reconciler) settingValues() []SettingValue {
	out := make([]SettingValue, 0, len(snapshot.SettingFields))
	for _, field := range snapshot.SettingFields {
		entry := r.settings[field]
		out = append(out, SettingValue{Field: field, Value: entry.value, Editing: entry.editing})
	}
	return out
}

func (r *Reconciler) applyStatusMeta(v *View, snap snapshot.Snapshot) {
	v.StatusMeta = StatusMeta(snap, r.now())
}

// StatusMeta renders the operation, elapsed and remaining-time line for an
// active phase.
func StatusMeta(snap snapshot.Snapshot, now time.Time) string {
	if !snap.Phase.Active() {
		return ""
	}
	parts := []string{"Operation: " + string(snap.Phase)}

	startedAt, ok := snap.PhaseStartedAt.Finite()
	if !ok || startedAt <= 0 {
		return strings.Join(parts, " · ")
	}
	nowSec := float64(now.Unix()) + float64(now.Nanosecond())/float64(time.Second)
	elapsed := math.Max(0, nowSec-startedAt)
	if elapsed >= 1 {
		parts = append(parts, "Elapsed: "+snapshot.FormatDuration(elapsed))
	}
	if progress, ok := snap.Progress.Finite(); ok && progress > 0 && progress < 100 {
		eta := elapsed * (100 - progress) / progress
		if !math.IsInf(eta, 0) && !math.IsNaN(eta) && eta >= 1 {
			minutes := math.Max(1, math.Round(eta/60))
			parts = append(parts, fmt.Sprintf("Remaining ~%d min", int(minutes)))
		}
	}
	return strings.Join(parts, " · ")
}

func (r *Reconciler) applyMedia(v *View, snap snapshot.Snapshot) {
	if r.media == nil {
		return
	}
	r.media.Sync(snap)
	v.MediaKey = r.media.MediaKey()
	v.MediaError = r.media.ErrorText()
}

func (r *Reconciler) applySegments(v *View, snap snapshot.Snapshot) {
	v.SegmentFilter = r.filter
	v.Segments = FilterSegments(snap.Timestamps, r.filter)
	v.SegmentPlaceholder = ""
	if len(v.Segments) == 0 {
		v.SegmentPlaceholder = NoSegmentsText
	}
}

// FilterSegments sorts timestamps by time and keeps those whose label and
// formatted time contain term, ignoring case.
func FilterSegments(timestamps []snapshot.Timestamp, term string) []Segment {
	sorted := make([]snapshot.Timestamp, len(timestamps))
	copy(sorted, timestamps)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Time.Or(0) < sorted[j].Time.Or(0)
	})

	term = strings.ToLower(strings.TrimSpace(term))
	out := make([]Segment, 0, len(sorted))
	for _, ts := range sorted {
		timeLabel := snapshot.FormatTimeLabel(ts.Time)
		if term != "" && !strings.Contains(strings.ToLower(ts.Label+" "+timeLabel), term) {
			continue
		}
		label := ts.Label
		if label == "" {
			label = DefaultSegmentLabel
		}
		seconds, ok := ts.Time.Finite()
		out = append(out, Segment{Label: label, Time: seconds, TimeLabel: timeLabel, Seekable: ok})
	}
	return out
}

func (r *Reconciler) applyOverlay(v *View, snap snapshot.Snapshot) {
	if r.overlay == nil {
		return
	}
	v.Boxes = r.overlay.Draw(snap.BBoxes)
}

func (r *Reconciler) applyLogs(v *View, snap snapshot.Snapshot) {
	v.LogsLocked = r.logsLocked
	if r.logsLocked {
		return
	}
	v.EventLog = EventLog(snap.Events)
	v.StateDump = snap.StateDump()
}

// EventLog renders the newest events, one per line.
func EventLog(events []snapshot.Event) string {
	if len(events) == 0 {
		return EmptyLogText
	}
	if len(events) > maxLogLines {
		events = events[len(events)-maxLogLines:]
	}
	lines := make([]string, 0, len(events))
	for _, evt := range events {
		lines = append(lines, snapshot.FormatEventLine(evt))
	}
	return strings.Join(lines, "\n")
}

func (r *Reconciler) applyResults(v *View, snap snapshot.Snapshot) {
	if snap.ResultsText != nil && !r.notes.editing {
		r.notes.value = *snap.ResultsText
	}
	v.ResultsText = r.notes.value
	v.Controls.CanExport = !v.Controls.OperationActive || strings.TrimSpace(r.notes.value) != ""
}
