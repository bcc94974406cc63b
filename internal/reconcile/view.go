package reconcile

import "vidash/internal/snapshot"

// Controls is the enablement and status state of the action controls.
type Controls struct {
	OperationActive bool
	CanStart        bool
	CanCancel       bool
	// InputsLocked disables source selection, uploads, clear and reset.
	InputsLocked bool
	NotesLocked  bool
	CanExport    bool
	// ShowSpinner replaces the progress bar with an indeterminate indicator.
	ShowSpinner  bool
	ShowProgress bool
	ShowStatus   bool
	Status       string
}

// Panel names a collapsible side panel.
type Panel int

const (
	PanelSidebar Panel = iota
	PanelRight
)

func (p Panel) String() string {
	if p == PanelRight {
		return "right"
	}
	return "sidebar"
}

// Layout is the effective panel layout.
type Layout struct {
	Prefs            snapshot.UIPrefs
	SidebarHoverOpen bool
	RightHoverOpen   bool
}

// Visible reports whether panel is on screen, pinned open or hover-open.
func (l Layout) Visible(p Panel) bool {
	if p == PanelRight {
		return !l.Prefs.RightPanelCollapsed || l.RightHoverOpen
	}
	return !l.Prefs.SidebarHidden || l.SidebarHoverOpen
}

// Pinned reports whether panel is pinned.
func (l Layout) Pinned(p Panel) bool {
	if p == PanelRight {
		return l.Prefs.RightPanelPinned
	}
	return l.Prefs.SidebarPinned
}

// SettingValue is the displayed text of one analysis parameter.
type SettingValue struct {
	Field   snapshot.SettingField
	Value   string
	Editing bool
}

// Segment is one rendered segment marker.
type Segment struct {
	Label     string
	Time      float64
	TimeLabel string
	// Seekable is false when the marker has no usable time.
	Seekable bool
}

// View is everything the terminal shows for one snapshot.
type View struct {
	Phase       snapshot.Phase
	Description string
	Progress    float64
	Controls    Controls
	Layout      Layout
	Settings    []SettingValue

	VideoLabel    string
	ProtocolLabel string
	StatusMeta    string

	MediaKey   string
	MediaError string

	SegmentFilter      string
	Segments           []Segment
	SegmentPlaceholder string

	Boxes int

	EventLog    string
	StateDump   string
	LogsLocked  bool
	ResultsText string
}

const (
	// NoSegmentsText is shown when the filtered segment list is empty.
	NoSegmentsText = "No segments yet"
	// EmptyLogText is shown when the snapshot has no events.
	EmptyLogText = "Event log is empty"
	// ErrorStatusText is the generic status of a failed operation.
	ErrorStatusText = "Error"
	// StuckText warns that state fetches keep failing.
	StuckText = "Could not load state. Check whether the process is stuck."
	// DefaultSegmentLabel names segments without a label.
	DefaultSegmentLabel = "Event"

	maxLogLines = 120
)
