package snapshot

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// RawUI is the ui object as delivered; absent fields stay nil.
type RawUI struct {
	SidebarHidden       *bool `json:"sidebar_hidden,omitempty"`
	RightPanelCollapsed *bool `json:"right_panel_collapsed,omitempty"`
	SidebarPinned       *bool `json:"sidebar_pinned,omitempty"`
	RightPanelPinned    *bool `json:"right_panel_pinned,omitempty"`
	EventsOpen          *bool `json:"events_open,omitempty"`
	StateOpen           *bool `json:"state_open,omitempty"`
}

// UIPrefs is the default-filled layout preference set.
type UIPrefs struct {
	SidebarHidden       bool `json:"sidebar_hidden"`
	RightPanelCollapsed bool `json:"right_panel_collapsed"`
	SidebarPinned       bool `json:"sidebar_pinned"`
	RightPanelPinned    bool `json:"right_panel_pinned"`
	EventsOpen          bool `json:"events_open"`
	StateOpen           bool `json:"state_open"`
}

// PrefsFrom fills defaults: panels hidden/collapsed and the events panel open
// unless explicitly false; pins and the state panel off unless explicitly true.
func PrefsFrom(raw *RawUI) UIPrefs {
	if raw == nil {
		raw = &RawUI{}
	}
	return UIPrefs{
		SidebarHidden:       notFalse(raw.SidebarHidden),
		RightPanelCollapsed: notFalse(raw.RightPanelCollapsed),
		SidebarPinned:       isTrue(raw.SidebarPinned),
		RightPanelPinned:    isTrue(raw.RightPanelPinned),
		EventsOpen:          notFalse(raw.EventsOpen),
		StateOpen:           isTrue(raw.StateOpen),
	}
}

// DecodePrefs parses a cached prefs blob. Values that are not booleans are
// treated as absent.
func DecodePrefs(data []byte) (UIPrefs, error) {
	var loose map[string]any
	if err := json.Unmarshal(data, &loose); err != nil {
		return UIPrefs{}, err
	}
	pick := func(key string) *bool {
		if v, ok := loose[key].(bool); ok {
			return &v
		}
		return nil
	}
	return PrefsFrom(&RawUI{
		SidebarHidden:       pick("sidebar_hidden"),
		RightPanelCollapsed: pick("right_panel_collapsed"),
		SidebarPinned:       pick("sidebar_pinned"),
		RightPanelPinned:    pick("right_panel_pinned"),
		EventsOpen:          pick("events_open"),
		StateOpen:           pick("state_open"),
	}), nil
}

// Raw converts the prefs back into a fully populated RawUI.
func (p UIPrefs) Raw() *RawUI {
	return &RawUI{
		SidebarHidden:       Bool(p.SidebarHidden),
		RightPanelCollapsed: Bool(p.RightPanelCollapsed),
		SidebarPinned:       Bool(p.SidebarPinned),
		RightPanelPinned:    Bool(p.RightPanelPinned),
		EventsOpen:          Bool(p.EventsOpen),
		StateOpen:           Bool(p.StateOpen),
	}
}

// Merge overlays the fields set in patch onto p.
func (p UIPrefs) Merge(patch RawUI) UIPrefs {
	set := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
		}
	}
	set(&p.SidebarHidden, patch.SidebarHidden)
	set(&p.RightPanelCollapsed, patch.RightPanelCollapsed)
	set(&p.SidebarPinned, patch.SidebarPinned)
	set(&p.RightPanelPinned, patch.RightPanelPinned)
	set(&p.EventsOpen, patch.EventsOpen)
	set(&p.StateOpen, patch.StateOpen)
	return p
}

func notFalse(v *bool) bool { return v == nil || *v }

func isTrue(v *bool) bool { return v != nil && *v }

// Bool returns a pointer to v for building RawUI patches.
func Bool(v bool) *bool { return &v }

// RawSettings is the settings object as delivered.
type RawSettings struct {
	FrameIntervalSec  Number `json:"frame_interval_sec"`
	ConfLimit         Number `json:"conf_limit"`
	SessionTimeoutSec Number `json:"session_timeout_sec"`
	PhantomTimeoutSec Number `json:"phantom_timeout_sec"`
}

// Settings holds the analysis parameters.
type Settings struct {
	FrameIntervalSec  int `json:"frame_interval_sec"`
	ConfLimit         int `json:"conf_limit"`
	SessionTimeoutSec int `json:"session_timeout_sec"`
	PhantomTimeoutSec int `json:"phantom_timeout_sec"`
}

// SettingField names one analysis parameter.
type SettingField string

const (
	FieldFrameInterval  SettingField = "frame_interval_sec"
	FieldConfLimit      SettingField = "conf_limit"
	FieldSessionTimeout SettingField = "session_timeout_sec"
	FieldPhantomTimeout SettingField = "phantom_timeout_sec"
)

// SettingFields lists the parameters in display order.
var SettingFields = []SettingField{FieldFrameInterval, FieldConfLimit, FieldSessionTimeout, FieldPhantomTimeout}

type settingRange struct {
	def, lo, hi int
}

var settingRanges = map[SettingField]settingRange{
	FieldFrameInterval:  {def: 3, lo: 1, hi: 30},
	FieldConfLimit:      {def: 3, lo: 1, hi: 10},
	FieldSessionTimeout: {def: 240, lo: 10, hi: 3600},
	FieldPhantomTimeout: {def: 60, lo: 5, hi: 3600},
}

// DefaultSettings returns the server defaults.
func DefaultSettings() Settings {
	return Settings{
		FrameIntervalSec:  settingRanges[FieldFrameInterval].def,
		ConfLimit:         settingRanges[FieldConfLimit].def,
		SessionTimeoutSec: settingRanges[FieldSessionTimeout].def,
		PhantomTimeoutSec: settingRanges[FieldPhantomTimeout].def,
	}
}

// SettingsFrom fills absent parameters with their defaults.
func SettingsFrom(raw *RawSettings) Settings {
	out := DefaultSettings()
	if raw == nil {
		return out
	}
	pick := func(n Number, fallback int) int {
		if v, ok := n.Finite(); ok {
			return int(math.Round(v))
		}
		return fallback
	}
	out.FrameIntervalSec = pick(raw.FrameIntervalSec, out.FrameIntervalSec)
	out.ConfLimit = pick(raw.ConfLimit, out.ConfLimit)
	out.SessionTimeoutSec = pick(raw.SessionTimeoutSec, out.SessionTimeoutSec)
	out.PhantomTimeoutSec = pick(raw.PhantomTimeoutSec, out.PhantomTimeoutSec)
	return out
}

// Get returns the value of one parameter.
func (s Settings) Get(field SettingField) int {
	switch field {
	case FieldFrameInterval:
		return s.FrameIntervalSec
	case FieldConfLimit:
		return s.ConfLimit
	case FieldSessionTimeout:
		return s.SessionTimeoutSec
	case FieldPhantomTimeout:
		return s.PhantomTimeoutSec
	default:
		return 0
	}
}

// ParseSettings reads user-entered field values. Unparseable values fall back
// to the default; parsed values are clamped into their valid range.
func ParseSettings(values map[SettingField]string) Settings {
	read := func(field SettingField) int {
		r := settingRanges[field]
		return ClampInt(values[field], r.def, r.lo, r.hi)
	}
	return Settings{
		FrameIntervalSec:  read(FieldFrameInterval),
		ConfLimit:         read(FieldConfLimit),
		SessionTimeoutSec: read(FieldSessionTimeout),
		PhantomTimeoutSec: read(FieldPhantomTimeout),
	}
}

// ClampInt parses the leading integer of value and bounds it to [lo,hi].
func ClampInt(value string, fallback, lo, hi int) int {
	value = strings.TrimSpace(value)
	end := 0
	for end < len(value) {
		c := value[end]
		if (c == '-' || c == '+') && end == 0 {
			end++
			continue
		}
		if c < '0' || c > '9' {
			break
		}
		end++
	}
	num, err := strconv.Atoi(value[:end])
	if err != nil {
		return fallback
	}
	if num < lo {
		return lo
	}
	if num > hi {
		return hi
	}
	return num
}
