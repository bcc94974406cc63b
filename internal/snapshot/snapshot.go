package snapshot

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// ErrMalformed marks payloads that cannot be decoded into a Snapshot.
var ErrMalformed = errors.New("malformed state payload")

// Playback is the last known position scoped to a media identity.
type Playback struct {
	Source   string `json:"source"`
	Position Number `json:"position"`
}

// Timestamp is a user-facing segment marker.
type Timestamp struct {
	Label string `json:"label"`
	Time  Number `json:"time"`
}

// BBox is a detection region with coordinates normalized to [0,1].
type BBox struct {
	X     Number `json:"x"`
	Y     Number `json:"y"`
	W     Number `json:"w"`
	H     Number `json:"h"`
	Label string `json:"label,omitempty"`
}

// Event is one server-observed log entry.
type Event struct {
	TS      string `json:"ts"`
	Type    string `json:"type"`
	Level   string `json:"level"`
	Message string `json:"message"`
}

// Snapshot is one complete state object delivered by the server.
type Snapshot struct {
	Phase            Phase        `json:"phase"`
	Processing       bool         `json:"processing"`
	Progress         Number       `json:"progress"`
	PhaseStartedAt   Number       `json:"phase_started_at"`
	Video            string       `json:"video"`
	VideoBytes       Number       `json:"video_bytes"`
	Converted        string       `json:"converted"`
	ProtocolCSV      string       `json:"protocol_csv"`
	ProtocolCSVBytes Number       `json:"protocol_csv_bytes"`
	Settings         *RawSettings `json:"settings,omitempty"`
	UI               *RawUI       `json:"ui,omitempty"`
	Playback         *Playback    `json:"playback,omitempty"`
	Timestamps       []Timestamp  `json:"timestamps"`
	BBoxes           []BBox       `json:"bboxes"`
	Events           []Event      `json:"events"`
	ResultsText      *string      `json:"results_text,omitempty"`

	raw map[string]json.RawMessage
}

// Decode parses a state payload. The payload must be a JSON object; inside
// it, missing or off-type fields take their defaults. The phase is
// normalized and every other field is kept as delivered.
func Decode(data []byte) (Snapshot, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		trimmed = []byte("{}")
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if raw == nil {
		return Snapshot{}, fmt.Errorf("%w: payload is null", ErrMalformed)
	}
	snap := Snapshot{
		Phase:            NormalizePhase(looseString(raw["phase"])),
		Processing:       truthy(raw["processing"]),
		Progress:         looseNumber(raw["progress"]),
		PhaseStartedAt:   looseNumber(raw["phase_started_at"]),
		Video:            looseString(raw["video"]),
		VideoBytes:       looseNumber(raw["video_bytes"]),
		Converted:        looseString(raw["converted"]),
		ProtocolCSV:      looseString(raw["protocol_csv"]),
		ProtocolCSVBytes: looseNumber(raw["protocol_csv_bytes"]),
		Settings:         looseObject[RawSettings](raw["settings"]),
		UI:               looseObject[RawUI](raw["ui"]),
		Playback:         looseObject[Playback](raw["playback"]),
		Timestamps:       looseList[Timestamp](raw["timestamps"]),
		BBoxes:           looseList[BBox](raw["bboxes"]),
		Events:           looseList[Event](raw["events"]),
		ResultsText:      looseOptionalString(raw["results_text"]),
		raw:              raw,
	}
	return snap, nil
}

// OperationActive reports whether a server operation is in flight: the phase
// is active and the processing flag is set. Any other combination enables the
// idle controls.
func (s Snapshot) OperationActive() bool {
	return s.Phase.Active() && s.Processing
}

// Notes returns the results text, empty when absent.
func (s Snapshot) Notes() string {
	if s.ResultsText == nil {
		return ""
	}
	return *s.ResultsText
}

// Prefs returns the default-filled layout preferences.
func (s Snapshot) Prefs() UIPrefs {
	return PrefsFrom(s.UI)
}

// EffectiveSettings returns the default-filled analysis settings.
func (s Snapshot) EffectiveSettings() Settings {
	return SettingsFrom(s.Settings)
}

// MediaKey identifies the asset a playback position applies to. It is empty
// when the snapshot has no media.
func (s Snapshot) MediaKey() string {
	if s.Converted != "" {
		return "converted:" + s.Converted
	}
	if s.Video != "" {
		return "video:" + s.Video
	}
	return ""
}

// RawVideoKey is the MediaKey of the raw asset regardless of conversion.
func (s Snapshot) RawVideoKey() string {
	if s.Video == "" {
		return ""
	}
	return "video:" + s.Video
}

// StoredPlayback returns the stored position when it applies to key and is
// positive.
func (s Snapshot) StoredPlayback(key string) (float64, bool) {
	if s.Playback == nil || key == "" || s.Playback.Source != key {
		return 0, false
	}
	pos, ok := s.Playback.Position.Finite()
	if !ok || pos <= 0 {
		return 0, false
	}
	return pos, true
}

// StateDump renders the snapshot without its events as indented JSON.
func (s Snapshot) StateDump() string {
	fields := make(map[string]json.RawMessage, len(s.raw))
	for k, v := range s.raw {
		fields[k] = v
	}
	if len(fields) == 0 {
		if encoded, err := json.Marshal(s); err == nil {
			_ = json.Unmarshal(encoded, &fields)
		}
	}
	delete(fields, "events")
	out, err := json.MarshalIndent(fields, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(out)
}

// ClampProgress bounds a progress value to [0,100]; unusable values become 0.
func ClampProgress(n Number) float64 {
	v, ok := n.Finite()
	if !ok {
		return 0
	}
	return math.Max(0, math.Min(100, v))
}
