package snapshot

import (
	"encoding/json"
	"math"
)

// Patch is a partial state update merged server-side by POST /state.
type Patch struct {
	UI          *UIPrefs  `json:"ui,omitempty"`
	ResultsText *string   `json:"results_text,omitempty"`
	Playback    *Playback `json:"playback,omitempty"`
}

// Empty reports whether the patch carries no fields.
func (p Patch) Empty() bool {
	return p.UI == nil && p.ResultsText == nil && p.Playback == nil
}

// Merge overlays other onto p; fields set in other win.
func (p Patch) Merge(other Patch) Patch {
	if other.UI != nil {
		p.UI = other.UI
	}
	if other.ResultsText != nil {
		p.ResultsText = other.ResultsText
	}
	if other.Playback != nil {
		p.Playback = other.Playback
	}
	return p
}

// PlaybackPatch builds a playback update with the position rounded to
// hundredths of a second.
func PlaybackPatch(source string, position float64) Patch {
	rounded := math.Round(position*100) / 100
	return Patch{Playback: &Playback{Source: source, Position: Num(rounded)}}
}

// TextPatch builds a results_text update.
func TextPatch(text string) Patch {
	return Patch{ResultsText: &text}
}

// PrefsPatch builds a ui update carrying the complete prefs set.
func PrefsPatch(prefs UIPrefs) Patch {
	return Patch{UI: &prefs}
}

// WithPatch returns a copy of s with patch applied, as the server would merge
// it. The receiver is not modified.
func (s Snapshot) WithPatch(patch Patch) Snapshot {
	out := s
	out.raw = make(map[string]json.RawMessage, len(s.raw)+3)
	for k, v := range s.raw {
		out.raw[k] = v
	}
	if patch.UI != nil {
		out.UI = patch.UI.Raw()
		out.setRaw("ui", patch.UI)
	}
	if patch.ResultsText != nil {
		text := *patch.ResultsText
		out.ResultsText = &text
		out.setRaw("results_text", text)
	}
	if patch.Playback != nil {
		pb := *patch.Playback
		out.Playback = &pb
		out.setRaw("playback", pb)
	}
	return out
}

func (s *Snapshot) setRaw(key string, value any) {
	encoded, err := json.Marshal(value)
	if err != nil {
		return
	}
	s.raw[key] = encoded
}
