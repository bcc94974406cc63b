package snapshot

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Fields of a state payload are read one at a time. A value of the wrong
// type falls back to the field's zero value instead of failing the payload.

func looseFields(data []byte) map[string]json.RawMessage {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil
	}
	return fields
}

// looseString reads strings as-is and numbers or booleans as their literal
// text; anything else is empty.
func looseString(data json.RawMessage) string {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return ""
	}
	switch trimmed[0] {
	case '"':
		var s string
		if json.Unmarshal(trimmed, &s) == nil {
			return s
		}
		return ""
	case 't', 'f', '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		if bytes.Equal(trimmed, []byte("true")) || bytes.Equal(trimmed, []byte("false")) {
			return string(trimmed)
		}
		if _, err := strconv.ParseFloat(string(trimmed), 64); err == nil {
			return string(trimmed)
		}
	}
	return ""
}

// looseOptionalString is nil unless data is a JSON string.
func looseOptionalString(data json.RawMessage) *string {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '"' {
		return nil
	}
	var s string
	if json.Unmarshal(trimmed, &s) != nil {
		return nil
	}
	return &s
}

// looseFlag is nil unless data is a JSON boolean.
func looseFlag(data json.RawMessage) *bool {
	switch string(bytes.TrimSpace(data)) {
	case "true":
		return Bool(true)
	case "false":
		return Bool(false)
	default:
		return nil
	}
}

// truthy follows the dashboard's flag convention: absent, null, false, zero
// and the empty string are false; every other value is true.
func truthy(data json.RawMessage) bool {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return false
	}
	switch trimmed[0] {
	case 'n', 'f':
		return false
	case 't', '{', '[':
		return true
	case '"':
		return len(looseString(trimmed)) > 0
	}
	v, err := strconv.ParseFloat(string(trimmed), 64)
	return err == nil && v != 0
}

func looseNumber(data json.RawMessage) Number {
	var n Number
	_ = n.UnmarshalJSON(data)
	return n
}

// looseObject decodes data into a new T, or returns nil when data is not an
// object.
func looseObject[T any](data json.RawMessage) *T {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil
	}
	var out T
	if json.Unmarshal(trimmed, &out) != nil {
		return nil
	}
	return &out
}

// looseList decodes each element of an array; a non-array yields nil.
func looseList[T any](data json.RawMessage) []T {
	var items []json.RawMessage
	if json.Unmarshal(data, &items) != nil {
		return nil
	}
	out := make([]T, 0, len(items))
	for _, item := range items {
		var v T
		_ = json.Unmarshal(item, &v)
		out = append(out, v)
	}
	return out
}

func (u *RawUI) UnmarshalJSON(data []byte) error {
	f := looseFields(data)
	*u = RawUI{
		SidebarHidden:       looseFlag(f["sidebar_hidden"]),
		RightPanelCollapsed: looseFlag(f["right_panel_collapsed"]),
		SidebarPinned:       looseFlag(f["sidebar_pinned"]),
		RightPanelPinned:    looseFlag(f["right_panel_pinned"]),
		EventsOpen:          looseFlag(f["events_open"]),
		StateOpen:           looseFlag(f["state_open"]),
	}
	return nil
}

func (p *Playback) UnmarshalJSON(data []byte) error {
	f := looseFields(data)
	*p = Playback{Source: looseString(f["source"]), Position: looseNumber(f["position"])}
	return nil
}

func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	f := looseFields(data)
	*ts = Timestamp{Label: looseString(f["label"]), Time: looseNumber(f["time"])}
	return nil
}

func (b *BBox) UnmarshalJSON(data []byte) error {
	f := looseFields(data)
	*b = BBox{
		X:     looseNumber(f["x"]),
		Y:     looseNumber(f["y"]),
		W:     looseNumber(f["w"]),
		H:     looseNumber(f["h"]),
		Label: looseString(f["label"]),
	}
	return nil
}

func (e *Event) UnmarshalJSON(data []byte) error {
	f := looseFields(data)
	*e = Event{
		TS:      looseString(f["ts"]),
		Type:    looseString(f["type"]),
		Level:   looseString(f["level"]),
		Message: looseString(f["message"]),
	}
	return nil
}
