package dashboard

import (
	"fmt"

	"vidash/internal/media"
	"vidash/internal/reconcile"
	"vidash/internal/snapshot"
)

// LogPanel names one of the collapsible log panels.
type LogPanel int

const (
	LogEvents LogPanel = iota
	LogState
)

// persistUI merges partial over the current prefs, applies the result
// locally and queues the write. Nothing happens before the first snapshot.
func (d *Dashboard) persistUI(partial snapshot.RawUI) {
	if !d.hasSnapshot {
		return
	}
	merged := d.current.Prefs().Merge(partial)
	d.current = d.current.WithPatch(snapshot.PrefsPatch(merged))
	d.cachedPrefs = merged
	d.queue.UI(merged)
	d.publish(d.rec.ApplyPrefs(merged))
}

// TogglePanel hides or shows a side panel.
func (d *Dashboard) TogglePanel(p reconcile.Panel) {
	prefs := d.current.Prefs()
	if p == reconcile.PanelRight {
		d.persistUI(snapshot.RawUI{RightPanelCollapsed: snapshot.Bool(!prefs.RightPanelCollapsed)})
	} else {
		d.persistUI(snapshot.RawUI{SidebarHidden: snapshot.Bool(!prefs.SidebarHidden)})
	}
	d.publish(d.setHover(p, false))
}

// TogglePin pins or unpins a side panel; either way it is shown.
func (d *Dashboard) TogglePin(p reconcile.Panel) {
	prefs := d.current.Prefs()
	if p == reconcile.PanelRight {
		d.persistUI(snapshot.RawUI{
			RightPanelPinned:    snapshot.Bool(!prefs.RightPanelPinned),
			RightPanelCollapsed: snapshot.Bool(false),
		})
		return
	}
	d.persistUI(snapshot.RawUI{
		SidebarPinned: snapshot.Bool(!prefs.SidebarPinned),
		SidebarHidden: snapshot.Bool(false),
	})
}

// SetLogPanel opens or closes a log panel. Matching the current prefs is a
// no-op, so applying a snapshot never echoes a write.
func (d *Dashboard) SetLogPanel(panel LogPanel, open bool) {
	prefs := d.current.Prefs()
	switch panel {
	case LogEvents:
		if prefs.EventsOpen != open {
			d.persistUI(snapshot.RawUI{EventsOpen: snapshot.Bool(open)})
		}
	case LogState:
		if prefs.StateOpen != open {
			d.persistUI(snapshot.RawUI{StateOpen: snapshot.Bool(open)})
		}
	}
}

// HoverEnter opens a collapsed panel transiently.
func (d *Dashboard) HoverEnter(p reconcile.Panel) {
	if d.collapsed(p) {
		d.publish(d.setHover(p, true))
	}
}

// HoverLeave closes a transiently opened panel unless it is pinned.
func (d *Dashboard) HoverLeave(p reconcile.Panel) {
	if d.collapsed(p) && !d.pinned(p) {
		d.publish(d.setHover(p, false))
	}
}

// DismissPanels handles a click outside the side panels: every visible,
// unpinned panel closes, persisting the change when it was open by prefs.
func (d *Dashboard) DismissPanels() {
	for _, p := range []reconcile.Panel{reconcile.PanelSidebar, reconcile.PanelRight} {
		layout := d.rec.View().Layout
		if !layout.Visible(p) || layout.Pinned(p) {
			continue
		}
		if !d.collapsed(p) {
			if p == reconcile.PanelRight {
				d.persistUI(snapshot.RawUI{RightPanelCollapsed: snapshot.Bool(true)})
			} else {
				d.persistUI(snapshot.RawUI{SidebarHidden: snapshot.Bool(true)})
			}
		}
		d.publish(d.setHover(p, false))
	}
}

func (d *Dashboard) collapsed(p reconcile.Panel) bool {
	prefs := d.current.Prefs()
	if p == reconcile.PanelRight {
		return prefs.RightPanelCollapsed
	}
	return prefs.SidebarHidden
}

func (d *Dashboard) pinned(p reconcile.Panel) bool {
	prefs := d.current.Prefs()
	if p == reconcile.PanelRight {
		return prefs.RightPanelPinned
	}
	return prefs.SidebarPinned
}

func (d *Dashboard) setHover(p reconcile.Panel, open bool) reconcile.View {
	d.rec.SetHover(p, open)
	return d.rec.View()
}

// FocusNotes starts a results text edit.
func (d *Dashboard) FocusNotes() {
	d.rec.FocusNotes()
}

// EditNotes replaces the results text. Edits are ignored while an operation
// is active.
func (d *Dashboard) EditNotes(text string) {
	if d.current.OperationActive() {
		return
	}
	d.rec.SetNotes(text)
	d.current = d.current.WithPatch(snapshot.TextPatch(text))
	d.queue.Text(text, false)
	d.publish(d.rec.View())
}

// CommitNotes ends the results text edit.
func (d *Dashboard) CommitNotes() {
	d.rec.BlurNotes()
}

// FocusSetting starts editing a settings field.
func (d *Dashboard) FocusSetting(field snapshot.SettingField) {
	d.rec.FocusSetting(field)
}

// EditSetting records typed text for a settings field.
func (d *Dashboard) EditSetting(field snapshot.SettingField, value string) {
	d.rec.SetSetting(field, value)
	d.publish(d.rec.View())
}

// CommitSetting ends a settings field edit.
func (d *Dashboard) CommitSetting(field snapshot.SettingField) {
	d.rec.BlurSetting(field)
}

// SetFilter changes the segment filter and re-renders.
func (d *Dashboard) SetFilter(term string) {
	d.rec.SetFilter(term)
	d.rerender()
}

// ClearFilter empties the segment filter.
func (d *Dashboard) ClearFilter() {
	d.SetFilter("")
}

func (d *Dashboard) rerender() {
	if !d.hasSnapshot {
		return
	}
	d.publish(d.rec.Render(d.current))
}

// ActivateSegment seeks to the segment at index in the displayed list and
// resumes playback.
func (d *Dashboard) ActivateSegment(index int) error {
	segments := d.rec.View().Segments
	if index < 0 || index >= len(segments) {
		return fmt.Errorf("segment %d: %w", index+1, ErrInvalidInput)
	}
	seg := segments[index]
	if !seg.Seekable {
		return fmt.Errorf("segment %q has no time: %w", seg.Label, ErrInvalidInput)
	}
	d.player.Seek(seg.Time)
	d.player.Play()
	return nil
}

// Play resumes playback.
func (d *Dashboard) Play() {
	d.player.Play()
}

// Pause stops playback; the player's pause event saves the position.
func (d *Dashboard) Pause() {
	d.player.Pause()
}

// Seek moves playback to seconds.
func (d *Dashboard) Seek(seconds float64) {
	d.player.Seek(seconds)
}

// SetMuted mutes or unmutes the player.
func (d *Dashboard) SetMuted(muted bool) {
	d.player.SetMuted(muted)
}

// SetLogsLocked holds the log panels while the user selects text.
func (d *Dashboard) SetLogsLocked(locked bool) {
	d.rec.SetLogsLocked(locked)
}

type resizable interface {
	SetBounds(media.Bounds)
}

// Resize changes the on-screen video box. Players that cannot be resized
// only get the overlay redrawn.
func (d *Dashboard) Resize(b media.Bounds) {
	if r, ok := d.player.(resizable); ok {
		r.SetBounds(b)
		return
	}
	d.publish(d.rec.Redraw())
}

// Unload writes the current playback position immediately.
func (d *Dashboard) Unload() {
	d.queue.FlushPlayback(d.resolver.MediaKey(), d.player.CurrentTime())
}
