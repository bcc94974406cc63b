package reconcile

import (
	"strings"

	"vidash/internal/snapshot"
)

// FocusSetting marks a settings field as being edited so snapshots leave it
// alone.
func (r *Reconciler) FocusSetting(field snapshot.SettingField) {
	if entry, ok := r.settings[field]; ok {
		entry.editing = true
		r.view.Settings = r.settingValues()
	}
}

// SetSetting records typed text for a settings field and marks it edited.
func (r *Reconciler) SetSetting(field snapshot.SettingField, value string) {
	entry, ok := r.settings[field]
	if !ok {
		return
	}
	entry.value = value
	entry.editing = true
	r.view.Settings = r.settingValues()
}

// BlurSetting ends the edit; the next snapshot may overwrite the field.
func (r *Reconciler) BlurSetting(field snapshot.SettingField) {
	if entry, ok := r.settings[field]; ok {
		entry.editing = false
		r.view.Settings = r.settingValues()
	}
}

// Settings parses the field values as they would be submitted.
func (r *Reconciler) Settings() snapshot.Settings {
	values := make(map[snapshot.SettingField]string, len(r.settings))
	for field, entry := range r.settings {
		values[field] = entry.value
	}
	return snapshot.ParseSettings(values)
}

// FocusNotes marks the results text as being edited.
func (r *Reconciler) FocusNotes() {
	r.notes.editing = true
}

// SetNotes records typed results text.
func (r *Reconciler) SetNotes(text string) {
	r.notes.value = text
	r.notes.editing = true
	r.view.ResultsText = text
	r.view.Controls.CanExport = !r.view.Controls.OperationActive || strings.TrimSpace(text) != ""
}

// BlurNotes ends the results text edit.
func (r *Reconciler) BlurNotes() {
	r.notes.editing = false
}

// Notes returns the current results text.
func (r *Reconciler) Notes() string {
	return r.notes.value
}

// NotesEditing reports whether the results text has an edit in progress.
func (r *Reconciler) NotesEditing() bool {
	return r.notes.editing
}

// SetFilter changes the segment filter. The next Render applies it.
func (r *Reconciler) SetFilter(term string) {
	r.filter = term
}

// Filter returns the segment filter.
func (r *Reconciler) Filter() string {
	return r.filter
}

// SetLogsLocked holds or releases the log panels.
func (r *Reconciler) SetLogsLocked(locked bool) {
	r.logsLocked = locked
	r.view.LogsLocked = locked
}

// SetHover opens or closes a collapsed panel transiently.
func (r *Reconciler) SetHover(panel Panel, open bool) {
	r.hover[panel] = open
	r.applyLayout(&r.view, r.view.Layout.Prefs)
}

// Hover reports the transient open state of panel.
func (r *Reconciler) Hover(panel Panel) bool {
	return r.hover[panel]
}

// ApplyPrefs shows prefs without waiting for a snapshot, as at startup or
// after an optimistic local change.
func (r *Reconciler) ApplyPrefs(prefs snapshot.UIPrefs) View {
	r.applyLayout(&r.view, prefs)
	return r.view
}

// SetLocalFile shows a file the user picked until the server reports one.
func (r *Reconciler) SetLocalFile(kind FileKind, name string, size int64) {
	r.files[kind] = localFile{name: name, size: size}
}

// Notice overrides the status line until the next Render.
func (r *Reconciler) Notice(text string) View {
	r.view.Controls.Status = text
	r.view.Controls.ShowStatus = text != "" || r.view.Controls.OperationActive
	return r.view
}

// SetProgress shows a local progress value, such as upload progress, until
// the next Render.
func (r *Reconciler) SetProgress(percent float64) View {
	r.view.Progress = snapshot.ClampProgress(snapshot.Num(percent))
	r.view.Controls.ShowProgress = true
	r.view.Controls.ShowStatus = true
	return r.view
}

// Redraw repaints the overlay and refreshes media state without a new
// snapshot, for time updates, resizes and player events.
func (r *Reconciler) Redraw() View {
	if r.overlay != nil {
		r.view.Boxes = r.overlay.Redraw()
	}
	if r.media != nil {
		r.view.MediaKey = r.media.MediaKey()
		r.view.MediaError = r.media.ErrorText()
	}
	return r.view
}

// Reset clears local inputs after a state reset.
func (r *Reconciler) Reset() View {
	r.notes = editable{}
	r.filter = ""
	r.files = [2]localFile{}
	r.view.ResultsText = ""
	r.view.SegmentFilter = ""
	r.view.MediaError = ""
	return r.view
}
