// Package writeback sends local edits to the server through three
// independent debounce lanes.
//
// The ui lane (layout preferences) and the text lane (results text) replace
// their pending patch and restart their timer on every update, so a burst of
// edits produces one write of the final value. The playback lane keeps the
// first position of a window and drops later ones until it fires; pause and
// unload force an immediate write instead. Preference updates are mirrored
// into the local cache synchronously.
//
// Failed writes are logged and never retried; the next snapshot supersedes
// them. A Queue must only be used from its scheduler's loop.
package writeback
