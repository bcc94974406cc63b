// Package snapshot models the server-authoritative dashboard state object.
//
// A Snapshot is decoded from the JSON payload served by GET /state and pushed
// over /state/stream. Snapshots are treated as immutable values: every update
// replaces the current one wholesale, and optimistic client edits produce a new
// value through WithPatch instead of mutating the received one. Optional
// sub-objects (ui, settings, playback) and loosely typed numbers are kept in
// presence-aware form so downstream code never assumes a field exists; the
// UIPrefs, Settings and MediaKey helpers fill defaults at the boundary.
package snapshot
