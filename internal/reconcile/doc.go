// Package reconcile turns a state snapshot into the complete dashboard View.
//
// A Reconciler applies a snapshot in a fixed order: progress, controls,
// layout, settings fields, status and timing text, media source, segments,
// overlay, logs, results text. Fields the user is editing keep their local
// value, the log panels keep their text while a selection lock is held, and
// rendering the same snapshot twice yields an equal View without reloading
// media.
package reconcile
