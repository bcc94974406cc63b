// Package main hosts the vidash CLI entrypoint and command graph.
//
// One-shot commands (state, start, upload, notes export and friends) talk to
// the dashboard server through internal/api and render results with the same
// reconciler the long-running runtime uses. The watch command runs the full
// runtime: synchronization, write-back, media resolution and the overlay
// surface, driven by a line-oriented console on stdin.
//
// Keep this package thin. Behavior belongs in the internal packages; commands
// only parse flags, wire collaborators and print.
package main
