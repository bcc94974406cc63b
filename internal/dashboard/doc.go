// Package dashboard owns the client runtime: the event loop, the single
// current snapshot and the components that consume it.
//
// A Dashboard receives snapshots from the synchronization channel, renders
// them through the reconciler (which drives the media resolver and the
// overlay), sends local edits through the write-back queue and runs the
// fire-and-refresh actions. Every rendered View is handed to the Observer.
//
// Intent methods (TogglePanel, EditNotes, Start, Upload, ...) must run on
// the loop; code on other goroutines uses Submit.
package dashboard
