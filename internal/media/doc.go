// Package media picks the playable source for the current video and
// recovers from load failures.
//
// Resolver prefers the converted asset over the raw upload, swaps the
// player's source only when the resolved URL actually changes, keeps the
// player muted until the user unmutes, restores the stored playback position
// when it belongs to the same asset (the MediaKey), and fails over from a
// broken converted asset to the raw one exactly once.
//
// Player abstracts the media element. HeadlessPlayer is the terminal
// implementation: it "loads" a source by probing its first bytes and
// sniffing the container, then advances a wall-clock position while
// playing.
package media
