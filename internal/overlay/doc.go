// Package overlay projects normalized detection boxes onto the surface that
// sits over the video.
//
// Renderer resizes its Surface to the player's on-screen box on every draw
// and scales each box with x and w by the width and y and h by the height.
// Boxes with a missing or non-finite coordinate are skipped. Draws are
// triggered by the caller (snapshot render, time update, resize); the
// renderer never redraws on its own.
//
// GridSurface is a character-cell Surface for terminals.
package overlay
