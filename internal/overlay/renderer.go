package overlay

import (
	"log/slog"

	"vidash/internal/logging"
	"vidash/internal/media"
	"vidash/internal/snapshot"
)

// Surface receives scaled boxes in surface units.
type Surface interface {
	Resize(width, height int)
	Size() (width, height int)
	Clear()
	DrawBox(x, y, w, h float64, label string)
}

// BoundsSource reports the on-screen box the overlay must cover.
type BoundsSource interface {
	Bounds() media.Bounds
}

// Renderer draws the boxes of the current snapshot.
type Renderer struct {
	surface Surface
	bounds  BoundsSource
	logger  *slog.Logger

	boxes []snapshot.BBox
	drawn int
}

// NewRenderer binds a surface to the element it overlays.
func NewRenderer(surface Surface, bounds BoundsSource, logger *slog.Logger) *Renderer {
	return &Renderer{
		surface: surface,
		bounds:  bounds,
		logger:  logging.NewComponentLogger(logger, "overlay"),
	}
}

// Draw replaces the remembered boxes and paints them. It returns the number
// of boxes drawn.
func (r *Renderer) Draw(boxes []snapshot.BBox) int {
	r.boxes = boxes
	return r.Redraw()
}

// Redraw paints the remembered boxes against the current bounds.
func (r *Renderer) Redraw() int {
	b := r.bounds.Bounds()
	r.surface.Resize(max(1, b.Width), max(1, b.Height))
	r.surface.Clear()

	width, height := r.surface.Size()
	fw, fh := float64(width), float64(height)
	drawn, skipped := 0, 0
	for _, box := range r.boxes {
		x, okX := box.X.Finite()
		y, okY := box.Y.Finite()
		w, okW := box.W.Finite()
		h, okH := box.H.Finite()
		if !okX || !okY || !okW || !okH {
			skipped++
			continue
		}
		r.surface.DrawBox(x*fw, y*fh, w*fw, h*fh, box.Label)
		drawn++
	}
	if skipped > 0 {
		r.logger.Debug("overlay boxes skipped",
			logging.Int("skipped", skipped),
			logging.Int("drawn", drawn))
	}
	r.drawn = drawn
	return drawn
}

// Drawn is the number of boxes painted by the last draw.
func (r *Renderer) Drawn() int {
	return r.drawn
}

// Surface returns the surface the renderer paints on.
func (r *Renderer) Surface() Surface {
	return r.surface
}
