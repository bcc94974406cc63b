package overlay

import (
	"math"
	"strings"

	"github.com/mattn/go-runewidth"
)

const (
	cellEmpty = ' '
	cellWide  = rune(0)
	cellSolid = '▪'
)

// GridSurface is a Surface of character cells. One unit is one cell.
type GridSurface struct {
	width  int
	height int
	cells  [][]rune
}

// NewGridSurface allocates an empty grid.
func NewGridSurface(width, height int) *GridSurface {
	g := &GridSurface{}
	g.Resize(width, height)
	return g
}

func (g *GridSurface) Resize(width, height int) {
	width, height = max(1, width), max(1, height)
	if width == g.width && height == g.height {
		return
	}
	g.width, g.height = width, height
	g.cells = make([][]rune, height)
	for row := range g.cells {
		g.cells[row] = make([]rune, width)
	}
	g.Clear()
}

func (g *GridSurface) Size() (int, int) {
	return g.width, g.height
}

func (g *GridSurface) Clear() {
	for _, row := range g.cells {
		for col := range row {
			row[col] = cellEmpty
		}
	}
}

// DrawBox outlines the cells covered by the box and writes the label on the
// first inner row. Boxes entirely off the grid are ignored.
func (g *GridSurface) DrawBox(x, y, w, h float64, label string) {
	left, top := cellFloor(x), cellFloor(y)
	right, bottom := cellCeil(x+w)-1, cellCeil(y+h)-1
	right, bottom = max(right, left), max(bottom, top)
	if right < 0 || bottom < 0 || left >= g.width || top >= g.height {
		return
	}

	if right == left || bottom == top {
		for row := max(top, 0); row <= min(bottom, g.height-1); row++ {
			for col := max(left, 0); col <= min(right, g.width-1); col++ {
				g.set(col, row, cellSolid)
			}
		}
		return
	}

	for col := left + 1; col < right; col++ {
		g.set(col, top, '─')
		g.set(col, bottom, '─')
	}
	for row := top + 1; row < bottom; row++ {
		g.set(left, row, '│')
		g.set(right, row, '│')
	}
	g.set(left, top, '┌')
	g.set(right, top, '┐')
	g.set(left, bottom, '└')
	g.set(right, bottom, '┘')

	if label == "" {
		return
	}
	labelRow := top + 1
	if labelRow >= bottom {
		labelRow = top
	}
	g.writeText(left+1, labelRow, label, right-left-1)
}

func (g *GridSurface) writeText(col, row int, text string, width int) {
	if width <= 0 {
		return
	}
	text = runewidth.Truncate(text, width, "")
	for _, r := range text {
		rw := runewidth.RuneWidth(r)
		if rw == 0 {
			continue
		}
		g.set(col, row, r)
		if rw == 2 {
			g.set(col+1, row, cellWide)
		}
		col += rw
	}
}

func (g *GridSurface) set(col, row int, r rune) {
	if row < 0 || row >= g.height || col < 0 || col >= g.width {
		return
	}
	g.cells[row][col] = r
}

// Cell returns the rune at col,row, or a space outside the grid.
func (g *GridSurface) Cell(col, row int) rune {
	if row < 0 || row >= g.height || col < 0 || col >= g.width {
		return cellEmpty
	}
	return g.cells[row][col]
}

// Lines renders the grid one string per row with trailing spaces trimmed.
func (g *GridSurface) Lines() []string {
	lines := make([]string, 0, g.height)
	var b strings.Builder
	for _, row := range g.cells {
		b.Reset()
		for _, r := range row {
			if r == cellWide {
				continue
			}
			b.WriteRune(r)
		}
		lines = append(lines, strings.TrimRight(b.String(), " "))
	}
	return lines
}

// String joins Lines with newlines.
func (g *GridSurface) String() string {
	return strings.Join(g.Lines(), "\n")
}

func cellFloor(v float64) int {
	return int(math.Floor(v))
}

func cellCeil(v float64) int {
	return int(math.Ceil(v))
}
