package render

// LineStyle selects the stippling of horizontal and vertical lines.
type LineStyle int

const (
	Solid LineStyle = iota
	Dashed
	Dotted
)

// styleOn reports whether the i-th pixel along a stippled line is drawn.
func styleOn(style LineStyle, i int) bool {
	switch style {
	case Dashed:
		return i%6 < 4
	case Dotted:
		return i%3 == 0
	default:
		return true
	}
}

// HLine draws a horizontal line of length w starting at (x, y).
func (fb *Framebuffer) HLine(x, y, w int, c Color, style LineStyle) {
	for i := 0; i < w; i++ {
		if styleOn(style, i) {
			fb.SetPixel(x+i, y, c)
		}
	}
}

// VLine draws a vertical line of length h starting at (x, y).
func (fb *Framebuffer) VLine(x, y, h int, c Color, style LineStyle) {
	for i := 0; i < h; i++ {
		if styleOn(style, i) {
			fb.SetPixel(x, y+i, c)
		}
	}
}

// FillRect fills the rectangle with origin (x, y).
func (fb *Framebuffer) FillRect(x, y, w, h int, c Color) {
	for row := 0; row < h; row++ {
		fb.HLine(x, y+row, w, c, Solid)
	}
}

// Rect outlines the rectangle with origin (x, y).
func (fb *Framebuffer) Rect(x, y, w, h int, c Color) {
	if w <= 0 || h <= 0 {
		return
	}
	fb.HLine(x, y, w, c, Solid)
	fb.HLine(x, y+h-1, w, c, Solid)
	fb.VLine(x, y, h, c, Solid)
	fb.VLine(x+w-1, y, h, c, Solid)
}

// Line draws an arbitrary line with Bresenham's algorithm, optionally dashed.
func (fb *Framebuffer) Line(x0, y0, x1, y1 int, c Color, dashed bool) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx := 1
	if x0 > x1 {
		sx = -1
	}
	sy := 1
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy

	for i := 0; ; i++ {
		if !dashed || i%6 < 4 {
			fb.SetPixel(x0, y0, c)
		}
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
