package render

// Viewport is a pixel rectangle a chart renders into. Viewports are computed
// per frame from the active chart count; they are never persisted.
type Viewport struct {
	X int
	Y int
	W int
	H int
}

// SizeClass groups viewports into the three rendering tiers. Smaller tiers
// progressively drop decorations to stay legible.
type SizeClass int

const (
	SizeFull SizeClass = iota
	SizeHalf
	SizeQuarter
)

// dividerPx is the gap reserved between adjacent viewports.
const dividerPx = 2

// Layout computes non-overlapping viewports over the canvas for n active
// charts: one full-screen viewport, two stacked halves, or a 2x2 grid (the
// fourth cell left empty for n=3).
func Layout(n, width, height int) []Viewport {
	switch n {
	case 1:
		return []Viewport{{0, 0, width, height}}
	case 2:
		topH := (height - dividerPx) / 2
		return []Viewport{
			{0, 0, width, topH},
			{0, topH + dividerPx, width, height - topH - dividerPx},
		}
	default:
		leftW := (width - dividerPx) / 2
		topH := (height - dividerPx) / 2
		cells := []Viewport{
			{0, 0, leftW, topH},
			{leftW + dividerPx, 0, width - leftW - dividerPx, topH},
			{0, topH + dividerPx, leftW, height - topH - dividerPx},
			{leftW + dividerPx, topH + dividerPx, width - leftW - dividerPx, height - topH - dividerPx},
		}
		if n == 3 {
			// third quadrant stays empty
			return cells[:3]
		}
		return cells
	}
}

// DrawDividers draws the separator lines between occupied cells.
func DrawDividers(fb *Framebuffer, n int) {
	w, h := fb.Width(), fb.Height()
	switch n {
	case 2:
		y := (h-dividerPx)/2 + dividerPx/2
		fb.HLine(0, y, w, Black, Solid)
	case 3, 4:
		y := (h-dividerPx)/2 + dividerPx/2
		x := (w-dividerPx)/2 + dividerPx/2
		fb.HLine(0, y, w, Black, Solid)
		fb.VLine(x, 0, h, Black, Solid)
	}
}

// Class derives the size tier from the viewport dimensions relative to the
// canvas.
func (v Viewport) Class(canvasW, canvasH int) SizeClass {
	if v.W <= canvasW/2 {
		return SizeQuarter
	}
	if v.H <= canvasH/2 {
		return SizeHalf
	}
	return SizeFull
}
