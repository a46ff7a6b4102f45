// Package render is the pure-geometry rendering engine: bitmap primitives
// and the multi-viewport chart layout over a packed 1-bit framebuffer. It
// performs no I/O; pushing frames to the panel is the display package's job.
package render

import "math/bits"

// Color is a 1-bit pixel value. The panel convention is bit 1 = white, so a
// cleared framebuffer is all 0xFF.
type Color uint8

const (
	Black Color = 0
	White Color = 1
)

// Framebuffer is a fixed-size packed 1-bit-per-pixel canvas. Row stride is
// width/8 bytes; the most significant bit of each byte is the leftmost pixel.
type Framebuffer struct {
	width  int
	height int
	stride int
	buf    []byte
}

// NewFramebuffer allocates a white canvas. Width must be a multiple of 8,
// which the boot-time config validates.
func NewFramebuffer(width, height int) *Framebuffer {
	fb := &Framebuffer{
		width:  width,
		height: height,
		stride: width / 8,
		buf:    make([]byte, width / 8 * height),
	}
	fb.Clear(White)
	return fb
}

// Width returns the canvas width in pixels.
func (fb *Framebuffer) Width() int { return fb.width }

// Height returns the canvas height in pixels.
func (fb *Framebuffer) Height() int { return fb.height }

// Stride returns the row stride in bytes.
func (fb *Framebuffer) Stride() int { return fb.stride }

// Bytes returns the packed pixel data. Callers must not mutate it.
func (fb *Framebuffer) Bytes() []byte { return fb.buf }

// Clear fills the whole canvas with one color.
func (fb *Framebuffer) Clear(c Color) {
	fill := byte(0x00)
	if c == White {
		fill = 0xFF
	}
	for i := range fb.buf {
		fb.buf[i] = fill
	}
}

// SetPixel writes one pixel. Out-of-bounds writes are dropped so chart
// geometry never needs edge guards.
func (fb *Framebuffer) SetPixel(x, y int, c Color) {
	if x < 0 || x >= fb.width || y < 0 || y >= fb.height {
		return
	}
	idx := y*fb.stride + x/8
	mask := byte(0x80) >> uint(x%8)
	if c == White {
		fb.buf[idx] |= mask
	} else {
		fb.buf[idx] &^= mask
	}
}

// Pixel reads one pixel; out-of-bounds reads are white.
func (fb *Framebuffer) Pixel(x, y int) Color {
	if x < 0 || x >= fb.width || y < 0 || y >= fb.height {
		return White
	}
	idx := y*fb.stride + x/8
	mask := byte(0x80) >> uint(x%8)
	if fb.buf[idx]&mask != 0 {
		return White
	}
	return Black
}

// Clone returns an independent copy of the framebuffer.
func (fb *Framebuffer) Clone() *Framebuffer {
	dup := &Framebuffer{
		width:  fb.width,
		height: fb.height,
		stride: fb.stride,
		buf:    make([]byte, len(fb.buf)),
	}
	copy(dup.buf, fb.buf)
	return dup
}

// CopyFrom overwrites this framebuffer's pixels with another's. Both must
// share the same geometry.
func (fb *Framebuffer) CopyFrom(other *Framebuffer) {
	copy(fb.buf, other.buf)
}

// DiffBits counts pixels that differ from another framebuffer of the same
// geometry: popcount over the XOR of the two buffers.
func (fb *Framebuffer) DiffBits(other *Framebuffer) int {
	n := 0
	for i := range fb.buf {
		n += bits.OnesCount8(fb.buf[i] ^ other.buf[i])
	}
	return n
}

// PixelCount returns the total number of pixels on the canvas.
func (fb *Framebuffer) PixelCount() int {
	return fb.width * fb.height
}
