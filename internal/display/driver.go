// Package display owns the panel lifecycle: the driver contract for pushing
// packed frames to the e-paper hardware and the policy deciding when a cycle
// gets the slow flicker-free full refresh versus the fast partial one.
package display

import "github.com/Alpha162/armoured-candles/internal/render"

// Driver abstracts the physical panel.
type Driver interface {
	// Init powers the panel controller and loads the full-refresh LUTs.
	Init() error

	// DisplayFull pushes a frame with the full waveform. Slow, visibly
	// flashes, clears ghosting.
	DisplayFull(fb *render.Framebuffer) error

	// DisplayPartial pushes a frame with the partial waveform, which needs
	// the previously displayed frame to derive the changed regions. Fast and
	// flicker-free but accumulates ghosting over successive updates.
	DisplayPartial(prev, next *render.Framebuffer) error

	// Sleep puts the panel into deep sleep between cycles. Leaving an
	// e-paper panel powered degrades it.
	Sleep() error
}
