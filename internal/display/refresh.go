package display

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/Alpha162/armoured-candles/internal/render"
	"github.com/Alpha162/armoured-candles/pkg/logger"
)

// RefreshKind is the waveform chosen for one push.
type RefreshKind int

const (
	RefreshPartial RefreshKind = iota
	RefreshFull
)

func (k RefreshKind) String() string {
	if k == RefreshFull {
		return "full"
	}
	return "partial"
}

// Decision records the outcome of one refresh-policy evaluation.
type Decision struct {
	Kind           RefreshKind
	ChangeFraction float64
}

// Policy decides full versus partial refresh. A push is full when the caller
// forces it, when the partial-run counter has reached the configured cadence,
// or when the fraction of changed pixels against the shadow frame exceeds the
// configured threshold. Every full refresh resets the counter.
type Policy struct {
	cadence   int
	threshold float64
	partials  int
}

// NewPolicy builds a policy with the given full-refresh cadence (partial
// pushes between fulls) and partial change-fraction threshold in [0, 1].
func NewPolicy(cadence int, threshold float64) *Policy {
	if cadence < 1 {
		cadence = 1
	}
	return &Policy{cadence: cadence, threshold: threshold}
}

// Configure replaces the cadence and threshold. The partial-run counter is
// kept so a settings change never defers an already-due full refresh.
func (p *Policy) Configure(cadence int, threshold float64) {
	if cadence < 1 {
		cadence = 1
	}
	p.cadence = cadence
	p.threshold = threshold
}

// Decide evaluates one push against the previous frame and updates the
// partial-run counter. A nil previous frame always means full: the panel
// contents are unknown at boot.
func (p *Policy) Decide(prev, next *render.Framebuffer, force bool) Decision {
	d := Decision{}
	if prev != nil {
		d.ChangeFraction = float64(prev.DiffBits(next)) / float64(next.PixelCount())
	}

	switch {
	case prev == nil, force:
		d.Kind = RefreshFull
	case p.partials >= p.cadence:
		d.Kind = RefreshFull
	case d.ChangeFraction > p.threshold:
		d.Kind = RefreshFull
	}

	if d.Kind == RefreshFull {
		p.partials = 0
	} else {
		p.partials++
	}
	return d
}

// Display serializes frame pushes to one panel and keeps the shadow copy the
// policy diffs against.
type Display struct {
	mu     sync.Mutex
	drv    Driver
	policy *Policy
	shadow *render.Framebuffer
	log    *logrus.Entry
}

// New wires a driver to a refresh policy. Init is the caller's job.
func New(drv Driver, policy *Policy, log *logrus.Logger) *Display {
	return &Display{
		drv:    drv,
		policy: policy,
		log:    logger.WithComponent(log, "display"),
	}
}

// Configure forwards new refresh settings to the policy.
func (d *Display) Configure(cadence int, threshold float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.policy.Configure(cadence, threshold)
}

// Push sends one frame to the panel using the waveform the policy picks. The
// shadow frame is only replaced after the driver call succeeds, so a failed
// push is retried against the same baseline next cycle.
func (d *Display) Push(fb *render.Framebuffer, force bool) (Decision, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	dec := d.policy.Decide(d.shadow, fb, force)
	d.log.WithFields(logrus.Fields{
		"kind":            dec.Kind.String(),
		"change_fraction": dec.ChangeFraction,
		"forced":          force,
	}).Debug("Pushing frame")

	var err error
	if dec.Kind == RefreshFull {
		err = d.drv.DisplayFull(fb)
	} else {
		// a partial decision implies a non-nil shadow
		err = d.drv.DisplayPartial(d.shadow, fb)
	}
	if err != nil {
		return dec, err
	}

	if d.shadow == nil {
		d.shadow = fb.Clone()
	} else {
		d.shadow.CopyFrom(fb)
	}
	return dec, nil
}

// Snapshot returns a copy of the last frame pushed to the panel, or nil
// before the first push.
func (d *Display) Snapshot() *render.Framebuffer {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.shadow == nil {
		return nil
	}
	return d.shadow.Clone()
}

// Sleep forwards to the driver.
func (d *Display) Sleep() error {
	return d.drv.Sleep()
}
