package display

import (
	"errors"
	"os"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alpha162/armoured-candles/internal/render"
)

type recordingDriver struct {
	fulls    int
	partials int
	failNext error
}

func (r *recordingDriver) Init() error { return nil }

func (r *recordingDriver) DisplayFull(fb *render.Framebuffer) error {
	if r.failNext != nil {
		err := r.failNext
		r.failNext = nil
		return err
	}
	r.fulls++
	return nil
}

func (r *recordingDriver) DisplayPartial(prev, next *render.Framebuffer) error {
	if r.failNext != nil {
		err := r.failNext
		r.failNext = nil
		return err
	}
	r.partials++
	return nil
}

func (r *recordingDriver) Sleep() error { return nil }

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func flipBits(fb *render.Framebuffer, k int) {
	for i := 0; i < k; i++ {
		x := i % fb.Width()
		y := i / fb.Width()
		if fb.Pixel(x, y) == render.White {
			fb.SetPixel(x, y, render.Black)
		} else {
			fb.SetPixel(x, y, render.White)
		}
	}
}

func TestPolicyChangeFraction(t *testing.T) {
	prev := render.NewFramebuffer(64, 32)
	for _, k := range []int{0, 1, 17, 64 * 32} {
		next := prev.Clone()
		flipBits(next, k)

		p := NewPolicy(1000, 1.1) // neither cadence nor threshold can trigger
		dec := p.Decide(prev, next, false)
		assert.InDelta(t, float64(k)/float64(64*32), dec.ChangeFraction, 1e-12, "k=%d", k)
	}
}

func TestPolicyFullTriggers(t *testing.T) {
	prev := render.NewFramebuffer(64, 32)
	same := prev.Clone()

	t.Run("first push is full", func(t *testing.T) {
		p := NewPolicy(10, 0.5)
		dec := p.Decide(nil, same, false)
		assert.Equal(t, RefreshFull, dec.Kind)
	})

	t.Run("force", func(t *testing.T) {
		p := NewPolicy(10, 0.5)
		dec := p.Decide(prev, same, true)
		assert.Equal(t, RefreshFull, dec.Kind)
	})

	t.Run("threshold exceeded", func(t *testing.T) {
		p := NewPolicy(10, 0.10)
		next := prev.Clone()
		flipBits(next, 64*32/5) // 20% changed
		dec := p.Decide(prev, next, false)
		assert.Equal(t, RefreshFull, dec.Kind)
	})

	t.Run("threshold boundary stays partial", func(t *testing.T) {
		// exactly at the threshold is not "exceeds"
		p := NewPolicy(10, 0.25)
		next := prev.Clone()
		flipBits(next, 64*32/4)
		dec := p.Decide(prev, next, false)
		assert.Equal(t, RefreshPartial, dec.Kind)
	})
}

func TestPolicyCadence(t *testing.T) {
	prev := render.NewFramebuffer(64, 32)
	next := prev.Clone()
	flipBits(next, 1)

	p := NewPolicy(3, 0.5)
	kinds := make([]RefreshKind, 0, 8)
	for i := 0; i < 8; i++ {
		kinds = append(kinds, p.Decide(prev, next, false).Kind)
	}
	// three partials between fulls, counter resets after each full
	assert.Equal(t, []RefreshKind{
		RefreshPartial, RefreshPartial, RefreshPartial, RefreshFull,
		RefreshPartial, RefreshPartial, RefreshPartial, RefreshFull,
	}, kinds)
}

func TestPolicyForceResetsCadence(t *testing.T) {
	prev := render.NewFramebuffer(64, 32)
	next := prev.Clone()
	flipBits(next, 1)

	p := NewPolicy(3, 0.5)
	assert.Equal(t, RefreshPartial, p.Decide(prev, next, false).Kind)
	assert.Equal(t, RefreshPartial, p.Decide(prev, next, false).Kind)
	assert.Equal(t, RefreshFull, p.Decide(prev, next, true).Kind)
	// counter restarted by the forced full
	assert.Equal(t, RefreshPartial, p.Decide(prev, next, false).Kind)
}

func TestDisplayPushUpdatesShadow(t *testing.T) {
	drv := &recordingDriver{}
	d := New(drv, NewPolicy(100, 0.9), testLogger())

	fb := render.NewFramebuffer(64, 32)
	dec, err := d.Push(fb, false)
	require.NoError(t, err)
	assert.Equal(t, RefreshFull, dec.Kind, "unknown panel contents push full")
	assert.Equal(t, 1, drv.fulls)

	// unchanged frame is a partial with zero change fraction
	dec, err = d.Push(fb.Clone(), false)
	require.NoError(t, err)
	assert.Equal(t, RefreshPartial, dec.Kind)
	assert.Zero(t, dec.ChangeFraction)

	snap := d.Snapshot()
	require.NotNil(t, snap)
	assert.Zero(t, snap.DiffBits(fb))
}

func TestDisplayFailedPushKeepsShadow(t *testing.T) {
	drv := &recordingDriver{}
	d := New(drv, NewPolicy(100, 0.9), testLogger())

	base := render.NewFramebuffer(64, 32)
	_, err := d.Push(base, false)
	require.NoError(t, err)

	changed := base.Clone()
	flipBits(changed, 5)
	drv.failNext = errors.New("spi timeout")
	_, err = d.Push(changed, false)
	require.Error(t, err)

	// the shadow still holds the last successful frame
	snap := d.Snapshot()
	assert.Zero(t, snap.DiffBits(base))

	// retry diffs against the same baseline and succeeds
	dec, err := d.Push(changed, false)
	require.NoError(t, err)
	assert.InDelta(t, 5.0/float64(64*32), dec.ChangeFraction, 1e-12)
	assert.Zero(t, d.Snapshot().DiffBits(changed))
}

func TestSimDriverDumpsFrames(t *testing.T) {
	dir := t.TempDir()
	drv := NewSimDriver(dir, testLogger())
	require.NoError(t, drv.Init())

	fb := render.NewFramebuffer(32, 8)
	require.NoError(t, drv.DisplayFull(fb))
	require.NoError(t, drv.DisplayPartial(fb, fb))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "frame_0001_full.bmp", entries[0].Name())
	assert.Equal(t, "frame_0002_partial.bmp", entries[1].Name())
}
