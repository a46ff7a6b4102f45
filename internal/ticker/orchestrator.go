// Package ticker is the cycle orchestrator: every refresh interval it runs
// fetch, indicators, commit, render, and physical push for each active chart,
// and feeds the aggregate outcome into the network resilience machinery.
package ticker

import (
	"context"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"

	"github.com/Alpha162/armoured-candles/internal/display"
	"github.com/Alpha162/armoured-candles/internal/exchange"
	"github.com/Alpha162/armoured-candles/internal/indicator"
	"github.com/Alpha162/armoured-candles/internal/metrics"
	"github.com/Alpha162/armoured-candles/internal/netwatch"
	"github.com/Alpha162/armoured-candles/internal/render"
	"github.com/Alpha162/armoured-candles/pkg/logger"
	"github.com/Alpha162/armoured-candles/pkg/models"
)

// clientFactory selects the adapter for an exchange. Tests substitute fakes.
type clientFactory func(models.ExchangeID) (exchange.Client, error)

// Orchestrator owns the chart-state array and the framebuffer. Cycle work
// runs on its Run goroutine; the firmware-update screens drawn from the API
// goroutine hold cycleMu, which excludes any in-flight cycle. Everything else
// only reads snapshots or sends signals.
type Orchestrator struct {
	display *display.Display
	watcher *netwatch.Watcher
	met     *metrics.Metrics
	clk     clock.Clock
	log     *logrus.Entry

	clientFor clientFactory

	// cycleMu guards the framebuffer: held for the whole of RunCycle and
	// whenever an update screen is drawn, so a firmware upload never touches
	// the buffer while a cycle that started earlier is still rendering.
	cycleMu sync.Mutex
	fb      *render.Framebuffer

	mu       sync.RWMutex
	settings models.Settings
	charts   [models.MaxCharts]chartState

	updateActive   bool
	updateProgress int
	updateFailed   bool

	forceCh   chan struct{}
	startedAt time.Time
}

// New wires the orchestrator. Settings must be applied before Run starts
// cycling.
func New(httpClient *http.Client, disp *display.Display, watcher *netwatch.Watcher, met *metrics.Metrics, clk clock.Clock, width, height int, log *logrus.Logger) *Orchestrator {
	o := &Orchestrator{
		display: disp,
		watcher: watcher,
		met:     met,
		clk:     clk,
		log:     logger.WithComponent(log, "ticker"),
		clientFor: func(id models.ExchangeID) (exchange.Client, error) {
			return exchange.ForExchange(id, httpClient, log)
		},
		fb:        render.NewFramebuffer(width, height),
		settings:  models.DefaultSettings(),
		forceCh:   make(chan struct{}, 1),
		startedAt: clk.Now(),
	}
	watcher.OnForceRefresh(o.ForceRefresh)
	return o
}

// ApplySettings installs new settings and pushes the derived values into the
// display policy and the radio credentials. Takes effect from the next cycle.
func (o *Orchestrator) ApplySettings(settings models.Settings) {
	o.mu.Lock()
	o.settings = settings
	o.mu.Unlock()

	o.display.Configure(settings.FullRefreshEvery, settings.PartialThreshold)
	// an empty SSID means "leave Wi-Fi alone"; wiping working credentials
	// would strand a device that was configured out of band
	if settings.WifiSSID != "" {
		o.watcher.SetCredentials(settings.WifiSSID, settings.WifiPass)
	}
}

// Settings returns the currently applied settings.
func (o *Orchestrator) Settings() models.Settings {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.settings
}

// ForceRefresh schedules an immediate cycle. Coalesces with a pending signal.
func (o *Orchestrator) ForceRefresh() {
	select {
	case o.forceCh <- struct{}{}:
	default:
	}
}

// Run executes cycles until the context is cancelled. The first cycle fires
// immediately so the panel shows data as soon after boot as possible.
func (o *Orchestrator) Run(ctx context.Context) {
	o.RunCycle(ctx, true)

	timer := o.clk.Timer(o.interval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-o.forceCh:
			o.RunCycle(ctx, true)
		case <-timer.C:
			o.RunCycle(ctx, false)
		}
		timer.Reset(o.interval())
	}
}

func (o *Orchestrator) interval() time.Duration {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return time.Duration(o.settings.RefreshMinutes) * time.Minute
}

// RunCycle performs one full cycle: fetch each active chart strictly in slot
// order with atomic per-slot commit, then render and push if anything
// succeeded. During a firmware upload cycles are skipped entirely.
func (o *Orchestrator) RunCycle(ctx context.Context, force bool) {
	o.cycleMu.Lock()
	defer o.cycleMu.Unlock()

	o.mu.RLock()
	suspended := o.updateActive
	settings := o.settings
	o.mu.RUnlock()
	if suspended {
		o.log.Debug("Cycle skipped, firmware update in progress")
		return
	}

	o.met.CyclesTotal.Inc()
	succeeded := 0
	for i := 0; i < settings.ActiveCharts; i++ {
		if err := o.updateChart(ctx, i, settings.Charts[i]); err != nil {
			o.log.WithFields(logrus.Fields{"slot": i}).WithError(err).Warn("Chart update failed")
		} else {
			succeeded++
		}
	}

	o.watcher.ReportFetchResult(ctx, succeeded > 0)

	if succeeded == 0 {
		o.met.CycleFailures.Inc()
		o.maybeRenderStatusScreen()
		return
	}

	o.renderAndPush(settings, force)
}

// updateChart runs fetch and indicators for one slot and commits the result
// as a whole. On any error the slot's previous committed state is preserved.
func (o *Orchestrator) updateChart(ctx context.Context, slot int, cfg models.ChartConfig) error {
	client, err := o.clientFor(cfg.Exchange)
	if err != nil {
		o.recordChartError(slot, err)
		return err
	}

	effective := cfg.EffectiveCandleCount()
	now := uint64(o.clk.Now().UnixMilli())
	span := models.IntervalMillis(cfg.Interval) * uint64(effective+exchange.OverFetchMargin)
	window := models.TimeRange{End: now}
	if span < now {
		window.Start = now - span
	}

	started := o.clk.Now()
	candles, err := client.Fetch(ctx, cfg, window)
	o.met.FetchDuration.WithLabelValues(cfg.Exchange.String()).Observe(o.clk.Since(started).Seconds())
	if err != nil {
		o.met.FetchesTotal.WithLabelValues(cfg.Exchange.String(), "error").Inc()
		if ferr, ok := err.(*exchange.FetchError); ok {
			o.met.FetchErrors.WithLabelValues(cfg.Exchange.String(), ferr.Op).Inc()
		}
		o.recordChartError(slot, err)
		return err
	}
	o.met.FetchesTotal.WithLabelValues(cfg.Exchange.String(), "success").Inc()

	if cfg.HeikinAshi {
		indicator.HeikinAshi(candles)
	}

	data := render.ChartData{
		Config:        cfg,
		Candles:       candles,
		EMAFast:       indicator.EMA(candles, cfg.EMAFast),
		EMASlow:       indicator.EMA(candles, cfg.EMASlow),
		RSI:           indicator.RSI(candles, cfg.RSIPeriod),
		LastPrice:     candles[len(candles)-1].Close,
		PercentChange: models.PercentChange(candles),
		FetchedAt:     o.clk.Now(),
	}

	o.mu.Lock()
	o.charts[slot] = chartState{data: data, haveNew: true}
	o.mu.Unlock()
	return nil
}

func (o *Orchestrator) recordChartError(slot int, err error) {
	o.mu.Lock()
	o.charts[slot].lastErr = err
	o.mu.Unlock()
}

// renderAndPush draws every active chart into the framebuffer and hands it to
// the refresh policy. Slots that never committed draw the no-data placeholder.
func (o *Orchestrator) renderAndPush(settings models.Settings, force bool) {
	o.fb.Clear(render.White)

	viewports := render.Layout(settings.ActiveCharts, o.fb.Width(), o.fb.Height())
	o.mu.RLock()
	for i, vp := range viewports {
		render.DrawChart(o.fb, vp, o.charts[i].data, settings.TimezoneOffsetMinutes)
	}
	o.mu.RUnlock()
	render.DrawDividers(o.fb, settings.ActiveCharts)

	dec, err := o.display.Push(o.fb, force)
	if err != nil {
		o.log.WithError(err).Error("Display push failed")
		return
	}
	o.met.RefreshesTotal.WithLabelValues(dec.Kind.String()).Inc()
	o.met.ChangeFraction.Set(dec.ChangeFraction)
}

// maybeRenderStatusScreen shows the connection status on the panel once the
// device has dropped to access-point fallback, so a user standing in front of
// the display learns where to reach the setup UI.
func (o *Orchestrator) maybeRenderStatusScreen() {
	st := o.watcher.Status()
	if st.State != netwatch.StateAccessPointFallback && st.State != netwatch.StateDisconnected {
		return
	}
	o.met.ConnectionState.Set(float64(st.State))

	render.DrawStatus(o.fb, render.StatusInfo{
		Mode:     st.Mode,
		Failures: st.FetchFailures,
		APAddr:   st.AccessPointAddr,
	})
	if _, err := o.display.Push(o.fb, true); err != nil {
		o.log.WithError(err).Error("Status screen push failed")
	}
}

// BeginUpdate suspends cycle work for a firmware upload. It blocks until any
// in-flight cycle has finished with the framebuffer; from then on the upload
// owns the panel until EndUpdate.
func (o *Orchestrator) BeginUpdate() {
	o.cycleMu.Lock()
	defer o.cycleMu.Unlock()

	o.mu.Lock()
	o.updateActive = true
	o.updateProgress = 0
	o.updateFailed = false
	o.mu.Unlock()
}

// ReportUpdateProgress renders upload progress straight onto the panel; the
// requesting browser may lose connectivity mid-flash.
func (o *Orchestrator) ReportUpdateProgress(percent int) {
	o.cycleMu.Lock()
	defer o.cycleMu.Unlock()

	o.mu.Lock()
	o.updateProgress = percent
	o.mu.Unlock()

	render.DrawUpdateProgress(o.fb, percent, false)
	if _, err := o.display.Push(o.fb, false); err != nil {
		o.log.WithError(err).Warn("Update progress push failed")
	}
}

// EndUpdate resumes cycle work. failed leaves the failure screen on the panel
// until the next successful cycle replaces it.
func (o *Orchestrator) EndUpdate(failed bool) {
	o.cycleMu.Lock()
	if failed {
		render.DrawUpdateProgress(o.fb, 0, true)
		if _, err := o.display.Push(o.fb, true); err != nil {
			o.log.WithError(err).Warn("Update failure push failed")
		}
	}
	o.cycleMu.Unlock()

	o.mu.Lock()
	o.updateActive = false
	o.updateFailed = failed
	o.mu.Unlock()

	if !failed {
		o.ForceRefresh()
	}
}

// Status assembles the API snapshot.
func (o *Orchestrator) Status() Snapshot {
	o.mu.RLock()
	settings := o.settings
	charts := make([]ChartStatus, settings.ActiveCharts)
	for i := range charts {
		st := o.charts[i]
		cs := ChartStatus{Slot: i, Config: settings.Charts[i]}
		if st.haveNew {
			cs.LastPrice = st.data.LastPrice
			cs.PercentChange = st.data.PercentChange
			cs.FetchedAt = st.data.FetchedAt
		}
		if st.lastErr != nil {
			cs.LastError = st.lastErr.Error()
		}
		charts[i] = cs
	}
	updateActive := o.updateActive
	updateProgress := o.updateProgress
	updateFailed := o.updateFailed
	o.mu.RUnlock()

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	net := o.watcher.Status()
	return Snapshot{
		Charts:           charts,
		ConnectionMode:   net.Mode,
		FetchFailures:    net.FetchFailures,
		UptimeSeconds:    int64(o.clk.Since(o.startedAt).Seconds()),
		FreeMemoryBytes:  mem.Sys - mem.HeapInuse,
		UpdateInProgress: updateActive,
		UpdateProgress:   updateProgress,
		UpdateFailed:     updateFailed,
	}
}
