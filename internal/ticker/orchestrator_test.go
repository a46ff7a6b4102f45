package ticker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alpha162/armoured-candles/internal/display"
	"github.com/Alpha162/armoured-candles/internal/exchange"
	"github.com/Alpha162/armoured-candles/internal/metrics"
	"github.com/Alpha162/armoured-candles/internal/netwatch"
	"github.com/Alpha162/armoured-candles/internal/render"
	"github.com/Alpha162/armoured-candles/pkg/config"
	"github.com/Alpha162/armoured-candles/pkg/models"
)

type fakeClient struct {
	mu      sync.Mutex
	err     error
	price   float64
	fetches []int // slot order recorded via price encoding is overkill; count calls
}

func (f *fakeClient) Fetch(ctx context.Context, cfg models.ChartConfig, window models.TimeRange) ([]models.Candle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches = append(f.fetches, 1)
	if f.err != nil {
		return nil, f.err
	}
	candles := make([]models.Candle, 20)
	for i := range candles {
		candles[i] = models.Candle{
			Open: f.price, High: f.price + 1, Low: f.price - 1, Close: f.price,
			Volume:    1,
			Timestamp: uint64(i+1) * 3600000,
		}
	}
	return candles, nil
}

func (f *fakeClient) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.fetches)
}

type panelDriver struct {
	mu       sync.Mutex
	fulls    int
	partials int
}

func (p *panelDriver) Init() error { return nil }
func (p *panelDriver) DisplayFull(fb *render.Framebuffer) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fulls++
	return nil
}
func (p *panelDriver) DisplayPartial(prev, next *render.Framebuffer) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.partials++
	return nil
}
func (p *panelDriver) Sleep() error { return nil }

func (p *panelDriver) pushes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fulls + p.partials
}

type stubRadio struct {
	mu     sync.Mutex
	linkUp bool
	resets int
}

func (r *stubRadio) Connect(ctx context.Context, ssid, password string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.linkUp = true
	return nil
}
func (r *stubRadio) Connected(ctx context.Context) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.linkUp, nil
}
func (r *stubRadio) Reset(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resets++
	return nil
}
func (r *stubRadio) StartAccessPoint(ctx context.Context, ssid, password string) error { return nil }
func (r *stubRadio) StopAccessPoint(ctx context.Context) error                         { return nil }

func (r *stubRadio) connected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.linkUp
}

func (r *stubRadio) dropLink() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.linkUp = false
}

type harness struct {
	orch    *Orchestrator
	clients map[models.ExchangeID]*fakeClient
	driver  *panelDriver
	radio   *stubRadio
	watcher *netwatch.Watcher
	clk     *clock.Mock
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	clk := clock.NewMock()
	clk.Set(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))

	radio := &stubRadio{linkUp: true}
	netCfg := config.NetworkConfig{
		ConnectBudget:     time.Second,
		HealthInterval:    15 * time.Second,
		FallbackRetry:     time.Minute,
		GhostThreshold:    3,
		AccessPointSSID:   "setup",
		AccessPointAddr:   "192.168.4.1",
		ReconnectAttempts: 1,
	}
	watcher := netwatch.NewWatcher(radio, netCfg, clk, log)
	watcher.SetCredentials("ssid", "pass")

	driver := &panelDriver{}
	disp := display.New(driver, display.NewPolicy(10, 0.35), log)

	h := &harness{
		clients: map[models.ExchangeID]*fakeClient{},
		driver:  driver,
		radio:   radio,
		watcher: watcher,
		clk:     clk,
	}
	for _, id := range []models.ExchangeID{
		models.ExchangeCryptoCom, models.ExchangeBinance, models.ExchangeBybit,
		models.ExchangeKraken, models.ExchangePoloniex,
	} {
		h.clients[id] = &fakeClient{price: 100}
	}

	h.orch = New(nil, disp, watcher, metrics.New(), clk, 800, 480, log)
	h.orch.clientFor = func(id models.ExchangeID) (exchange.Client, error) {
		return h.clients[id], nil
	}

	// bring the watcher to its steady connected state
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go watcher.Run(ctx)
	require.Eventually(t, func() bool {
		return watcher.State() == netwatch.StateConnectedStation
	}, 2*time.Second, 5*time.Millisecond)
	return h
}

// testSettings configures n active charts, each on a different exchange so
// slot outcomes can be controlled independently. Wi-Fi credentials match the
// ones the harness boots the watcher with.
func testSettings(n int) models.Settings {
	s := models.DefaultSettings()
	s.ActiveCharts = n
	s.WifiSSID = "ssid"
	s.WifiPass = "pass"
	ids := []models.ExchangeID{
		models.ExchangeBinance, models.ExchangeKraken,
		models.ExchangePoloniex, models.ExchangeBybit,
	}
	for i := range s.Charts {
		s.Charts[i].Exchange = ids[i]
	}
	return s
}

func TestCycleFetchesEveryActiveChartAndPushes(t *testing.T) {
	h := newHarness(t)
	h.orch.ApplySettings(testSettings(3))

	h.orch.RunCycle(context.Background(), true)

	assert.Equal(t, 1, h.clients[models.ExchangeBinance].calls())
	assert.Equal(t, 1, h.clients[models.ExchangeKraken].calls())
	assert.Equal(t, 1, h.clients[models.ExchangePoloniex].calls())
	assert.Zero(t, h.clients[models.ExchangeBybit].calls(), "inactive slot must not fetch")
	assert.Equal(t, 1, h.driver.fulls, "forced cycle pushes a full refresh")

	status := h.orch.Status()
	require.Len(t, status.Charts, 3)
	assert.Equal(t, 100.0, status.Charts[0].LastPrice)
	assert.Equal(t, "station", status.ConnectionMode)
}

func TestFailedChartKeepsSiblingsAndPriorState(t *testing.T) {
	h := newHarness(t)
	h.orch.ApplySettings(testSettings(2))

	h.orch.RunCycle(context.Background(), true)
	require.Equal(t, 100.0, h.orch.Status().Charts[1].LastPrice)

	// slot 1's exchange starts failing while slot 0 moves
	h.clients[models.ExchangeKraken].err = errors.New("503")
	h.clients[models.ExchangeBinance].price = 120
	h.orch.RunCycle(context.Background(), false)

	status := h.orch.Status()
	assert.Equal(t, 120.0, status.Charts[0].LastPrice, "healthy sibling still updates")
	assert.Equal(t, 100.0, status.Charts[1].LastPrice, "failed slot keeps its committed state")
	assert.NotEmpty(t, status.Charts[1].LastError)
	assert.Equal(t, 2, h.driver.pushes(), "one success is enough to render")
	assert.Zero(t, status.FetchFailures, "partial success resets the failure counter")
}

func TestAllChartsFailedSkipsDisplay(t *testing.T) {
	h := newHarness(t)
	h.orch.ApplySettings(testSettings(2))
	h.clients[models.ExchangeBinance].err = errors.New("timeout")
	h.clients[models.ExchangeKraken].err = errors.New("timeout")

	h.orch.RunCycle(context.Background(), true)

	assert.Zero(t, h.driver.pushes(), "an all-failed cycle must not touch the panel")
	assert.Equal(t, 1, h.orch.Status().FetchFailures)
}

func TestGhostEpisodeForcesResetAndImmediateRefresh(t *testing.T) {
	h := newHarness(t)
	h.orch.ApplySettings(testSettings(1))
	h.clients[models.ExchangeBinance].err = errors.New("timeout")

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		h.orch.RunCycle(ctx, false)
	}

	assert.Equal(t, 1, h.radio.resets)
	assert.Zero(t, h.orch.Status().FetchFailures, "successful reset clears the counter")

	// the reset scheduled an immediate refresh
	select {
	case <-h.orch.forceCh:
	default:
		t.Fatal("expected a pending force-refresh signal")
	}
}

func TestApplySettingsWithoutWifiKeepsCredentials(t *testing.T) {
	h := newHarness(t)
	s := testSettings(1)
	s.WifiSSID = ""
	s.WifiPass = ""
	h.orch.ApplySettings(s)

	// the link drops; the health tick must reconnect with the credentials
	// configured before the settings were applied
	h.radio.dropLink()
	h.clk.Add(16 * time.Second)
	require.Eventually(t, func() bool {
		return h.radio.connected() && h.watcher.State() == netwatch.StateConnectedStation
	}, 2*time.Second, 5*time.Millisecond)
}

// blockingClient parks inside Fetch until released, holding a cycle open.
type blockingClient struct {
	fakeClient
	entered chan struct{}
	release chan struct{}
}

func (b *blockingClient) Fetch(ctx context.Context, cfg models.ChartConfig, window models.TimeRange) ([]models.Candle, error) {
	b.entered <- struct{}{}
	<-b.release
	return b.fakeClient.Fetch(ctx, cfg, window)
}

func TestBeginUpdateWaitsForInFlightCycle(t *testing.T) {
	h := newHarness(t)
	h.orch.ApplySettings(testSettings(1))

	bc := &blockingClient{
		fakeClient: fakeClient{price: 100},
		entered:    make(chan struct{}),
		release:    make(chan struct{}),
	}
	h.orch.clientFor = func(models.ExchangeID) (exchange.Client, error) {
		return bc, nil
	}

	cycleDone := make(chan struct{})
	go func() {
		h.orch.RunCycle(context.Background(), true)
		close(cycleDone)
	}()
	<-bc.entered

	updateReady := make(chan struct{})
	go func() {
		h.orch.BeginUpdate()
		close(updateReady)
	}()

	select {
	case <-updateReady:
		t.Fatal("BeginUpdate returned while a cycle was mid-fetch")
	case <-time.After(50 * time.Millisecond):
	}

	close(bc.release)
	<-cycleDone
	select {
	case <-updateReady:
	case <-time.After(2 * time.Second):
		t.Fatal("BeginUpdate never returned after the cycle finished")
	}

	// the cycle's frame landed before the upload took the panel over
	before := h.driver.pushes()
	require.Equal(t, 1, before)
	h.orch.ReportUpdateProgress(50)
	assert.Equal(t, before+1, h.driver.pushes())
	h.orch.EndUpdate(false)
}

func TestUpdateSuspendsCycles(t *testing.T) {
	h := newHarness(t)
	h.orch.ApplySettings(testSettings(1))

	h.orch.BeginUpdate()
	h.orch.RunCycle(context.Background(), true)
	assert.Zero(t, h.clients[models.ExchangeBinance].calls())
	assert.True(t, h.orch.Status().UpdateInProgress)

	h.orch.EndUpdate(false)
	assert.False(t, h.orch.Status().UpdateInProgress)
	h.orch.RunCycle(context.Background(), true)
	assert.Equal(t, 1, h.clients[models.ExchangeBinance].calls())
}

func TestUpdateProgressRendersOnPanel(t *testing.T) {
	h := newHarness(t)
	h.orch.ApplySettings(testSettings(1))
	h.orch.RunCycle(context.Background(), true)
	before := h.driver.pushes()

	h.orch.BeginUpdate()
	h.orch.ReportUpdateProgress(40)
	h.orch.ReportUpdateProgress(80)
	assert.Equal(t, before+2, h.driver.pushes())

	h.orch.EndUpdate(true)
	assert.True(t, h.orch.Status().UpdateFailed)
	assert.Equal(t, before+3, h.driver.pushes(), "failure screen is pushed")
}

func TestForceRefreshCoalesces(t *testing.T) {
	h := newHarness(t)
	h.orch.ForceRefresh()
	h.orch.ForceRefresh()
	h.orch.ForceRefresh()

	count := 0
	for {
		select {
		case <-h.orch.forceCh:
			count++
			continue
		default:
		}
		break
	}
	assert.Equal(t, 1, count)
}
