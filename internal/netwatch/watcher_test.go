package netwatch

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

	"github.com/Alpha162/armoured-candles/pkg/config"
)

type fakeRadio struct {
	mu         sync.Mutex
	linkUp     bool
	connectErr error
	resetErr   error

	connects int
	resets   int
	apStarts int
	apStops  int
}

func (f *fakeRadio) Connect(ctx context.Context, ssid, password string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	if f.connectErr != nil {
		return f.connectErr
	}
	f.linkUp = true
	return nil
}

func (f *fakeRadio) Connected(ctx context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.linkUp, nil
}

func (f *fakeRadio) Reset(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets++
	if f.resetErr != nil {
		return f.resetErr
	}
	f.linkUp = false
	return nil
}

func (f *fakeRadio) StartAccessPoint(ctx context.Context, ssid, password string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.apStarts++
	return nil
}

func (f *fakeRadio) StopAccessPoint(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.apStops++
	return nil
}

func testNetConfig() config.NetworkConfig {
	return config.NetworkConfig{
		Interface:         "wlan0",
		ConnectBudget:     5 * time.Second,
		HealthInterval:    15 * time.Second,
		FallbackRetry:     60 * time.Second,
		GhostThreshold:    3,
		AccessPointSSID:   "candles-setup",
		AccessPointAddr:   "192.168.4.1",
		CommandTimeout:    time.Second,
		ReconnectAttempts: 1,
	}
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func newTestWatcher(radio Radio, clk clock.Clock) *Watcher {
	w := NewWatcher(radio, testNetConfig(), clk, quietLogger())
	w.SetCredentials("home-wifi", "hunter2")
	return w
}

func TestGhostDetectionForcesOneReset(t *testing.T) {
	radio := &fakeRadio{linkUp: true}
	w := newTestWatcher(radio, clock.NewMock())
	w.setState(StateConnectedStation)

	refreshed := 0
	w.OnForceRefresh(func() { refreshed++ })

	ctx := context.Background()
	w.ReportFetchResult(ctx, false)
	w.ReportFetchResult(ctx, false)
	assert.Zero(t, radio.resets, "below threshold must not reset")

	w.ReportFetchResult(ctx, false)
	assert.Equal(t, 1, radio.resets)
	assert.Equal(t, StateConnectedStation, w.State())
	assert.Zero(t, w.Status().FetchFailures)
	assert.Equal(t, 1, refreshed, "successful reset schedules an immediate refresh")
	// teardown then reconnect
	assert.Equal(t, 1, radio.connects)
}

func TestGhostResetRunsAtMostOncePerEpisode(t *testing.T) {
	radio := &fakeRadio{linkUp: true, resetErr: errors.New("rfkill stuck")}
	w := newTestWatcher(radio, clock.NewMock())
	w.setState(StateConnectedStation)

	ctx := context.Background()
	for i := 0; i < 6; i++ {
		w.ReportFetchResult(ctx, false)
	}
	assert.Equal(t, 1, radio.resets)
	assert.Equal(t, StateAccessPointFallback, w.State())
	assert.Equal(t, 1, radio.apStarts)
}

func TestGhostCheckSkippedWhenRadioDown(t *testing.T) {
	radio := &fakeRadio{linkUp: false}
	w := newTestWatcher(radio, clock.NewMock())
	w.setState(StateConnectedStation)

	ctx := context.Background()
	for i := 0; i < 4; i++ {
		w.ReportFetchResult(ctx, false)
	}
	// the radio itself reports down: that is the health tick's problem,
	// not a ghost
	assert.Zero(t, radio.resets)
}

func TestSuccessfulCycleResetsCounter(t *testing.T) {
	radio := &fakeRadio{linkUp: true}
	w := newTestWatcher(radio, clock.NewMock())
	w.setState(StateConnectedStation)

	ctx := context.Background()
	w.ReportFetchResult(ctx, false)
	w.ReportFetchResult(ctx, false)
	w.ReportFetchResult(ctx, true)
	assert.Zero(t, w.Status().FetchFailures)

	w.ReportFetchResult(ctx, false)
	w.ReportFetchResult(ctx, false)
	assert.Zero(t, radio.resets, "counter restarted by the successful cycle")
}

func TestHealthTickReconnects(t *testing.T) {
	radio := &fakeRadio{linkUp: false}
	w := newTestWatcher(radio, clock.NewMock())
	w.setState(StateConnectedStation)

	w.tick(context.Background())
	assert.Equal(t, 1, radio.connects)
	assert.Equal(t, StateConnectedStation, w.State())
}

func TestHealthTickFallsBackWhenReconnectFails(t *testing.T) {
	radio := &fakeRadio{linkUp: false, connectErr: errors.New("no carrier")}
	w := newTestWatcher(radio, clock.NewMock())
	w.setState(StateConnectedStation)

	w.tick(context.Background())
	assert.Equal(t, StateAccessPointFallback, w.State())
	assert.Equal(t, 1, radio.apStarts)

	st := w.Status()
	assert.Equal(t, "access-point", st.Mode)
	assert.Equal(t, "candles-setup", st.AccessPointSSID)
	assert.Equal(t, "192.168.4.1", st.AccessPointAddr)
}

func TestFallbackRetriesStationOnTimer(t *testing.T) {
	radio := &fakeRadio{connectErr: errors.New("no carrier")}
	clk := clock.NewMock()
	w := newTestWatcher(radio, clk)

	w.enterFallback(context.Background())
	require.Equal(t, StateAccessPointFallback, w.State())
	connectsAfterFallback := radio.connects

	// before the retry interval elapses nothing happens
	clk.Add(30 * time.Second)
	w.tick(context.Background())
	assert.Equal(t, connectsAfterFallback, radio.connects)

	// past the interval a retry fires and fails, staying in fallback
	clk.Add(31 * time.Second)
	w.tick(context.Background())
	assert.Equal(t, connectsAfterFallback+1, radio.connects)
	assert.Equal(t, StateAccessPointFallback, w.State())

	// credentials fixed: the next timed retry succeeds and tears the AP down
	radio.mu.Lock()
	radio.connectErr = nil
	radio.mu.Unlock()
	clk.Add(61 * time.Second)
	w.tick(context.Background())
	assert.Equal(t, StateConnectedStation, w.State())
	assert.Equal(t, 1, radio.apStops)
}

func TestRunBootConnect(t *testing.T) {
	radio := &fakeRadio{}
	w := newTestWatcher(radio, clock.NewMock())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return w.State() == StateConnectedStation
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done
}
