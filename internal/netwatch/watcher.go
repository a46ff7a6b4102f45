package netwatch

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/Alpha162/armoured-candles/pkg/config"
	"github.com/Alpha162/armoured-candles/pkg/logger"
)

// State names one node of the resilience state machine.
type State int

const (
	StateDisconnected State = iota
	StateConnectingStation
	StateConnectedStation
	StateAccessPointFallback
	StateForceResetting
)

func (s State) String() string {
	switch s {
	case StateConnectingStation:
		return "connecting"
	case StateConnectedStation:
		return "station"
	case StateAccessPointFallback:
		return "access-point"
	case StateForceResetting:
		return "force-resetting"
	default:
		return "disconnected"
	}
}

// Status is the read-only snapshot exposed to the API and the status screen.
type Status struct {
	State           State  `json:"-"`
	Mode            string `json:"mode"`
	FetchFailures   int    `json:"fetch_failures"`
	AccessPointSSID string `json:"access_point_ssid,omitempty"`
	AccessPointAddr string `json:"access_point_addr,omitempty"`
}

// Watcher runs the state machine: boot connect, periodic health checks while
// connected, ghost detection from the fetch-failure counter, a single forced
// radio reset per ghost episode, and the access-point fallback with a
// background station retry.
type Watcher struct {
	radio Radio
	cfg   config.NetworkConfig
	clk   clock.Clock
	log   *logrus.Entry

	mu            sync.Mutex
	state         State
	ssid          string
	password      string
	fetchFailures int
	ghostReset    bool // a forced reset already ran for the current failure run
	lastAPRetry   time.Time
	onRefresh     func()
}

// NewWatcher builds a watcher over the given radio. Credentials come from the
// persisted settings via SetCredentials before Run.
func NewWatcher(radio Radio, cfg config.NetworkConfig, clk clock.Clock, log *logrus.Logger) *Watcher {
	return &Watcher{
		radio: radio,
		cfg:   cfg,
		clk:   clk,
		log:   logger.WithComponent(log, "netwatch"),
		state: StateDisconnected,
	}
}

// SetCredentials replaces the station credentials used for every subsequent
// connect attempt.
func (w *Watcher) SetCredentials(ssid, password string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.ssid = ssid
	w.password = password
}

// OnForceRefresh registers the callback fired when a successful forced reset
// schedules an immediate display refresh.
func (w *Watcher) OnForceRefresh(fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onRefresh = fn
}

// Status returns the current snapshot.
func (w *Watcher) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	st := Status{
		State:         w.state,
		Mode:          w.state.String(),
		FetchFailures: w.fetchFailures,
	}
	if w.state == StateAccessPointFallback {
		st.AccessPointSSID = w.cfg.AccessPointSSID
		st.AccessPointAddr = w.cfg.AccessPointAddr
	}
	return st
}

// State returns the current state.
func (w *Watcher) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

func (w *Watcher) setState(s State) {
	w.mu.Lock()
	prev := w.state
	w.state = s
	w.mu.Unlock()
	if prev != s {
		w.log.WithFields(logrus.Fields{"from": prev.String(), "to": s.String()}).Info("Connectivity state changed")
	}
}

// Run executes the boot connect and then the health loop until the context
// is cancelled. It is the only goroutine that transitions states; the fetch
// counter methods below only feed it observations, except ghost handling
// which runs inline so the reset happens before the next cycle fires.
func (w *Watcher) Run(ctx context.Context) {
	w.setState(StateConnectingStation)
	if err := w.connectStation(ctx); err == nil {
		w.setState(StateConnectedStation)
	} else {
		w.enterFallback(ctx)
	}

	ticker := w.clk.Ticker(w.cfg.HealthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

// ReportFetchResult feeds one cycle's aggregate fetch outcome into the ghost
// detector. ok means at least one chart fetched successfully.
func (w *Watcher) ReportFetchResult(ctx context.Context, ok bool) {
	w.mu.Lock()
	if ok {
		w.fetchFailures = 0
		w.ghostReset = false
		w.mu.Unlock()
		return
	}
	w.fetchFailures++
	failures := w.fetchFailures
	alreadyReset := w.ghostReset
	state := w.state
	w.mu.Unlock()

	w.log.WithField("consecutive_failures", failures).Warn("Cycle fetched no data")

	if state != StateConnectedStation || failures < w.cfg.GhostThreshold || alreadyReset {
		return
	}

	up, err := w.radio.Connected(ctx)
	if err != nil || !up {
		// not a ghost, the radio itself is down; the health tick handles it
		return
	}
	w.forceReset(ctx)
}

// forceReset is the ghost escalation: full teardown, fresh connect. It runs
// at most once per failure run.
func (w *Watcher) forceReset(ctx context.Context) {
	w.mu.Lock()
	w.ghostReset = true
	w.mu.Unlock()

	w.setState(StateForceResetting)
	w.log.Warn("Ghost connection suspected, forcing radio reset")

	if err := w.radio.Reset(ctx); err != nil {
		w.log.WithError(err).Error("Radio reset failed")
		w.enterFallback(ctx)
		return
	}
	if err := w.connectStation(ctx); err != nil {
		w.enterFallback(ctx)
		return
	}

	w.mu.Lock()
	w.fetchFailures = 0
	w.ghostReset = false
	refresh := w.onRefresh
	w.mu.Unlock()

	w.setState(StateConnectedStation)
	if refresh != nil {
		refresh()
	}
}

func (w *Watcher) tick(ctx context.Context) {
	switch w.State() {
	case StateConnectedStation:
		up, err := w.radio.Connected(ctx)
		if err == nil && up {
			return
		}
		w.log.Warn("Radio lost station link, reconnecting")
		w.setState(StateConnectingStation)
		if err := w.connectStation(ctx); err != nil {
			w.enterFallback(ctx)
			return
		}
		w.mu.Lock()
		w.fetchFailures = 0
		w.ghostReset = false
		w.mu.Unlock()
		w.setState(StateConnectedStation)

	case StateAccessPointFallback:
		w.mu.Lock()
		due := w.clk.Now().Sub(w.lastAPRetry) >= w.cfg.FallbackRetry
		if due {
			w.lastAPRetry = w.clk.Now()
		}
		w.mu.Unlock()
		if !due {
			return
		}
		if err := w.connectStation(ctx); err != nil {
			return
		}
		if err := w.radio.StopAccessPoint(ctx); err != nil {
			w.log.WithError(err).Warn("Stopping access point failed")
		}
		w.mu.Lock()
		w.fetchFailures = 0
		w.ghostReset = false
		w.mu.Unlock()
		w.setState(StateConnectedStation)
	}
}

// connectStation attempts the station join with bounded retries inside the
// configured connect budget.
func (w *Watcher) connectStation(ctx context.Context) error {
	w.mu.Lock()
	ssid, password := w.ssid, w.password
	w.mu.Unlock()
	if ssid == "" {
		return &ConnectivityError{Op: "connect", Err: context.Canceled}
	}

	ctx, cancel := context.WithTimeout(ctx, w.cfg.ConnectBudget)
	defer cancel()

	attempts := w.cfg.ReconnectAttempts
	if attempts < 1 {
		attempts = 1
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(2*time.Second), uint64(attempts-1)),
		ctx,
	)
	return backoff.Retry(func() error {
		return w.radio.Connect(ctx, ssid, password)
	}, policy)
}

func (w *Watcher) enterFallback(ctx context.Context) {
	if err := w.radio.StartAccessPoint(ctx, w.cfg.AccessPointSSID, ""); err != nil {
		w.log.WithError(err).Error("Access point startup failed")
		w.setState(StateDisconnected)
		return
	}
	w.mu.Lock()
	w.lastAPRetry = w.clk.Now()
	w.mu.Unlock()
	w.setState(StateAccessPointFallback)
}
